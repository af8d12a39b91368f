package repo

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kerbal-mod-manager/download"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/mods"
)

// Freshness thresholds. The update path itself is driven by ETag comparison;
// these only classify how overdue a cached catalog is for UI nagging.
const (
	TimeTillStale     = 3 * 24 * time.Hour
	TimeTillVeryStale = 14 * 24 * time.Hour
)

// UpdateResult is the overall outcome of an Update call.
type UpdateResult int

const (
	// NoChanges means every repository was already current.
	NoChanges UpdateResult = iota
	// Updated means at least one repository's catalog was replaced.
	Updated
	// OutdatedClient means the update succeeded but some repository carries
	// metadata newer than this build understands.
	OutdatedClient
)

func (r UpdateResult) String() string {
	switch r {
	case NoChanges:
		return "no changes"
	case Updated:
		return "updated"
	case OutdatedClient:
		return "outdated client"
	}
	return "unknown"
}

// Game is the slice of the game collaborator the pipeline needs.
type Game interface {
	RefreshVersions(ctx context.Context, userAgent string) error
}

// Downloader is the slice of the download collaborator the pipeline needs.
type Downloader interface {
	HeadETag(ctx context.Context, url string) (string, error)
	DownloadAndWait(ctx context.Context, targets []download.Target, onComplete func(download.Result)) error
}

// Store owns the per-repository metadata caches: one JSON file per repo on
// disk plus etags.json, and the parsed in-memory indices. Index replacement
// is a map-entry swap of an immutable value; readers holding an index keep
// observing consistent data.
type Store struct {
	mu       sync.RWMutex
	cacheDir string
	indices  map[string]*RepositoryIndex
	refs     map[string][]Repository

	etags   *ETagStore
	events  *publisher
	tracker *Tracker
	log     *zap.SugaredLogger
}

// NewStore opens a store over the given cache directory, reading etags.json
// if present.
func NewStore(cacheDir string) *Store {
	return &Store{
		cacheDir: cacheDir,
		indices:  make(map[string]*RepositoryIndex),
		refs:     make(map[string][]Repository),
		etags:    LoadETags(filepath.Join(cacheDir, etagsFilename)),
		events:   newPublisher(),
		tracker:  NewTracker(),
		log:      logger.Log,
	}
}

// CachePath returns where a repository's catalog lives on disk.
func (s *Store) CachePath(r Repository) string {
	return filepath.Join(s.cacheDir, r.CacheFilename())
}

// ETags exposes the store's ETag bookkeeping, mainly for tests.
func (s *Store) ETags() *ETagStore { return s.etags }

// Tracker returns the store's release handle arena.
func (s *Store) Tracker() *Tracker { return s.tracker }

// Subscribe registers a listener for the updated event and returns its
// unsubscribe token.
func (s *Store) Subscribe(fn UpdateListener) uuid.UUID {
	return s.events.subscribe(fn)
}

// Unsubscribe removes a listener by token.
func (s *Store) Unsubscribe(token uuid.UUID) {
	s.events.unsubscribe(token)
}

// Index returns the loaded index for a repository name.
func (s *Store) Index(name string) (*RepositoryIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[name]
	return idx, ok
}

// install swaps a freshly parsed index into the in-memory map and records
// any repositories the metadata endorses.
func (s *Store) install(r Repository, idx *RepositoryIndex) {
	s.mu.Lock()
	s.indices[r.Name] = idx
	if len(idx.Repositories) > 0 {
		s.refs[r.Name] = append([]Repository(nil), idx.Repositories...)
	} else {
		delete(s.refs, r.Name)
	}
	s.mu.Unlock()
}

// AddRepoReference records that referrer endorses ref.
func (s *Store) AddRepoReference(referrer Repository, ref Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refs[referrer.Name] {
		if existing.URI == ref.URI {
			return
		}
	}
	s.refs[referrer.Name] = append(s.refs[referrer.Name], ref)
}

// ReferencesOf returns the repositories the named repository endorses.
func (s *Store) ReferencesOf(name string) []Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Repository(nil), s.refs[name]...)
}

// Prepopulate parses any on-disk catalogs that are not yet loaded in memory.
// Progress is a single 0..100 scalar weighted by file size.
func (s *Store) Prepopulate(repos []Repository, progress func(percent int)) error {
	type pending struct {
		repo Repository
		path string
		size int64
	}

	var work []pending
	var total int64
	for _, r := range distinctByURI(repos) {
		if _, loaded := s.Index(r.Name); loaded {
			continue
		}
		path := s.CachePath(r)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		work = append(work, pending{r, path, info.Size()})
		total += info.Size()
	}

	var done int64
	for _, p := range work {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return &ParseError{Repo: p.repo.Name, Cause: err}
		}
		idx, err := ParseIndex(data)
		if err != nil {
			return &ParseError{Repo: p.repo.Name, Cause: err}
		}
		s.install(p.repo, idx)

		done += p.size
		if progress != nil && total > 0 {
			progress(int(done * 100 / total))
		}
		s.log.Debugw("Prepopulated repository from cache",
			zap.String("repo", p.repo.Name),
			zap.Int("modules", len(idx.Catalog)),
		)
	}
	return nil
}

// isStale decides whether a repository needs a fresh download: no URI, no
// recorded ETag, no cached file, or a remote ETag that differs from ours.
func (s *Store) isStale(ctx context.Context, r Repository, dl Downloader) bool {
	if r.URI == "" {
		return true
	}
	etag, ok := s.etags.Get(r.URI)
	if !ok {
		return true
	}
	if _, err := os.Stat(s.CachePath(r)); err != nil {
		return true
	}
	remote, err := dl.HeadETag(ctx, r.URI)
	if err != nil {
		s.log.Warnw("HEAD request failed, treating repository as stale",
			zap.String("repo", r.Name), zap.Error(err))
		return true
	}
	return remote != etag
}

// Update refreshes the catalogs for the given repositories. It returns
// NoChanges when every repository was current, Updated when catalogs were
// replaced, and OutdatedClient when, after any repository was fetched, some
// loaded catalog (replaced or not) declares metadata newer than this build.
// Any download or parse failure rolls back all
// pending ETag changes by reloading etags.json from disk; in-memory swaps
// that completed before the failure intentionally remain (the missing ETag
// makes the next update re-download those repositories).
func (s *Store) Update(ctx context.Context, repos []Repository, g Game, skipETags bool,
	dl Downloader, userAgent string, progress func(percent int)) (UpdateResult, error) {

	if g != nil {
		if err := g.RefreshVersions(ctx, userAgent); err != nil {
			s.log.Warnw("Failed to refresh game build list, continuing with cached builds", zap.Error(err))
		}
	}

	distinct := distinctByURI(repos)
	var toUpdate []Repository
	for _, r := range distinct {
		if strings.HasPrefix(r.URI, "file://") || skipETags || s.isStale(ctx, r, dl) {
			toUpdate = append(toUpdate, r)
		}
	}

	if len(toUpdate) == 0 {
		now := time.Now()
		for _, r := range distinct {
			if err := os.Chtimes(s.CachePath(r), now, now); err != nil && !os.IsNotExist(err) {
				s.log.Warnw("Failed to touch cache file", zap.String("repo", r.Name), zap.Error(err))
			}
		}
		s.log.Info("All repositories are up to date")
		return NoChanges, nil
	}

	targets := make([]download.Target, 0, len(toUpdate))
	for _, r := range toUpdate {
		t := download.Target{URLs: []string{r.URI}, Filename: r.CacheFilename()}
		if !skipETags {
			// Only send If-None-Match when the cached file is still there; a
			// 304 carries no body to restore a lost cache from.
			if etag, ok := s.etags.Get(r.URI); ok {
				if _, err := os.Stat(s.CachePath(r)); err == nil {
					t.ETag = etag
				}
			}
		}
		targets = append(targets, t)
	}

	// Completion callbacks run serialized, so plain map writes are safe.
	results := make(map[string]download.Result, len(targets))
	dlErr := dl.DownloadAndWait(ctx, targets, func(res download.Result) {
		uri := res.Target.URL()
		results[uri] = res
		if res.Err != nil {
			return
		}
		// Pending ETag bookkeeping: record what the server told us, clear
		// when it said nothing so the next update re-downloads.
		if res.ETag != "" {
			s.etags.Set(uri, res.ETag)
		} else if !res.NotModified {
			s.etags.Clear(uri)
		}
	})
	if dlErr != nil && ctx.Err() != nil {
		// Cancellation mid-update is a failure: roll back.
		s.etags.Reload()
		return NoChanges, &DownloadErrors{Failures: []*DownloadFailure{{URI: "update", Cause: ctx.Err()}}}
	}

	var changed []Repository
	for i, r := range toUpdate {
		res, ok := results[r.URI]
		if !ok {
			res = download.Result{Err: dlErr}
		}
		if res.Err != nil {
			s.etags.Reload()
			return NoChanges, &DownloadErrors{Failures: []*DownloadFailure{{URI: r.URI, Cause: res.Err}}}
		}
		if res.NotModified {
			// Current on disk; make sure it is loaded.
			if err := s.Prepopulate([]Repository{r}, nil); err != nil {
				s.etags.Reload()
				return NoChanges, &DownloadErrors{Failures: []*DownloadFailure{{URI: r.URI, Cause: err}}}
			}
			continue
		}

		idx, err := ParseIndex(res.Body)
		if err != nil {
			s.etags.Reload()
			return NoChanges, &DownloadErrors{Failures: []*DownloadFailure{
				{URI: r.URI, Cause: &ParseError{Repo: r.Name, Cause: err}},
			}}
		}

		// Disk before memory: readers observing the new index are guaranteed
		// the on-disk copy exists.
		if err := writeFileAtomic(s.CachePath(r), res.Body); err != nil {
			s.etags.Reload()
			return NoChanges, &DownloadErrors{Failures: []*DownloadFailure{{URI: r.URI, Cause: err}}}
		}
		s.install(r, idx)
		changed = append(changed, r)

		s.log.Infow("Repository updated",
			zap.String("repo", r.Name),
			zap.Int("modules", len(idx.Catalog)),
		)
		if progress != nil {
			progress((i + 1) * 100 / len(toUpdate))
		}
	}

	// ETags persist only after every swap has completed. A crash before this
	// point leaves stale ETags, which costs a redundant re-download, never
	// an incorrectly fresh one.
	if err := s.etags.Save(); err != nil {
		return NoChanges, err
	}

	if len(changed) > 0 {
		s.tracker.Invalidate()
		s.events.notify(changed)
	}

	s.mu.RLock()
	outdated := false
	for _, idx := range s.indices {
		if idx.UnsupportedSpec {
			outdated = true
			break
		}
	}
	s.mu.RUnlock()

	if outdated {
		return OutdatedClient, nil
	}
	if len(changed) == 0 {
		return NoChanges, nil
	}
	return Updated, nil
}

// AvailableModules yields every release for the identifier across the given
// repositories in (priority asc, name asc) order, versions descending within
// each repository.
func (s *Store) AvailableModules(repos []Repository, identifier string) []*mods.Release {
	ordered := append([]Repository(nil), repos...)
	SortRepositories(ordered)

	var out []*mods.Release
	for _, r := range ordered {
		idx, ok := s.Index(r.Name)
		if !ok {
			continue
		}
		out = append(out, idx.AvailableModules(identifier)...)
	}
	return out
}

// AllIdentifiers returns every identifier known across the given repos.
func (s *Store) AllIdentifiers(repos []Repository) []string {
	seen := make(map[string]bool)
	for _, r := range repos {
		idx, ok := s.Index(r.Name)
		if !ok {
			continue
		}
		for id := range idx.Catalog {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ProvidersOf returns every release across the given repos whose identifier
// or provides list covers the identifier, in repository priority order.
func (s *Store) ProvidersOf(repos []Repository, identifier string) []*mods.Release {
	ordered := append([]Repository(nil), repos...)
	SortRepositories(ordered)

	var out []*mods.Release
	for _, r := range ordered {
		idx, ok := s.Index(r.Name)
		if !ok {
			continue
		}
		out = append(out, idx.ProvidersOf(identifier)...)
	}
	return out
}

// DownloadCount returns the first non-zero download counter for the
// identifier in repository priority order.
func (s *Store) DownloadCount(repos []Repository, identifier string) (uint64, bool) {
	ordered := append([]Repository(nil), repos...)
	SortRepositories(ordered)

	for _, r := range ordered {
		idx, ok := s.Index(r.Name)
		if !ok {
			continue
		}
		if n := idx.DownloadCounts[identifier]; n > 0 {
			return n, true
		}
	}
	return 0, false
}

// LastUpdate returns the smallest age-since-mtime among repositories whose
// cache has gone stale, or zero when none have.
func (s *Store) LastUpdate(repos []Repository) time.Duration {
	now := time.Now()
	var min time.Duration
	for _, r := range distinctByURI(repos) {
		info, err := os.Stat(s.CachePath(r))
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= TimeTillStale {
			continue
		}
		if min == 0 || age < min {
			min = age
		}
	}
	return min
}

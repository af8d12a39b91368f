package registry

import (
	"sort"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/repo"
	"kerbal-mod-manager/version"
)

const latestCacheSize = 512

// State is the installed-side view the querier composes with the metadata
// store: managed releases, ambient DLLs, and owned DLC.
type State struct {
	Installed map[string]*mods.Release
	DLLs      mods.DLLFacts
	DLC       mods.DLCFacts
}

// Querier is the unified read-only view over the repository catalogs and the
// installed state. LatestAvailable lookups are memoized in an LRU that the
// store's updated event purges.
type Querier struct {
	store *repo.Store
	repos []repo.Repository
	state State

	latest *lru.Cache[latestKey, latestEntry]
	token  uuid.UUID
}

type latestKey struct {
	identifier string
	criteria   string
	tolerance  mods.Stability
}

type latestEntry struct {
	release *mods.Release
	ok      bool
}

// NewQuerier builds a querier over the given repositories and installed
// state. Call Close when done to detach from the store's update event.
func NewQuerier(store *repo.Store, repos []repo.Repository, state State) *Querier {
	cache, _ := lru.New[latestKey, latestEntry](latestCacheSize)
	q := &Querier{
		store:  store,
		repos:  append([]repo.Repository(nil), repos...),
		state:  state,
		latest: cache,
	}
	q.token = store.Subscribe(func([]repo.Repository) {
		q.latest.Purge()
	})
	return q
}

// Close detaches the querier from the store's update event.
func (q *Querier) Close() {
	q.store.Unsubscribe(q.token)
}

// Repositories returns the repositories this querier reads, in priority
// order.
func (q *Querier) Repositories() []repo.Repository {
	out := append([]repo.Repository(nil), q.repos...)
	repo.SortRepositories(out)
	return out
}

// State returns the installed-side facts.
func (q *Querier) State() State { return q.state }

// AllAvailable returns every known release for the identifier across the
// configured repositories.
func (q *Querier) AllAvailable(identifier string) []*mods.Release {
	return q.store.AvailableModules(q.repos, identifier)
}

// AllIdentifiers returns every identifier known to any configured repo.
func (q *Querier) AllIdentifiers() []string {
	return q.store.AllIdentifiers(q.repos)
}

// LatestAvailable returns the newest release of the identifier compatible
// with the criteria and within the stability tolerance.
func (q *Querier) LatestAvailable(identifier string, criteria version.GameVersionCriteria,
	tolerance mods.Stability) (*mods.Release, bool) {

	key := latestKey{identifier, criteria.String(), tolerance}
	if entry, ok := q.latest.Get(key); ok {
		return entry.release, entry.ok
	}

	var found *mods.Release
	for _, r := range q.AllAvailable(identifier) {
		if r.ReleaseStatus.ExcludedBy(tolerance) {
			continue
		}
		if !r.CompatibleWith(criteria) {
			continue
		}
		if found == nil || found.Version.Less(r.Version) {
			found = r
		}
	}

	q.latest.Add(key, latestEntry{found, found != nil})
	return found, found != nil
}

// Installed returns the installed release for an identifier, if any.
func (q *Querier) Installed(identifier string) (*mods.Release, bool) {
	r, ok := q.state.Installed[identifier]
	return r, ok
}

// InstalledReleases returns every installed release, sorted by identifier.
func (q *Querier) InstalledReleases() []*mods.Release {
	out := make([]*mods.Release, 0, len(q.state.Installed))
	for _, r := range q.state.Installed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// ProvidedBy returns every available release whose identifier or provides
// list covers the identifier.
func (q *Querier) ProvidedBy(identifier string) []*mods.Release {
	return q.store.ProvidersOf(q.repos, identifier)
}

// Downloads returns the download counter for an identifier.
func (q *Querier) Downloads(identifier string) (uint64, bool) {
	return q.store.DownloadCount(q.repos, identifier)
}

// CompatibleProviders returns the candidate releases that could satisfy a
// descriptor for the given criteria and tolerance, ordered for resolution:
// identifier-exact matches before provides-matches, newer versions first,
// more downloads breaking version ties, identifier as the final tiebreak.
func (q *Querier) CompatibleProviders(d *mods.RelationshipDescriptor,
	criteria version.GameVersionCriteria, tolerance mods.Stability) []*mods.Release {

	if d.IsAnyOf() {
		var out []*mods.Release
		seen := make(map[string]bool)
		for i := range d.AnyOf {
			for _, r := range q.CompatibleProviders(&d.AnyOf[i], criteria, tolerance) {
				key := r.Identifier + " " + r.Version.String()
				if !seen[key] {
					seen[key] = true
					out = append(out, r)
				}
			}
		}
		return out
	}

	var out []*mods.Release
	for _, r := range q.ProvidedBy(d.Identifier) {
		if !d.MatchesRelease(r) {
			continue
		}
		if r.ReleaseStatus.ExcludedBy(tolerance) {
			continue
		}
		if !r.CompatibleWith(criteria) {
			continue
		}
		out = append(out, r)
	}

	identifier := d.Identifier
	sort.SliceStable(out, func(i, j int) bool {
		iExact := out[i].Identifier == identifier
		jExact := out[j].Identifier == identifier
		if iExact != jExact {
			return iExact
		}
		if c := out[i].Version.Compare(out[j].Version); c != 0 {
			return c > 0
		}
		iDownloads, _ := q.Downloads(out[i].Identifier)
		jDownloads, _ := q.Downloads(out[j].Identifier)
		if iDownloads != jDownloads {
			return iDownloads > jDownloads
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

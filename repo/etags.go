package repo

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"kerbal-mod-manager/logger"
)

// etagsFilename is the per-cache-dir ETag bookkeeping file.
const etagsFilename = "etags.json"

// ETagStore maps repository URIs to the ETag the server last reported for
// them. It is read once at startup, mutated only during an update, and
// persisted transactionally at the end of a successful update.
type ETagStore struct {
	mu    sync.Mutex
	path  string
	etags map[string]string
}

// LoadETags reads the store from disk. A missing or unreadable file starts
// an empty store; that is the one failure this subsystem swallows, with a
// warning, so a damaged bookkeeping file only costs a redundant re-download.
func LoadETags(path string) *ETagStore {
	s := &ETagStore{path: path, etags: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s
	}
	if err != nil {
		logger.Log.Warnw("Unable to read etags file, starting fresh", zap.String("path", path), zap.Error(err))
		return s
	}
	if err := json.Unmarshal(data, &s.etags); err != nil {
		logger.Log.Warnw("Unable to parse etags file, starting fresh", zap.String("path", path), zap.Error(err))
		s.etags = map[string]string{}
	}
	return s
}

// Get returns the recorded ETag for a URI, if any.
func (s *ETagStore) Get(uri string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	etag, ok := s.etags[uri]
	return etag, ok
}

// Set records an ETag for a URI.
func (s *ETagStore) Set(uri, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etags[uri] = etag
}

// Clear forgets the ETag for a URI.
func (s *ETagStore) Clear(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.etags, uri)
}

// Save persists the store with a transactional write. encoding/json emits
// map keys sorted, so repeated saves of the same state are byte-identical.
func (s *ETagStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.etags, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Reload discards all in-memory changes and re-reads the store from disk.
// This is the rollback path when an update fails partway.
func (s *ETagStore) Reload() {
	fresh := LoadETags(s.path)
	s.mu.Lock()
	s.etags = fresh.etags
	s.mu.Unlock()
}

// Snapshot returns a copy of the current map, for tests and diagnostics.
func (s *ETagStore) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.etags))
	for k, v := range s.etags {
		out[k] = v
	}
	return out
}

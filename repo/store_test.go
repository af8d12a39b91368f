package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"kerbal-mod-manager/download"
)

// catalogServer serves one repository catalog with ETag support and counts
// GET requests so tests can assert the short-circuit behavior.
type catalogServer struct {
	*httptest.Server
	body atomic.Value // string
	etag atomic.Value // string
	gets atomic.Int64
}

func newCatalogServer(t *testing.T, body, etag string) *catalogServer {
	t.Helper()
	cs := &catalogServer{}
	cs.body.Store(body)
	cs.etag.Store(etag)

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		etag := cs.etag.Load().(string)
		w.Header().Set("ETag", etag)

		if r.Method == http.MethodHead {
			return
		}
		cs.gets.Add(1)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(cs.body.Load().(string)))
	}))
	t.Cleanup(cs.Close)
	return cs
}

const testCatalogV1 = `{"releases": [
	{"identifier": "ModuleManager", "version": "4.2.2", "download": "https://example.com/mm.zip"}
]}`

const testCatalogV2 = `{"releases": [
	{"identifier": "ModuleManager", "version": "4.2.3", "download": "https://example.com/mm.zip"}
]}`

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func testDownloader() *download.Client {
	return download.NewClient("kerbal-mod-manager/test")
}

func TestUpdateFetchesAndPersists(t *testing.T) {
	server := newCatalogServer(t, testCatalogV1, `"v1"`)
	store := testStore(t)
	repos := []Repository{{Name: "default", URI: server.URL}}

	var events int
	store.Subscribe(func(changed []Repository) {
		events++
		if len(changed) != 1 || changed[0].Name != "default" {
			t.Errorf("event carried %+v", changed)
		}
	})

	result, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result != Updated {
		t.Errorf("result = %v, want Updated", result)
	}
	if events != 1 {
		t.Errorf("updated event fired %d times, want 1", events)
	}

	idx, ok := store.Index("default")
	if !ok {
		t.Fatal("index not installed")
	}
	if len(idx.AvailableModules("ModuleManager")) != 1 {
		t.Error("catalog content missing")
	}

	if _, err := os.Stat(store.CachePath(repos[0])); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
	// Invariant: on-disk etags match memory after a successful update.
	onDisk := LoadETags(filepath.Join(store.cacheDir, etagsFilename)).Snapshot()
	inMemory := store.ETags().Snapshot()
	if len(onDisk) != 1 || onDisk[server.URL] != inMemory[server.URL] {
		t.Errorf("etags diverged: disk=%v memory=%v", onDisk, inMemory)
	}
}

// After a successful update, an unchanged server causes zero GET requests
// and a NoChanges result, with etags.json byte-identical.
func TestUpdateETagShortCircuit(t *testing.T) {
	server := newCatalogServer(t, testCatalogV1, `"v1"`)
	store := testStore(t)
	repos := []Repository{{Name: "default", URI: server.URL}}

	if _, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	etagsPath := filepath.Join(store.cacheDir, etagsFilename)
	before, err := os.ReadFile(etagsPath)
	if err != nil {
		t.Fatalf("read etags: %v", err)
	}
	server.gets.Store(0)

	result, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if result != NoChanges {
		t.Errorf("result = %v, want NoChanges", result)
	}
	if n := server.gets.Load(); n != 0 {
		t.Errorf("second update issued %d GETs, want 0", n)
	}
	after, err := os.ReadFile(etagsPath)
	if err != nil {
		t.Fatalf("read etags: %v", err)
	}
	if string(before) != string(after) {
		t.Error("etags.json content changed on a NoChanges update")
	}
}

func TestUpdateSeesNewContent(t *testing.T) {
	server := newCatalogServer(t, testCatalogV1, `"v1"`)
	store := testStore(t)
	repos := []Repository{{Name: "default", URI: server.URL}}

	if _, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	server.body.Store(testCatalogV2)
	server.etag.Store(`"v2"`)

	result, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if result != Updated {
		t.Errorf("result = %v, want Updated", result)
	}
	idx, _ := store.Index("default")
	releases := idx.AvailableModules("ModuleManager")
	if len(releases) != 1 || releases[0].Version.String() != "4.2.3" {
		t.Errorf("index not refreshed: %+v", releases)
	}
}

// A failing repository rolls back every pending ETag change, so a retry
// re-downloads the repositories that had succeeded too.
func TestUpdatePartialFailureRollsBackETags(t *testing.T) {
	good := newCatalogServer(t, testCatalogV1, `"good-v1"`)
	bad := newCatalogServer(t, `{not json`, `"bad-v1"`)
	store := testStore(t)
	repos := []Repository{
		{Name: "r1", URI: good.URL, Priority: 0},
		{Name: "r2", URI: bad.URL, Priority: 1},
	}

	_, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err == nil {
		t.Fatal("expected DownloadErrors")
	}
	if _, ok := err.(*DownloadErrors); !ok {
		t.Fatalf("error type = %T, want *DownloadErrors", err)
	}

	// etags.json reflects the pre-call state: nothing recorded for either
	// repo, so the next update re-downloads r1 as well.
	etags := store.ETags().Snapshot()
	if len(etags) != 0 {
		t.Errorf("etags after failed update = %v, want empty", etags)
	}
	if _, err := os.Stat(filepath.Join(store.cacheDir, etagsFilename)); !os.IsNotExist(err) {
		t.Errorf("etags.json should not have been persisted, stat err = %v", err)
	}
}

func TestUpdateOutdatedClient(t *testing.T) {
	catalog := `[{"identifier": "A", "version": "1.0", "spec_version": "v99.0",
		"download": "https://example.com/a.zip"}]`
	server := newCatalogServer(t, catalog, `"v1"`)
	store := testStore(t)
	repos := []Repository{{Name: "future", URI: server.URL}}

	result, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result != OutdatedClient {
		t.Errorf("result = %v, want OutdatedClient", result)
	}
}

func TestUpdateSkipETagsForcesDownload(t *testing.T) {
	server := newCatalogServer(t, testCatalogV1, `"v1"`)
	store := testStore(t)
	repos := []Repository{{Name: "default", URI: server.URL}}

	if _, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	server.gets.Store(0)

	result, err := store.Update(context.Background(), repos, nil, true, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("skip-etags Update: %v", err)
	}
	if result != Updated {
		t.Errorf("result = %v, want Updated", result)
	}
	if n := server.gets.Load(); n != 1 {
		t.Errorf("skip-etags update issued %d GETs, want 1", n)
	}
}

func TestUpdateFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.json")
	if err := os.WriteFile(path, []byte(testCatalogV1), 0644); err != nil {
		t.Fatal(err)
	}

	store := testStore(t)
	repos := []Repository{{Name: "local", URI: "file://" + path}}

	result, err := store.Update(context.Background(), repos, nil, false, testDownloader(), "ua", nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result != Updated {
		t.Errorf("result = %v, want Updated", result)
	}
	if _, ok := store.Index("local"); !ok {
		t.Error("file:// repository not loaded")
	}
}

func TestPrepopulate(t *testing.T) {
	store := testStore(t)
	r := Repository{Name: "default", URI: "https://example.com/repo.json"}
	if err := os.WriteFile(store.CachePath(r), []byte(testCatalogV1), 0644); err != nil {
		t.Fatal(err)
	}

	var lastPercent int
	if err := store.Prepopulate([]Repository{r}, func(p int) { lastPercent = p }); err != nil {
		t.Fatalf("Prepopulate: %v", err)
	}
	if _, ok := store.Index("default"); !ok {
		t.Error("index not loaded from cache")
	}
	if lastPercent != 100 {
		t.Errorf("final progress = %d, want 100", lastPercent)
	}

	// Repos without cache files are skipped quietly.
	missing := Repository{Name: "missing", URI: "https://example.com/other.json"}
	if err := store.Prepopulate([]Repository{missing}, nil); err != nil {
		t.Fatalf("Prepopulate with missing cache: %v", err)
	}
}

func TestAvailableModulesPriorityOrder(t *testing.T) {
	store := testStore(t)
	high := Repository{Name: "high", URI: "https://a.example.com", Priority: 0}
	low := Repository{Name: "low", URI: "https://b.example.com", Priority: 5}

	idxHigh, err := ParseIndex([]byte(`{"releases": [
		{"identifier": "A", "version": "2.0", "download": "https://a.example.com/a2.zip"}],
		"download_counts": {"A": 10}}`))
	if err != nil {
		t.Fatal(err)
	}
	idxLow, err := ParseIndex([]byte(`{"releases": [
		{"identifier": "A", "version": "3.0", "download": "https://b.example.com/a3.zip"},
		{"identifier": "A", "version": "1.0", "download": "https://b.example.com/a1.zip"}],
		"download_counts": {"A": 99}}`))
	if err != nil {
		t.Fatal(err)
	}
	store.install(high, idxHigh)
	store.install(low, idxLow)

	// Priority order between repos, version order inside each.
	releases := store.AvailableModules([]Repository{low, high}, "A")
	got := make([]string, len(releases))
	for i, r := range releases {
		got[i] = r.Version.String()
	}
	want := []string{"2.0", "3.0", "1.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	if n, ok := store.DownloadCount([]Repository{low, high}, "A"); !ok || n != 10 {
		t.Errorf("DownloadCount = %d, %v; want first non-zero in priority order (10)", n, ok)
	}
}

func TestLastUpdate(t *testing.T) {
	store := testStore(t)
	fresh := Repository{Name: "fresh", URI: "https://fresh.example.com"}
	stale := Repository{Name: "stale", URI: "https://stale.example.com"}
	staler := Repository{Name: "staler", URI: "https://staler.example.com"}

	now := time.Now()
	for _, tc := range []struct {
		r   Repository
		age time.Duration
	}{
		{fresh, time.Hour},
		{stale, 4 * 24 * time.Hour},
		{staler, 20 * 24 * time.Hour},
	} {
		if err := os.WriteFile(store.CachePath(tc.r), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
		mtime := now.Add(-tc.age)
		if err := os.Chtimes(store.CachePath(tc.r), mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	if age := store.LastUpdate([]Repository{fresh}); age != 0 {
		t.Errorf("fresh repo should report zero, got %v", age)
	}
	age := store.LastUpdate([]Repository{fresh, stale, staler})
	if age < 4*24*time.Hour-time.Minute || age > 4*24*time.Hour+time.Minute {
		t.Errorf("expected min stale age around 4 days, got %v", age)
	}
}

func TestRepoReferences(t *testing.T) {
	store := testStore(t)
	referrer := Repository{Name: "default", URI: "https://example.com/repo.json"}
	ref := Repository{Name: "community", URI: "https://community.example.com/repo.json"}

	store.AddRepoReference(referrer, ref)
	store.AddRepoReference(referrer, ref) // idempotent

	refs := store.ReferencesOf("default")
	if len(refs) != 1 || refs[0].Name != "community" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestUnsubscribe(t *testing.T) {
	store := testStore(t)
	calls := 0
	token := store.Subscribe(func([]Repository) { calls++ })
	store.events.notify(nil)
	store.Unsubscribe(token)
	store.events.notify(nil)
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

package repo

import (
	"testing"

	"kerbal-mod-manager/mods"
)

const sampleCatalog = `{
	"releases": [
		{"identifier": "ModuleManager", "version": "4.2.2", "download": "https://example.com/mm-4.2.2.zip"},
		{"identifier": "ModuleManager", "version": "4.2.1", "download": "https://example.com/mm-4.2.1.zip"},
		{"identifier": "ModuleManager", "version": "4.2.10", "download": "https://example.com/mm-4.2.10.zip"},
		{"identifier": "Scatterer", "version": "0.0838", "download": "https://example.com/scatterer.zip",
		 "provides": ["AtmosphereShader"]}
	],
	"download_counts": {"ModuleManager": 150000, "Scatterer": 42000},
	"repositories": [{"name": "mirror", "uri": "https://mirror.example.com/repo.json", "priority": 5}]
}`

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	if len(idx.Catalog) != 2 {
		t.Errorf("catalog has %d identifiers, want 2", len(idx.Catalog))
	}
	if idx.DownloadCounts["ModuleManager"] != 150000 {
		t.Errorf("download count = %d", idx.DownloadCounts["ModuleManager"])
	}
	if len(idx.Repositories) != 1 || idx.Repositories[0].Name != "mirror" {
		t.Errorf("repositories = %+v", idx.Repositories)
	}
	if idx.UnsupportedSpec {
		t.Error("UnsupportedSpec should not be set")
	}
}

func TestParseIndexBareArray(t *testing.T) {
	data := `[{"identifier": "A", "version": "1.0", "download": "https://example.com/a.zip"}]`
	idx, err := ParseIndex([]byte(data))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if len(idx.Catalog["A"]) != 1 {
		t.Errorf("catalog = %+v", idx.Catalog)
	}
}

func TestParseIndexErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", `not json at all`},
		{"unsupported kind", `[{"identifier": "A", "version": "1.0", "kind": "hologram"}]`},
		{"missing download", `[{"identifier": "A", "version": "1.0"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseIndex([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseIndexNewerSpec(t *testing.T) {
	data := `[{"identifier": "A", "version": "1.0", "spec_version": "v99.0",
		"download": "https://example.com/a.zip"}]`
	idx, err := ParseIndex([]byte(data))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if !idx.UnsupportedSpec {
		t.Error("UnsupportedSpec should be set for a newer spec release")
	}
}

// Versions must come back in strictly decreasing order.
func TestAvailableModulesOrdering(t *testing.T) {
	idx, err := ParseIndex([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	releases := idx.AvailableModules("ModuleManager")
	if len(releases) != 3 {
		t.Fatalf("got %d releases", len(releases))
	}
	want := []string{"4.2.10", "4.2.2", "4.2.1"}
	for i, r := range releases {
		if r.Version.String() != want[i] {
			t.Errorf("release[%d] = %s, want %s", i, r.Version, want[i])
		}
	}
	for i := 1; i < len(releases); i++ {
		if releases[i-1].Version.Compare(releases[i].Version) <= 0 {
			t.Errorf("versions not strictly decreasing at %d", i)
		}
	}
}

func TestProvidersOf(t *testing.T) {
	idx, err := ParseIndex([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	providers := idx.ProvidersOf("AtmosphereShader")
	if len(providers) != 1 || providers[0].Identifier != "Scatterer" {
		t.Errorf("providers = %+v", providers)
	}
	if got := idx.ProvidersOf("Scatterer"); len(got) != 1 {
		t.Errorf("identifier lookup should also work, got %+v", got)
	}
}

func TestIndexSerializeRoundTrip(t *testing.T) {
	idx, err := ParseIndex([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	data, err := idx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := ParseIndex(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}

	if len(back.Catalog) != len(idx.Catalog) {
		t.Fatalf("catalog size changed: %d -> %d", len(idx.Catalog), len(back.Catalog))
	}
	for id, byVersion := range idx.Catalog {
		for ver, r := range byVersion {
			got, ok := back.Catalog[id][ver]
			if !ok {
				t.Errorf("lost release %s %s", id, ver)
				continue
			}
			if got.DownloadURL != r.DownloadURL || len(got.Provides) != len(r.Provides) {
				t.Errorf("release %s %s changed in round trip", id, ver)
			}
		}
	}
	if back.DownloadCounts["Scatterer"] != 42000 {
		t.Error("download counts lost in round trip")
	}

	// A second serialization is byte-identical.
	again, err := back.Serialize()
	if err != nil {
		t.Fatalf("Serialize again: %v", err)
	}
	if string(again) != string(data) {
		t.Error("serialization is not deterministic")
	}
}

func TestSortRepositories(t *testing.T) {
	repos := []Repository{
		{Name: "zeta", Priority: 0},
		{Name: "alpha", Priority: 0},
		{Name: "low", Priority: 10},
		{Name: "high", Priority: -1},
	}
	SortRepositories(repos)

	want := []string{"high", "alpha", "zeta", "low"}
	for i, r := range repos {
		if r.Name != want[i] {
			t.Errorf("repos[%d] = %s, want %s", i, r.Name, want[i])
		}
	}
}

func TestCacheFilename(t *testing.T) {
	r := Repository{Name: "default", URI: "https://example.com/repository.json"}
	name := r.CacheFilename()
	if len(name) != 16+1+len("default")+len(".json") {
		t.Errorf("unexpected filename shape: %q", name)
	}
	// Stable for the same URI.
	if name != r.CacheFilename() {
		t.Error("filename is not deterministic")
	}
	other := Repository{Name: "default", URI: "https://example.org/repository.json"}
	if other.CacheFilename() == name {
		t.Error("different URIs must hash differently")
	}
}

func TestParseRepositoryList(t *testing.T) {
	data := `{"repositories": [
		{"name": "default", "uri": "https://example.com/repo.json", "priority": 0},
		{"name": "mirror", "uri": "https://mirror.example.com/repo.json", "priority": 1, "x_mirror": true}
	]}`
	list, err := ParseRepositoryList([]byte(data))
	if err != nil {
		t.Fatalf("ParseRepositoryList: %v", err)
	}
	if len(list.Repositories) != 2 || !list.Repositories[1].Mirror {
		t.Errorf("list = %+v", list)
	}

	if _, err := ParseRepositoryList([]byte(`{"repositories": [{"name": ""}]}`)); err == nil {
		t.Error("expected error for entry without uri")
	}
}

func TestTracker(t *testing.T) {
	tracker := NewTracker()
	a := &mods.Release{Identifier: "A"}

	h := tracker.Track(a)
	if got, ok := tracker.Lookup(h); !ok || got != a {
		t.Fatal("lookup after track failed")
	}

	// Same (identifier, version) reuses the slot.
	h2 := tracker.Track(a)
	if h2 != h {
		t.Errorf("re-track gave a different handle: %+v vs %+v", h2, h)
	}

	tracker.Invalidate()
	if _, ok := tracker.Lookup(h); ok {
		t.Error("handle should dangle after invalidation")
	}

	h3 := tracker.Track(a)
	if h3.Generation == h.Generation {
		t.Error("generation should advance on invalidation")
	}
	if _, ok := tracker.Lookup(h3); !ok {
		t.Error("new handle should resolve")
	}
}

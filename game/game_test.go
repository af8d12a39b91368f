package game

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const buildMap = `{"builds": ["1.12.5", "1.8.1", "1.12.3"]}`

func TestRefreshVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("user agent = %q", ua)
		}
		_, _ = w.Write([]byte(buildMap))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	g := NewKerbalGame(cacheDir)
	g.BuildMapURL = server.URL

	if err := g.RefreshVersions(context.Background(), "test-agent"); err != nil {
		t.Fatalf("RefreshVersions: %v", err)
	}

	builds := g.KnownVersions()
	if len(builds) != 3 {
		t.Fatalf("got %d builds", len(builds))
	}
	// Oldest first.
	if builds[0].String() != "1.8.1" || builds[2].String() != "1.12.5" {
		t.Errorf("builds = %v", builds)
	}

	if _, err := os.Stat(filepath.Join(cacheDir, buildMapFilename)); err != nil {
		t.Errorf("build map not cached: %v", err)
	}
}

func TestCachedBuildsSurviveOffline(t *testing.T) {
	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, buildMapFilename), []byte(buildMap), 0644); err != nil {
		t.Fatal(err)
	}

	g := NewKerbalGame(cacheDir)
	if len(g.KnownVersions()) != 3 {
		t.Error("cached build map not loaded at startup")
	}

	// A failing refresh leaves the cached builds in place.
	g.BuildMapURL = "http://127.0.0.1:1/unreachable"
	if err := g.RefreshVersions(context.Background(), "test-agent"); err == nil {
		t.Error("expected error from unreachable build map")
	}
	if len(g.KnownVersions()) != 3 {
		t.Error("failed refresh should not drop cached builds")
	}
}

func TestParseVersion(t *testing.T) {
	g := NewKerbalGame(t.TempDir())
	v, err := g.ParseVersion("1.12.5")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if v.String() != "1.12.5" {
		t.Errorf("v = %s", v)
	}
	if _, err := g.ParseVersion("not.a.version"); err == nil {
		t.Error("expected parse error")
	}
}

func TestGameURLs(t *testing.T) {
	g := NewKerbalGame(t.TempDir())
	if g.ShortName() != "KSP" {
		t.Errorf("ShortName = %q", g.ShortName())
	}
	if g.RepositoryListURL() == "" || g.DefaultRepositoryURL() == "" {
		t.Error("repository URLs must be set")
	}
}

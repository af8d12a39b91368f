package game

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/version"
)

// Game abstracts the title being managed: where its repositories live and
// which builds of it exist.
type Game interface {
	ShortName() string
	RepositoryListURL() string
	DefaultRepositoryURL() string
	RefreshVersions(ctx context.Context, userAgent string) error
	ParseVersion(s string) (version.GameVersion, error)
	KnownVersions() []version.GameVersion
}

const (
	kerbalShortName      = "KSP"
	kerbalRepoListURL    = "https://ksp-mods.example.com/repositories.json"
	kerbalDefaultRepoURL = "https://ksp-mods.example.com/repository.json"
	kerbalBuildMapURL    = "https://ksp-mods.example.com/builds.json"

	buildMapFilename = "builds.json"
	refreshTimeout   = 30 * time.Second
)

// buildMapJSON is the wire form of the known-build list.
type buildMapJSON struct {
	Builds []version.GameVersion `json:"builds"`
}

// KerbalGame is the concrete Game for Kerbal Space Program. The known-build
// list is fetched from the build map URL and cached on disk so offline runs
// still know every released version.
type KerbalGame struct {
	BuildMapURL string
	HTTPClient  *http.Client

	cacheDir string
	log      *zap.SugaredLogger

	mu     sync.RWMutex
	builds []version.GameVersion
}

// NewKerbalGame returns a KerbalGame caching its build map under cacheDir,
// loading any previously cached copy immediately.
func NewKerbalGame(cacheDir string) *KerbalGame {
	g := &KerbalGame{
		BuildMapURL: kerbalBuildMapURL,
		HTTPClient:  &http.Client{Timeout: refreshTimeout},
		cacheDir:    cacheDir,
		log:         logger.Log,
	}
	g.loadCached()
	return g
}

func (g *KerbalGame) ShortName() string            { return kerbalShortName }
func (g *KerbalGame) RepositoryListURL() string    { return kerbalRepoListURL }
func (g *KerbalGame) DefaultRepositoryURL() string { return kerbalDefaultRepoURL }

// ParseVersion parses a game version string.
func (g *KerbalGame) ParseVersion(s string) (version.GameVersion, error) {
	return version.ParseGameVersion(s)
}

// KnownVersions returns the cached build list, oldest first.
func (g *KerbalGame) KnownVersions() []version.GameVersion {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]version.GameVersion(nil), g.builds...)
}

func (g *KerbalGame) buildMapPath() string {
	return filepath.Join(g.cacheDir, buildMapFilename)
}

func (g *KerbalGame) loadCached() {
	data, err := os.ReadFile(g.buildMapPath())
	if err != nil {
		return
	}
	var wire buildMapJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		g.log.Warnw("Ignoring unreadable cached build map", zap.Error(err))
		return
	}
	g.setBuilds(wire.Builds)
}

func (g *KerbalGame) setBuilds(builds []version.GameVersion) {
	sort.Slice(builds, func(i, j int) bool {
		return builds[i].Compare(builds[j]) < 0
	})
	g.mu.Lock()
	g.builds = builds
	g.mu.Unlock()
}

// RefreshVersions fetches the current build map and replaces the cached
// copy. A fetch failure leaves the previously cached builds in place.
func (g *KerbalGame) RefreshVersions(ctx context.Context, userAgent string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BuildMapURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch build map: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("build map fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read build map: %w", err)
	}
	var wire buildMapJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("invalid build map: %w", err)
	}

	g.setBuilds(wire.Builds)

	if err := os.MkdirAll(g.cacheDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(g.buildMapPath(), data, 0644); err != nil {
		g.log.Warnw("Failed to cache build map", zap.Error(err))
	}
	g.log.Infow("Refreshed game build list", zap.Int("builds", len(wire.Builds)))
	return nil
}

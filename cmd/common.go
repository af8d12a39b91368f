package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"kerbal-mod-manager/config"
	"kerbal-mod-manager/db"
	"kerbal-mod-manager/game"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/registry"
	"kerbal-mod-manager/repo"
	"kerbal-mod-manager/version"
)

// appContext is everything a command needs after bootstrap.
type appContext struct {
	cfg      config.Config
	store    *repo.Store
	game     game.Game
	repos    []repo.Repository
	criteria version.GameVersionCriteria
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(path string) (*appContext, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db.InitDatabase(cfg.DatabasePath)
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	if cfg.GameVersion == "" {
		return nil, fmt.Errorf("GAME_VERSION must be set")
	}
	gameVersion, err := version.ParseGameVersion(cfg.GameVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid GAME_VERSION: %w", err)
	}

	g := game.NewKerbalGame(cfg.CacheDir)

	store := repo.NewStore(cfg.CacheDir)
	repos, err := loadRepositories(cfg, g)
	if err != nil {
		return nil, err
	}
	if err := store.Prepopulate(repos, nil); err != nil {
		return nil, fmt.Errorf("failed to load cached repository metadata: %w", err)
	}

	return &appContext{
		cfg:      cfg,
		store:    store,
		game:     g,
		repos:    repos,
		criteria: version.GameVersionCriteria{gameVersion},
	}, nil
}

// loadRepositories reads the configured repository list, falling back to the
// game's default repository when none has been configured yet.
func loadRepositories(cfg config.Config, g game.Game) ([]repo.Repository, error) {
	data, err := os.ReadFile(cfg.ReposPath)
	if os.IsNotExist(err) {
		return []repo.Repository{{
			Name: "default",
			URI:  g.DefaultRepositoryURL(),
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repository list: %w", err)
	}
	list, err := repo.ParseRepositoryList(data)
	if err != nil {
		return nil, err
	}
	repos := list.Repositories
	repo.SortRepositories(repos)
	return repos, nil
}

// saveRepositories persists the repository list for the next run.
func saveRepositories(cfg config.Config, repos []repo.Repository) error {
	data, err := json.MarshalIndent(repo.RepositoryList{Repositories: repos}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cfg.ReposPath, data, 0644)
}

// newQuerier composes the metadata store with the installed state from the
// database into the unified read-only registry view.
func (app *appContext) newQuerier() (*registry.Querier, error) {
	lookup := func(identifier, versionString string) *mods.Release {
		for _, r := range app.store.AvailableModules(app.repos, identifier) {
			if r.Version.String() == versionString {
				return r
			}
		}
		return nil
	}

	installed, err := db.LoadInstalled(lookup)
	if err != nil {
		return nil, err
	}
	dlls, err := db.LoadDLLs()
	if err != nil {
		return nil, err
	}
	dlc, err := db.LoadDLC()
	if err != nil {
		return nil, err
	}

	return registry.NewQuerier(app.store, app.repos, registry.State{
		Installed: installed,
		DLLs:      dlls,
		DLC:       dlc,
	}), nil
}

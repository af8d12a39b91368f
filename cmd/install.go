package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kerbal-mod-manager/db"
	"kerbal-mod-manager/download"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/registry"
	"kerbal-mod-manager/resolver"
	"kerbal-mod-manager/ui"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install <identifier>...",
	Short: "Installs mods and everything they depend on",
	Long: `Resolves the requested mods against the cached repository metadata,
computes a consistent installation plan (dependencies, conflicts,
recommendations), downloads the archives and records the result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noRecommends, _ := cmd.Flags().GetBool("no-recommends")
		withSuggests, _ := cmd.Flags().GetBool("with-suggests")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runInstall(cmd, args, noRecommends, withSuggests, dryRun)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().Bool("no-recommends", false, "Do not install recommended mods")
	installCmd.Flags().Bool("with-suggests", false, "Also install suggested mods")
	installCmd.Flags().Bool("dry-run", false, "Show the plan without downloading anything")
}

func runInstall(cmd *cobra.Command, identifiers []string, noRecommends, withSuggests, dryRun bool) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	tolerance, err := app.cfg.Tolerance()
	if err != nil {
		return err
	}

	querier, err := app.newQuerier()
	if err != nil {
		return err
	}
	defer querier.Close()

	var requests []*mods.Release
	for _, identifier := range identifiers {
		release, ok := querier.LatestAvailable(identifier, app.criteria, tolerance)
		if !ok {
			return fmt.Errorf("no release of %q is compatible with %s %s; run update, or check the identifier",
				identifier, app.game.ShortName(), app.criteria.String())
		}
		if release.IsDLC() {
			return fmt.Errorf("%q is first-party DLC and cannot be installed by this tool", identifier)
		}
		requests = append(requests, release)
	}

	opts := resolver.DefaultOptions()
	opts.WithRecommends = !noRecommends
	opts.WithSuggests = withSuggests
	opts.StabilityTolerance = tolerance

	res := resolver.NewResolver(querier, app.criteria, opts)
	if err := res.Resolve(requests, nil); err != nil {
		return err
	}

	plan := res.ModList()
	state := querier.State()
	if err := registry.EnforceConsistency(append(plan, querier.InstalledReleases()...),
		state.DLLs, state.DLC); err != nil {
		return err
	}

	if len(plan) == 0 {
		fmt.Println("Everything requested is already installed.")
		return nil
	}

	fmt.Println("The following mods will be installed:")
	for _, r := range plan {
		fmt.Printf("  %s %s\n", ui.Emphasis(r.Identifier), ui.Dim(r.Version.String()))
	}
	printOptionalHints(res)

	if dryRun {
		return nil
	}

	requested := make(map[string]bool, len(requests))
	for _, r := range requests {
		requested[r.Identifier] = true
	}
	return downloadAndRecord(cmd, app, plan, requested)
}

// printOptionalHints shows suggestions the plan did not include.
func printOptionalHints(res *resolver.Resolver) {
	planned := make(map[string]bool)
	for _, r := range res.ModList() {
		planned[r.Identifier] = true
	}
	suggestions := res.Suggestions()
	ids := make([]string, 0, len(suggestions))
	for id := range suggestions {
		if !planned[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	fmt.Println("Suggested (not installed):")
	for _, id := range ids {
		fmt.Printf("  %s %s\n", id, ui.Dim("suggested by "+joinNames(suggestions[id])))
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// downloadAndRecord fetches each planned release, verifies its hash, and
// records the installation in the database.
func downloadAndRecord(cmd *cobra.Command, app *appContext, plan []*mods.Release, requested map[string]bool) error {
	dl := download.NewClient(app.cfg.UserAgent)
	modsDir := filepath.Join(app.cfg.GameDir, "Mods")

	var targets []download.Target
	byURL := make(map[string]*mods.Release)
	for _, r := range plan {
		if r.IsMetapackage() || r.IsDLC() {
			continue
		}
		targets = append(targets, download.Target{
			URLs:     []string{r.DownloadURL},
			Filename: filepath.Base(r.DownloadURL),
			Size:     r.DownloadSize,
		})
		byURL[r.DownloadURL] = r
	}

	var failed []error
	err := dl.DownloadAndWait(cmd.Context(), targets, func(res download.Result) {
		r := byURL[res.Target.URL()]
		if res.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.FullName(), res.Err))
			return
		}
		dest := filepath.Join(modsDir, res.Target.Filename)
		if err := res.SaveTo(dest, r.DownloadSHA256); err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.FullName(), err))
			return
		}
		recordInstall(r, res.Target.Filename, dest, res.SHA256, !requested[r.Identifier])
		fmt.Printf("  %s %s\n", ui.OK("installed"), r.FullName())
	})
	if err != nil && len(failed) == 0 {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to install %d mods: %v", len(failed), failed[0])
	}

	// Metapackages have nothing to download but still get recorded.
	for _, r := range plan {
		if r.IsMetapackage() {
			recordInstall(r, "", "", "", !requested[r.Identifier])
			fmt.Printf("  %s %s\n", ui.OK("installed"), r.FullName())
		}
	}
	return nil
}

func recordInstall(r *mods.Release, fileName, installPath, sha256 string, auto bool) {
	var existing db.InstalledMod
	result := db.DB.Where("identifier = ?", r.Identifier).First(&existing)
	if result.Error == nil {
		// Upgrading: remember what was there before.
		if err := db.DB.Create(&db.ModHistory{
			Identifier: existing.Identifier,
			Version:    existing.Version,
			FileName:   existing.FileName,
		}).Error; err != nil {
			logger.Log.Warnw("Failed to save mod history", zap.Error(err))
		}
		existing.Version = r.Version.String()
		existing.Kind = string(r.Kind)
		existing.FileName = fileName
		existing.InstallPath = installPath
		existing.SHA256 = sha256
		existing.InstalledAt = time.Now()
		if err := db.DB.Save(&existing).Error; err != nil {
			logger.Log.Warnw("Failed to update install record", zap.Error(err))
		}
		return
	}

	record := db.InstalledMod{
		Identifier:    r.Identifier,
		Version:       r.Version.String(),
		Kind:          string(r.Kind),
		FileName:      fileName,
		InstallPath:   installPath,
		SHA256:        sha256,
		AutoInstalled: auto,
		InstalledAt:   time.Now(),
	}
	if err := db.DB.Create(&record).Error; err != nil {
		logger.Log.Warnw("Failed to save install record", zap.Error(err))
	}
}

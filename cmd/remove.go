package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kerbal-mod-manager/db"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/ui"
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove <identifier>...",
	Short: "Removes installed mods",
	Long: `Removes the named mods from the game directory and the install
registry. Refuses when another installed mod still depends on them,
unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runRemove(args, force)
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().BoolP("force", "f", false, "Remove even if other mods depend on it")
}

func runRemove(identifiers []string, force bool) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	querier, err := app.newQuerier()
	if err != nil {
		return err
	}
	defer querier.Close()

	removing := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		removing[id] = true
	}

	// Check the dependents of everything being removed first, so a partial
	// removal never strands an installed mod.
	if !force {
		for _, id := range identifiers {
			target, ok := querier.Installed(id)
			if !ok {
				return fmt.Errorf("%q is not installed", id)
			}
			for _, dependent := range dependentsOf(querier.InstalledReleases(), target) {
				if !removing[dependent.Identifier] {
					return fmt.Errorf("%s is still needed by %s; remove it too or use --force",
						id, dependent.Identifier)
				}
			}
		}
	}

	for _, id := range identifiers {
		var record db.InstalledMod
		result := db.DB.Where("identifier = ?", id).First(&record)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			logger.Log.Warnw("Mod not in install registry, skipping", zap.String("identifier", id))
			continue
		}
		if result.Error != nil {
			return result.Error
		}

		if record.InstallPath != "" {
			if err := os.Remove(record.InstallPath); err != nil && !os.IsNotExist(err) {
				logger.Log.Warnw("Failed to delete mod file",
					zap.String("path", record.InstallPath), zap.Error(err))
			}
		}
		if err := db.DB.Unscoped().Delete(&record).Error; err != nil {
			return err
		}
		fmt.Printf("  %s %s\n", ui.OK("removed"), id)
	}

	// Surface auto-installed mods nothing needs anymore.
	querier2, err := app.newQuerier()
	if err != nil {
		return nil
	}
	defer querier2.Close()
	reportOrphans(querier2.InstalledReleases())
	return nil
}

// dependentsOf returns the installed releases whose depends the target
// satisfies.
func dependentsOf(installed []*mods.Release, target *mods.Release) []*mods.Release {
	var out []*mods.Release
	for _, r := range installed {
		if r.Identifier == target.Identifier {
			continue
		}
		for i := range r.Depends {
			if r.Depends[i].MatchesRelease(target) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// reportOrphans prints auto-installed mods that no longer have dependents.
func reportOrphans(installed []*mods.Release) {
	var autoInstalled []db.InstalledMod
	if err := db.DB.Where("auto_installed = ?", true).Find(&autoInstalled).Error; err != nil {
		return
	}
	byID := make(map[string]*mods.Release, len(installed))
	for _, r := range installed {
		byID[r.Identifier] = r
	}
	for _, row := range autoInstalled {
		r, ok := byID[row.Identifier]
		if !ok {
			continue
		}
		if len(dependentsOf(installed, r)) == 0 {
			fmt.Printf("  %s %s was auto-installed and nothing depends on it anymore\n",
				ui.Warn("note:"), row.Identifier)
		}
	}
}

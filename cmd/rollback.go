package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kerbal-mod-manager/db"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/ui"
)

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback <identifier>",
	Short: "Rolls a mod back to its previously installed version",
	Long: `Rolls a mod back to the most recent version recorded in its install
history. The current archive is replaced with the archived copy when one
was kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rollbackMod(args[0])
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

// rollbackMod handles the rollback process for a specific mod
func rollbackMod(identifier string) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	var current db.InstalledMod
	result := db.DB.Where("identifier = ?", identifier).First(&current)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%q is not installed", identifier)
	}
	if result.Error != nil {
		return result.Error
	}

	var previous db.ModHistory
	result = db.DB.Where("identifier = ?", identifier).Order("created_at DESC").First(&previous)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no previous version of %q is recorded", identifier)
	}
	if result.Error != nil {
		return result.Error
	}

	if previous.ArchivePath == "" {
		return fmt.Errorf("the previous version of %q was not archived; reinstall it instead", identifier)
	}

	modsDir := filepath.Join(app.cfg.GameDir, "Mods")
	restoredPath := filepath.Join(modsDir, previous.FileName)

	// Remove the current archive before restoring the old one.
	if current.InstallPath != "" {
		if err := os.Remove(current.InstallPath); err != nil && !os.IsNotExist(err) {
			logger.Log.Warnw("Failed to remove current mod file",
				zap.String("path", current.InstallPath), zap.Error(err))
		}
	}
	if err := os.Rename(previous.ArchivePath, restoredPath); err != nil {
		return fmt.Errorf("failed to restore archived version: %w", err)
	}

	current.Version = previous.Version
	current.FileName = previous.FileName
	current.InstallPath = restoredPath
	if err := db.DB.Save(&current).Error; err != nil {
		return err
	}
	if err := db.DB.Unscoped().Delete(&previous).Error; err != nil {
		logger.Log.Warnw("Failed to drop consumed history row", zap.Error(err))
	}

	fmt.Printf("  %s %s rolled back to %s\n", ui.OK("ok"), identifier, previous.Version)
	return nil
}

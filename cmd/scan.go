package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kerbal-mod-manager/db"
	"kerbal-mod-manager/logger"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scans the game directory for manually installed plugin DLLs",
	Long: `Walks the GameData directory for plugin DLLs the user dropped in by
hand and records them. Tracked DLLs count as satisfiers for version-less
dependencies during resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(".")
		if err != nil {
			return err
		}
		return scanForDLLs(app.cfg.GameDir)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// scanForDLLs walks GameData and records every plugin DLL found.
func scanForDLLs(gameDir string) error {
	logger.Log.Info("Scanning for plugin DLLs...")

	gameData := filepath.Join(gameDir, "GameData")
	if _, err := os.Stat(gameData); os.IsNotExist(err) {
		fmt.Println("No GameData directory; nothing to scan.")
		return nil
	}

	found := 0
	err := filepath.Walk(gameData, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return processDLLFile(path, info, &found)
	})
	if err != nil {
		logger.Log.Errorw("Error scanning GameData", zap.String("dir", gameData), zap.Error(err))
		return err
	}

	fmt.Printf("Tracked %d plugin DLLs.\n", found)
	return nil
}

func processDLLFile(path string, info os.FileInfo, found *int) error {
	if !strings.EqualFold(filepath.Ext(info.Name()), ".dll") {
		return nil
	}

	identifier := dllIdentifier(info.Name())
	var existing db.TrackedDLL
	result := db.DB.Where("identifier = ?", identifier).First(&existing)
	if result.Error == nil {
		if existing.Path != path {
			existing.Path = path
			if err := db.DB.Save(&existing).Error; err != nil {
				logger.Log.Warnw("Failed to update tracked DLL", zap.Error(err))
			}
		}
		*found++
		return nil
	}

	if err := db.DB.Create(&db.TrackedDLL{Identifier: identifier, Path: path}).Error; err != nil {
		logger.Log.Warnw("Failed to track DLL",
			zap.String("identifier", identifier), zap.Error(err))
		return nil
	}
	logger.Log.Infow("Tracking new DLL",
		zap.String("identifier", identifier), zap.String("path", path))
	*found++
	return nil
}

// dllIdentifier derives the mod identifier from a plugin file name.
func dllIdentifier(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

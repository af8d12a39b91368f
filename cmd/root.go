package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/resolver"
)

// Exit codes surfaced to scripts wrapping the CLI.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitUnsatisfied = 2
	exitConflicts   = 3
)

// rootCmd is the base command all subcommands hang off.
var rootCmd = &cobra.Command{
	Use:   "kerbal-mod-manager",
	Short: "A mod package manager for Kerbal Space Program",
	Long: `kerbal-mod-manager fetches mod metadata from one or more repositories,
keeps a local cache of it, and installs self-consistent sets of mods
honoring their depends, conflicts, recommends and provides relationships.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and maps structured resolver errors onto the exit
// codes scripts rely on: 2 for unsatisfied relationships, 3 for conflicts.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	logger.Log.Errorw("Command failed", "error", err)

	var unmet *resolver.UnmetDependenciesError
	var conflicts *resolver.ConflictsError
	switch {
	case errors.As(err, &unmet):
		os.Exit(exitUnsatisfied)
	case errors.As(err, &conflicts):
		os.Exit(exitConflicts)
	default:
		os.Exit(exitGeneric)
	}
}

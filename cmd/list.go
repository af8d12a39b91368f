package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kerbal-mod-manager/repo"
	"kerbal-mod-manager/ui"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists installed mods and available upgrades",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList() error {
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

	installed := querier.InstalledReleases()
	if len(installed) == 0 {
		fmt.Println("No mods installed.")
		return nil
	}

	for _, r := range installed {
		status := ui.OK("up to date")
		detail := ""

		if latest, ok := querier.LatestAvailable(r.Identifier, app.criteria, tolerance); ok {
			if r.Version.Less(latest.Version) {
				status = ui.Warn("upgrade available")
				detail = ui.Dim(" -> " + latest.Version.String())
			}
			if latest.ReplacedBy != nil {
				status = ui.Warn("replaced by " + latest.ReplacedBy.Identifier)
			}
		} else {
			status = ui.Bad("not in any repository")
		}

		fmt.Printf("  %-32s %-14s %s%s\n",
			ui.Emphasis(r.Identifier), ui.Dim(r.Version.String()), status, detail)
	}

	if age := app.store.LastUpdate(app.repos); age > repo.TimeTillVeryStale {
		fmt.Printf("\n%s metadata is %d days old; run update\n",
			ui.Warn("warning:"), int(age.Hours()/24))
	} else if age > 0 {
		fmt.Printf("\nmetadata is %d days old; consider running update\n", int(age.Hours()/24))
	}
	return nil
}

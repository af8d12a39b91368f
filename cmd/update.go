package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kerbal-mod-manager/download"
	"kerbal-mod-manager/logger"
	"kerbal-mod-manager/repo"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refreshes mod metadata from all configured repositories",
	Long: `Contacts every configured repository, downloads any catalogs whose
content changed since the last update (tracked via ETags), and refreshes
the local metadata cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipETags, _ := cmd.Flags().GetBool("skip-etags")
		plain, _ := cmd.Flags().GetBool("plain")

		app, err := bootstrap(".")
		if err != nil {
			return err
		}

		if plain {
			result, err := runRepoUpdate(cmd.Context(), app, skipETags, nil)
			if err != nil {
				return err
			}
			fmt.Println(describeUpdateResult(result))
			return nil
		}
		return runUpdateTUI(cmd.Context(), app, skipETags)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().Bool("skip-etags", false, "Redownload every repository even if unchanged")
	updateCmd.Flags().Bool("plain", false, "Disable the interactive progress display")
}

// runRepoUpdate drives the metadata pipeline for every configured repo.
func runRepoUpdate(ctx context.Context, app *appContext, skipETags bool,
	progress func(percent int)) (repo.UpdateResult, error) {

	logger.Log.Infow("Updating repositories",
		zap.Int("count", len(app.repos)),
		zap.Bool("skip_etags", skipETags),
	)

	var g repo.Game
	if app.cfg.RefreshBuilds {
		g = app.game
	}

	dl := download.NewClient(app.cfg.UserAgent)
	result, err := app.store.Update(ctx, app.repos, g, skipETags, dl, app.cfg.UserAgent, progress)
	if err != nil {
		return result, err
	}

	logger.Log.Infow("Repository update finished", zap.String("result", result.String()))
	return result, nil
}

func describeUpdateResult(result repo.UpdateResult) string {
	switch result {
	case repo.NoChanges:
		return "All repositories are already up to date."
	case repo.OutdatedClient:
		return "Repositories updated, but some metadata needs a newer client. Consider upgrading."
	default:
		return "Repositories updated."
	}
}

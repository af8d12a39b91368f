package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kerbal-mod-manager/download"
	"kerbal-mod-manager/repo"
	"kerbal-mod-manager/ui"
)

// reposCmd represents the repos command group
var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manages the configured metadata repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReposList()
	},
}

var reposAddCmd = &cobra.Command{
	Use:   "add <name> <uri> [priority]",
	Short: "Adds a metadata repository",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority := 0
		if len(args) == 3 {
			p, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("priority must be an integer: %w", err)
			}
			priority = p
		}
		return runReposAdd(args[0], args[1], priority)
	},
}

var reposPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetches the game's published repository list",
	Long: `Downloads the repository list published for the game and replaces the
local repository configuration with it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReposPull(cmd)
	},
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Removes a metadata repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReposRemove(args[0])
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.AddCommand(reposAddCmd)
	reposCmd.AddCommand(reposPullCmd)
	reposCmd.AddCommand(reposRemoveCmd)
}

func runReposList() error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	ordered := append([]repo.Repository(nil), app.repos...)
	repo.SortRepositories(ordered)

	for _, r := range ordered {
		line := fmt.Sprintf("  %3d  %-20s %s", r.Priority, ui.Emphasis(r.Name), r.URI)
		if r.Mirror {
			line += ui.Dim(" (mirror)")
		}
		fmt.Println(line)
		for _, ref := range app.store.ReferencesOf(r.Name) {
			fmt.Printf("       %s %s (%s)\n", ui.Dim("endorses"), ref.Name, ref.URI)
		}
	}
	return nil
}

func runReposAdd(name, uri string, priority int) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	for _, r := range app.repos {
		if r.Name == name {
			return fmt.Errorf("a repository named %q already exists", name)
		}
	}

	repos := append(app.repos, repo.Repository{Name: name, URI: uri, Priority: priority})
	if err := saveRepositories(app.cfg, repos); err != nil {
		return err
	}
	fmt.Printf("Added repository %s (%s). Run update to fetch its metadata.\n", name, uri)
	return nil
}

func runReposPull(cmd *cobra.Command) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	dl := download.NewClient(app.cfg.UserAgent)
	var listErr error
	var list repo.RepositoryList
	err = dl.DownloadAndWait(cmd.Context(),
		[]download.Target{{URLs: []string{app.game.RepositoryListURL()}}},
		func(res download.Result) {
			if res.Err != nil {
				listErr = res.Err
				return
			}
			list, listErr = repo.ParseRepositoryList(res.Body)
		})
	if err != nil {
		return err
	}
	if listErr != nil {
		return listErr
	}

	if err := saveRepositories(app.cfg, list.Repositories); err != nil {
		return err
	}
	fmt.Printf("Fetched %d repositories. Run update to load their metadata.\n", len(list.Repositories))
	return nil
}

func runReposRemove(name string) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	var repos []repo.Repository
	found := false
	for _, r := range app.repos {
		if r.Name == name {
			found = true
			continue
		}
		repos = append(repos, r)
	}
	if !found {
		return fmt.Errorf("no repository named %q", name)
	}
	if err := saveRepositories(app.cfg, repos); err != nil {
		return err
	}
	fmt.Printf("Removed repository %s.\n", name)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/ui"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <identifier>",
	Short: "Shows metadata and relationships for a mod",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(identifier string) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}

	querier, err := app.newQuerier()
	if err != nil {
		return err
	}
	defer querier.Close()

	releases := querier.AllAvailable(identifier)
	if len(releases) == 0 {
		providers := querier.ProvidedBy(identifier)
		if len(providers) == 0 {
			return fmt.Errorf("no repository knows %q", identifier)
		}
		fmt.Printf("%s is a virtual identifier provided by:\n", ui.Emphasis(identifier))
		for _, p := range providers {
			fmt.Printf("  %s\n", p.FullName())
		}
		return nil
	}

	latest := releases[0]
	fmt.Printf("%s %s\n", ui.Emphasis(latest.Identifier), latest.Version.String())
	if latest.Name != "" && latest.Name != latest.Identifier {
		fmt.Printf("  name:     %s\n", latest.Name)
	}
	if latest.Abstract != "" {
		fmt.Printf("  abstract: %s\n", latest.Abstract)
	}
	if latest.License != "" {
		fmt.Printf("  license:  %s\n", latest.License)
	}
	if len(latest.Authors) > 0 {
		fmt.Printf("  authors:  %s\n", strings.Join(latest.Authors, ", "))
	}
	fmt.Printf("  kind:     %s\n", latest.Kind)
	if n, ok := querier.Downloads(identifier); ok {
		fmt.Printf("  downloads: %d\n", n)
	}
	if inst, ok := querier.Installed(identifier); ok {
		fmt.Printf("  installed: %s\n", inst.Version.String())
	}

	printRelationships("depends", latest.Depends)
	printRelationships("recommends", latest.Recommends)
	printRelationships("suggests", latest.Suggests)
	printRelationships("conflicts", latest.Conflicts)
	printRelationships("supports", latest.Supports)
	if len(latest.Provides) > 0 {
		fmt.Printf("  provides: %s\n", strings.Join(latest.Provides, ", "))
	}
	if latest.ReplacedBy != nil {
		fmt.Printf("  replaced by: %s\n", latest.ReplacedBy.String())
	}

	if len(releases) > 1 {
		fmt.Println("  other versions:")
		for _, r := range releases[1:] {
			fmt.Printf("    %s\n", ui.Dim(r.Version.String()))
		}
	}
	return nil
}

func printRelationships(label string, descriptors []mods.RelationshipDescriptor) {
	if len(descriptors) == 0 {
		return
	}
	parts := make([]string, len(descriptors))
	for i := range descriptors {
		parts[i] = descriptors[i].String()
	}
	fmt.Printf("  %s: %s\n", label, strings.Join(parts, ", "))
}

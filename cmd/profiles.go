// -- cmd/profiles.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidwalk/webgen/internal/profile"
)

func newProfilesCommand() *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect the selector-profile library.",
	}
	profilesCmd.AddCommand(newProfilesValidateCommand())
	profilesCmd.AddCommand(newProfilesListCommand())
	return profilesCmd
}

func newProfilesValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the profile library without touching a browser.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			library, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return fmt.Errorf("profile library %s: %w", cfg.Profiles.Path, err)
			}
			total := 0
			for _, task := range library.TaskTypes() {
				candidates, _ := library.Candidates(task)
				total += len(candidates)
			}
			fmt.Printf("%s: OK (version %s, %d task type(s), %d profile(s))\n",
				cfg.Profiles.Path, library.Version, len(library.TaskTypes()), total)
			return nil
		},
	}
}

func newProfilesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers per task type in fallback order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			library, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return fmt.Errorf("profile library %s: %w", cfg.Profiles.Path, err)
			}
			for _, task := range library.TaskTypes() {
				candidates, err := library.Candidates(task)
				if err != nil {
					continue
				}
				fmt.Printf("%s:\n", task)
				for i, c := range candidates {
					fmt.Printf("  %d. %-24s %s\n", i+1, c.Provider, c.URL)
				}
			}
			return nil
		},
	}
}

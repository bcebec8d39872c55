package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/render/status"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
)

func newProfilesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage character profiles",
	}

	cmd.AddCommand(
		newProfilesListCmd(app),
		newProfilesAddCmd(app),
		newProfilesRemoveCmd(app),
	)

	return cmd
}

func newProfilesListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List character profiles and where their passwords live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.profiles.List(cmd.Context())
			if err != nil {
				return err
			}

			rendered, err := app.statusRenderer(statusadapter.View{
				Profiles: profiles,
				Current:  nextProfile(profiles, app.settings.Profiles.Start),
			})
			if err != nil {
				return fmt.Errorf("render profiles: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}

func newProfilesAddCmd(app *app) *cobra.Command {
	var (
		name     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a character profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.profiles.Add(cmd.Context(), name, password); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (password in %s)\n", name, application.SecretKey(name))
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Character name")
	cmd.Flags().StringVar(&password, "password", "", "Character password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newProfilesRemoveCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove a character profile and its stored password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.profiles.Remove(cmd.Context(), name); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %s\n", name)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Character name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// nextProfile names the profile a new session would log in with.
func nextProfile(profiles []application.ProfileSummary, start string) string {
	if start != "" {
		return start
	}
	if len(profiles) == 0 {
		return ""
	}
	return profiles[0].Username
}

package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "t2t",
		Short:         "T2T MUD client that plays through a local language model",
		Long:          "t2t connects to The Two Towers MUD, logs in with stored character profiles, and lets a local Ollama model choose commands from the live transcript.\n\nSettings are read from ~/.t2t/config.toml (or $T2T_CONFIG) and T2T_* environment variables.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newProfilesCmd(app),
		newOracleCmd(app),
	)

	return rootCmd
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/knowledge"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/oracle/ollama"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/config"
)

const pingReason = "connectivity check before play"

func newOracleCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Inspect the language model backend",
	}

	cmd.AddCommand(newOraclePingCmd(app))

	return cmd
}

func newOraclePingCmd(app *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send one planning prompt to the oracle and show the commands it picks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(app, cmd, map[string]string{
				config.KeyOracleURL:   "url",
				config.KeyOracleModel: "model",
			}); err != nil {
				return err
			}
			settings, err := app.reload()
			if err != nil {
				return err
			}

			client, err := newOracleClient(settings.Oracle, app.logger)
			if err != nil {
				return err
			}

			reference, err := knowledge.NewSource(settings.Knowledge.Path).Reference(cmd.Context())
			if err != nil {
				return err
			}
			prompt := application.BuildPrompt(application.PromptInput{
				Reason:    pingReason,
				Knowledge: reference,
			})

			var reply string
			err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Contacting oracle...", func(ctx context.Context) error {
				var genErr error
				reply, genErr = client.Generate(ctx, prompt)
				return genErr
			})
			if err != nil {
				return fmt.Errorf("ping oracle %s: %w", client.Endpoint(), err)
			}

			return printDecision(cmd, client.Model(), reply, raw)
		},
	}

	cmd.Flags().String("url", "", "Ollama base URL (overrides oracle.url)")
	cmd.Flags().String("model", "", "Model name (overrides oracle.model)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Also print the raw reply")

	return cmd
}

func printDecision(cmd *cobra.Command, model, reply string, raw bool) error {
	decision := application.ParseDecision(reply)

	var b strings.Builder
	fmt.Fprintf(&b, "model: %s\n", model)
	if raw {
		fmt.Fprintf(&b, "reply: %s\n", strings.TrimSpace(reply))
	}
	if decision.Comment != "" {
		fmt.Fprintf(&b, "comment: %s\n", decision.Comment)
	}
	if len(decision.Commands) == 0 {
		b.WriteString("commands: none\n")
	}
	for _, command := range decision.Commands {
		if command == "" {
			command = "(enter)"
		}
		fmt.Fprintf(&b, "command: %s\n", command)
	}

	_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func newOracleClient(settings config.OracleSettings, logger zerolog.Logger) (*ollama.Client, error) {
	client, err := ollama.NewClient(ollama.Config{
		BaseURL:        settings.URL,
		Model:          settings.Model,
		Stream:         settings.Stream,
		ConnectTimeout: settings.ConnectTimeout,
		ReadTimeout:    settings.ReadTimeout,
		MaxRetries:     settings.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("wire oracle client: %w", err)
	}
	return client, nil
}

// bindFlags binds the named flags of cmd to config keys so an explicit flag
// wins over file and environment values on the next reload.
func bindFlags(app *app, cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := app.config.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

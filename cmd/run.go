package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/knowledge"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/render/feed"
	statusadapter "github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/render/status"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/render/terminal"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/config"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	eventLogLimit       = 20
	issueLogLimit       = 12
	opportunityLogLimit = 12
)

func newRunCmd(app *app) *cobra.Command {
	var noOracle bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the MUD and play until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(app, cmd, map[string]string{
				config.KeyServerHost:    "host",
				config.KeyServerPort:    "port",
				config.KeyProfile:       "profile",
				config.KeyOracleURL:     "oracle-url",
				config.KeyOracleModel:   "model",
				config.KeyFeedListen:    "feed",
				config.KeyKnowledgePath: "knowledge",
			}); err != nil {
				return err
			}
			if noOracle {
				app.config.Set(config.KeyOracleEnabled, false)
			}
			settings, err := app.reload()
			if err != nil {
				return err
			}

			rotation, err := app.profiles.Rotation(cmd.Context(), settings.Profiles.Start)
			if err != nil {
				if errors.Is(err, domain.ErrNoProfiles) {
					return fmt.Errorf("%w: add one with `t2t profiles add`", err)
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := newEngine(ctx, app, settings, rotation, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			started := app.now()
			runErr := engine.run(ctx)

			summary, err := engine.summary(context.WithoutCancel(cmd.Context()), app, app.now().Sub(started))
			if err != nil {
				return errors.Join(runErr, err)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "\n"+summary); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}

	cmd.Flags().String("host", "", "MUD host (overrides server.host)")
	cmd.Flags().Int("port", 0, "MUD port (overrides server.port)")
	cmd.Flags().String("profile", "", "Character to log in with first")
	cmd.Flags().String("oracle-url", "", "Ollama base URL (overrides oracle.url)")
	cmd.Flags().String("model", "", "Model name (overrides oracle.model)")
	cmd.Flags().String("feed", "", "Serve a websocket transcript feed on this address, e.g. 127.0.0.1:7680")
	cmd.Flags().String("knowledge", "", "YAML command reference for the oracle")
	cmd.Flags().BoolVar(&noOracle, "no-oracle", false, "Log in and watch without asking the oracle for commands")

	return cmd
}

// engine is one wired session with its planner and optional feed.
type engine struct {
	settings config.Settings
	rotation *domain.ProfileRotation
	session  *application.Session
	planner  *application.Planner
	status   *application.StatusTracker
	hub      *feed.Hub
}

func newEngine(ctx context.Context, app *app, settings config.Settings, rotation *domain.ProfileRotation, stdout io.Writer) (*engine, error) {
	logger := app.logger

	renderers := ports.Renderers{terminal.New(stdout, terminal.Options{Color: settings.Color})}
	var hub *feed.Hub
	if settings.Feed.Listen != "" {
		hub = feed.NewHub(feed.DefaultBacklog, ports.SystemClock{}, logger)
		renderers = append(renderers, hub)
	}

	transcript := application.NewTranscript(settings.Transcript.MaxChars)
	events := application.NewEventLog(eventLogLimit)
	issues := application.NewEventLog(issueLogLimit)
	opportunities := application.NewEventLog(opportunityLogLimit)
	status := application.NewStatusTracker(transcript, issues)
	history := application.NewCommandHistory(settings.Commands.History)

	dispatcher := application.NewDispatcher(application.DispatcherOptions{
		Delay:      settings.Commands.Delay,
		History:    history,
		Transcript: transcript,
		Renderer:   renderers,
		Logger:     logger,
	})

	opts := application.SessionOptions{
		Address:            settings.Server.Address(),
		Rotation:           rotation,
		Dialer:             app.dialer,
		Dispatcher:         dispatcher,
		Renderer:           renderers,
		Clock:              ports.SystemClock{},
		Transcript:         transcript,
		Status:             status,
		Events:             events,
		Issues:             issues,
		Opportunities:      opportunities,
		History:            history,
		ConnectTimeout:     settings.Server.ConnectTimeout,
		ConnectCooldown:    settings.Session.ConnectCooldown,
		ReconnectCooldown:  settings.Session.ReconnectCooldown,
		RotateOnDisconnect: settings.Session.RotateOnDisconnect,
		Logger:             logger,
	}

	var planner *application.Planner
	if settings.Oracle.Enabled {
		client, err := newOracleClient(settings.Oracle, logger)
		if err != nil {
			return nil, err
		}
		// Static knowledge is read once here so a bad file stops startup.
		reference := knowledge.NewSource(settings.Knowledge.Path)
		if _, err := reference.Reference(ctx); err != nil {
			return nil, fmt.Errorf("load knowledge: %w", err)
		}
		planner = application.NewPlanner(application.PlannerOptions{
			Oracle:        client,
			Knowledge:     reference,
			Sender:        dispatcher,
			Renderer:      renderers,
			Transcript:    transcript,
			Status:        status,
			History:       history,
			Events:        events,
			Issues:        issues,
			Opportunities: opportunities,
			ContextChars:  settings.Context.MaxChars,
			Logger:        logger,
		})
		opts.Planner = planner
	}

	session, err := application.NewSession(opts)
	if err != nil {
		return nil, fmt.Errorf("wire session: %w", err)
	}

	return &engine{
		settings: settings,
		rotation: rotation,
		session:  session,
		planner:  planner,
		status:   status,
		hub:      hub,
	}, nil
}

// run blocks until ctx ends or a component fails. A cancelled ctx is a
// normal shutdown.
func (e *engine) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.planner != nil {
		g.Go(func() error { return e.planner.Run(gctx) })
	}
	if e.hub != nil {
		g.Go(func() error { return e.hub.Serve(gctx, e.settings.Feed.Listen) })
	}
	g.Go(func() error { return e.session.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (e *engine) summary(ctx context.Context, app *app, runtime time.Duration) (string, error) {
	profiles, err := app.profiles.List(ctx)
	if err != nil {
		return "", err
	}

	current := e.rotation.Current().Username
	return app.statusRenderer(statusadapter.View{
		Profiles: profiles,
		Current:  current,
		Session: &statusadapter.SessionView{
			Profile:  current,
			State:    e.session.State(),
			Snapshot: e.status.Snapshot(),
			Runtime:  runtime,
		},
	})
}

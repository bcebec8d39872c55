package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	statusadapter "github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/render/status"
	tomlrepo "github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/repo/toml"
	chainstore "github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/secrets/chain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/adapters/telnet"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/config"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const configFileEnv = "T2T_CONFIG"

type app struct {
	config         *viper.Viper
	settings       config.Settings
	logger         zerolog.Logger
	profiles       *application.ProfileService
	statusRenderer func(statusadapter.View) (string, error)
	dialer         ports.Dialer
	now            func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	settings, err := config.Load(v, config.LoadOptions{ConfigFile: os.Getenv(configFileEnv)})
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(settings.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(settings.Secrets.PassDir, settings.Secrets.Dir)
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	return &app{
		config:         v,
		settings:       settings,
		logger:         logger,
		profiles:       application.NewProfileService(repo, secretStore),
		statusRenderer: statusadapter.Render,
		dialer:         telnet.Dialer{Timeout: settings.Server.ConnectTimeout},
		now:            time.Now,
	}, nil
}

// reload re-reads settings so flags bound on a.config after wiring apply.
func (a *app) reload() (config.Settings, error) {
	settings, err := config.Load(a.config, config.LoadOptions{ConfigFile: os.Getenv(configFileEnv)})
	if err != nil {
		return config.Settings{}, err
	}
	a.settings = settings
	return settings, nil
}

// newLogger writes human-readable logs to stderr, or JSON lines to the
// configured log file.
func newLogger(settings config.LogSettings, stderr io.Writer) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if settings.Level != "" {
		parsed, err := zerolog.ParseLevel(settings.Level)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", settings.Level, err)
		}
		level = parsed
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	if settings.File != "" {
		file, err := os.OpenFile(settings.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("open log file: %w", err)
		}
		out = file
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "T2T"
	ConfigDir  = ".t2t"
	configName = "config"
	configType = "toml"
)

// Keys shared with flag bindings and the profile repository.
const (
	KeyServerHost           = "server.host"
	KeyServerPort           = "server.port"
	KeyServerConnectTimeout = "server.connect_timeout"
	KeyConnectCooldown      = "session.connect_cooldown"
	KeyReconnectCooldown    = "session.reconnect_cooldown"
	KeyRotateOnDisconnect   = "session.rotate_on_disconnect"
	KeyOracleEnabled        = "oracle.enabled"
	KeyOracleURL            = "oracle.url"
	KeyOracleModel          = "oracle.model"
	KeyOracleConnectTimeout = "oracle.connect_timeout"
	KeyOracleReadTimeout    = "oracle.read_timeout"
	KeyOracleMaxRetries     = "oracle.max_retries"
	KeyOracleStream         = "oracle.stream"
	KeyContextMaxChars      = "context.max_chars"
	KeyTranscriptMaxChars   = "transcript.max_chars"
	KeyCommandsDelay        = "commands.delay"
	KeyCommandsHistory      = "commands.history"
	KeyProfilesPath         = "profiles.path"
	KeyProfile              = "profiles.start"
	KeySecretsDir           = "secrets.dir"
	KeySecretsPassDir       = "secrets.pass_dir"
	KeyKnowledgePath        = "knowledge.path"
	KeyFeedListen           = "feed.listen"
	KeyLogLevel             = "log.level"
	KeyLogFile              = "log.file"
	KeyColor                = "color"
)

type Settings struct {
	Server     ServerSettings
	Session    SessionSettings
	Oracle     OracleSettings
	Context    ContextSettings
	Transcript TranscriptSettings
	Commands   CommandSettings
	Profiles   ProfileSettings
	Secrets    SecretSettings
	Knowledge  KnowledgeSettings
	Feed       FeedSettings
	Log        LogSettings
	Color      bool
}

type ServerSettings struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
}

func (s ServerSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type SessionSettings struct {
	ConnectCooldown    time.Duration
	ReconnectCooldown  time.Duration
	RotateOnDisconnect bool
}

type OracleSettings struct {
	Enabled        bool
	URL            string
	Model          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	Stream         bool
}

type ContextSettings struct {
	MaxChars int
}

type TranscriptSettings struct {
	MaxChars int
}

type CommandSettings struct {
	Delay   time.Duration
	History int
}

type ProfileSettings struct {
	Path string
	// Start is the username to begin the rotation with; empty means the first.
	Start string
}

type SecretSettings struct {
	// Dir holds file-backed passwords when pass is unavailable.
	Dir string
	// PassDir overrides PASSWORD_STORE_DIR for pass; empty keeps its default.
	PassDir string
}

type KnowledgeSettings struct {
	Path string
}

type FeedSettings struct {
	Listen string
}

type LogSettings struct {
	Level string
	File  string
}

type LoadOptions struct {
	// ConfigFile is an explicit config path; it must exist when set.
	ConfigFile string
	HomeDir    string
}

func SetDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault(KeyServerHost, "t2tmud.org")
	v.SetDefault(KeyServerPort, 9999)
	v.SetDefault(KeyServerConnectTimeout, 10*time.Second)
	v.SetDefault(KeyConnectCooldown, 3*time.Second)
	v.SetDefault(KeyReconnectCooldown, time.Second)
	v.SetDefault(KeyRotateOnDisconnect, true)
	v.SetDefault(KeyOracleEnabled, true)
	v.SetDefault(KeyOracleURL, "http://127.0.0.1:11434")
	v.SetDefault(KeyOracleModel, "qwen3:4b")
	v.SetDefault(KeyOracleConnectTimeout, 6*time.Second)
	v.SetDefault(KeyOracleReadTimeout, 120*time.Second)
	v.SetDefault(KeyOracleMaxRetries, 3)
	v.SetDefault(KeyOracleStream, true)
	v.SetDefault(KeyContextMaxChars, 12000)
	v.SetDefault(KeyTranscriptMaxChars, 24000)
	v.SetDefault(KeyCommandsDelay, 250*time.Millisecond)
	v.SetDefault(KeyCommandsHistory, 80)
	v.SetDefault(KeyProfilesPath, filepath.Join(homeDir, ConfigDir, "profiles.toml"))
	v.SetDefault(KeyProfile, "")
	v.SetDefault(KeySecretsDir, filepath.Join(homeDir, ConfigDir, "secrets"))
	v.SetDefault(KeySecretsPassDir, "")
	v.SetDefault(KeyKnowledgePath, "")
	v.SetDefault(KeyFeedListen, "")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyColor, true)
}

// Load layers defaults, the optional config file and T2T_* environment
// variables onto v. Flag bindings made on v before Load take precedence.
func Load(v *viper.Viper, opts LoadOptions) (Settings, error) {
	homeDir := opts.HomeDir
	if homeDir == "" {
		var err error
		homeDir, err = os.UserHomeDir()
		if err != nil {
			return Settings{}, fmt.Errorf("resolve home directory: %w", err)
		}
	}

	SetDefaults(v, homeDir)
	v.SetConfigType(configType)
	if opts.ConfigFile != "" {
		v.SetConfigFile(expandHome(opts.ConfigFile, homeDir))
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(filepath.Join(homeDir, ConfigDir))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	settings := Settings{
		Server: ServerSettings{
			Host:           strings.TrimSpace(v.GetString(KeyServerHost)),
			Port:           v.GetInt(KeyServerPort),
			ConnectTimeout: v.GetDuration(KeyServerConnectTimeout),
		},
		Session: SessionSettings{
			ConnectCooldown:    v.GetDuration(KeyConnectCooldown),
			ReconnectCooldown:  v.GetDuration(KeyReconnectCooldown),
			RotateOnDisconnect: v.GetBool(KeyRotateOnDisconnect),
		},
		Oracle: OracleSettings{
			Enabled:        v.GetBool(KeyOracleEnabled),
			URL:            strings.TrimSpace(v.GetString(KeyOracleURL)),
			Model:          strings.TrimSpace(v.GetString(KeyOracleModel)),
			ConnectTimeout: v.GetDuration(KeyOracleConnectTimeout),
			ReadTimeout:    v.GetDuration(KeyOracleReadTimeout),
			MaxRetries:     v.GetInt(KeyOracleMaxRetries),
			Stream:         v.GetBool(KeyOracleStream),
		},
		Context:    ContextSettings{MaxChars: v.GetInt(KeyContextMaxChars)},
		Transcript: TranscriptSettings{MaxChars: v.GetInt(KeyTranscriptMaxChars)},
		Commands: CommandSettings{
			Delay:   v.GetDuration(KeyCommandsDelay),
			History: v.GetInt(KeyCommandsHistory),
		},
		Profiles: ProfileSettings{
			Path:  expandHome(v.GetString(KeyProfilesPath), homeDir),
			Start: strings.TrimSpace(v.GetString(KeyProfile)),
		},
		Secrets: SecretSettings{
			Dir:     expandHome(v.GetString(KeySecretsDir), homeDir),
			PassDir: expandHome(v.GetString(KeySecretsPassDir), homeDir),
		},
		Knowledge: KnowledgeSettings{Path: expandHome(v.GetString(KeyKnowledgePath), homeDir)},
		Feed:      FeedSettings{Listen: strings.TrimSpace(v.GetString(KeyFeedListen))},
		Log: LogSettings{
			Level: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
			File:  expandHome(v.GetString(KeyLogFile), homeDir),
		},
		Color: v.GetBool(KeyColor),
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", s.Server.Port))
	}
	for key, d := range map[string]time.Duration{
		KeyServerConnectTimeout: s.Server.ConnectTimeout,
		KeyConnectCooldown:      s.Session.ConnectCooldown,
		KeyReconnectCooldown:    s.Session.ReconnectCooldown,
		KeyOracleConnectTimeout: s.Oracle.ConnectTimeout,
		KeyOracleReadTimeout:    s.Oracle.ReadTimeout,
		KeyCommandsDelay:        s.Commands.Delay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if s.Oracle.MaxRetries < 0 {
		errs = append(errs, errors.New("oracle.max_retries must not be negative"))
	}
	if s.Oracle.Enabled && s.Oracle.URL == "" {
		errs = append(errs, errors.New("oracle.url is required when the oracle is enabled"))
	}
	if s.Profiles.Path == "" {
		errs = append(errs, errors.New("profiles.path is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func expandHome(path, homeDir string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return homeDir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir, rest)
	}
	return path
}

// Package config loads Erika's settings from flags, environment, an optional
// config file and a .env file, and validates them before startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/erika/internal/ai"
	"github.com/Veraticus/erika/internal/conversation"
	"github.com/Veraticus/erika/internal/printer"
	"github.com/Veraticus/erika/internal/signal"
)

// EnvPrefix is prepended to every environment override, e.g. ERIKA_SIGNAL_ACCOUNT.
const EnvPrefix = "ERIKA"

// Defaults.
const (
	DefaultName         = "Erika"
	DefaultPrefix       = "."
	DefaultTrigger      = "erika"
	DefaultSocketPath   = "/run/signal-cli/socket"
	DefaultCleanupDelay = 60 * time.Second
	DefaultServerPort   = 3000
	DefaultQueueRate    = 0.0
	DefaultQueueBurst   = 5
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultQuoteTTL     = signal.DefaultQuoteTTL
)

// Config is the full runtime configuration.
type Config struct {
	Bot     BotConfig
	Signal  SignalConfig
	AI      AIConfig
	Print   PrintConfig
	Server  ServerConfig
	Queue   QueueConfig
	Cache   CacheConfig
	Logging LoggingConfig
}

// BotConfig names the bot and its command tokens.
type BotConfig struct {
	Name        string
	Prefix      string
	Trigger     string
	PersonaFile string
}

// SignalConfig locates the signal-cli daemon.
type SignalConfig struct {
	Socket  string
	Account string
}

// AIConfig configures the completion backend.
type AIConfig struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	MaxTurns       int
}

// PrintConfig configures the print queue.
type PrintConfig struct {
	QueueDir     string
	CleanupDelay time.Duration
	Printer      string
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Enabled bool
	Bind    string
	Port    int
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// QueueConfig tunes per-sender message lanes.
type QueueConfig struct {
	Rate        float64
	Burst       int
	IdleTimeout time.Duration
}

// CacheConfig tunes the recent-message cache used for quote lookups.
type CacheConfig struct {
	QuoteTTL time.Duration
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", DefaultName)
	v.SetDefault("bot.prefix", DefaultPrefix)
	v.SetDefault("bot.trigger", DefaultTrigger)
	v.SetDefault("bot.persona_file", "")

	v.SetDefault("signal.socket", DefaultSocketPath)
	v.SetDefault("signal.account", "")

	v.SetDefault("ai.model", ai.DefaultModel)
	v.SetDefault("ai.request_timeout", ai.DefaultTimeout)
	v.SetDefault("ai.max_turns", conversation.DefaultMaxTurns)

	v.SetDefault("print.queue_dir", printer.DefaultQueueDir)
	v.SetDefault("print.cleanup_delay", DefaultCleanupDelay)
	v.SetDefault("print.printer", "")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.bind", "")
	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("queue.rate", DefaultQueueRate)
	v.SetDefault("queue.burst", DefaultQueueBurst)
	v.SetDefault("queue.idle_timeout", DefaultIdleTimeout)

	v.SetDefault("cache.quote_ttl", DefaultQuoteTTL)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
}

// BindEnv wires the ERIKA_ environment prefix, plus the legacy names the
// deployment scripts still export.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	legacy := map[string][]string{
		"ai.api_key":     {"ERIKA_AI_API_KEY", "GEMINI_KEY", "GEMINI_API_KEY"},
		"server.port":    {"ERIKA_SERVER_PORT", "PORT"},
		"signal.account": {"ERIKA_SIGNAL_ACCOUNT", "SIGNAL_ACCOUNT"},
	}
	for key, names := range legacy {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Bot: BotConfig{
			Name:        strings.TrimSpace(v.GetString("bot.name")),
			Prefix:      strings.TrimSpace(v.GetString("bot.prefix")),
			Trigger:     strings.ToLower(strings.TrimSpace(v.GetString("bot.trigger"))),
			PersonaFile: strings.TrimSpace(v.GetString("bot.persona_file")),
		},
		Signal: SignalConfig{
			Socket:  strings.TrimSpace(v.GetString("signal.socket")),
			Account: strings.TrimSpace(v.GetString("signal.account")),
		},
		AI: AIConfig{
			APIKey:         strings.TrimSpace(v.GetString("ai.api_key")),
			Model:          strings.TrimSpace(v.GetString("ai.model")),
			RequestTimeout: v.GetDuration("ai.request_timeout"),
			MaxTurns:       v.GetInt("ai.max_turns"),
		},
		Print: PrintConfig{
			QueueDir:     strings.TrimSpace(v.GetString("print.queue_dir")),
			CleanupDelay: v.GetDuration("print.cleanup_delay"),
			Printer:      strings.TrimSpace(v.GetString("print.printer")),
		},
		Server: ServerConfig{
			Enabled: v.GetBool("server.enabled"),
			Bind:    strings.TrimSpace(v.GetString("server.bind")),
			Port:    v.GetInt("server.port"),
		},
		Queue: QueueConfig{
			Rate:        v.GetFloat64("queue.rate"),
			Burst:       v.GetInt("queue.burst"),
			IdleTimeout: v.GetDuration("queue.idle_timeout"),
		},
		Cache: CacheConfig{
			QuoteTTL: v.GetDuration("cache.quote_ttl"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Bot.Name == "" {
		errs = append(errs, errors.New("bot.name is required"))
	}
	if c.Bot.Trigger == "" {
		errs = append(errs, errors.New("bot.trigger is required"))
	}
	if strings.ContainsAny(c.Bot.Prefix, " \t\n") {
		errs = append(errs, fmt.Errorf("bot.prefix must not contain whitespace: %q", c.Bot.Prefix))
	}

	if c.Signal.Socket == "" {
		errs = append(errs, errors.New("signal.socket is required"))
	}
	if err := signal.ValidateAccount(c.Signal.Account); err != nil {
		errs = append(errs, fmt.Errorf("signal.account: %w", err))
	}

	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("ai.api_key is required (set ERIKA_AI_API_KEY or GEMINI_KEY)"))
	}
	if c.AI.Model == "" {
		errs = append(errs, errors.New("ai.model is required"))
	}
	if c.AI.RequestTimeout <= 0 {
		errs = append(errs, errors.New("ai.request_timeout must be positive"))
	}
	if c.AI.MaxTurns < 2 {
		errs = append(errs, fmt.Errorf("ai.max_turns must be at least 2 (one exchange), got %d", c.AI.MaxTurns))
	}

	if c.Print.QueueDir == "" {
		errs = append(errs, errors.New("print.queue_dir is required"))
	}
	if c.Print.CleanupDelay < 0 {
		errs = append(errs, errors.New("print.cleanup_delay must not be negative"))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if c.Queue.Rate < 0 {
		errs = append(errs, errors.New("queue.rate must not be negative"))
	}
	if c.Queue.IdleTimeout <= 0 {
		errs = append(errs, errors.New("queue.idle_timeout must be positive"))
	}
	if c.Cache.QuoteTTL <= 0 {
		errs = append(errs, errors.New("cache.quote_ttl must be positive"))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseFormat(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

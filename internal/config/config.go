package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sms-hub/internal/checkpoint"
	"sms-hub/internal/models"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Kavenegar   KavenegarConfig   `mapstructure:"kavenegar"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Triggers    []TriggerConfig   `mapstructure:"triggers"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type KavenegarConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// CredentialsConfig selects where the gateway API key is resolved from.
// Source is "config" (kavenegar.api_key / SMSHUB_KAVENEGAR_API_KEY) or "keyring".
type CredentialsConfig struct {
	Source         string `mapstructure:"source"`
	KeyringService string `mapstructure:"keyring_service"`
	KeyringKey     string `mapstructure:"keyring_key"`
	KeyringDir     string `mapstructure:"keyring_dir"`
}

// CheckpointConfig selects the store for the seen-message window.
// Driver is one of "memory", "sqlite", "redis" or "none".
type CheckpointConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	Window      int    `mapstructure:"window"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type TriggerConfig struct {
	Name          string            `mapstructure:"name"`
	LineNumber    string            `mapstructure:"line_number"`
	PollInterval  int               `mapstructure:"poll_interval"` // seconds
	SenderFilter  string            `mapstructure:"sender_filter"`
	MessageFilter string            `mapstructure:"message_filter"`
	Processors    []ProcessorConfig `mapstructure:"processors"`
}

// ProcessorConfig describes one downstream consumer of a trigger's events.
type ProcessorConfig struct {
	Type            string `mapstructure:"type"` // "telegram" or "webhook"
	TelegramChatID  string `mapstructure:"telegram_chat_id"`
	TelegramMessage string `mapstructure:"telegram_message"`
	CodePattern     string `mapstructure:"code_pattern,omitempty"`
	URL             string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("kavenegar.base_url", "https://api.kavenegar.com/v1")
	v.SetDefault("kavenegar.timeout", 30)
	v.SetDefault("credentials.source", "config")
	v.SetDefault("credentials.keyring_service", "sms-hub")
	v.SetDefault("credentials.keyring_key", "kavenegar_api_key")
	v.SetDefault("checkpoint.driver", "memory")
	v.SetDefault("checkpoint.path", "sms-hub.db")
	v.SetDefault("checkpoint.redis_prefix", "smshub")
	v.SetDefault("checkpoint.window", checkpoint.DefaultWindow)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/app/configs")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")
	v.AddConfigPath(".")

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Environment variables override, e.g. SMSHUB_KAVENEGAR_API_KEY
	v.SetEnvPrefix("SMSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the fields every trigger needs at poll time and fills in
// per-trigger defaults.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Triggers))
	// Reading an inbox marks its messages read, so a line feeds one trigger only.
	lines := make(map[string]string, len(c.Triggers))
	for i := range c.Triggers {
		t := &c.Triggers[i]
		if strings.TrimSpace(t.LineNumber) == "" {
			errs = append(errs, fmt.Errorf("triggers[%d]: line_number is required", i))
			continue
		}
		if t.Name == "" {
			t.Name = t.LineNumber
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("triggers[%d]: duplicate trigger name %q", i, t.Name))
		}
		seen[t.Name] = true

		line := strings.TrimSpace(t.LineNumber)
		if owner, ok := lines[line]; ok {
			errs = append(errs, fmt.Errorf("trigger %q: line_number %s already used by trigger %q", t.Name, line, owner))
		} else {
			lines[line] = t.Name
		}

		if t.PollInterval == 0 {
			t.PollInterval = int(models.DefaultPollInterval / time.Second)
		}
		if t.PollInterval < 1 {
			errs = append(errs, fmt.Errorf("trigger %q: poll_interval must be >= 1", t.Name))
		}

		for j, p := range t.Processors {
			switch p.Type {
			case "telegram":
				if p.TelegramChatID == "" {
					errs = append(errs, fmt.Errorf("trigger %q: processors[%d]: telegram_chat_id is required", t.Name, j))
				}
			case "webhook":
				if p.URL == "" {
					errs = append(errs, fmt.Errorf("trigger %q: processors[%d]: url is required", t.Name, j))
				}
			default:
				errs = append(errs, fmt.Errorf("trigger %q: processors[%d]: unknown type %q", t.Name, j, p.Type))
			}
		}
	}

	switch c.Credentials.Source {
	case "config", "keyring":
	default:
		errs = append(errs, fmt.Errorf("credentials.source: unknown source %q", c.Credentials.Source))
	}

	switch c.Checkpoint.Driver {
	case "memory", "none":
	case "sqlite":
		if c.Checkpoint.Path == "" {
			errs = append(errs, errors.New("checkpoint.path is required for the sqlite driver"))
		}
	case "redis":
		if c.Checkpoint.RedisAddr == "" {
			errs = append(errs, errors.New("checkpoint.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.driver: unknown driver %q", c.Checkpoint.Driver))
	}

	if len(errs) > 0 {
		return &models.ConfigurationError{Op: "config", Err: errors.Join(errs...)}
	}
	return nil
}

// PollConfiguration converts a trigger entry into the immutable per-instance settings.
func (t TriggerConfig) PollConfiguration() models.PollConfiguration {
	interval := time.Duration(t.PollInterval) * time.Second
	if interval <= 0 {
		interval = models.DefaultPollInterval
	}
	name := t.Name
	if name == "" {
		name = t.LineNumber
	}
	return models.PollConfiguration{
		Name:          name,
		LineNumber:    t.LineNumber,
		PollInterval:  interval,
		SenderFilter:  t.SenderFilter,
		MessageFilter: t.MessageFilter,
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/links"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/scam"
	"github.com/ishyv/tx-discord-bot-sub008/internal/autorole"
)

type Config struct {
	DiscordToken string           `yaml:"discord_token" env:"DISCORD_TOKEN"`
	LogLevel     string           `yaml:"log_level" env:"LOG_LEVEL"`
	ContentDir   string           `yaml:"content_dir" env:"CONTENT_DIR"`
	Database     DatabaseConfig   `yaml:"database"`
	Redis        RedisConfig      `yaml:"redis"`
	Health       HealthConfig     `yaml:"health"`
	Tracing      TracingConfig    `yaml:"tracing"`
	Reputation   ReputationConfig `yaml:"reputation"`
	Activity     ActivityConfig   `yaml:"activity"`
	Automod      AutomodConfig    `yaml:"automod"`
	Audit        AuditConfig      `yaml:"audit"`

	// Autoroles are upserted into the rule table at startup.
	Autoroles []AutoroleConfig `yaml:"autoroles" env:"-"`
}

type DatabaseConfig struct {
	// Driver selects where user documents live: sqlite or postgres. Audit
	// logs, domain lists and autorole rules always use the SQLite file.
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	Path   string `yaml:"path" env:"DATABASE_PATH"`
	URL    string `yaml:"url" env:"DATABASE_URL"`
}

// RedisConfig enables the shared cooldown store when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"REDIS_ADDR"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" env:"HEALTH_ENABLED"`
	Addr    string `yaml:"addr" env:"HEALTH_ADDR"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO"`
}

// AutoroleConfig grants RoleID on join, or once the reputation or message
// counter reaches Threshold.
type AutoroleConfig struct {
	GuildID   string `yaml:"guild_id"`
	RoleID    string `yaml:"role_id"`
	Trigger   string `yaml:"trigger"`
	Threshold int64  `yaml:"threshold"`
}

type ReputationConfig struct {
	Emoji    string        `yaml:"emoji" env:"REPUTATION_EMOJI"`
	Cooldown time.Duration `yaml:"cooldown" env:"REPUTATION_COOLDOWN"`
}

type ActivityConfig struct {
	Reward   int64         `yaml:"reward" env:"ACTIVITY_REWARD"`
	Cooldown time.Duration `yaml:"cooldown" env:"ACTIVITY_COOLDOWN"`
}

type AutomodConfig struct {
	Enabled         bool          `yaml:"enabled" env:"AUTOMOD_ENABLED"`
	MaxMentions     int           `yaml:"max_mentions" env:"AUTOMOD_MAX_MENTIONS"`
	BurstMessages   int           `yaml:"burst_messages" env:"AUTOMOD_BURST_MESSAGES"`
	BurstWindow     time.Duration `yaml:"burst_window" env:"AUTOMOD_BURST_WINDOW"`
	RaidJoins       int           `yaml:"raid_joins" env:"AUTOMOD_RAID_JOINS"`
	RaidWindow      time.Duration `yaml:"raid_window" env:"AUTOMOD_RAID_WINDOW"`
	Actions         ActionConfig  `yaml:"actions"`
	OCR             OCRConfig     `yaml:"ocr"`
	ScamPhrases     []scam.Phrase `yaml:"scam_phrases" env:"-"`
	ProtectedBrands []links.Brand `yaml:"protected_brands" env:"-"`

	// Domains are added to the per-guild allow and block lists at startup.
	Domains []DomainListConfig `yaml:"domains" env:"-"`
}

type DomainListConfig struct {
	GuildID string   `yaml:"guild_id"`
	Allow   []string `yaml:"allow_domains"`
	Block   []string `yaml:"block_domains"`
}

type ActionConfig struct {
	AuditOnly     bool          `yaml:"audit_only" env:"AUTOMOD_AUDIT_ONLY"`
	Delete        bool          `yaml:"delete" env:"AUTOMOD_DELETE"`
	TimeoutAfter  int           `yaml:"timeout_after" env:"AUTOMOD_TIMEOUT_AFTER"`
	TimeoutFor    time.Duration `yaml:"timeout_for" env:"AUTOMOD_TIMEOUT_FOR"`
	StrikeForgive time.Duration `yaml:"strike_forgive" env:"AUTOMOD_STRIKE_FORGIVE"`
}

// OCRConfig scans image attachments through Google Vision. It stays off
// unless Enabled and one credential source is set.
type OCRConfig struct {
	Enabled         bool          `yaml:"enabled" env:"OCR_ENABLED"`
	Concurrency     int           `yaml:"concurrency" env:"OCR_CONCURRENCY"`
	MaxBytes        int64         `yaml:"max_bytes" env:"OCR_MAX_BYTES"`
	MinWidth        int           `yaml:"min_width" env:"OCR_MIN_WIDTH"`
	Timeout         time.Duration `yaml:"timeout" env:"OCR_TIMEOUT"`
	CredentialsFile string        `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON string        `yaml:"credentials_json" env:"GOOGLE_VISION_CREDENTIALS_JSON"`
	AccessToken     string        `yaml:"access_token" env:"GOOGLE_VISION_ACCESS_TOKEN"`
}

func (c OCRConfig) HasCredentials() bool {
	return c.CredentialsFile != "" || c.CredentialsJSON != "" || c.AccessToken != ""
}

type AuditConfig struct {
	RetentionDays   int           `yaml:"retention_days" env:"AUDIT_RETENTION_DAYS"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"AUDIT_CLEANUP_INTERVAL"`

	// ChannelID mirrors WARN and CRIT entries into a Discord channel.
	ChannelID string `yaml:"channel_id" env:"AUDIT_CHANNEL_ID"`

	// SummaryInterval posts a digest to ChannelID; zero disables it.
	SummaryInterval time.Duration `yaml:"summary_interval" env:"AUDIT_SUMMARY_INTERVAL"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		ContentDir: "content",
		Database:   DatabaseConfig{Driver: "sqlite", Path: "/data/txbot.db"},
		Redis:      RedisConfig{KeyPrefix: "txbot"},
		Health:     HealthConfig{Enabled: false, Addr: ":8080"},
		Tracing:    TracingConfig{SampleRatio: 1},
		Reputation: ReputationConfig{Emoji: "⭐", Cooldown: 12 * time.Hour},
		Activity:   ActivityConfig{Reward: 5, Cooldown: time.Minute},
		Automod: AutomodConfig{
			Enabled:       true,
			MaxMentions:   6,
			BurstMessages: 6,
			BurstWindow:   8 * time.Second,
			RaidJoins:     10,
			RaidWindow:    30 * time.Second,
			Actions: ActionConfig{
				Delete:        true,
				TimeoutAfter:  3,
				TimeoutFor:    10 * time.Minute,
				StrikeForgive: 24 * time.Hour,
			},
			OCR: OCRConfig{
				Concurrency: 2,
				MaxBytes:    8 << 20,
				MinWidth:    1200,
				Timeout:     15 * time.Second,
			},
		},
		Audit: AuditConfig{
			RetentionDays:   14,
			CleanupInterval: 6 * time.Hour,
			SummaryInterval: 24 * time.Hour,
		},
	}
}

// Load layers defaults, the YAML file at CONFIG_PATH (config.yaml when
// unset), a .env file and the process environment, in that order.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	// existing variables win over .env entries
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Reputation.Cooldown <= 0 {
		errs = append(errs, errors.New("reputation.cooldown must be positive"))
	}
	if c.Activity.Cooldown <= 0 {
		errs = append(errs, errors.New("activity.cooldown must be positive"))
	}
	if c.Automod.BurstMessages > 0 && c.Automod.BurstWindow <= 0 {
		errs = append(errs, errors.New("automod.burst_window must be positive"))
	}
	if c.Automod.RaidJoins > 0 && c.Automod.RaidWindow <= 0 {
		errs = append(errs, errors.New("automod.raid_window must be positive"))
	}
	if c.Automod.OCR.Enabled && !c.Automod.OCR.HasCredentials() {
		errs = append(errs, errors.New("automod.ocr needs credentials_file, credentials_json or access_token"))
	}
	for i, d := range c.Automod.Domains {
		if d.GuildID == "" {
			errs = append(errs, fmt.Errorf("automod.domains[%d].guild_id is required", i))
		}
	}
	for i, r := range c.Autoroles {
		if r.GuildID == "" || r.RoleID == "" {
			errs = append(errs, fmt.Errorf("autoroles[%d] needs guild_id and role_id", i))
		}
		if _, err := autorole.ParseTrigger(r.Trigger); err != nil {
			errs = append(errs, fmt.Errorf("autoroles[%d]: %w", i, err))
		} else if r.Trigger != string(autorole.TriggerJoin) && r.Threshold < 1 {
			errs = append(errs, fmt.Errorf("autoroles[%d].threshold must be positive", i))
		}
	}
	return errors.Join(errs...)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

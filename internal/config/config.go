package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"market-flight/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Scenario  ScenarioConfig  `mapstructure:"scenario"`
	Playback  PlaybackConfig  `mapstructure:"playback"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// GeneratorConfig holds free-walk defaults.
type GeneratorConfig struct {
	Steps     int     `mapstructure:"steps"`
	StartSpot float64 `mapstructure:"start_spot"`
	StartIV   float64 `mapstructure:"start_iv"`
	TargetIV  float64 `mapstructure:"target_iv"`
	ATR       float64 `mapstructure:"atr"`
	Flip      float64 `mapstructure:"flip"`
	PutWall   float64 `mapstructure:"put_wall"`
	CallWall  float64 `mapstructure:"call_wall"`
}

// ScenarioConfig holds scenario defaults. Volatility is in percent.
type ScenarioConfig struct {
	Type            string  `mapstructure:"type"`
	IVPct           float64 `mapstructure:"iv_pct"`
	HVPct           float64 `mapstructure:"hv_pct"`
	FrameCount      int     `mapstructure:"frame_count"`
	DurationMinutes float64 `mapstructure:"duration_minutes"`
}

// PlaybackConfig governs headless replay.
type PlaybackConfig struct {
	FPS          float64       `mapstructure:"fps"`
	Speed        float64       `mapstructure:"speed"`
	TrailLength  int           `mapstructure:"trail_length"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	PilotRate    float64       `mapstructure:"pilot_rate"`
}

// SourceConfig covers remote telemetry fetches.
type SourceConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// AlertingConfig defines breach notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for alerts.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIGHTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flightdeck")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("generator.steps", 500)
	v.SetDefault("generator.start_spot", 692.5)
	v.SetDefault("generator.start_iv", 0.15)
	v.SetDefault("generator.target_iv", 0.15)
	v.SetDefault("generator.atr", 2.8)
	v.SetDefault("generator.flip", 692.5)
	v.SetDefault("generator.put_wall", 680.0)
	v.SetDefault("generator.call_wall", 700.0)

	v.SetDefault("scenario.type", "hold")
	v.SetDefault("scenario.iv_pct", 15.0)
	v.SetDefault("scenario.hv_pct", 12.0)
	v.SetDefault("scenario.frame_count", 390)
	v.SetDefault("scenario.duration_minutes", 390.0)

	v.SetDefault("playback.fps", 30.0)
	v.SetDefault("playback.speed", 1.0)
	v.SetDefault("playback.trail_length", 500)
	v.SetDefault("playback.tick_interval", "33ms")
	v.SetDefault("playback.startup_delay", "0s")
	v.SetDefault("playback.pilot_rate", 5.0)

	v.SetDefault("source.request_timeout", "10s")
	v.SetDefault("source.user_agent", "flightdeck/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Generator.Steps <= 0 {
		return fmt.Errorf("generator.steps must be greater than zero")
	}
	if c.Generator.ATR <= 0 {
		return fmt.Errorf("generator.atr must be greater than zero")
	}
	if c.Generator.CallWall <= c.Generator.PutWall {
		return fmt.Errorf("generator.call_wall must be above generator.put_wall")
	}
	if c.Scenario.FrameCount <= 0 {
		return fmt.Errorf("scenario.frame_count must be greater than zero")
	}
	if c.Playback.TickInterval <= 0 {
		return fmt.Errorf("playback.tick_interval must be greater than zero")
	}
	if c.Playback.FPS <= 0 || c.Playback.Speed <= 0 {
		return fmt.Errorf("playback.fps and playback.speed must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

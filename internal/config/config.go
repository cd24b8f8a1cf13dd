package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type App struct {
	Timezone     string       `mapstructure:"timezone"`
	DocumentsDir string       `mapstructure:"documents_dir"`
	WeekStart    time.Weekday `mapstructure:"week_start"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Storage struct {
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type Telegram struct {
	Token string `mapstructure:"token"`
}

type Analysis struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Images struct {
	S3Bucket  string `mapstructure:"s3_bucket"`
	S3Region  string `mapstructure:"s3_region"`
	PublicURL string `mapstructure:"public_url"`
}

type Config struct {
	App      App      `mapstructure:"app"`
	HTTP     HTTP     `mapstructure:"http"`
	Storage  Storage  `mapstructure:"storage"`
	Telegram Telegram `mapstructure:"telegram"`
	Analysis Analysis `mapstructure:"analysis"`
	Images   Images   `mapstructure:"images"`
}

// SecretPath is where docker compose mounts the bot token.
var SecretPath = "/run/secrets/telegram_bot_token"

func defaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("app.documents_dir", "data/documents")
	v.SetDefault("app.week_start", "sunday")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("storage.path", "data/berry.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.model", "")
	v.SetDefault("analysis.max_image_bytes", 5<<20)
	v.SetDefault("analysis.timeout", "60s")
	v.SetDefault("images.s3_bucket", "")
	v.SetDefault("images.s3_region", "")
	v.SetDefault("images.public_url", "")
}

// Load reads .env, then the optional config file, then BERRY_* variables,
// later sources winning.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load() // BERRY_*, TELEGRAM_BOT_TOKEN etc.

	v := viper.New()
	defaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("berry")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("BERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	opt := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToWeekdayHook,
		)
	})
	if err := v.Unmarshal(&cfg, opt); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	cfg.Telegram.Token = botToken(cfg.Telegram.Token)

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return &cfg, nil
}

// botToken prefers the docker secret, then the configured value, then the
// plain TELEGRAM_BOT_TOKEN variable.
func botToken(configured string) string {
	if data, err := os.ReadFile(SecretPath); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token
		}
	}
	if token := strings.TrimSpace(configured); token != "" {
		return token
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || strings.EqualFold(c.App.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func stringToWeekdayHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(time.Sunday) {
		return data, nil
	}
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(data.(string)))]
	if !ok {
		return nil, fmt.Errorf("unknown weekday %q", data)
	}
	return d, nil
}

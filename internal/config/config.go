package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"WerchterMonitor/internal/domain"
)

const (
	defaultTimezone      = "UTC"
	defaultCheckInterval = 600
	minCheckInterval     = 60
	defaultSourceURL     = "https://www.rockwerchter.be/en/"
	defaultJSONStorePath = "data/processed_news.json"
	defaultSQLitePath    = "data/processed_news.db"
	defaultLogFile       = "logs/werchter_monitor.log"
	defaultDotEnvPath    = ".env"

	configPathEnv      = "MONITOR_CONFIG"
	botTokenEnv        = "BOT_TOKEN"
	chatIDEnv          = "CHAT_ID"
	legacyBotTokenEnv  = "TELEGRAM_BOT_TOKEN"
	legacyChatIDEnv    = "TELEGRAM_CHAT_ID"
	telegramAPIURLEnv  = "TELEGRAM_API_URL"
	checkIntervalEnv   = "CHECK_INTERVAL"
	checkCronEnv       = "CHECK_CRON"
	checkTimezoneEnv   = "CHECK_TIMEZONE"
	sourceURLEnv       = "SOURCE_URL"
	sourceScannerEnv   = "SOURCE_SCANNER"
	storeDriverEnv     = "STORE_DRIVER"
	storePathEnv       = "STORE_PATH"
	pruneMaxAgeEnv     = "PRUNE_MAX_AGE_DAYS"
	maxRetriesEnv      = "MAX_RETRIES"
	sendRateEnv        = "SEND_RATE_PER_SEC"
	logLevelEnv        = "LOG_LEVEL"
	logFileEnv         = "LOG_FILE"
	scannerWerchter    = "werchter"
	scannerFeed        = "rss"
	storeDriverJSON    = "json"
	storeDriverSQLite  = "sqlite"
	redactedPlaceholder = "***"
)

// Config holds high-level settings required across the application. It is
// built once at startup and passed by value afterwards.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram" toml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Source    SourceConfig    `yaml:"source" toml:"source"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Delivery  DeliveryConfig  `yaml:"delivery" toml:"delivery"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`

	warnings []string
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" toml:"bot_token"`
	ChatID   string `yaml:"chatId" toml:"chat_id"`
	APIURL   string `yaml:"apiUrl" toml:"api_url"`
}

// SchedulerConfig defines when the source is polled.
type SchedulerConfig struct {
	CheckInterval  int            `yaml:"checkInterval" toml:"check_interval"`
	CronExpression string         `yaml:"cronExpression" toml:"cron_expression"`
	Timezone       string         `yaml:"timezone" toml:"timezone"`
	location       *time.Location `yaml:"-" toml:"-"`
}

// Interval is the delay between successful cycles.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.CheckInterval) * time.Second
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// SourceConfig selects the scanner strategy and the page it reads.
type SourceConfig struct {
	Scanner   string `yaml:"scanner" toml:"scanner"`
	URL       string `yaml:"url" toml:"url"`
	UserAgent string `yaml:"userAgent" toml:"user_agent"`
}

// StoreConfig describes where processed records live.
type StoreConfig struct {
	Driver          string `yaml:"driver" toml:"driver"`
	Path            string `yaml:"path" toml:"path"`
	PruneMaxAgeDays int    `yaml:"pruneMaxAgeDays" toml:"prune_max_age_days"`
}

// DeliveryConfig tunes the outbound side.
type DeliveryConfig struct {
	MaxRetries    int     `yaml:"maxRetries" toml:"max_retries"`
	RatePerSecond float64 `yaml:"ratePerSecond" toml:"rate_per_second"`
}

// LoggingConfig selects verbosity and the rotating log file ("-" disables it).
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// Warnings are non-fatal findings to log once a logger exists.
func (c Config) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// Loader controls where configuration is read from. The zero value reads
// the real environment and ./.env.
type Loader struct {
	// ConfigPath overrides $MONITOR_CONFIG.
	ConfigPath string
	// DotEnvPath defaults to ".env"; a missing file is ignored.
	DotEnvPath string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return Loader{}.Load()
}

// Load applies, in order: defaults, the optional YAML/TOML file, the .env
// file, environment variables, then validation. Every failure wraps
// domain.ErrConfig.
func (l Loader) Load() (Config, error) {
	env, err := l.environment()
	if err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	path := l.ConfigPath
	if path == "" {
		path = env(configPathEnv)
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnvOverrides(env); err != nil {
		return Config{}, err
	}
	cfg.applyDerivedDefaults()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// environment merges the .env file over the process environment; values from
// the file win.
func (l Loader) environment() (func(string) string, error) {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotPath := l.DotEnvPath
	if dotPath == "" {
		dotPath = defaultDotEnvPath
	}
	dotenv, err := godotenv.Read(dotPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfig, dotPath, err)
		}
		dotenv = nil
	}

	return func(key string) string {
		if v, ok := dotenv[key]; ok {
			return strings.TrimSpace(v)
		}
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}, nil
}

func (c *Config) decodeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %w", domain.ErrConfig, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), c); err != nil {
			return fmt.Errorf("%w: cannot parse %s: %w", domain.ErrConfig, path, err)
		}
	default:
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("%w: cannot parse %s: %w", domain.ErrConfig, path, err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides(env func(string) string) error {
	if v := firstNonEmpty(env(botTokenEnv), env(legacyBotTokenEnv)); v != "" {
		c.Telegram.BotToken = v
	}
	if v := firstNonEmpty(env(chatIDEnv), env(legacyChatIDEnv)); v != "" {
		c.Telegram.ChatID = v
	}
	if v := env(telegramAPIURLEnv); v != "" {
		c.Telegram.APIURL = v
	}

	if v := env(checkIntervalEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer number of seconds, got %q", domain.ErrConfig, checkIntervalEnv, v)
		}
		c.Scheduler.CheckInterval = n
	}
	if v := env(checkCronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}
	if v := env(checkTimezoneEnv); v != "" {
		c.Scheduler.Timezone = v
	}

	if v := env(sourceURLEnv); v != "" {
		c.Source.URL = v
	}
	if v := env(sourceScannerEnv); v != "" {
		c.Source.Scanner = strings.ToLower(v)
	}

	if v := env(storeDriverEnv); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := env(storePathEnv); v != "" {
		c.Store.Path = v
	}
	if v := env(pruneMaxAgeEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrConfig, pruneMaxAgeEnv, v)
		}
		c.Store.PruneMaxAgeDays = n
	}

	if v := env(maxRetriesEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrConfig, maxRetriesEnv, v)
		}
		c.Delivery.MaxRetries = n
	}
	if v := env(sendRateEnv); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number, got %q", domain.ErrConfig, sendRateEnv, v)
		}
		c.Delivery.RatePerSecond = f
	}

	if v := env(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := env(logFileEnv); v != "" {
		c.Logging.File = v
	}
	return nil
}

func (c *Config) applyDerivedDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = defaultJSONStorePath
		if c.Store.Driver == storeDriverSQLite {
			c.Store.Path = defaultSQLitePath
		}
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = defaultTimezone
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Telegram.BotToken == "" {
		problems = append(problems, fmt.Sprintf("%s is required", botTokenEnv))
	}
	if c.Telegram.ChatID == "" {
		problems = append(problems, fmt.Sprintf("%s is required", chatIDEnv))
	}

	if c.Scheduler.CheckInterval <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be positive, got %d", checkIntervalEnv, c.Scheduler.CheckInterval))
	} else if c.Scheduler.CheckInterval < minCheckInterval {
		c.warnings = append(c.warnings, fmt.Sprintf(
			"check interval of %ds is very short, consider at least %ds", c.Scheduler.CheckInterval, minCheckInterval))
	}

	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("unknown timezone %q", c.Scheduler.Timezone))
	} else {
		c.Scheduler.location = loc
	}

	switch c.Source.Scanner {
	case scannerWerchter:
	case scannerFeed:
		if c.Source.URL == "" || c.Source.URL == defaultSourceURL {
			problems = append(problems, fmt.Sprintf("%s must point at a feed when %s=%s", sourceURLEnv, sourceScannerEnv, scannerFeed))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown source scanner %q", c.Source.Scanner))
	}

	switch c.Store.Driver {
	case storeDriverJSON, storeDriverSQLite:
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.PruneMaxAgeDays <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be positive", pruneMaxAgeEnv))
	}

	if c.Delivery.MaxRetries <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be positive", maxRetriesEnv))
	}
	if c.Delivery.RatePerSecond < 0 {
		problems = append(problems, fmt.Sprintf("%s must not be negative", sendRateEnv))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	out := c
	out.Telegram.BotToken = redact(c.Telegram.BotToken)
	out.warnings = nil
	return out
}

// LogValue renders the redacted configuration as a structured group.
func (c Config) LogValue() slog.Value {
	r := c.Redacted()
	return slog.GroupValue(
		slog.String("bot_token", r.Telegram.BotToken),
		slog.String("chat_id", r.Telegram.ChatID),
		slog.Int("check_interval_s", r.Scheduler.CheckInterval),
		slog.String("check_cron", r.Scheduler.CronExpression),
		slog.String("timezone", r.Scheduler.Timezone),
		slog.String("scanner", r.Source.Scanner),
		slog.String("source_url", r.Source.URL),
		slog.String("store_driver", r.Store.Driver),
		slog.String("store_path", r.Store.Path),
		slog.Int("prune_max_age_days", r.Store.PruneMaxAgeDays),
		slog.Int("max_retries", r.Delivery.MaxRetries),
		slog.Float64("send_rate_per_sec", r.Delivery.RatePerSecond),
		slog.String("log_level", r.Logging.Level),
		slog.String("log_file", r.Logging.File),
	)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return redactedPlaceholder
	}
	return secret[:4] + redactedPlaceholder
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultConfig() Config {
	return Config{
		Scheduler: SchedulerConfig{CheckInterval: defaultCheckInterval, Timezone: defaultTimezone, location: time.UTC},
		Source:    SourceConfig{Scanner: scannerWerchter, URL: defaultSourceURL},
		Store:     StoreConfig{Driver: storeDriverJSON, PruneMaxAgeDays: 30},
		Delivery:  DeliveryConfig{MaxRetries: 3, RatePerSecond: 1},
		Logging:   LoggingConfig{Level: "info", File: defaultLogFile},
	}
}

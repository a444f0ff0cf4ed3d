package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddress  string   `mapstructure:"listen_address" yaml:"listen_address"`
	DatabasePath   string   `mapstructure:"database_path" yaml:"database_path"`
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat      string   `mapstructure:"log_format" yaml:"log_format"`
	AdminSecret    string   `mapstructure:"admin_secret" yaml:"admin_secret"`
	AdminBindCIDRs []string `mapstructure:"admin_bind_cidrs" yaml:"admin_bind_cidrs"`

	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Check       CheckConfig       `mapstructure:"check" yaml:"check"`
	Schedule    ScheduleConfig    `mapstructure:"schedule" yaml:"schedule"`
	OpenRouter  OpenRouterConfig  `mapstructure:"openrouter" yaml:"openrouter"`
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	Twitter     TwitterConfig     `mapstructure:"twitter" yaml:"twitter"`
	Telegram    TelegramConfig    `mapstructure:"telegram" yaml:"telegram"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
}

type HTTPConfig struct {
	ReadTimeoutSec  int   `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	IdleTimeoutSec  int   `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	MaxBodyBytes    int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

type CheckConfig struct {
	DedupWindowHours int `mapstructure:"dedup_window_hours" yaml:"dedup_window_hours"`
	RunTimeoutSec    int `mapstructure:"run_timeout_sec" yaml:"run_timeout_sec"`
}

type ScheduleConfig struct {
	// Cron is a standard 5-field expression. It wins over DailyTime.
	Cron      string `mapstructure:"cron" yaml:"cron"`
	DailyTime string `mapstructure:"daily_time" yaml:"daily_time"`
	Timezone  string `mapstructure:"timezone" yaml:"timezone"`
}

type OpenRouterConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	Referer    string `mapstructure:"referer" yaml:"referer"`
	Title      string `mapstructure:"title" yaml:"title"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type GitHubConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Token      string `mapstructure:"token" yaml:"token"`
	MinStars   int    `mapstructure:"min_stars" yaml:"min_stars"`
	PerPage    int    `mapstructure:"per_page" yaml:"per_page"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type TwitterConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	BearerToken string `mapstructure:"bearer_token" yaml:"bearer_token"`
	MaxResults  int    `mapstructure:"max_results" yaml:"max_results"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

type CredentialsConfig struct {
	Keyring    bool   `mapstructure:"keyring" yaml:"keyring"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

func Default() Config {
	return Config{
		ListenAddress: ":3001",
		DatabasePath:  "hotspot.db",
		LogLevel:      "info",
		LogFormat:     "text",
		HTTP: HTTPConfig{
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 15 * 60,
			IdleTimeoutSec:  60,
			MaxBodyBytes:    1 << 20,
		},
		Check: CheckConfig{
			DedupWindowHours: 24,
			RunTimeoutSec:    10 * 60,
		},
		Schedule: ScheduleConfig{
			Timezone: "UTC",
		},
		OpenRouter: OpenRouterConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			Model:      "openrouter/free",
			Referer:    "http://localhost:3001",
			Title:      "AI Hotspot Detection Tool",
			TimeoutSec: 15,
		},
		GitHub: GitHubConfig{
			BaseURL:    "https://api.github.com",
			MinStars:   50,
			PerPage:    10,
			TimeoutSec: 5,
		},
		Twitter: TwitterConfig{
			BaseURL:    "https://api.twitter.com/2",
			MaxResults: 10,
			TimeoutSec: 15,
		},
	}
}

// envAliases are conventional variable names accepted next to the
// HOTSPOT_<SECTION>_<KEY> form.
var envAliases = map[string]string{
	"openrouter.api_key":   "OPENROUTER_API_KEY",
	"github.token":         "GITHUB_TOKEN",
	"twitter.bearer_token": "TWITTER_BEARER_TOKEN",
	"telegram.bot_token":   "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":     "TELEGRAM_CHAT_ID",
	"database_path":        "DATABASE_PATH",
}

const envPrefix = "HOTSPOT"

// LoadOrInit writes a default config file when path does not exist, then
// loads it. The bool reports whether the file was created.
func LoadOrInit(path string) (Config, bool, error) {
	path = filepath.Clean(path)
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Write(path, Default()); err != nil {
			return Config{}, false, err
		}
		created = true
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, created, nil
}

// Load reads path over the defaults and applies environment overrides.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return Config{}, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv(envPrefix+"_LISTEN_ADDRESS") == "" {
		cfg.ListenAddress = ":" + port
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write stores cfg as YAML with owner-only permissions.
func Write(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored and existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := gotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return errors.New("listen_address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return errors.New("database_path is required")
	}
	if c.HTTP.ReadTimeoutSec < 0 || c.HTTP.WriteTimeoutSec < 0 || c.HTTP.IdleTimeoutSec < 0 {
		return errors.New("http timeouts must not be negative")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be positive")
	}
	if c.Check.DedupWindowHours < 1 || c.Check.DedupWindowHours > 24*7 {
		return errors.New("check.dedup_window_hours must be 1..168")
	}
	if c.Check.RunTimeoutSec <= 0 {
		return errors.New("check.run_timeout_sec must be positive")
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	if c.Schedule.DailyTime != "" {
		if _, err := time.Parse("15:04", c.Schedule.DailyTime); err != nil {
			return errors.New("schedule.daily_time must be HH:MM")
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	for name, sec := range map[string]int{
		"openrouter.timeout_sec": c.OpenRouter.TimeoutSec,
		"github.timeout_sec":     c.GitHub.TimeoutSec,
		"twitter.timeout_sec":    c.Twitter.TimeoutSec,
	} {
		if sec <= 0 || sec > 300 {
			return fmt.Errorf("%s must be 1..300", name)
		}
	}
	if c.Twitter.MaxResults < 10 || c.Twitter.MaxResults > 100 {
		return errors.New("twitter.max_results must be 10..100")
	}
	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		return errors.New("github.per_page must be 1..100")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}

func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.Check.DedupWindowHours) * time.Hour
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Check.RunTimeoutSec) * time.Second
}

// MissingKeys lists the dotted keys present in the defaults but absent from
// the file at path, sorted.
func MissingKeys(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	var expected map[string]any
	if err := yaml.Unmarshal(defaults, &expected); err != nil {
		return nil, err
	}
	have := map[string]bool{}
	for _, k := range flattenKeys("", raw) {
		have[k] = true
	}
	var missing []string
	for _, k := range flattenKeys("", expected) {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return missing, nil
}

func flattenKeys(prefix string, m map[string]any) []string {
	var out []string
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			out = append(out, flattenKeys(key, child)...)
			continue
		}
		out = append(out, key)
	}
	return out
}

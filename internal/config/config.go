// Package config loads the gemcheck configuration from gemcheck.yaml,
// an optional .env file, and GEMCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "gemcheck.yaml"

// DefaultEnvFile is loaded before environment overrides are applied.
const DefaultEnvFile = ".env"

// Environment variables that override file values.
const (
	EnvConfig        = "GEMCHECK_CONFIG"
	EnvBaseURL       = "GEMCHECK_BASE_URL"
	EnvAdminEmail    = "GEMCHECK_ADMIN_EMAIL"
	EnvAdminPassword = "GEMCHECK_ADMIN_PASSWORD"
	EnvTimeout       = "GEMCHECK_TIMEOUT"
	EnvHistory       = "GEMCHECK_HISTORY"
)

// DefaultHumanRate is the commission frozen on games between humans when
// commission.human_rate is not set. An explicit 0 is kept.
const DefaultHumanRate = 0.03

// ErrNoBaseURL is returned by Validate when no API base URL is configured.
var ErrNoBaseURL = errors.New("base_url is required (set it in gemcheck.yaml or GEMCHECK_BASE_URL)")

// Credentials is an email/password pair used against /auth/login.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Poll controls how long suites wait for asynchronous backend state.
type Poll struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Commission holds the expected commission rates per opponent kind.
type Commission struct {
	HumanRate      float64 `yaml:"human_rate"`
	RegularBotRate float64 `yaml:"regular_bot_rate"`
}

// Fixtures are the values suites use when creating throwaway entities.
type Fixtures struct {
	UserPrefix  string  `yaml:"user_prefix"`
	EmailDomain string  `yaml:"email_domain"`
	Password    string  `yaml:"password"`
	GemType     string  `yaml:"gem_type"`
	GemQuantity int     `yaml:"gem_quantity"`
	Balance     float64 `yaml:"balance"`
	BotMinBet   float64 `yaml:"bot_min_bet"`
	BotMaxBet   float64 `yaml:"bot_max_bet"`
	CycleGames  int     `yaml:"cycle_games"`
}

// Config is the parsed gemcheck.yaml after env overrides and defaults.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	HealthPath string        `yaml:"health_path"`
	Timeout    time.Duration `yaml:"timeout"`
	Admin      Credentials   `yaml:"admin"`
	Poll       Poll          `yaml:"poll"`
	Commission Commission    `yaml:"commission"`
	Fixtures   Fixtures      `yaml:"fixtures"`
	History    string        `yaml:"history"`
	Color      *bool         `yaml:"color"`
	Verbose    bool          `yaml:"verbose"`
}

// ResolvePath picks the config path: explicit flag, then GEMCHECK_CONFIG,
// then ./gemcheck.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads the config file at path, loads .env from the working
// directory, and applies env overrides and defaults. A missing config file
// is not an error: everything can come from the environment.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	cfg := &Config{Commission: Commission{HumanRate: DefaultHumanRate}}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. Missing files are ignored.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAdminEmail); v != "" {
		c.Admin.Email = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv(EnvHistory); v != "" {
		c.History = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// parseDuration accepts Go durations ("30s") or bare seconds ("30").
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 2 * time.Second
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = 30 * time.Second
	}

	f := &c.Fixtures
	if f.UserPrefix == "" {
		f.UserPrefix = "qa"
	}
	if f.EmailDomain == "" {
		f.EmailDomain = "test.gemplay.local"
	}
	if f.Password == "" {
		f.Password = "Test123!"
	}
	if f.GemType == "" {
		f.GemType = "Ruby"
	}
	if f.GemQuantity == 0 {
		f.GemQuantity = 5
	}
	if f.Balance == 0 {
		f.Balance = 1000
	}
	if f.BotMinBet == 0 {
		f.BotMinBet = 1
	}
	if f.BotMaxBet == 0 {
		f.BotMaxBet = 50
	}
	if f.CycleGames == 0 {
		f.CycleGames = 12
	}
}

// Validate checks that the config can drive a run against a live API.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q: scheme must be http or https", c.BaseURL)
	}
	if c.Fixtures.BotMinBet > c.Fixtures.BotMaxBet {
		return fmt.Errorf("fixtures: bot_min_bet %.2f exceeds bot_max_bet %.2f", c.Fixtures.BotMinBet, c.Fixtures.BotMaxBet)
	}
	return nil
}

// HasAdmin reports whether admin credentials are configured.
func (c *Config) HasAdmin() bool {
	return c.Admin.Email != "" && c.Admin.Password != ""
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvBaseURL, EnvAdminEmail, EnvAdminPassword, EnvTimeout, EnvHistory} {
		t.Setenv(k, "")
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "gemcheck.yaml")
	content := `
base_url: https://preview.gemplay.example/api/
timeout: 10s
admin:
  email: admin@gemplay.com
  password: secret
poll:
  interval: 500ms
  timeout: 15s
commission:
  human_rate: 0.05
fixtures:
  gem_type: Emerald
  cycle_games: 16
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseURL != "https://preview.gemplay.example/api" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.Timeout)
	}
	if cfg.Admin.Email != "admin@gemplay.com" || cfg.Admin.Password != "secret" {
		t.Errorf("unexpected admin credentials: %+v", cfg.Admin)
	}
	if cfg.Poll.Interval != 500*time.Millisecond || cfg.Poll.Timeout != 15*time.Second {
		t.Errorf("unexpected poll config: %+v", cfg.Poll)
	}
	if cfg.Commission.HumanRate != 0.05 {
		t.Errorf("expected human_rate 0.05, got %v", cfg.Commission.HumanRate)
	}
	if cfg.Fixtures.GemType != "Emerald" || cfg.Fixtures.CycleGames != 16 {
		t.Errorf("unexpected fixtures: %+v", cfg.Fixtures)
	}
	if !cfg.HasAdmin() {
		t.Error("expected HasAdmin() to be true")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default 30s timeout, got %s", cfg.Timeout)
	}
	if cfg.HealthPath != "/health" {
		t.Errorf("expected default health path, got %q", cfg.HealthPath)
	}
	if cfg.Commission.HumanRate != 0.03 {
		t.Errorf("expected default commission 0.03, got %v", cfg.Commission.HumanRate)
	}
	if cfg.Commission.RegularBotRate != 0 {
		t.Errorf("expected regular bot rate 0, got %v", cfg.Commission.RegularBotRate)
	}
	if !errors.Is(cfg.Validate(), ErrNoBaseURL) {
		t.Errorf("expected ErrNoBaseURL, got %v", cfg.Validate())
	}
}

func TestCommissionRateDefault(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"explicit zero is kept", "commission:\n  human_rate: 0\n", 0},
		{"absent key gets default", "commission:\n  regular_bot_rate: 0.01\n", DefaultHumanRate},
		{"no commission block", "base_url: http://localhost:8000\n", DefaultHumanRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gemcheck.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.Commission.HumanRate != tt.want {
				t.Errorf("human_rate = %v, want %v", cfg.Commission.HumanRate, tt.want)
			}
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "gemcheck.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://file.example\ntimeout: 5s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvBaseURL, "http://env.example")
	t.Setenv(EnvAdminEmail, "ops@example.com")
	t.Setenv(EnvAdminPassword, "pw")
	t.Setenv(EnvTimeout, "45")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseURL != "http://env.example" {
		t.Errorf("expected env base URL, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("expected 45s from bare seconds, got %s", cfg.Timeout)
	}
	if cfg.Admin.Email != "ops@example.com" {
		t.Errorf("expected env admin email, got %q", cfg.Admin.Email)
	}
}

func TestInvalidTimeoutEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeout, "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "gemcheck.yaml")); err == nil {
		t.Error("expected error for unparseable timeout")
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "GEMCHECK_BASE_URL=http://dotenv.example\nGEMCHECK_ADMIN_EMAIL=dotenv@example.com\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// t.Setenv restores the original value; unset it so godotenv can fill it.
	os.Unsetenv(EnvBaseURL)
	t.Setenv(EnvAdminEmail, "shell@example.com")

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile() error: %v", err)
	}
	if got := os.Getenv(EnvBaseURL); got != "http://dotenv.example" {
		t.Errorf("expected base URL from .env, got %q", got)
	}
	if got := os.Getenv(EnvAdminEmail); got != "shell@example.com" {
		t.Errorf("expected shell value to win, got %q", got)
	}
	os.Unsetenv(EnvBaseURL)
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("expected missing .env to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid https", Config{BaseURL: "https://api.example"}, false},
		{"valid http", Config{BaseURL: "http://localhost:8001/api"}, false},
		{"missing", Config{}, true},
		{"bad scheme", Config{BaseURL: "ftp://api.example"}, true},
		{"bet range inverted", Config{BaseURL: "https://api.example", Fixtures: Fixtures{BotMinBet: 10, BotMaxBet: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)
	if got := ResolvePath(""); got != DefaultConfigFile {
		t.Errorf("expected default, got %q", got)
	}
	t.Setenv(EnvConfig, "/etc/gemcheck.yaml")
	if got := ResolvePath(""); got != "/etc/gemcheck.yaml" {
		t.Errorf("expected env path, got %q", got)
	}
	if got := ResolvePath("local.yaml"); got != "local.yaml" {
		t.Errorf("expected flag to win, got %q", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "tgwatch/pkg/logx"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "admin_user_ids": [42]},
  "monitor": {"interval": "30s", "max_chats": 10},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "keywords": ["btc", "eth"]
}`

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", validJSON)

	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Monitor.Interval != "30s" || cfg.Monitor.MaxChats != 10 {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if len(cfg.Keywords) != 2 {
		t.Errorf("keywords = %v", cfg.Keywords)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  admin_user_ids: [42]
monitor:
  interval: 45s
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
`)

	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.Interval != "45s" {
		t.Errorf("interval = %q", cfg.Monitor.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "telegram": {"token": "x", "admin_user_ids": [1]},
  "monitor": {},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "watermark": "typo-section"
}`)

	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", AdminUserIDs: []int64{1}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no token", func(c *Config) { c.Telegram.Token = " " }, "token"},
		{"no operators", func(c *Config) { c.Telegram.AdminUserIDs = nil }, "admin_user_ids"},
		{"password only is fine", func(c *Config) {
			c.Telegram.AdminUserIDs = nil
			c.Telegram.Password = "pw"
		}, ""},
		{"bad interval", func(c *Config) { c.Monitor.Interval = "soon" }, "monitor.interval"},
		{"negative pause", func(c *Config) { c.Monitor.ChatPause = "-2s" }, "monitor.chat_pause"},
		{"bad driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres"} }, "storage.driver"},
		{"digest without chat", func(c *Config) { c.Digest.Enabled = true }, "digest.chat_id"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverridesToken(t *testing.T) {
	t.Setenv("TGWATCH_BOT_TOKEN", "env-token")
	t.Setenv("TGWATCH_PASSWORD", "env-pw")

	cfg := &Config{Telegram: TelegramConfig{Token: "file-token"}}
	cfg.ApplyEnv()
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Telegram.Password != "env-pw" {
		t.Errorf("password = %q", cfg.Telegram.Password)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Telegram: TelegramConfig{Token: "t", AdminUserIDs: []int64{1}},
		Logging:  LoggingConfig{Level: "info"},
		Keywords: []string{"a"},
	}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "t", AdminUserIDs: []int64{1}},
		Logging:  LoggingConfig{Level: "debug"},
		Keywords: []string{"a", "b"},
	}

	changed, _ := SummarizeChange(oldCfg, newCfg)
	if !Contains(changed, "logging") || !Contains(changed, "keywords") {
		t.Errorf("changed = %v", changed)
	}
	if Contains(changed, "telegram") || Contains(changed, "monitor") {
		t.Errorf("changed = %v includes unchanged sections", changed)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationOrDefault("p", "", 5); err != nil || d != 5 {
		t.Errorf("empty = (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("p", "7s", 5); err != nil || d.Seconds() != 7 {
		t.Errorf("7s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("p", "nope", 5); err == nil {
		t.Error("bad duration accepted")
	}
}

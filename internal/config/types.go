package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Monitor  MonitorConfig  `json:"monitor"`
	Logging  LoggingConfig  `json:"logging"`

	// Keywords and Chats seed the watch state on first start. Once a store
	// is configured the persisted state wins and these are only a fallback.
	Keywords []string `json:"keywords,omitempty"`
	Chats    []string `json:"chats,omitempty"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Sinks   SinksConfig    `json:"sinks,omitempty"`
	Digest  DigestConfig   `json:"digest,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// AdminUserIDs may always use the control commands.
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// Password optionally opens sessions for other users. Prefer setting it
	// via TGWATCH_PASSWORD instead of the config file.
	Password string `json:"password,omitempty"`
	// NotifyChatIDs receive match notifications (usually the admins' own
	// private chats).
	NotifyChatIDs []int64 `json:"notify_chat_ids,omitempty"`
	// PollTimeout is a Go duration string for the long-poll (default 10s).
	PollTimeout string `json:"poll_timeout,omitempty"`
	// InboxSize bounds the buffered messages kept per monitored chat.
	InboxSize int `json:"inbox_size,omitempty"`
}

// MonitorConfig tunes the polling loop. All durations are Go duration
// strings (e.g. "500ms", "30s", "1m").
type MonitorConfig struct {
	Interval      string `json:"interval,omitempty"`
	ChatPause     string `json:"chat_pause,omitempty"`
	PageSize      int    `json:"page_size,omitempty"`
	ErrorCooldown string `json:"error_cooldown,omitempty"`
	RatePerMin    int    `json:"rate_per_min,omitempty"`
	MaxChats      int    `json:"max_chats,omitempty"`
	// WatermarkGrace backdates a freshly added chat's watermark so messages
	// sent moments before the add are still seen.
	WatermarkGrace string `json:"watermark_grace,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tgwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`    // found-message retention
}

type SinksConfig struct {
	// Console prints matches to stdout (default on).
	Console *bool `json:"console,omitempty"`
	// File appends matches to the given path; empty disables the sink.
	File string `json:"file,omitempty"`
}

func (s SinksConfig) ConsoleEnabled() bool {
	return s.Console == nil || *s.Console
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"` // cron expression, default "0 9 * * *"
	Timezone string `json:"timezone,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
}

// ApplyEnv overlays secrets from the environment. Environment values win
// over the file so tokens can stay out of version control.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("TGWATCH_BOT_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("TGWATCH_PASSWORD")); v != "" {
		c.Telegram.Password = v
	}
}

// Validate checks everything that can be checked without the network.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (file or TGWATCH_BOT_TOKEN)")
	}
	if len(c.Telegram.AdminUserIDs) == 0 && strings.TrimSpace(c.Telegram.Password) == "" {
		return errors.New("telegram: set admin_user_ids or a password, otherwise nobody can operate the bot")
	}

	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"monitor.interval", c.Monitor.Interval},
		{"monitor.chat_pause", c.Monitor.ChatPause},
		{"monitor.error_cooldown", c.Monitor.ErrorCooldown},
		{"monitor.watermark_grace", c.Monitor.WatermarkGrace},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Monitor.PageSize < 0 {
		return errors.New("monitor.page_size must be >= 0")
	}
	if c.Monitor.RatePerMin < 0 {
		return errors.New("monitor.rate_per_min must be >= 0")
	}

	if c.Storage != nil {
		switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("storage.retention", c.Storage.Retention); err != nil {
			return err
		}
	}

	if c.Digest.Enabled && c.Digest.ChatID == 0 {
		return errors.New("digest.chat_id is required when the digest is enabled")
	}
	return nil
}

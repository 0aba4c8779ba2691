package config

import (
	"reflect"
	"strings"

	logx "tgwatch/pkg/logx"
)

// SummarizeChange returns the changed top-level sections plus safe
// structured attrs for logging. Secrets (token, password) are never
// included, only whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.Password != newCfg.Telegram.Password ||
		!reflect.DeepEqual(oldCfg.Telegram.AdminUserIDs, newCfg.Telegram.AdminUserIDs) ||
		!reflect.DeepEqual(oldCfg.Telegram.NotifyChatIDs, newCfg.Telegram.NotifyChatIDs) ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.InboxSize != newCfg.Telegram.InboxSize {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.admin_count", len(newCfg.Telegram.AdminUserIDs)),
			logx.Bool("telegram.password_set", strings.TrimSpace(newCfg.Telegram.Password) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.interval", newCfg.Monitor.Interval),
			logx.Int("monitor.max_chats", newCfg.Monitor.MaxChats),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Keywords, newCfg.Keywords) {
		changed = append(changed, "keywords")
		attrs = append(attrs, logx.Int("keywords.count", len(newCfg.Keywords)))
	}
	if !reflect.DeepEqual(oldCfg.Chats, newCfg.Chats) {
		changed = append(changed, "chats")
		attrs = append(attrs, logx.Int("chats.count", len(newCfg.Chats)))
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if !reflect.DeepEqual(oldCfg.Sinks, newCfg.Sinks) {
		changed = append(changed, "sinks")
	}
	if !reflect.DeepEqual(oldCfg.Digest, newCfg.Digest) {
		changed = append(changed, "digest")
	}

	return changed, attrs
}

// Contains reports whether section is in the changed list.
func Contains(changed []string, section string) bool {
	for _, s := range changed {
		if s == section {
			return true
		}
	}
	return false
}

package storage

import (
	"context"
	"errors"
	"strings"

	logx "tgwatch/pkg/logx"
)

// Store is the minimal persistence API used by the monitor and its sinks.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Incr(ctx context.Context, counter string, delta int64) (int64, error)
	Counters(ctx context.Context) (map[string]int64, error)

	SaveMatch(ctx context.Context, m MatchRecord) error
	RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

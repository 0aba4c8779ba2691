// Package storage provides the persistence layer used by the monitor.
//
// It currently supports:
//   - Key-value checkpoints (chat registry, keyword set)
//   - Stats counters (matches found, per-chat totals)
//   - Found-message history with a retention window
package storage

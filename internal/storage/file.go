package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "tgwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.state.json     (kv + counters snapshot, atomic rewrite)
//   - <prefix>.matches.jsonl  (append-only JSON Lines journal)
//
// The matches journal is periodically compacted, dropping records older than
// the retention window.
type fileStore struct {
	log       logx.Logger
	retention time.Duration

	mu sync.Mutex

	statePath string
	kv        map[string]string
	counters  map[string]int64

	matchesPath string
	matchesFile *os.File
	matches     []MatchRecord

	matchWrites int
}

type fileState struct {
	KV       map[string]string `json:"kv"`
	Counters map[string]int64  `json:"counters"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	statePath := prefix + ".state.json"
	matchesPath := prefix + ".matches.jsonl"

	st := &fileStore{
		log:         log,
		retention:   cfg.retention(),
		statePath:   statePath,
		kv:          map[string]string{},
		counters:    map[string]int64{},
		matchesPath: matchesPath,
	}
	_ = st.loadState()
	_ = st.loadMatches()
	st.pruneMatchesLocked()

	mf, err := os.OpenFile(matchesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.matchesFile = mf
	return st, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchesFile != nil {
		err := s.matchesFile.Close()
		s.matchesFile = nil
		return err
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *fileStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return s.writeStateLocked()
}

func (s *fileStore) Incr(ctx context.Context, counter string, delta int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[counter] += delta
	v := s.counters[counter]
	return v, s.writeStateLocked()
}

func (s *fileStore) Counters(ctx context.Context) (map[string]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

func (s *fileStore) SaveMatch(ctx context.Context, m MatchRecord) error {
	_ = ctx
	if m.At.IsZero() {
		m.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchesFile == nil {
		return errors.New("matches journal closed")
	}
	s.matches = append(s.matches, m)

	enc := json.NewEncoder(s.matchesFile)
	if err := enc.Encode(m); err != nil {
		return err
	}
	s.matchWrites++
	if s.matchWrites%500 == 0 {
		// Best-effort compact.
		if err := s.compactMatchesLocked(); err != nil {
			s.log.Debug("matches compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.matches)
	if limit > n {
		limit = n
	}
	// Newest first.
	out := make([]MatchRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.matches[i])
	}
	return out, nil
}

func (s *fileStore) loadState() error {
	f, err := os.Open(s.statePath)
	if err != nil {
		return err
	}
	defer f.Close()
	var st fileState
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return err
	}
	if st.KV != nil {
		s.kv = st.KV
	}
	if st.Counters != nil {
		s.counters = st.Counters
	}
	return nil
}

func (s *fileStore) writeStateLocked() error {
	tmp := s.statePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(fileState{KV: s.kv, Counters: s.counters}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.statePath)
}

func (s *fileStore) loadMatches() error {
	f, err := os.Open(s.matchesPath)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var m MatchRecord
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			continue
		}
		s.matches = append(s.matches, m)
	}
	return sc.Err()
}

func (s *fileStore) pruneMatchesLocked() {
	cutoff := time.Now().Add(-s.retention)
	kept := s.matches[:0]
	for _, m := range s.matches {
		if m.At.After(cutoff) {
			kept = append(kept, m)
		}
	}
	s.matches = kept
}

func (s *fileStore) compactMatchesLocked() error {
	s.pruneMatchesLocked()

	tmp := s.matchesPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, m := range s.matches {
		if err := enc.Encode(m); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	// Swap journal file under the same handle path.
	if s.matchesFile != nil {
		_ = s.matchesFile.Close()
	}
	if err := os.Rename(tmp, s.matchesPath); err != nil {
		return err
	}
	mf, err := os.OpenFile(s.matchesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.matchesFile = nil
		return err
	}
	s.matchesFile = mf
	return nil
}

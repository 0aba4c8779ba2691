package watch

import (
	"strings"
	"sync"

	logx "tgwatch/pkg/logx"
)

// Normalize lower-cases and trims every keyword and drops empties.
// Order is preserved; duplicates are permitted (redundant but harmless).
func Normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Match returns the keywords that occur in text as case-insensitive
// substrings, in keyword-set order (not position-in-text order).
// Empty text or an empty keyword set yields an empty result.
func Match(text string, keywords []string) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Keywords is the mutable keyword set shared between the control surface and
// the polling loop. The set is replaced wholesale on update; readers get a
// snapshot copy.
type Keywords struct {
	mu    sync.RWMutex
	words []string

	cp  Checkpointer
	log logx.Logger
}

func NewKeywords(cp Checkpointer, log logx.Logger) *Keywords {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Keywords{cp: cp, log: log}
}

// Set replaces the whole keyword set (normalized) and persists it.
func (k *Keywords) Set(words []string) []string {
	norm := Normalize(words)

	k.mu.Lock()
	k.words = norm
	k.mu.Unlock()

	if k.cp != nil {
		if err := k.cp.SaveKeywords(norm); err != nil {
			k.log.Warn("keyword checkpoint failed", logx.Err(err))
		}
	}
	k.log.Info("keywords updated", logx.Int("count", len(norm)))
	return norm
}

// Hydrate installs persisted keywords without re-persisting them.
func (k *Keywords) Hydrate(words []string) {
	norm := Normalize(words)
	k.mu.Lock()
	k.words = norm
	k.mu.Unlock()
}

// Snapshot returns a copy of the current keyword set.
func (k *Keywords) Snapshot() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]string(nil), k.words...)
}

func (k *Keywords) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.words)
}

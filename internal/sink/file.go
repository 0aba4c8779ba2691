package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tgwatch/internal/watch"
)

// File appends one log line per match to a plain text file.
type File struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file sink: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{path: path, f: f}, nil
}

func (s *File) Name() string { return "file" }

func (s *File) Handle(ctx context.Context, ev watch.MatchEvent) error {
	_ = ctx
	line := fmt.Sprintf("[%s] CHAT: %s (@%s) | KEYWORDS: %s | MESSAGE: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		ev.Chat.Title, ev.Chat.Handle,
		strings.Join(ev.Keywords, ","),
		strings.ReplaceAll(ev.Text, "\n", " "),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("file sink closed")
	}
	_, err := s.f.WriteString(line)
	return err
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

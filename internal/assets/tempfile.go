package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebrowser/codebrowser/internal/config"
)

// TempFileSink is the default Sink: it writes each screenshot to its own
// file under baseDir and schedules its removal after the requested TTL. It
// mirrors the logger package's managed-file-behind-a-mutex shape, adapted
// from one log file per tab to one image file per screenshot.
type TempFileSink struct {
	baseDir string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	closed  bool
}

// NewTempFileSink creates a TempFileSink rooted at baseDir, creating the
// directory if it does not already exist.
func NewTempFileSink(baseDir string) (*TempFileSink, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &TempFileSink{
		baseDir: baseDir,
		timers:  make(map[string]*time.Timer),
	}, nil
}

func extensionFor(format config.ImageFormat) string {
	switch format {
	case config.FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// StoreScreenshot writes data to a new file under baseDir and arms a timer
// that deletes it once ttl elapses. A ttl of zero or less disables eviction.
func (s *TempFileSink) StoreScreenshot(ctx context.Context, data []byte, format config.ImageFormat, width, height uint32, ttl time.Duration) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	name := fmt.Sprintf("%s_%dx%d.%s", uuid.New().String(), width, height, extensionFor(format))
	path := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	if ttl > 0 {
		s.armEviction(path, ttl)
	}

	return path, nil
}

func (s *TempFileSink) armEviction(path string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = os.Remove(path)
		return
	}

	s.timers[path] = time.AfterFunc(ttl, func() {
		_ = os.Remove(path)
		s.mu.Lock()
		delete(s.timers, path)
		s.mu.Unlock()
	})
}

// Close cancels all pending eviction timers without deleting the files they
// guarded; it does not remove files already written, only stops future
// cleanup so the process can exit without leaking goroutines.
func (s *TempFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	return nil
}

// PendingEvictions returns the number of files still awaiting scheduled
// removal. Exposed for tests.
func (s *TempFileSink) PendingEvictions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebrowser/codebrowser/internal/config"
)

func TestStoreScreenshotWritesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTempFileSink(dir)
	if err != nil {
		t.Fatalf("NewTempFileSink failed: %v", err)
	}
	defer sink.Close()

	path, err := sink.StoreScreenshot(context.Background(), []byte("fake-png-bytes"), config.FormatPNG, 800, 600, 0)
	if err != nil {
		t.Fatalf("StoreScreenshot failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	if string(data) != "fake-png-bytes" {
		t.Errorf("unexpected file contents: %q", data)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("expected .png extension, got %s", path)
	}
}

func TestStoreScreenshotWebPExtension(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTempFileSink(dir)
	if err != nil {
		t.Fatalf("NewTempFileSink failed: %v", err)
	}
	defer sink.Close()

	path, err := sink.StoreScreenshot(context.Background(), []byte("x"), config.FormatWebP, 10, 10, 0)
	if err != nil {
		t.Fatalf("StoreScreenshot failed: %v", err)
	}
	if filepath.Ext(path) != ".webp" {
		t.Errorf("expected .webp extension, got %s", path)
	}
}

func TestStoreScreenshotEvictsAfterTTL(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTempFileSink(dir)
	if err != nil {
		t.Fatalf("NewTempFileSink failed: %v", err)
	}
	defer sink.Close()

	path, err := sink.StoreScreenshot(context.Background(), []byte("x"), config.FormatPNG, 1, 1, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("StoreScreenshot failed: %v", err)
	}
	if sink.PendingEvictions() != 1 {
		t.Fatalf("expected 1 pending eviction, got %d", sink.PendingEvictions())
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to be evicted, stat err = %v", err)
	}
}

func TestStoreScreenshotRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTempFileSink(dir)
	if err != nil {
		t.Fatalf("NewTempFileSink failed: %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sink.StoreScreenshot(ctx, []byte("x"), config.FormatPNG, 1, 1, 0); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCloseStopsPendingTimers(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewTempFileSink(dir)
	if err != nil {
		t.Fatalf("NewTempFileSink failed: %v", err)
	}

	path, err := sink.StoreScreenshot(context.Background(), []byte("x"), config.FormatPNG, 1, 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("StoreScreenshot failed: %v", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sink.PendingEvictions() != 0 {
		t.Errorf("expected 0 pending evictions after Close, got %d", sink.PendingEvictions())
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to survive Close (timer stopped, not fired): %v", err)
	}
}

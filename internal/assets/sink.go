// Package assets defines the boundary between the browser core and whatever
// external system ultimately stores captured screenshots. The core never
// assumes a particular backend: it writes through the Sink interface and
// gets back an opaque reference string it can hand to its caller.
package assets

import (
	"context"
	"time"

	"github.com/codebrowser/codebrowser/internal/config"
)

// Sink stores a captured screenshot and returns a reference (a path, URL, or
// opaque key — the core does not interpret it) the caller can use to
// retrieve it later. ttl is advisory: a Sink is free to ignore it, but the
// bundled TempFileSink honors it by deleting the file after it elapses.
type Sink interface {
	StoreScreenshot(ctx context.Context, data []byte, format config.ImageFormat, width, height uint32, ttl time.Duration) (string, error)
	Close() error
}

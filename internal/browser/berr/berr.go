// Package berr defines the error taxonomy shared by the browser manager and
// page controller, and the predicate used to decide whether an internal
// launch should attempt automatic recovery after a failed navigation.
package berr

import (
	"errors"
	"strings"
)

// NotInitialized is returned when an operation is attempted before the
// manager has connected to or launched a browser.
var NotInitialized = errors.New("browser not initialized")

// PageNotLoaded is returned when an operation requires a page that has not
// yet completed its first navigation.
var PageNotLoaded = errors.New("page not loaded")

// CdpError wraps a failure surfaced by the Chrome DevTools Protocol, carrying
// the raw message text so callers (and should_retry_after_goto_error-style
// logic) can pattern-match on it.
type CdpError struct {
	Message string
}

func (e *CdpError) Error() string { return e.Message }

// NewCdpError wraps any error as a CdpError, or returns nil for a nil err.
func NewCdpError(err error) error {
	if err == nil {
		return nil
	}
	return &CdpError{Message: err.Error()}
}

// ScreenshotError is returned when every entry in the capture retry ladder
// fails or times out.
type ScreenshotError struct {
	Message string
}

func (e *ScreenshotError) Error() string { return e.Message }

// ConfigError is returned for malformed configuration, such as an unknown
// wait-strategy event name.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// recoverableSubstrings is the exact, lowercase, denylist used to classify a
// CdpError message as transient. Order does not matter; membership does.
var recoverableSubstrings = []string{
	"connection closed",
	"browser closed",
	"target crashed",
	"context destroyed",
	"no such session",
	"disconnected",
	"transport",
	"timeout",
	"timed out",
}

// IsRecoverable reports whether err looks like a transient CDP failure that
// an internal browser relaunch might fix. It does not know about the
// external-vs-internal distinction; callers must gate this on an internal
// launch themselves, since external connections are never restarted.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, NotInitialized) {
		return true
	}

	var cdpErr *CdpError
	if errors.As(err, &cdpErr) {
		lower := strings.ToLower(cdpErr.Message)
		for _, needle := range recoverableSubstrings {
			if strings.Contains(lower, needle) {
				return true
			}
		}
		return false
	}

	return false
}

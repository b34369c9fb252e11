// Package procscan discovers already-running Chrome/Chromium processes that
// expose a remote-debugging port, for the case where the caller asks to
// attach to "whatever is already open" rather than naming a port explicitly.
// It is the process-inspection sibling of internal/cdp's binary discovery:
// that package finds an executable to launch, this one finds a process
// that's already running.
package procscan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/sysutil"
)

// Candidate describes a running browser process found with an active
// remote-debugging port.
type Candidate struct {
	PID  int
	Port int
}

var portFlagRE = regexp.MustCompile(`--remote-debugging-port=(\d+)`)

// Scan walks /proc, looking for processes whose command line carries a
// --remote-debugging-port flag with a non-zero value, and returns every one
// whose port is actually accepting connections. Linux-only: the spec's
// internal-launch path owns its own browser on every platform, so this
// "attach to what's already running" path is a development convenience, not
// a load-bearing feature of the external-connection contract.
func Scan() ([]Candidate, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	var candidates []Candidate
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}

		args := strings.Split(string(cmdline), "\x00")
		joined := strings.Join(args, " ")
		if !looksLikeChrome(joined) {
			continue
		}

		m := portFlagRE.FindStringSubmatch(joined)
		if m == nil {
			continue
		}

		port, err := strconv.Atoi(m[1])
		if err != nil || port == 0 {
			continue
		}

		if !IsPortOpen("127.0.0.1", port, 200*time.Millisecond) {
			continue
		}

		candidates = append(candidates, Candidate{PID: pid, Port: port})
	}

	return candidates, nil
}

func looksLikeChrome(cmdline string) bool {
	lower := strings.ToLower(cmdline)
	return strings.Contains(lower, "chrome") || strings.Contains(lower, "chromium")
}

// IsPortOpen reports whether a TCP listener is accepting connections at
// host:port within timeout. It delegates to sysutil, the same package
// chromedp itself uses to confirm a freshly launched browser's devtools
// port has come up, rather than hand-rolling a dial-and-retry loop.
func IsPortOpen(host string, port int, timeout time.Duration) bool {
	return sysutil.OpenPort(fmt.Sprintf("%s:%d", host, port), timeout)
}

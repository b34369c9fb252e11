package page

import (
	"errors"
	"testing"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
	"github.com/codebrowser/codebrowser/internal/config"
)

func TestApplyWaitStrategyUnknownEventIsConfigError(t *testing.T) {
	p := &Page{cfg: config.DefaultConfig()}
	err := p.applyWaitStrategy(nil, config.WaitStrategy{Event: "bogus"}, false)
	if err == nil {
		t.Fatal("expected error for unknown wait event")
	}
	var cfgErr *berr.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *berr.ConfigError, got %T", err)
	}
}

func TestApplyWaitStrategyDelayDoesNotRequireContext(t *testing.T) {
	p := &Page{cfg: config.DefaultConfig()}
	// A pure delay strategy never touches ctx, so nil is safe here and
	// exercises the IsDelay() branch in isolation from any CDP call.
	if err := p.applyWaitStrategy(nil, config.WaitStrategy{DelayMs: 1}, false); err != nil {
		t.Errorf("unexpected error for delay wait strategy: %v", err)
	}
}

package page

import (
	"testing"

	"github.com/chromedp/cdproto/runtime"
)

func TestConsoleLogEviction(t *testing.T) {
	p := &Page{}
	for i := 0; i < maxConsoleLogs+50; i++ {
		p.appendConsoleLog(ConsoleLogEntry{Message: "x"})
	}
	if got := len(p.GetConsoleLogs()); got != maxConsoleLogs {
		t.Errorf("expected %d logs after eviction, got %d", maxConsoleLogs, got)
	}
}

func TestCursorStateRoundTrip(t *testing.T) {
	p := &Page{}
	p.setCursorState(12.5, 34.5, ButtonLeft, true)

	x, y := p.GetCursorPosition()
	if x != 12.5 || y != 34.5 {
		t.Errorf("expected (12.5, 34.5), got (%v, %v)", x, y)
	}
}

func TestCurrentURLRoundTrip(t *testing.T) {
	p := &Page{}
	if got := p.GetCurrentURL(); got != "" {
		t.Errorf("expected empty URL initially, got %q", got)
	}
	p.setCurrentURL("https://example.com")
	if got := p.GetCurrentURL(); got != "https://example.com" {
		t.Errorf("expected https://example.com, got %q", got)
	}
}

func TestConsoleArgsToString(t *testing.T) {
	args := []*runtime.RemoteObject{
		{Value: []byte(`"hello"`)},
		{Description: "Error: boom"},
	}
	got := consoleArgsToString(args)
	want := `"hello" Error: boom`
	if got != want {
		t.Errorf("consoleArgsToString() = %q, want %q", got, want)
	}
}

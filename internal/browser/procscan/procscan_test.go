package procscan

import "testing"

func TestLooksLikeChrome(t *testing.T) {
	tests := []struct {
		cmdline string
		want    bool
	}{
		{"/usr/bin/google-chrome --remote-debugging-port=9222", true},
		{"/usr/bin/chromium-browser --headless", true},
		{"/usr/bin/vim somefile.go", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := looksLikeChrome(tt.cmdline); got != tt.want {
			t.Errorf("looksLikeChrome(%q) = %v, want %v", tt.cmdline, got, tt.want)
		}
	}
}

func TestPortFlagRegex(t *testing.T) {
	tests := []struct {
		cmdline  string
		wantPort string
		wantOK   bool
	}{
		{"chrome --remote-debugging-port=9222 --headless", "9222", true},
		{"chrome --remote-debugging-port=0", "0", true},
		{"chrome --headless", "", false},
	}

	for _, tt := range tests {
		m := portFlagRE.FindStringSubmatch(tt.cmdline)
		if tt.wantOK {
			if m == nil || m[1] != tt.wantPort {
				t.Errorf("FindStringSubmatch(%q) = %v, want port %s", tt.cmdline, m, tt.wantPort)
			}
		} else if m != nil {
			t.Errorf("FindStringSubmatch(%q) = %v, want no match", tt.cmdline, m)
		}
	}
}

// Scan itself talks to /proc and real sockets; here we only check it
// doesn't error out on a normal Linux host, since asserting on the actual
// set of running browsers would make the test environment-dependent.
func TestScanDoesNotError(t *testing.T) {
	if _, err := Scan(); err != nil {
		t.Errorf("Scan() returned error: %v", err)
	}
}

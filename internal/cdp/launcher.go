// Package cdp provides Chrome DevTools Protocol connection and management.
package cdp

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ChromeProcess represents a launched Chrome instance.
type ChromeProcess struct {
	Cmd           *exec.Cmd
	Port          string
	UserDataDir   string
	ownsUserData  bool
}

// LaunchOptions customizes the flags passed to a launched Chrome instance.
// Zero values fall back to defaults: a headed (non-headless) window of
// 1280x800 and a temp profile directory.
type LaunchOptions struct {
	Headless          bool
	WindowWidth       int
	WindowHeight      int
	UserAgent         string
	UserDataDir       string // if empty, a temp dir is created and owned by the ChromeProcess
	Locale            string
	Timezone          string
}

// LaunchChrome starts a new Chrome instance with remote debugging enabled.
func LaunchChrome(port string, opts LaunchOptions) (*ChromeProcess, error) {
	chromePath := findChrome()
	if chromePath == "" {
		return nil, errors.New("chrome executable not found")
	}

	userDataDir := opts.UserDataDir
	ownsUserData := false
	if userDataDir == "" {
		dir, err := os.MkdirTemp("", "codebrowser_chrome_*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		userDataDir = dir
		ownsUserData = true
	}

	width, height := opts.WindowWidth, opts.WindowHeight
	if width == 0 {
		width = 1280
	}
	if height == 0 {
		height = 800
	}

	args := []string{
		"--remote-debugging-port=" + port,
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-features=TranslateUI",
		"--disable-background-networking",
		"--disable-sync",
		fmt.Sprintf("--window-size=%d,%d", width, height),
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.UserAgent != "" {
		args = append(args, "--user-agent="+opts.UserAgent)
	}
	if opts.Locale != "" {
		args = append(args, "--lang="+opts.Locale)
	}
	if opts.Timezone != "" {
		args = append(args, "--timezone="+opts.Timezone)
	}

	cmd := exec.Command(chromePath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if ownsUserData {
			_ = os.RemoveAll(userDataDir)
		}
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromeProcess{
		Cmd:          cmd,
		Port:         port,
		UserDataDir:  userDataDir,
		ownsUserData: ownsUserData,
	}, nil
}

// Stop terminates the Chrome process and cleans up.
func (cp *ChromeProcess) Stop() error {
	if cp.Cmd != nil && cp.Cmd.Process != nil {
		if err := cp.Cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill chrome: %w", err)
		}
		// Wait for process to exit
		_ = cp.Cmd.Wait()
	}

	// Only remove the profile directory if we created it. A caller-supplied
	// UserDataDir is never removed here, whatever config.PersistProfile says.
	if cp.UserDataDir != "" && cp.ownsUserData {
		_ = os.RemoveAll(cp.UserDataDir)
	}

	return nil
}

// PID returns the process ID of the Chrome instance.
func (cp *ChromeProcess) PID() int {
	if cp.Cmd != nil && cp.Cmd.Process != nil {
		return cp.Cmd.Process.Pid
	}
	return 0
}

// findChrome locates the Chrome executable on the system.
func findChrome() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			filepath.Join(os.Getenv("HOME"), "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		programFiles := os.Getenv("PROGRAMFILES")
		programFilesX86 := os.Getenv("PROGRAMFILES(X86)")

		paths = []string{
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Try finding in PATH
	if path, err := exec.LookPath("google-chrome"); err == nil {
		return path
	}
	if path, err := exec.LookPath("chrome"); err == nil {
		return path
	}
	if path, err := exec.LookPath("chromium"); err == nil {
		return path
	}

	return ""
}

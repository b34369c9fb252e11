// codebrowser drives a single Chrome tab via the DevTools Protocol:
// navigate, click, type, scroll, screenshot, and run raw JavaScript or CDP
// commands against it, either launching its own Chrome or attaching to one
// the caller already has running.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebrowser/codebrowser/internal/assets"
	"github.com/codebrowser/codebrowser/internal/browser"
	"github.com/codebrowser/codebrowser/internal/browser/page"
	"github.com/codebrowser/codebrowser/internal/cdp"
	"github.com/codebrowser/codebrowser/internal/config"
)

var (
	cfgFile     string
	assetDir    string
	connectPort int
	connectWS   string
)

var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "codebrowser",
	Short: "Drive a Chrome tab via the DevTools Protocol",
	Long: `codebrowser connects to Chrome via the DevTools Protocol and exposes
navigation, input, scripting, and screenshot operations as subcommands.

Example:
  # Launch an internal headless Chrome and navigate it
  codebrowser navigate --url https://example.com

  # Attach to an already-running Chrome instead of launching one
  codebrowser --connect-port 9222 screenshot --output shot.png`,
	Version: config.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&assetDir, "asset-dir", "", "directory to persist screenshots (default: in-memory only)")
	rootCmd.PersistentFlags().IntVar(&connectPort, "connect-port", 0, "attach to Chrome already listening on this debugging port, instead of launching one")
	rootCmd.PersistentFlags().StringVar(&connectWS, "connect-ws", "", "attach to Chrome at this websocket debugger URL, instead of launching one")
	rootCmd.PersistentFlags().BoolVar(&cfg.Headless, "headless", cfg.Headless, "launch Chrome headless (internal launch only)")
	rootCmd.PersistentFlags().Uint32Var(&cfg.Viewport.Width, "width", cfg.Viewport.Width, "viewport width")
	rootCmd.PersistentFlags().Uint32Var(&cfg.Viewport.Height, "height", cfg.Viewport.Height, "viewport height")
	rootCmd.PersistentFlags().StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "override the browser's user agent (internal launch only)")

	rootCmd.AddCommand(navigateCmd, screenshotCmd, clickCmd, moveCmd, typeCmd, pressKeyCmd,
		scrollCmd, backCmd, forwardCmd, evalCmd, cdpCmd, consoleLogsCmd, statusCmd, demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Navigate to a bundled demo page and screenshot it",
	Long: `demo opens a self-contained page with a clickable button, a text
field, and a history.pushState link, then captures a screenshot — a quick
smoke test that input, console capture, and navigation all work end to
end without needing a live website.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "demo.png"
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			demoURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(cdp.DemoPageHTML))
			if _, err := m.Goto(ctx, demoURL); err != nil {
				return err
			}
			if err := m.Click(ctx, 60, 140, page.ButtonLeft); err != nil {
				log.Printf("codebrowser: demo click failed: %v", err)
			}
			shots, _, err := m.Screenshot(ctx)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, shots[0], 0o644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Printf("demo screenshot saved to: %s\n", output)
			return nil
		})
	},
}

func buildManager() (*browser.Manager, error) {
	if cfgFile != "" {
		loaded, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		loaded.Headless = cfg.Headless
		loaded.Viewport.Width = cfg.Viewport.Width
		loaded.Viewport.Height = cfg.Viewport.Height
		if cfg.UserAgent != "" {
			loaded.UserAgent = cfg.UserAgent
		}
		cfg = loaded
	}

	if connectPort != 0 {
		p := connectPort
		cfg.ConnectPort = &p
	}
	if connectWS != "" {
		cfg.ConnectWS = connectWS
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var sink assets.Sink
	if assetDir != "" {
		s, err := assets.NewTempFileSink(assetDir)
		if err != nil {
			return nil, err
		}
		sink = s
	}

	return browser.New(cfg, sink), nil
}

// withManager connects a Manager, runs fn against it, and always tears it
// down afterward — internal launches are stopped and cleaned up; external
// connections are simply released, never closed.
func withManager(fn func(ctx context.Context, m *browser.Manager) error) error {
	m, err := buildManager()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("codebrowser: received shutdown signal")
		cancel()
	}()

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := m.Cleanup(); err != nil {
			log.Printf("codebrowser: cleanup failed: %v", err)
		}
	}()

	return fn(ctx, m)
}

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Navigate to a URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			return fmt.Errorf("--url is required")
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			result, err := m.Goto(ctx, url)
			if err != nil {
				return err
			}
			fmt.Printf("navigated to: %s\n", result.URL)
			if result.Title != "" {
				fmt.Printf("title: %s\n", result.Title)
			}
			return nil
		})
	},
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture a screenshot of the current page",
	Long: `screenshot captures the current page. By default it takes a single
viewport-clipped image; --fullpage slices the entire document (bounded by
the configured segments_max) into numbered files; --region-* clips to an
arbitrary page rectangle instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "screenshot.png"
		}
		fullPage, _ := cmd.Flags().GetBool("fullpage")
		regionX, _ := cmd.Flags().GetFloat64("region-x")
		regionY, _ := cmd.Flags().GetFloat64("region-y")
		regionW, _ := cmd.Flags().GetFloat64("region-width")
		regionH, _ := cmd.Flags().GetFloat64("region-height")
		useRegion := regionW > 0 && regionH > 0

		return withManager(func(ctx context.Context, m *browser.Manager) error {
			if useRegion {
				data, assetPath, err := m.ScreenshotRegion(ctx, regionX, regionY, regionW, regionH)
				if err != nil {
					return err
				}
				return writeScreenshots(output, [][]byte{data}, []string{assetPath})
			}

			cfg.FullPage = fullPage
			shots, assetPaths, err := m.Screenshot(ctx)
			if err != nil {
				return err
			}
			return writeScreenshots(output, shots, assetPaths)
		})
	},
}

// writeScreenshots writes each captured slice to disk: a single slice goes
// to output as-is (or base64 to stdout for output "-"); multiple slices get
// a zero-padded "-NN" suffix inserted before the extension.
func writeScreenshots(output string, shots [][]byte, assetPaths []string) error {
	if output == "-" {
		for _, shot := range shots {
			fmt.Println(base64.StdEncoding.EncodeToString(shot))
		}
		return nil
	}

	for i, shot := range shots {
		path := output
		if len(shots) > 1 {
			ext := filepath.Ext(output)
			base := strings.TrimSuffix(output, ext)
			path = fmt.Sprintf("%s-%02d%s", base, i+1, ext)
		}
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Printf("screenshot saved to: %s\n", path)
		if i < len(assetPaths) && assetPaths[i] != "" {
			fmt.Printf("asset reference: %s\n", assetPaths[i])
		}
	}
	return nil
}

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Click at an absolute page coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		button, _ := cmd.Flags().GetString("button")
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.Click(ctx, x, y, page.MouseButton(button))
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move the virtual cursor to an absolute page coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.MoveMouse(ctx, x, y)
		})
	},
}

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Type text into the focused (or pointed-at) element",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		if text == "" {
			return fmt.Errorf("--text is required")
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.TypeText(ctx, text)
		})
	},
}

var pressKeyCmd = &cobra.Command{
	Use:   "press-key",
	Short: "Dispatch a named key press (Enter, Tab, ArrowDown, ...)",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			return fmt.Errorf("--key is required")
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.PressKey(ctx, key)
		})
	},
}

var scrollCmd = &cobra.Command{
	Use:   "scroll",
	Short: "Scroll the page by a relative offset",
	RunE: func(cmd *cobra.Command, args []string) error {
		dx, _ := cmd.Flags().GetFloat64("dx")
		dy, _ := cmd.Flags().GetFloat64("dy")
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			x, y, err := m.ScrollBy(ctx, dx, dy)
			if err != nil {
				return err
			}
			fmt.Printf("scroll offset: %.0f, %.0f\n", x, y)
			return nil
		})
	},
}

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Navigate backward in session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.HistoryBack(ctx)
		})
	},
}

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Navigate forward in session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			return m.HistoryForward(ctx)
		})
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate JavaScript in the page and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		js, _ := cmd.Flags().GetString("js")
		if js == "" {
			return fmt.Errorf("--js is required")
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			result, err := m.ExecuteJavaScript(ctx, js)
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		})
	},
}

var cdpCmd = &cobra.Command{
	Use:   "cdp",
	Short: "Send a raw CDP command (method + JSON params) to the current page",
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		rawParams, _ := cmd.Flags().GetString("params")
		if method == "" {
			return fmt.Errorf("--method is required")
		}
		var params []byte
		if rawParams != "" {
			params = []byte(rawParams)
		}
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			result, err := m.ExecuteCDPRaw(ctx, method, params)
			if err != nil {
				return err
			}
			fmt.Println(string(result))
			return nil
		})
	},
}

var consoleLogsCmd = &cobra.Command{
	Use:   "console-logs",
	Short: "Print captured console/runtime log entries as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			logs, err := m.ConsoleLogs(ctx)
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(logs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report connection status and the current page URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *browser.Manager) error {
			if _, err := m.GetOrCreatePage(ctx); err != nil {
				return err
			}
			connected, url := m.GetStatus()
			fmt.Printf("connected: %v\n", connected)
			fmt.Printf("url: %s\n", url)
			return nil
		})
	},
}

func init() {
	navigateCmd.Flags().String("url", "", "URL to navigate to")

	screenshotCmd.Flags().StringP("output", "o", "screenshot.png", "output file (use - for base64 stdout)")
	screenshotCmd.Flags().Bool("fullpage", false, "capture the full document in slices instead of just the viewport")
	screenshotCmd.Flags().Float64("region-x", 0, "region mode: clip x origin")
	screenshotCmd.Flags().Float64("region-y", 0, "region mode: clip y origin")
	screenshotCmd.Flags().Float64("region-width", 0, "region mode: clip width (enables region mode)")
	screenshotCmd.Flags().Float64("region-height", 0, "region mode: clip height (enables region mode)")

	clickCmd.Flags().Float64("x", 0, "x coordinate")
	clickCmd.Flags().Float64("y", 0, "y coordinate")
	clickCmd.Flags().String("button", "left", "mouse button: left, right, or none")

	moveCmd.Flags().Float64("x", 0, "x coordinate")
	moveCmd.Flags().Float64("y", 0, "y coordinate")

	typeCmd.Flags().String("text", "", "text to type")

	pressKeyCmd.Flags().String("key", "", "key name, e.g. Enter, Tab, ArrowDown")

	scrollCmd.Flags().Float64("dx", 0, "horizontal scroll delta")
	scrollCmd.Flags().Float64("dy", 0, "vertical scroll delta")

	evalCmd.Flags().String("js", "", "JavaScript expression or statement block to evaluate")

	cdpCmd.Flags().String("method", "", "CDP method name, e.g. Network.enable")
	cdpCmd.Flags().String("params", "", "JSON-encoded CDP params object")

	demoCmd.Flags().StringP("output", "o", "demo.png", "output screenshot file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

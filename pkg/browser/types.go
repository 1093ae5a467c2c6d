package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page is the set of page operations a login flow needs. *Session
// implements it on top of Playwright.
type Page interface {
	Navigate(url string, opts NavigateOptions) error
	Wait(opts WaitOptions) error
	Fill(opts FillOptions) error
	Click(opts ClickOptions) error
	URL() string
	Close() error
}

// Session represents an open browser with its persistent context and page.
type Session struct {
	// ID is unique per launch
	ID string

	// ProfileDir is the user data directory the browser runs with
	ProfileDir string

	// Context is the persistent browser context; closing it ends the browser process
	Context playwright.BrowserContext

	// Page is the active page
	Page playwright.Page

	// Headless indicates if the browser runs without a window
	Headless bool

	// CreatedAt is the launch timestamp
	CreatedAt time.Time

	// CurrentURL is the URL of the page after the last navigation or click
	CurrentURL string

	closeOnce sync.Once
	closeErr  error
	release   func()
	stop      func() bool
}

// SessionOptions configures a browser launch.
type SessionOptions struct {
	// ProfileDir is the user data directory; required
	ProfileDir string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Channel selects a branded browser ("msedge", "chrome"); empty means bundled Chromium
	Channel string

	// Args are extra command line switches, appended to DefaultArgs
	Args []string

	// RelaxTLS accepts invalid certificates and insecure content
	RelaxTLS bool

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// FillOptions configures form input filling.
type FillOptions struct {
	Selector string
	Value    string
	Timeout  float64
}

// ClickOptions configures element clicking.
type ClickOptions struct {
	Selector string
	Timeout  float64
}

// WaitOptions configures waiting for an element.
type WaitOptions struct {
	Selector string

	// State to wait for: "attached" (default), "detached", "visible", "hidden"
	State string

	// Timeout in milliseconds
	Timeout float64
}

// Default values for sessions
const (
	DefaultTimeout   = 30000.0 // 30 seconds in milliseconds
	DefaultWaitState = "attached"
)

// DefaultArgs suppress first-run prompts, default-browser checks, default
// apps and component updates.
var DefaultArgs = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-default-apps",
	"--disable-component-update",
}

// relaxedTLSArgs let the browser load portals with broken certificates.
var relaxedTLSArgs = []string{
	"--allow-running-insecure-content",
	"--ignore-certificate-errors",
}

// suppressedDefaultArgs removes the automation banner and console logging
// switches that Playwright adds on its own.
var suppressedDefaultArgs = []string{
	"--enable-automation",
	"--enable-logging",
}

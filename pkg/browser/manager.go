package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/portalkeeper/pkg/logging"
)

// Manager owns the Playwright driver and the single open browser session.
type Manager struct {
	mu            sync.Mutex
	playwright    *playwright.Playwright
	active        *Session
	initialized   bool
	reprovisioned bool
	channel       string
	log           *logging.Logger

	// swapped in tests
	run     func(*playwright.RunOptions) (*playwright.Playwright, error)
	install func(*playwright.RunOptions) error
	open    func(SessionOptions, playwright.BrowserTypeLaunchPersistentContextOptions) (*Session, error)
}

// NewManager creates a manager. channel selects the browser that will be
// launched and provisioned; empty means bundled Chromium.
func NewManager(channel string, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	m := &Manager{
		channel: channel,
		log:     log,
		run: func(o *playwright.RunOptions) (*playwright.Playwright, error) {
			return playwright.Run(o)
		},
		install: func(o *playwright.RunOptions) error {
			return playwright.Install(o)
		},
	}
	m.open = m.openPersistent
	return m
}

func (m *Manager) runOptions() *playwright.RunOptions {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if m.channel == "" {
		opts.Browsers = []string{"chromium"}
	} else {
		// branded channels use the system installation
		opts.SkipInstallBrowsers = true
	}
	return opts
}

// Initialize starts the Playwright driver. If it cannot start, the driver
// is installed once and started again.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := m.runOptions()
	pw, err := m.run(opts)
	if err != nil {
		m.log.Warnf("playwright driver did not start, reinstalling: %v", err)
		m.reprovisioned = true
		if installErr := m.install(opts); installErr != nil {
			return fmt.Errorf("failed to install playwright: %w", installErr)
		}
		pw, err = m.run(opts)
		if err != nil {
			return fmt.Errorf("failed to start playwright: %w", err)
		}
	}

	m.playwright = pw
	m.initialized = true
	m.log.Debugf("playwright driver started")
	return nil
}

// Launch opens a browser on opts.ProfileDir. Only one session may be open;
// the caller must Close it. Cancelling ctx closes the session.
func (m *Manager) Launch(ctx context.Context, opts SessionOptions) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.active != nil {
		return nil, fmt.Errorf("browser session %s is still open", m.active.ID)
	}
	if opts.ProfileDir == "" {
		return nil, fmt.Errorf("profile directory is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Channel == "" {
		opts.Channel = m.channel
	}

	launchOpts := launchOptions(opts)
	session, err := m.open(opts, launchOpts)
	if err != nil && !m.reprovisioned {
		// an outdated or missing browser build is fixed by one reinstall
		m.reprovisioned = true
		m.log.Warnf("browser launch failed, reinstalling once: %v", err)
		if installErr := m.install(m.runOptions()); installErr != nil {
			return nil, fmt.Errorf("failed to launch browser: %w (reinstall failed: %v)", err, installErr)
		}
		session, err = m.open(opts, launchOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	session.ID = uuid.New().String()
	session.ProfileDir = opts.ProfileDir
	session.Headless = opts.Headless
	session.CreatedAt = time.Now()
	session.CurrentURL = "about:blank"
	session.release = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.active == session {
			m.active = nil
		}
		m.log.Debugf("browser session %s closed after %v (last page %s)",
			session.ID, time.Since(session.CreatedAt).Round(time.Millisecond), session.CurrentURL)
	}
	session.stop = context.AfterFunc(ctx, func() {
		m.log.Infof("context cancelled, closing browser session %s", session.ID)
		_ = session.Close()
	})

	m.active = session
	m.log.Debugf("browser session %s launched (profile %s)", session.ID, opts.ProfileDir)
	return session, nil
}

// openPersistent starts a browser on the profile directory and returns a
// session holding its first page.
func (m *Manager) openPersistent(opts SessionOptions, launchOpts playwright.BrowserTypeLaunchPersistentContextOptions) (*Session, error) {
	browserCtx, err := m.playwright.Chromium.LaunchPersistentContext(opts.ProfileDir, launchOpts)
	if err != nil {
		return nil, err
	}

	var page playwright.Page
	if pages := browserCtx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = browserCtx.NewPage()
		if err != nil {
			_ = browserCtx.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}
	page.SetDefaultTimeout(opts.Timeout)

	return &Session{Context: browserCtx, Page: page}, nil
}

// HasSession reports whether a browser session is open.
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Shutdown closes any lingering session and stops Playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active != nil {
		if err := active.Close(); err != nil {
			m.log.Warnf("failed to close browser session %s: %v", active.ID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

func launchOptions(opts SessionOptions) playwright.BrowserTypeLaunchPersistentContextOptions {
	args := append([]string{}, DefaultArgs...)
	if opts.RelaxTLS {
		args = append(args, relaxedTLSArgs...)
	}
	args = append(args, opts.Args...)

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:          playwright.Bool(opts.Headless),
		Args:              args,
		IgnoreDefaultArgs: append([]string{}, suppressedDefaultArgs...),
		IgnoreHttpsErrors: playwright.Bool(opts.RelaxTLS),
	}
	if opts.Channel != "" {
		launchOpts.Channel = playwright.String(opts.Channel)
	}
	return launchOpts
}

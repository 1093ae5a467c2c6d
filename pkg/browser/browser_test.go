package browser

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfile_IsFreshAndRemovable(t *testing.T) {
	root := t.TempDir()

	a, err := NewProfile(root, nil)
	require.NoError(t, err)
	b, err := NewProfile(root, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	assert.True(t, strings.HasPrefix(filepath.Base(a.Dir), ProfilePrefix))
	assert.DirExists(t, a.Dir)

	require.NoError(t, a.Remove())
	assert.NoDirExists(t, a.Dir)
	assert.NoError(t, a.Remove(), "second remove is a no-op")
	require.NoError(t, b.Remove())
}

func TestNewProfile_WritesNestedPreferences(t *testing.T) {
	p, err := NewProfile(t.TempDir(), DefaultPreferences(true))
	require.NoError(t, err)
	defer p.Remove()

	data, err := os.ReadFile(filepath.Join(p.Dir, "Default", "Preferences"))
	require.NoError(t, err)

	var prefs map[string]any
	require.NoError(t, json.Unmarshal(data, &prefs))

	profile := prefs["profile"].(map[string]any)
	insecure := profile["default_content_setting_values"].(map[string]any)
	images := profile["managed_default_content_settings"].(map[string]any)
	assert.EqualValues(t, 1, insecure["insecure_ssl"])
	assert.EqualValues(t, 1, images["images"])
}

func TestDefaultPreferences_StrictTLS(t *testing.T) {
	assert.Empty(t, DefaultPreferences(false))
}

func TestLaunchOptions(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		opts := launchOptions(SessionOptions{ProfileDir: "/tmp/p", Headless: true})

		assert.Equal(t, DefaultArgs, opts.Args)
		assert.Equal(t, []string{"--enable-automation", "--enable-logging"}, opts.IgnoreDefaultArgs)
		require.NotNil(t, opts.Headless)
		assert.True(t, *opts.Headless)
		require.NotNil(t, opts.IgnoreHttpsErrors)
		assert.False(t, *opts.IgnoreHttpsErrors)
		assert.Nil(t, opts.Channel)
	})

	t.Run("relaxed with channel and extra args", func(t *testing.T) {
		opts := launchOptions(SessionOptions{
			ProfileDir: "/tmp/p",
			RelaxTLS:   true,
			Channel:    "msedge",
			Args:       []string{"--lang=zh-CN"},
		})

		assert.Contains(t, opts.Args, "--ignore-certificate-errors")
		assert.Contains(t, opts.Args, "--allow-running-insecure-content")
		assert.Equal(t, "--lang=zh-CN", opts.Args[len(opts.Args)-1])
		assert.True(t, *opts.IgnoreHttpsErrors)
		require.NotNil(t, opts.Channel)
		assert.Equal(t, "msedge", *opts.Channel)
	})

	t.Run("does not alias defaults", func(t *testing.T) {
		opts := launchOptions(SessionOptions{RelaxTLS: true})
		opts.Args[0] = "changed"
		assert.Equal(t, "--no-first-run", DefaultArgs[0])
	})
}

func TestManager_InitializeReinstallsOnce(t *testing.T) {
	m := NewManager("", nil)

	runs, installs := 0, 0
	m.run = func(*playwright.RunOptions) (*playwright.Playwright, error) {
		runs++
		if runs == 1 {
			return nil, errors.New("driver missing")
		}
		return &playwright.Playwright{}, nil
	}
	m.install = func(o *playwright.RunOptions) error {
		installs++
		assert.Equal(t, []string{"chromium"}, o.Browsers)
		return nil
	}

	require.NoError(t, m.Initialize())
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, installs)

	require.NoError(t, m.Initialize(), "second call is a no-op")
	assert.Equal(t, 2, runs)
}

func TestManager_InitializeFailsAfterReinstall(t *testing.T) {
	m := NewManager("msedge", nil)
	m.run = func(*playwright.RunOptions) (*playwright.Playwright, error) {
		return nil, errors.New("incompatible driver")
	}
	m.install = func(o *playwright.RunOptions) error {
		assert.True(t, o.SkipInstallBrowsers)
		return nil
	}

	err := m.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start playwright")
}

func TestManager_InitializeInstallError(t *testing.T) {
	m := NewManager("", nil)
	m.run = func(*playwright.RunOptions) (*playwright.Playwright, error) {
		return nil, errors.New("no driver")
	}
	m.install = func(*playwright.RunOptions) error { return errors.New("offline") }

	err := m.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install playwright")
}

func TestManager_LaunchRequiresInitialize(t *testing.T) {
	m := NewManager("", nil)
	_, err := m.Launch(context.Background(), SessionOptions{ProfileDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
	assert.False(t, m.HasSession())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	released := 0
	s := &Session{release: func() { released++ }}

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, released)
}

func TestSession_WaitRequiresSelector(t *testing.T) {
	s := &Session{}
	assert.EqualError(t, s.Wait(WaitOptions{}), "selector is required for wait")
}

// launchedManager returns an initialized manager whose launches are
// served by open instead of a real browser.
func launchedManager(open func() (*Session, error)) (*Manager, *int) {
	m := NewManager("", nil)
	m.initialized = true
	installs := 0
	m.install = func(*playwright.RunOptions) error {
		installs++
		return nil
	}
	m.open = func(SessionOptions, playwright.BrowserTypeLaunchPersistentContextOptions) (*Session, error) {
		return open()
	}
	return m, &installs
}

func TestManager_LaunchAllowsOneSessionAtATime(t *testing.T) {
	m, installs := launchedManager(func() (*Session, error) { return &Session{}, nil })
	ctx := context.Background()

	first, err := m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, m.HasSession())

	_, err = m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is still open")

	require.NoError(t, first.Close())
	assert.False(t, m.HasSession())

	second, err := m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotEqual(t, first.(*Session).ID, second.(*Session).ID)
	assert.Equal(t, "about:blank", second.URL())
	require.NoError(t, second.Close())
	assert.Equal(t, 0, *installs)
}

func TestManager_LaunchReinstallsOnlyOnce(t *testing.T) {
	opens := 0
	fail := true
	m, installs := launchedManager(func() (*Session, error) {
		opens++
		if fail {
			return nil, errors.New("executable doesn't exist")
		}
		return &Session{}, nil
	})
	ctx := context.Background()

	_, err := m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, 2, opens, "one retry after reinstalling")
	assert.Equal(t, 1, *installs)

	_, err = m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, 3, opens, "no second retry")
	assert.Equal(t, 1, *installs, "no second reinstall")
	assert.False(t, m.HasSession())
}

func TestManager_LaunchRecoversAfterReinstall(t *testing.T) {
	opens := 0
	m, installs := launchedManager(func() (*Session, error) {
		opens++
		if opens == 1 {
			return nil, errors.New("browser build outdated")
		}
		return &Session{}, nil
	})

	page, err := m.Launch(context.Background(), SessionOptions{ProfileDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 1, *installs)
	require.NoError(t, page.Close())
}

func TestManager_CancelClosesSession(t *testing.T) {
	m, _ := launchedManager(func() (*Session, error) { return &Session{}, nil })
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Launch(ctx, SessionOptions{ProfileDir: t.TempDir()})
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool { return !m.HasSession() }, time.Second, 5*time.Millisecond)
}

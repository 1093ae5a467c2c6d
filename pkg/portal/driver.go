// Package portal logs in to the captive portal through a browser session.
package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/portalkeeper/pkg/browser"
	"github.com/entrhq/portalkeeper/pkg/logging"
)

// Default values for the login flow
const (
	DefaultURL         = "http://wlt.ustc.edu.cn/"
	DefaultWaitTimeout = 30 * time.Second
	DefaultSettleDelay = 5 * time.Second
)

// Credentials are the account values typed into the portal form.
type Credentials struct {
	Identifier string
	Secret     string
}

// Launcher opens a browser page on a prepared profile. *browser.Manager
// implements it.
type Launcher interface {
	Launch(ctx context.Context, opts browser.SessionOptions) (browser.Page, error)
}

// Options configures the login flow.
type Options struct {
	URL         string
	Fields      Fields
	WaitTimeout time.Duration
	SettleDelay time.Duration

	Headless bool
	Channel  string
	RelaxTLS bool

	// TempRoot is where profile directories are created; empty means os.TempDir
	TempRoot string
}

func (o *Options) applyDefaults() {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Fields == (Fields{}) {
		o.Fields = DefaultFields
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
}

// Driver submits the credentials through the portal form. Each Login runs
// in its own browser session and profile, both released before it returns.
type Driver struct {
	launcher Launcher
	creds    Credentials
	opts     Options
	log      *logging.Logger
}

// NewDriver creates a login driver.
func NewDriver(launcher Launcher, creds Credentials, opts Options, log *logging.Logger) *Driver {
	opts.applyDefaults()
	if log == nil {
		log = logging.Discard()
	}
	return &Driver{
		launcher: launcher,
		creds:    creds,
		opts:     opts,
		log:      log,
	}
}

// Login runs the form flow once. Any step that does not complete within
// the wait budget fails the whole call with a *RecoveryError; nothing is
// retried here. The browser and its profile are torn down in every case.
func (d *Driver) Login(ctx context.Context) error {
	profile, err := browser.NewProfile(d.opts.TempRoot, browser.DefaultPreferences(d.opts.RelaxTLS))
	if err != nil {
		return &RecoveryError{Step: StepProfile, Err: err}
	}
	defer func() {
		if rmErr := profile.Remove(); rmErr != nil {
			d.log.Warnf("profile teardown: %v", rmErr)
		}
	}()

	waitMs := float64(d.opts.WaitTimeout.Milliseconds())

	page, err := d.launcher.Launch(ctx, browser.SessionOptions{
		ProfileDir: profile.Dir,
		Headless:   d.opts.Headless,
		Channel:    d.opts.Channel,
		RelaxTLS:   d.opts.RelaxTLS,
		Timeout:    waitMs,
	})
	if err != nil {
		return &RecoveryError{Step: StepLaunch, Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			d.log.Warnf("browser teardown: %v", closeErr)
		}
	}()

	d.log.Debugf("navigating to %s", d.opts.URL)
	if err := page.Navigate(d.opts.URL, browser.NavigateOptions{Timeout: waitMs}); err != nil {
		return &RecoveryError{Step: StepNavigate, Err: err}
	}

	if err := d.fill(page, StepIdentifier, d.opts.Fields.Identifier, d.creds.Identifier, waitMs); err != nil {
		return err
	}
	if err := d.fill(page, StepSecret, d.opts.Fields.Secret, d.creds.Secret, waitMs); err != nil {
		return err
	}

	submit := Selector(d.opts.Fields.Submit)
	if err := page.Wait(browser.WaitOptions{Selector: submit, Timeout: waitMs}); err != nil {
		return &RecoveryError{Step: StepSubmit, Err: err}
	}
	if err := page.Click(browser.ClickOptions{Selector: submit, Timeout: waitMs}); err != nil {
		return &RecoveryError{Step: StepSubmit, Err: err}
	}
	d.log.Infof("credentials submitted to %s, page now at %s", d.opts.URL, page.URL())

	// give the portal backend time to register the session
	if err := sleep(ctx, d.opts.SettleDelay); err != nil {
		return &RecoveryError{Step: StepSettle, Err: err}
	}
	return nil
}

func (d *Driver) fill(page browser.Page, step Step, field, value string, waitMs float64) error {
	selector := Selector(field)
	if err := page.Wait(browser.WaitOptions{Selector: selector, Timeout: waitMs}); err != nil {
		return &RecoveryError{Step: step, Err: err}
	}
	if err := page.Fill(browser.FillOptions{Selector: selector, Value: value, Timeout: waitMs}); err != nil {
		return &RecoveryError{Step: step, Err: fmt.Errorf("field %s: %w", field, err)}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

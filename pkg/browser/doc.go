// Package browser owns short-lived Playwright browser sessions used to drive
// a captive-portal login page.
//
// # Session Lifecycle
//
// A session is created for a single recovery attempt and released at the end
// of it, whatever the outcome:
//
//  1. Profile: NewProfile creates a fresh temporary user data directory and
//     writes preference overrides into it. Profiles are never reused.
//  2. Launch: Manager.Launch starts Chromium (or a branded channel such as
//     msedge) with a persistent context rooted at the profile directory and
//     a fixed set of behavior-suppressing flags.
//  3. Use: Navigate, Wait, Fill and Click operate on the session's page,
//     each bounded by a timeout in milliseconds.
//  4. Close: Session.Close closes the context, which terminates the browser
//     process. Profile.Remove deletes the directory afterwards.
//
// Only one session may be open at a time. Cancelling the context passed to
// Launch closes the session, so pending waits return early.
//
// # Driver Provisioning
//
// Manager.Initialize starts the Playwright driver. If the driver or the
// bundled browser is missing or incompatible, it installs them once and
// retries before giving up.
//
// # Example Usage
//
//	manager := browser.NewManager("", log)
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	profile, err := browser.NewProfile("", browser.DefaultPreferences(true))
//	defer profile.Remove()
//
//	page, err := manager.Launch(ctx, browser.SessionOptions{ProfileDir: profile.Dir})
//	defer page.Close()
//	err = page.Navigate("http://portal.example/", browser.NavigateOptions{})
package browser

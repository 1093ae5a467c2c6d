package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.CurrentURL = s.Page.URL()
	return nil
}

// Wait waits until an element matching the selector reaches the state.
func (s *Session) Wait(opts WaitOptions) error {
	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}
	if opts.State == "" {
		opts.State = DefaultWaitState
	}

	state := playwright.WaitForSelectorState(opts.State)
	playwrightOpts := playwright.PageWaitForSelectorOptions{
		State: &state,
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.WaitForSelector(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("wait for %s failed: %w", opts.Selector, err)
	}
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(opts FillOptions) error {
	playwrightOpts := playwright.PageFillOptions{}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Fill(opts.Selector, opts.Value, playwrightOpts); err != nil {
		return fmt.Errorf("fill %s failed: %w", opts.Selector, err)
	}
	return nil
}

// Click clicks an element matching the selector.
func (s *Session) Click(opts ClickOptions) error {
	playwrightOpts := playwright.PageClickOptions{}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Click(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("click %s failed: %w", opts.Selector, err)
	}

	// clicking submit usually navigates
	s.CurrentURL = s.Page.URL()
	return nil
}

// URL returns the page URL seen after the last navigation or click.
func (s *Session) URL() string {
	return s.CurrentURL
}

// Close closes the browser context, which ends the browser process.
// Safe to call multiple times and from the cancellation hook.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				s.closeErr = fmt.Errorf("failed to close browser context: %w", err)
			}
		}
		if s.release != nil {
			s.release()
		}
	})
	return s.closeErr
}

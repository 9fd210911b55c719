package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/voxnotes/meetingbot/pkg/log"
)

var (
	// ErrElementTimeout marks a wait step that exceeded its bound. Callers
	// treat it as a per-step failure, not a crash of the whole driver.
	ErrElementTimeout = errors.New("element did not appear within timeout")
	ErrDriverClosed   = errors.New("driver already closed")
)

// Options configures a driver launch.
type Options struct {
	// Headless controls whether the browser runs without a display.
	Headless bool
	// PermissionOrigin is the origin granted microphone/camera access
	// before navigation.
	PermissionOrigin string
}

// Driver owns one sandboxed browser instance and its single top-level page.
// A driver is single-owner: exactly one meeting session drives it, and its
// primitive calls are sequential within that session.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// Launch starts a chromium instance with fake media devices so headless
// operation needs no real camera or microphone, and pre-grants media
// permissions for the target origin.
func Launch(opts Options) (*Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--use-fake-ui-for-media-stream",
			"--use-fake-device-for-media-stream",
			"--autoplay-policy=no-user-gesture-required",
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Permissions: []string{"microphone", "camera"},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if opts.PermissionOrigin != "" {
		err = context.GrantPermissions([]string{"microphone", "camera"},
			playwright.BrowserContextGrantPermissionsOptions{
				Origin: playwright.String(opts.PermissionOrigin),
			})
		if err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to grant media permissions: %w", err)
		}
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &Driver{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
	}, nil
}

// Navigate loads the given URL and waits for the DOM to be ready.
func (d *Driver) Navigate(url string, timeout time.Duration) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitForElement blocks until the selector is visible or the timeout
// elapses, in which case the error wraps ErrElementTimeout.
func (d *Driver) WaitForElement(selector string, timeout time.Duration) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	err := d.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("selector %q: %w", selector, ErrElementTimeout)
		}
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return nil
}

// WaitForAnyElement probes a list of candidate selectors and returns the
// first that becomes visible. Platforms ship several variants of the same
// control, so callers pass every known selector.
func (d *Driver) WaitForAnyElement(selectors []string, timeout time.Duration) (string, error) {
	if d.isClosed() {
		return "", ErrDriverClosed
	}
	if len(selectors) == 0 {
		return "", fmt.Errorf("no selectors given: %w", ErrElementTimeout)
	}
	deadline := time.Now().Add(timeout)
	perProbe := timeout / time.Duration(len(selectors)*2)
	if perProbe < 250*time.Millisecond {
		perProbe = 250 * time.Millisecond
	}

	for time.Now().Before(deadline) {
		for _, selector := range selectors {
			err := d.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
				State:   playwright.WaitForSelectorStateVisible,
				Timeout: playwright.Float(float64(perProbe.Milliseconds())),
			})
			if err == nil {
				return selector, nil
			}
			if !isTimeout(err) && !d.isClosed() {
				log.Debugf("Probe for %q failed: %v", selector, err)
			}
		}
	}
	return "", fmt.Errorf("none of %d selectors appeared: %w", len(selectors), ErrElementTimeout)
}

// Type fills the element matched by selector with the given text.
func (d *Driver) Type(selector, text string, timeout time.Duration) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	err := d.page.Locator(selector).First().Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("typing into %q: %w", selector, ErrElementTimeout)
		}
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

// Click clicks the element matched by selector.
func (d *Driver) Click(selector string, timeout time.Duration) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	err := d.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("clicking %q: %w", selector, ErrElementTimeout)
		}
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// ClickIfVisible clicks the element if it is currently visible. Used for
// optional controls and popup dismissal; absence is not an error.
func (d *Driver) ClickIfVisible(selector string) bool {
	if d.isClosed() {
		return false
	}
	locator := d.page.Locator(selector).First()
	visible, err := locator.IsVisible()
	if err != nil || !visible {
		return false
	}
	if err := locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(1000),
	}); err != nil {
		log.Debugf("Optional click on %q failed: %v", selector, err)
		return false
	}
	return true
}

// InjectOnLoad registers a script that runs in every document before any of
// the page's own scripts. Must be called before Navigate for the script to
// wrap entry points ahead of first use.
func (d *Driver) InjectOnLoad(script string) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	return d.page.AddInitScript(playwright.Script{
		Content: playwright.String(script),
	})
}

// SinkFunc receives one structured message pushed out of the page context.
type SinkFunc func(payload string)

// ExposeSink installs a host function callable from the page as
// window.<name>(payload). This is the structured page-to-host channel the
// injected tap pushes audio through.
func (d *Driver) ExposeSink(name string, fn SinkFunc) error {
	if d.isClosed() {
		return ErrDriverClosed
	}
	return d.page.ExposeFunction(name, func(args ...interface{}) interface{} {
		if len(args) == 0 {
			return nil
		}
		payload, ok := args[0].(string)
		if !ok {
			return nil
		}
		fn(payload)
		return nil
	})
}

// OnConsole registers a callback for console output produced by the page.
func (d *Driver) OnConsole(fn func(text string)) {
	if d.isClosed() {
		return
	}
	d.page.OnConsole(func(msg playwright.ConsoleMessage) {
		fn(msg.Text())
	})
}

// OnCrash registers a callback invoked when the underlying browser process
// dies while the session is active.
func (d *Driver) OnCrash(fn func()) {
	if d.isClosed() {
		return
	}
	d.page.OnCrash(func(playwright.Page) {
		fn()
	})
	d.browser.OnDisconnected(func(playwright.Browser) {
		fn()
	})
}

// URL returns the page's current URL, or empty when the driver is closed.
func (d *Driver) URL() string {
	if d.isClosed() {
		return ""
	}
	return d.page.URL()
}

// Close releases the page, context, browser process, and the playwright
// transport. Idempotent: closing an already-closed driver is a no-op. Every
// stage runs even if an earlier one fails so OS resources are released even
// when the page is wedged.
func (d *Driver) Close() error {
	var firstErr error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		if d.page != nil {
			if err := d.page.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if d.context != nil {
			if err := d.context.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if d.browser != nil {
			if err := d.browser.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if d.pw != nil {
			if err := d.pw.Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// playwright reports deadline overruns as TimeoutError in the message text;
// the binding does not export a sentinel we can errors.Is against.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

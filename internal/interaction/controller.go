// Package interaction implements the click-and-wait protocol used to drive
// the portal: retrying clicks, the result-or-dialog race, popup scopes and
// paginated tables.
//
// A Controller belongs to exactly one browser page and is not safe for
// concurrent use; the portal session is driven by a single goroutine.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/metrics"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// Dialog locates the portal's failure dialog.
type Dialog struct {
	Container   browser.Locator
	Message     browser.Locator
	Acknowledge browser.Locator
}

// Options configures a Controller.
type Options struct {
	ElementTimeout time.Duration
	ShortTimeout   time.Duration
	PollInterval   time.Duration
	ClickAttempts  int
	ClickBackoff   time.Duration

	// Overlay is the busy indicator shown while the portal loads.
	Overlay browser.Locator
	// CloseControl matches the close buttons of open popups.
	CloseControl browser.Locator
	FailureDialog Dialog
}

// DefaultOptions returns the timings and DevExtreme locators the portal uses.
func DefaultOptions() Options {
	return Options{
		ElementTimeout: 15 * time.Second,
		ShortTimeout:   5 * time.Second,
		PollInterval:   250 * time.Millisecond,
		ClickAttempts:  3,
		ClickBackoff:   500 * time.Millisecond,
		Overlay:        browser.CSS(".dx-loadpanel-content, .dx-overlay-shader .dx-loadindicator"),
		CloseControl:   browser.CSS(".dx-popup-title .dx-closebutton"),
		FailureDialog: Dialog{
			Container:   browser.CSS(".dx-dialog .dx-overlay-content"),
			Message:     browser.CSS(".dx-dialog-message"),
			Acknowledge: browser.CSS(".dx-dialog-button"),
		},
	}
}

// Controller drives one page.
type Controller struct {
	page   browser.Page
	opts   Options
	log    *logger.Logger
	scopes []scope
}

// New creates a controller. Zero timings in opts fall back to DefaultOptions.
func New(page browser.Page, opts Options, log *logger.Logger) *Controller {
	def := DefaultOptions()
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = def.ElementTimeout
	}
	if opts.ShortTimeout <= 0 {
		opts.ShortTimeout = def.ShortTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.ClickAttempts <= 0 {
		opts.ClickAttempts = def.ClickAttempts
	}
	if opts.ClickBackoff < 0 {
		opts.ClickBackoff = 0
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{page: page, opts: opts, log: log}
}

// Page returns the driven page.
func (c *Controller) Page() browser.Page {
	return c.page
}

// Options returns the effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// Logger returns the controller's logger.
func (c *Controller) Logger() *logger.Logger {
	return c.log
}

// ClickOption adjusts a single Click call.
type ClickOption func(*clickOptions)

type clickOptions struct {
	attempts int
	backoff  time.Duration
	jsFirst  bool
	timeout  time.Duration
}

// WithJSFallback tries the scripted click before the native one. Without
// it only the native click is used and a covered element consumes an
// attempt.
func WithJSFallback() ClickOption {
	return func(o *clickOptions) { o.jsFirst = true }
}

// WithAttempts overrides the number of attempts.
func WithAttempts(n int) ClickOption {
	return func(o *clickOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithBackoff overrides the fixed sleep between attempts.
func WithBackoff(d time.Duration) ClickOption {
	return func(o *clickOptions) { o.backoff = d }
}

// WithTimeout overrides the per-attempt element wait.
func WithTimeout(d time.Duration) ClickOption {
	return func(o *clickOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// resolver produces the element to click for one attempt.
type resolver func(ctx context.Context, timeout time.Duration) (browser.Element, error)

// Click clicks the element matched by loc, retrying transient failures.
// It returns false once the attempts are used up; the caller decides
// whether that is fatal.
func (c *Controller) Click(ctx context.Context, loc browser.Locator, opts ...ClickOption) bool {
	return c.click(ctx, loc.String(), func(ctx context.Context, timeout time.Duration) (browser.Element, error) {
		return c.WaitFor(ctx, loc, timeout)
	}, opts)
}

// ClickWithin clicks the element matched by loc under parent, e.g. a row's
// action button.
func (c *Controller) ClickWithin(ctx context.Context, parent browser.Element, loc browser.Locator, opts ...ClickOption) bool {
	return c.click(ctx, loc.String(), func(ctx context.Context, timeout time.Duration) (browser.Element, error) {
		var found browser.Element
		err := c.WaitUntil(ctx, timeout, func() (bool, error) {
			el, err := parent.Element(loc)
			if errors.Is(err, browser.ErrStale) {
				return false, err
			}
			if err != nil {
				return false, nil
			}
			found = el
			return true, nil
		})
		return found, err
	}, opts)
}

// ClickElement clicks an already resolved element.
func (c *Controller) ClickElement(ctx context.Context, el browser.Element, opts ...ClickOption) bool {
	return c.click(ctx, "element", func(context.Context, time.Duration) (browser.Element, error) {
		if el.Stale() {
			return nil, browser.ErrStale
		}
		return el, nil
	}, opts)
}

func (c *Controller) click(ctx context.Context, target string, resolve resolver, opts []ClickOption) bool {
	co := clickOptions{
		attempts: c.opts.ClickAttempts,
		backoff:  c.opts.ClickBackoff,
		timeout:  c.opts.ElementTimeout,
	}
	for _, opt := range opts {
		opt(&co)
	}

	var lastErr error
	for attempt := 1; attempt <= co.attempts; attempt++ {
		c.WaitOverlayGone(ctx)
		err := c.clickOnce(ctx, resolve, co)
		c.WaitOverlayGone(ctx)

		if err == nil {
			metrics.ClickAttempts.WithLabelValues("success").Inc()
			return true
		}
		metrics.ClickAttempts.WithLabelValues("failure").Inc()
		lastErr = err

		if ctx.Err() != nil {
			c.log.Warn("Click aborted", "target", target, "error", ctx.Err())
			return false
		}
		if !browser.IsTransient(err) {
			c.log.Warn("Click failed", "target", target, "attempt", attempt, "error", err)
			return false
		}

		c.log.Debug("Click attempt failed", "target", target, "attempt", attempt, "max_attempts", co.attempts, "error", err)
		if attempt < co.attempts {
			if err := c.Settle(ctx, co.backoff); err != nil {
				return false
			}
		}
	}

	c.log.Warn("Click failed after retries", "target", target, "attempts", co.attempts, "error", lastErr)
	return false
}

// clickOnce waits for presence, clickability and visibility, scrolls the
// element to the centre of the viewport and clicks it.
func (c *Controller) clickOnce(ctx context.Context, resolve resolver, co clickOptions) error {
	el, err := resolve(ctx, co.timeout)
	if err != nil {
		return err
	}

	err = c.WaitUntil(ctx, co.timeout, func() (bool, error) {
		err := el.Interactable()
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, browser.ErrIntercepted):
			// A covered element can still take the scripted click.
			return co.jsFirst, nil
		case errors.Is(err, browser.ErrNotInteractable):
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return err
	}

	err = c.WaitUntil(ctx, co.timeout, func() (bool, error) {
		return el.Visible()
	})
	if err != nil {
		return err
	}

	if err := el.ScrollIntoCenter(); err != nil {
		return err
	}

	if co.jsFirst {
		err = el.ClickJS()
		if err != nil && !errors.Is(err, browser.ErrStale) {
			err = el.Click()
		}
		return err
	}

	return el.Click()
}

// WaitOverlayGone waits for the busy overlay to disappear. A timeout is
// logged and otherwise ignored.
func (c *Controller) WaitOverlayGone(ctx context.Context) {
	if c.opts.Overlay.IsZero() {
		return
	}
	err := c.WaitUntil(ctx, c.opts.ElementTimeout, func() (bool, error) {
		els, err := c.page.Elements(c.opts.Overlay)
		if err != nil {
			return false, nil
		}
		for _, el := range els {
			if visible, err := el.Visible(); err == nil && visible {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		c.log.Warn("Busy overlay still visible", "error", err)
	}
}

// Find returns the first element matching loc without waiting.
func (c *Controller) Find(loc browser.Locator) (browser.Element, error) {
	return c.page.Element(loc)
}

// FindAll returns every element matching loc without waiting.
func (c *Controller) FindAll(loc browser.Locator) ([]browser.Element, error) {
	return c.page.Elements(loc)
}

// WaitFor waits until loc matches at least one element.
func (c *Controller) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	var found browser.Element
	err := c.WaitUntil(ctx, timeout, func() (bool, error) {
		el, err := c.page.Element(loc)
		if err != nil {
			if errors.Is(err, browser.ErrPageClosed) {
				return false, err
			}
			return false, nil
		}
		found = el
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", loc, err)
	}
	return found, nil
}

// WaitVisible waits until some element matching loc is displayed and
// returns the last such element (the topmost one for stacked popups).
func (c *Controller) WaitVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	var found browser.Element
	err := c.WaitUntil(ctx, timeout, func() (bool, error) {
		el, err := c.lastVisible(loc)
		if err != nil {
			if errors.Is(err, browser.ErrPageClosed) {
				return false, err
			}
			return false, nil
		}
		found = el
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait visible %s: %w", loc, err)
	}
	return found, nil
}

func (c *Controller) lastVisible(loc browser.Locator) (browser.Element, error) {
	els, err := c.page.Elements(loc)
	if err != nil {
		return nil, err
	}
	for i := len(els) - 1; i >= 0; i-- {
		if visible, err := els[i].Visible(); err == nil && visible {
			return els[i], nil
		}
	}
	return nil, browser.NotFound(loc)
}

// Text waits for loc to be visible and returns its trimmed text.
func (c *Controller) Text(ctx context.Context, loc browser.Locator, timeout time.Duration) (string, error) {
	el, err := c.WaitVisible(ctx, loc, timeout)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Input types text into the field matched by loc.
func (c *Controller) Input(ctx context.Context, loc browser.Locator, text string) error {
	el, err := c.WaitVisible(ctx, loc, c.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input into %s: %w", loc, err)
	}
	return nil
}

// Select picks the option with the given label in the select matched by loc.
func (c *Controller) Select(ctx context.Context, loc browser.Locator, label string) error {
	el, err := c.WaitVisible(ctx, loc, c.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if err := el.SelectOption(label); err != nil {
		return fmt.Errorf("select %q in %s: %w", label, loc, err)
	}
	return nil
}

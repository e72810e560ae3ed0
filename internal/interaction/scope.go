package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// ErrScopeNotOpened is returned by WithScope when the opening click fails.
var ErrScopeNotOpened = errors.New("popup did not open")

// ErrNoScope is returned by PopScope on an empty stack.
var ErrNoScope = errors.New("no open popup scope")

type scope struct {
	popup browser.Locator
	el    browser.Element
}

// Depth returns the number of open popup scopes.
func (c *Controller) Depth() int {
	return len(c.scopes)
}

// VisibleCount returns how many elements matching loc are displayed now.
// Take it before the click that opens a popup and pass it to PushScope.
func (c *Controller) VisibleCount(loc browser.Locator) int {
	els, err := c.page.Elements(loc)
	if err != nil {
		return 0
	}
	n := 0
	for _, el := range els {
		if visible, err := el.Visible(); err == nil && visible {
			n++
		}
	}
	return n
}

// PushScope waits until more popups match loc than the before count taken
// ahead of the opening click, and makes the topmost one the current scope.
// Popups already open at that time, such as a parent popup, are never taken
// for the new one.
func (c *Controller) PushScope(ctx context.Context, loc browser.Locator, before int) (browser.Element, error) {
	var el browser.Element
	err := c.WaitUntil(ctx, c.opts.ElementTimeout, func() (bool, error) {
		if c.VisibleCount(loc) <= before {
			return false, nil
		}
		top, err := c.lastVisible(loc)
		if err != nil {
			return false, nil
		}
		el = top
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open scope %s: %w", loc, err)
	}
	c.scopes = append(c.scopes, scope{popup: loc, el: el})
	c.log.Debug("Popup scope opened", "popup", loc.String(), "depth", len(c.scopes))
	return el, nil
}

// PopScope closes the most recently opened popup. The last close control
// found on the page belongs to the topmost popup; the popup counts as
// closed once that control is detached. The scope is dropped from the
// stack even when closing fails.
func (c *Controller) PopScope(ctx context.Context) error {
	if len(c.scopes) == 0 {
		return ErrNoScope
	}
	top := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]

	closeBtn, err := c.lastVisible(c.opts.CloseControl)
	if err != nil {
		return fmt.Errorf("close %s: %w", top.popup, err)
	}

	if !c.ClickElement(ctx, closeBtn, WithJSFallback(), WithTimeout(c.opts.ShortTimeout)) {
		return fmt.Errorf("close %s: close control not clickable", top.popup)
	}

	err = c.WaitUntil(ctx, c.opts.ShortTimeout, func() (bool, error) {
		return closeBtn.Stale(), nil
	})
	if err != nil {
		return fmt.Errorf("close %s: %w", top.popup, err)
	}

	c.log.Debug("Popup scope closed", "popup", top.popup.String(), "depth", len(c.scopes))
	return nil
}

// WithScope runs open, pushes the popup it produced, runs body inside it
// and closes the popup again. Body errors are returned; a failure to close
// is logged and returned only when body succeeded.
func (c *Controller) WithScope(ctx context.Context, open func() bool, popup browser.Locator, body func(browser.Element) error) (err error) {
	before := c.VisibleCount(popup)
	if !open() {
		return ErrScopeNotOpened
	}

	el, err := c.PushScope(ctx, popup, before)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := c.PopScope(ctx); closeErr != nil {
			c.log.Warn("Failed to close popup", "popup", popup.String(), "error", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()

	return body(el)
}

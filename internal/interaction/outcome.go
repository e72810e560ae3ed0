package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// ErrNoOutcome means neither the result nor a failure dialog showed up.
var ErrNoOutcome = errors.New("neither result nor failure dialog appeared")

// Outcome is what a query produced: either the result element or the text
// of the failure dialog the portal raised instead.
type Outcome struct {
	Element     browser.Element
	FailureText string
}

// Failed reports whether the portal answered with a dialog.
func (o Outcome) Failed() bool {
	return o.Element == nil
}

// AwaitOutcome races resultLoc against the failure dialog. Each poll looks
// at the result first, so a result that is already displayed wins; a
// dialog, once seen, is read, dismissed and returned, and the result is
// never consulted again for this call.
func (c *Controller) AwaitOutcome(ctx context.Context, resultLoc browser.Locator, timeout time.Duration) (Outcome, error) {
	var (
		out    Outcome
		dialog browser.Element
	)

	err := c.WaitUntil(ctx, timeout, func() (bool, error) {
		if el, err := c.lastVisible(resultLoc); err == nil {
			out = Outcome{Element: el}
			return true, nil
		} else if errors.Is(err, browser.ErrPageClosed) {
			return false, err
		}

		el, err := c.lastVisible(c.opts.FailureDialog.Container)
		if err != nil {
			return false, nil
		}
		dialog = el
		out = Outcome{FailureText: c.readDialog(el)}
		return true, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrNoOutcome, resultLoc, err)
	}

	if dialog != nil {
		c.dismissDialog(ctx, dialog)
		c.log.Debug("Query answered with dialog", "result", resultLoc.String(), "message", out.FailureText)
	}
	return out, nil
}

func (c *Controller) readDialog(dialog browser.Element) string {
	if !c.opts.FailureDialog.Message.IsZero() {
		if msg, err := dialog.Element(c.opts.FailureDialog.Message); err == nil {
			if text, err := msg.Text(); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	text, _ := dialog.Text()
	return strings.TrimSpace(text)
}

// dismissDialog clicks the dialog's acknowledge control. Best effort: a
// dialog that cannot be dismissed is logged and left for the next overlay
// wait to trip over.
func (c *Controller) dismissDialog(ctx context.Context, dialog browser.Element) {
	if dialog == nil || c.opts.FailureDialog.Acknowledge.IsZero() {
		return
	}
	ok := c.ClickWithin(ctx, dialog, c.opts.FailureDialog.Acknowledge,
		WithJSFallback(), WithTimeout(c.opts.ShortTimeout))
	if !ok {
		c.log.Warn("Failed to dismiss failure dialog")
	}
}

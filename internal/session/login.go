package session

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// Login opens the login page and waits until ready shows up, i.e. until
// the user has finished the e-signature sign-in in the visible browser.
func Login(ctx context.Context, h *Handle, loginURL string, ready browser.Locator, timeout time.Duration) error {
	if err := h.page.Navigate(loginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	if _, err := h.ctl.WaitFor(ctx, ready, timeout); err != nil {
		return fmt.Errorf("login not completed: %w", err)
	}
	h.setLoggedIn(true)
	h.touch()
	return nil
}

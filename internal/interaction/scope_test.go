package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/browser/browsertest"
)

var popupLoc = browser.CSS(".dx-popup-wrapper .dx-overlay-content")

// openPopup adds a popup and its close control to the page. Clicking the
// close control detaches both.
func openPopup(page *browsertest.Page, opts Options, name string, closed *[]string) *browsertest.Element {
	popup := browsertest.NewElement(name, name)
	closeBtn := browsertest.NewElement(name+"-close", "×")
	closeBtn.OnClick = func() {
		*closed = append(*closed, name)
		popup.Detach()
		closeBtn.Detach()
	}
	page.Add(popupLoc, popup)
	page.Add(opts.CloseControl, closeBtn)
	return popup
}

func TestWithScopeOpensAndCloses(t *testing.T) {
	ctl, page := newTestController(t)
	var closed []string

	opener := browsertest.NewElement("detay", "Detay")
	var popup *browsertest.Element
	opener.OnClick = func() { popup = openPopup(page, ctl.Options(), "dosya", &closed) }
	page.Set(buttonLoc, opener)

	var inside browser.Element
	err := ctl.WithScope(context.Background(), func() bool {
		return ctl.Click(context.Background(), buttonLoc)
	}, popupLoc, func(scope browser.Element) error {
		inside = scope
		assert.Equal(t, 1, ctl.Depth())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, popup, inside)
	assert.Equal(t, []string{"dosya"}, closed)
	assert.Equal(t, 0, ctl.Depth())
}

func TestWithScopeClosesInnermostFirst(t *testing.T) {
	ctl, page := newTestController(t)
	var closed []string

	outerBtn := browsertest.NewElement("outer", "Detay")
	outerBtn.OnClick = func() { openPopup(page, ctl.Options(), "tasinmaz", &closed) }
	innerBtn := browsertest.NewElement("inner", "Takyidat")
	innerBtn.OnClick = func() { openPopup(page, ctl.Options(), "hisse", &closed) }
	page.Set(browser.CSS("#outer"), outerBtn)
	page.Set(browser.CSS("#inner"), innerBtn)

	ctx := context.Background()
	err := ctl.WithScope(ctx, func() bool { return ctl.Click(ctx, browser.CSS("#outer")) }, popupLoc,
		func(browser.Element) error {
			return ctl.WithScope(ctx, func() bool { return ctl.Click(ctx, browser.CSS("#inner")) }, popupLoc,
				func(scope browser.Element) error {
					text, _ := scope.Text()
					assert.Equal(t, "hisse", text)
					assert.Equal(t, 2, ctl.Depth())
					return nil
				})
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"hisse", "tasinmaz"}, closed)
	assert.Equal(t, 0, ctl.Depth())
}

func TestWithScopeWaitsForPopupRenderedLate(t *testing.T) {
	ctl, page := newTestController(t)
	var closed []string
	parent := openPopup(page, ctl.Options(), "dosya", &closed)

	opener := browsertest.NewElement("takyidat", "Takyidat")
	opener.OnClick = func() {
		time.AfterFunc(20*time.Millisecond, func() { openPopup(page, ctl.Options(), "takyidat", &closed) })
	}
	page.Set(buttonLoc, opener)

	ctx := context.Background()
	var text string
	err := ctl.WithScope(ctx, func() bool { return ctl.Click(ctx, buttonLoc) }, popupLoc,
		func(scope browser.Element) error {
			text, _ = scope.Text()
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "takyidat", text)
	assert.Equal(t, []string{"takyidat"}, closed)
	assert.False(t, parent.Stale())
}

func TestWithScopeNeverTakesParentForMissingPopup(t *testing.T) {
	ctl, page := newTestController(t)
	var closed []string
	parent := openPopup(page, ctl.Options(), "dosya", &closed)

	page.Set(buttonLoc, browsertest.NewElement("takyidat", "Takyidat"))

	ctx := context.Background()
	ran := false
	err := ctl.WithScope(ctx, func() bool { return ctl.Click(ctx, buttonLoc) }, popupLoc,
		func(browser.Element) error {
			ran = true
			return nil
		})

	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.False(t, ran)
	assert.Empty(t, closed)
	assert.False(t, parent.Stale())
	assert.Equal(t, 0, ctl.Depth())
}

func TestWithScopeReportsFailedOpen(t *testing.T) {
	ctl, _ := newTestController(t)
	ran := false

	err := ctl.WithScope(context.Background(), func() bool { return false }, popupLoc, func(browser.Element) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, err, ErrScopeNotOpened)
	assert.False(t, ran)
	assert.Equal(t, 0, ctl.Depth())
}

func TestWithScopeClosesAfterBodyError(t *testing.T) {
	ctl, page := newTestController(t)
	var closed []string
	opener := browsertest.NewElement("detay", "Detay")
	opener.OnClick = func() { openPopup(page, ctl.Options(), "dosya", &closed) }
	page.Set(buttonLoc, opener)

	boom := errors.New("tablo okunamadı")
	err := ctl.WithScope(context.Background(), func() bool {
		return ctl.Click(context.Background(), buttonLoc)
	}, popupLoc, func(browser.Element) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"dosya"}, closed)
}

func TestPopScopeOnEmptyStack(t *testing.T) {
	ctl, _ := newTestController(t)
	assert.ErrorIs(t, ctl.PopScope(context.Background()), ErrNoScope)
}

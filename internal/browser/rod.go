package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LaunchConfig controls how Chrome is started.
type LaunchConfig struct {
	Headless          bool
	UserAgent         string
	BrowserPath       string
	Devtools          bool
	NavigationTimeout time.Duration
}

// RodBrowser owns one Chrome process.
type RodBrowser struct {
	cfg     LaunchConfig
	browser *rod.Browser
}

// Launch starts Chrome and connects to it.
func Launch(cfg LaunchConfig) (*RodBrowser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")

	if cfg.UserAgent != "" {
		l = l.Set("user-agent", cfg.UserAgent)
	}
	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}
	if cfg.Devtools {
		l = l.Devtools(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}

	return &RodBrowser{cfg: cfg, browser: b}, nil
}

// NewPage opens a new tab.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	// Detach from the request context; the page outlives the HTTP call that opened it.
	page = page.Context(context.Background())

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if _, err := page.SetExtraHeaders([]string{"Accept-Language", "tr-TR,tr;q=0.9"}); err != nil {
		return nil, fmt.Errorf("failed to set headers: %w", err)
	}

	return &rodPage{page: page, navTimeout: b.cfg.NavigationTimeout}, nil
}

// Close shuts the browser down.
func (b *RodBrowser) Close() error {
	return b.browser.Close()
}

type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
}

// WrapPage adapts an existing rod page.
func WrapPage(page *rod.Page, navTimeout time.Duration) Page {
	return &rodPage{page: page, navTimeout: navTimeout}
}

func (p *rodPage) Navigate(url string) error {
	page := p.page.Timeout(p.navTimeout)
	if err := page.Navigate(url); err != nil {
		return classify(err)
	}
	// A slow load is not fatal; the portal keeps rendering after the load event.
	_ = page.WaitLoad()
	return nil
}

func (p *rodPage) Element(loc Locator) (Element, error) {
	els, err := p.Elements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NotFound(loc)
	}
	return els[0], nil
}

func (p *rodPage) Elements(loc Locator) ([]Element, error) {
	var (
		found rod.Elements
		err   error
	)
	if loc.Kind == ByXPath {
		found, err = p.page.ElementsX(loc.Value)
	} else {
		found, err = p.page.Elements(loc.Value)
	}
	if err != nil {
		return nil, classify(err)
	}
	return wrapElements(found), nil
}

func (p *rodPage) Alive() error {
	if _, err := p.page.Timeout(5 * time.Second).Eval(`() => document.readyState`); err != nil {
		return fmt.Errorf("%w: %v", ErrPageClosed, err)
	}
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func wrapElements(found rod.Elements) []Element {
	out := make([]Element, 0, len(found))
	for _, el := range found {
		out = append(out, &rodElement{el: el})
	}
	return out
}

func (e *rodElement) Text() (string, error) {
	text, err := e.el.Text()
	return text, classify(err)
}

func (e *rodElement) HTML() (string, error) {
	html, err := e.el.HTML()
	return html, classify(err)
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	value, err := e.el.Attribute(name)
	if err != nil {
		return "", false, classify(err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e *rodElement) Visible() (bool, error) {
	visible, err := e.el.Visible()
	return visible, classify(err)
}

func (e *rodElement) Interactable() error {
	_, err := e.el.Interactable()
	return classify(err)
}

func (e *rodElement) ScrollIntoCenter() error {
	_, err := e.el.Eval(`() => this.scrollIntoView({block: 'center', inline: 'center'})`)
	return classify(err)
}

func (e *rodElement) Click() error {
	return classify(e.el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) ClickJS() error {
	_, err := e.el.Eval(`() => this.click()`)
	return classify(err)
}

func (e *rodElement) Input(text string) error {
	if err := e.el.SelectAllText(); err != nil {
		return classify(err)
	}
	return classify(e.el.Input(text))
}

func (e *rodElement) SelectOption(label string) error {
	return classify(e.el.Select([]string{label}, true, rod.SelectorTypeText))
}

func (e *rodElement) Stale() bool {
	res, err := e.el.Eval(`() => this.isConnected`)
	if err != nil {
		return true
	}
	return !res.Value.Bool()
}

func (e *rodElement) Element(loc Locator) (Element, error) {
	els, err := e.Elements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NotFound(loc)
	}
	return els[0], nil
}

func (e *rodElement) Elements(loc Locator) ([]Element, error) {
	var (
		found rod.Elements
		err   error
	)
	if loc.Kind == ByXPath {
		found, err = e.el.ElementsX(loc.Value)
	} else {
		found, err = e.el.Elements(loc.Value)
	}
	if err != nil {
		return nil, classify(err)
	}
	return wrapElements(found), nil
}

// classify maps rod and CDP errors onto the package's transient error set.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		notFound    *rod.ElementNotFoundError
		objNotFound *rod.ObjectNotFoundError
		covered     *rod.CoveredError
		noPointer   *rod.NoPointerEventsError
		notInteract *rod.NotInteractableError
		invisible   *rod.InvisibleShapeError
		cdpErr      *cdp.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.As(err, &objNotFound):
		return fmt.Errorf("%w: %v", ErrStale, err)
	case errors.As(err, &covered), errors.As(err, &noPointer):
		return fmt.Errorf("%w: %v", ErrIntercepted, err)
	case errors.As(err, &notInteract), errors.As(err, &invisible):
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	case errors.As(err, &cdpErr) && isDetachedNode(cdpErr.Message):
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}

func isDetachedNode(msg string) bool {
	msg = strings.ToLower(msg)
	for _, needle := range []string{
		"could not find node",
		"no node with given id",
		"cannot find context",
		"node is detached",
		"node with given id does not belong",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

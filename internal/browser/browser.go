// Package browser is the thin driver layer between the interaction protocol
// and a real (rod) or scripted (browsertest) browser page.
//
// Lookups never block: Element and Elements report what is on the page right
// now. Waiting is the caller's job (see interaction.Controller.WaitUntil).
package browser

import (
	"errors"
	"fmt"
)

// LocatorKind tells the driver how to interpret a Locator value.
type LocatorKind int

const (
	ByCSS LocatorKind = iota
	ByXPath
)

// Locator identifies one or more elements on the page.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// CSS builds a CSS selector locator.
func CSS(selector string) Locator {
	return Locator{Kind: ByCSS, Value: selector}
}

// XPath builds an XPath locator.
func XPath(expr string) Locator {
	return Locator{Kind: ByXPath, Value: expr}
}

func (l Locator) String() string {
	if l.Kind == ByXPath {
		return "xpath=" + l.Value
	}
	return "css=" + l.Value
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// Transient driver errors. The interaction layer retries these.
var (
	ErrNotFound        = errors.New("element not found")
	ErrStale           = errors.New("stale element reference")
	ErrNotInteractable = errors.New("element not interactable")
	ErrIntercepted     = errors.New("element click intercepted")
	ErrTimeout         = errors.New("timed out")
)

// ErrPageClosed means the underlying browser target is gone.
var ErrPageClosed = errors.New("page closed")

// IsTransient reports whether err is one of the retryable UI errors.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStale) ||
		errors.Is(err, ErrNotInteractable) ||
		errors.Is(err, ErrIntercepted) ||
		errors.Is(err, ErrTimeout)
}

// NotFound wraps ErrNotFound with the locator that missed.
func NotFound(loc Locator) error {
	return fmt.Errorf("%w: %s", ErrNotFound, loc)
}

// Element is a handle on a DOM node.
type Element interface {
	Text() (string, error)
	HTML() (string, error)
	Attribute(name string) (string, bool, error)
	Visible() (bool, error)
	// Interactable returns ErrNotInteractable or ErrIntercepted when a
	// pointer click would not land on the element.
	Interactable() error
	ScrollIntoCenter() error
	Click() error
	// ClickJS dispatches the click through the page's script context.
	ClickJS() error
	Input(text string) error
	SelectOption(label string) error
	// Stale reports whether the node has been detached from the document.
	Stale() bool

	Element(loc Locator) (Element, error)
	Elements(loc Locator) ([]Element, error)
}

// Page is one browser tab.
type Page interface {
	Navigate(url string) error
	Element(loc Locator) (Element, error)
	Elements(loc Locator) ([]Element, error)
	// Alive touches a trivial page property; an error means the session is dead.
	Alive() error
	Close() error
}

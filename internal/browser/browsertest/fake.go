// Package browsertest provides a scriptable in-memory page for exercising
// the interaction protocol without a browser.
package browsertest

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// Page is a fake browser.Page. Elements are registered per locator; the
// same locator always resolves to the registered list, in order.
type Page struct {
	mu        sync.Mutex
	roots     map[browser.Locator][]*Element
	dead      bool
	closed    bool
	navigated []string

	// OnNavigate runs after every Navigate call.
	OnNavigate func(url string)
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{roots: make(map[browser.Locator][]*Element)}
}

// Set replaces the elements that loc resolves to.
func (p *Page) Set(loc browser.Locator, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots[loc] = els
}

// Add appends elements to what loc resolves to.
func (p *Page) Add(loc browser.Locator, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots[loc] = append(p.roots[loc], els...)
}

// Remove detaches every element loc resolves to.
func (p *Page) Remove(loc browser.Locator) {
	p.mu.Lock()
	els := p.roots[loc]
	delete(p.roots, loc)
	p.mu.Unlock()

	for _, el := range els {
		el.Detach()
	}
}

// Kill makes every subsequent Alive call fail.
func (p *Page) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = true
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Navigated returns the URLs passed to Navigate.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

func (p *Page) Navigate(url string) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return browser.ErrPageClosed
	}
	p.navigated = append(p.navigated, url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *Page) Element(loc browser.Locator) (browser.Element, error) {
	els, err := p.Elements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.NotFound(loc)
	}
	return els[0], nil
}

func (p *Page) Elements(loc browser.Locator) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return nil, browser.ErrPageClosed
	}
	return attached(p.roots[loc]), nil
}

func (p *Page) Alive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead || p.closed {
		return browser.ErrPageClosed
	}
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func attached(els []*Element) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		if !el.isDetached() {
			out = append(out, el)
		}
	}
	return out
}

// Element is a fake DOM node.
type Element struct {
	mu sync.Mutex

	Name      string
	TextValue string
	HTMLValue string
	Attrs     map[string]string
	Hidden    bool
	// HiddenPolls makes Visible report false for that many calls first.
	HiddenPolls int
	// ClickErrs are returned by successive Click/ClickJS calls before clicks succeed.
	ClickErrs []error
	// InteractErrs are returned by successive Interactable calls.
	InteractErrs []error
	// OnClick runs after every successful click.
	OnClick func()

	detached bool
	clicks   int
	jsClicks int
	attempts int
	inputs   []string
	selected []string
	children map[browser.Locator][]*Element
}

// NewElement returns a visible element with the given text.
func NewElement(name, text string) *Element {
	return &Element{Name: name, TextValue: text}
}

// SetChildren registers elements resolvable from e with loc.
func (e *Element) SetChildren(loc browser.Locator, els ...*Element) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.children == nil {
		e.children = make(map[browser.Locator][]*Element)
	}
	e.children[loc] = els
	return e
}

// Detach marks the element as removed from the document.
func (e *Element) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detached = true
}

// SetText replaces the element's text.
func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TextValue = text
}

// SetHidden toggles visibility.
func (e *Element) SetHidden(hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Hidden = hidden
}

// Clicks returns the number of successful native clicks.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// JSClicks returns the number of successful scripted clicks.
func (e *Element) JSClicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jsClicks
}

// ClickAttempts counts every click call, failed or not.
func (e *Element) ClickAttempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Inputs returns the text typed into the element.
func (e *Element) Inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

// Selected returns the option labels selected on the element.
func (e *Element) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selected...)
}

func (e *Element) isDetached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}

func (e *Element) staleErr() error {
	return fmt.Errorf("%w: %s", browser.ErrStale, e.Name)
}

func (e *Element) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return "", e.staleErr()
	}
	return e.TextValue, nil
}

func (e *Element) HTML() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return "", e.staleErr()
	}
	if e.HTMLValue != "" {
		return e.HTMLValue, nil
	}
	return "<div>" + html.EscapeString(e.TextValue) + "</div>", nil
}

func (e *Element) Attribute(name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return "", false, e.staleErr()
	}
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Visible() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return false, e.staleErr()
	}
	if e.HiddenPolls > 0 {
		e.HiddenPolls--
		return false, nil
	}
	return !e.Hidden, nil
}

func (e *Element) Interactable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return e.staleErr()
	}
	if len(e.InteractErrs) > 0 {
		err := e.InteractErrs[0]
		e.InteractErrs = e.InteractErrs[1:]
		return err
	}
	return nil
}

func (e *Element) ScrollIntoCenter() error {
	if e.isDetached() {
		return e.staleErr()
	}
	return nil
}

func (e *Element) Click() error {
	return e.click(false)
}

func (e *Element) ClickJS() error {
	return e.click(true)
}

func (e *Element) click(js bool) error {
	e.mu.Lock()
	e.attempts++
	if e.detached {
		e.mu.Unlock()
		return e.staleErr()
	}
	if len(e.ClickErrs) > 0 {
		err := e.ClickErrs[0]
		e.ClickErrs = e.ClickErrs[1:]
		e.mu.Unlock()
		return err
	}
	if js {
		e.jsClicks++
	} else {
		e.clicks++
	}
	hook := e.OnClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Input(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return e.staleErr()
	}
	e.inputs = append(e.inputs, text)
	return nil
}

func (e *Element) SelectOption(label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return e.staleErr()
	}
	e.selected = append(e.selected, label)
	return nil
}

func (e *Element) Stale() bool {
	return e.isDetached()
}

func (e *Element) Element(loc browser.Locator) (browser.Element, error) {
	els, err := e.Elements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.NotFound(loc)
	}
	return els[0], nil
}

func (e *Element) Elements(loc browser.Locator) ([]browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return nil, e.staleErr()
	}
	return attached(e.children[loc]), nil
}

// TableHTML renders rows as a <table> with one <tbody>.
func TableHTML(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<table><tbody>")
	for _, row := range rows {
		b.WriteString(RowHTML(row...))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

// RowHTML renders one <tr>.
func RowHTML(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		b.WriteString("<td>")
		b.WriteString(html.EscapeString(c))
		b.WriteString("</td>")
	}
	b.WriteString("</tr>")
	return b.String()
}

// Row returns an element whose HTML is a single table row.
func Row(name string, cells ...string) *Element {
	return &Element{Name: name, TextValue: strings.Join(cells, " "), HTMLValue: RowHTML(cells...)}
}

// Table returns an element whose HTML is a table with the given rows.
func Table(name string, rows ...[]string) *Element {
	return &Element{Name: name, HTMLValue: TableHTML(rows...)}
}

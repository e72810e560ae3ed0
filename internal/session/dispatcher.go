package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/persistence"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// ErrInvalidCaseNumber is returned for case numbers not shaped "2024/141".
var ErrInvalidCaseNumber = errors.New("invalid case number")

var caseNumberPattern = regexp.MustCompile(`^\s*(\d{4})\s*/\s*(\d+)\s*$`)

// ParseCaseNumber splits "2024/141" into year and sequence number.
func ParseCaseNumber(s string) (year, seq string, err error) {
	m := caseNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidCaseNumber, s)
	}
	return m[1], m[2], nil
}

// Locators are the portal controls the query flow goes through before the
// executors take over.
type Locators struct {
	Menu         browser.Locator
	SearchMenu   browser.Locator
	YearInput    browser.Locator
	NumberInput  browser.Locator
	SearchButton browser.Locator
	// ResultDetail opens the detail popup of the first matching case.
	ResultDetail browser.Locator
	CasePopup    browser.Locator
	// Office is read from the detail popup when present.
	Office       browser.Locator
	PartiesTab   browser.Locator
	PartySelect  browser.Locator
	PartyOptions browser.Locator
}

// DefaultLocators returns the portal's current controls.
func DefaultLocators() Locators {
	return Locators{
		Menu:         browser.XPath(`//div[contains(@class,"dx-menu-item")][normalize-space(.)="Dosya İşlemleri"]`),
		SearchMenu:   browser.XPath(`//div[contains(@class,"dx-menu-item")][normalize-space(.)="Dosya Sorgulama"]`),
		YearInput:    browser.CSS("#dosyaYil input"),
		NumberInput:  browser.CSS("#dosyaSiraNo input"),
		SearchButton: browser.CSS("#dosyaSorgulaBtn"),
		ResultDetail: browser.CSS("#dosyaListesi tr.dx-data-row .dx-link-detay"),
		CasePopup:    sorgu.PopupContent,
		Office:       browser.CSS("#dosyaDetay .birim-adi"),
		PartiesTab:   browser.XPath(`//div[contains(@class,"dx-tab")][normalize-space(.)="Taraf Bilgileri"]`),
		PartySelect:  browser.CSS("#tarafSecimi .dx-dropdowneditor-button"),
		PartyOptions: browser.CSS(".dx-dropdowneditor-overlay .dx-list-item"),
	}
}

// Persister receives the documents a query run produced.
type Persister interface {
	Persist(ctx context.Context, docs ...persistence.Document) bool
}

// PartyReport is what the enabled executors returned for one party.
type PartyReport struct {
	Label   string         `json:"label"`
	Results []sorgu.Result `json:"results"`
}

// Report is the outcome of one PerformQuery call. Results are keyed by
// (case number, party label, query type).
type Report struct {
	CaseNumber string        `json:"case_number"`
	Office     string        `json:"office,omitempty"`
	Parties    []PartyReport `json:"parties"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Persisted  bool          `json:"persisted"`
}

// Results counts the results across parties.
func (r *Report) Results() int {
	n := 0
	for _, p := range r.Parties {
		n += len(p.Results)
	}
	return n
}

// Document converts the report for the persistence layer.
func (r *Report) Document() persistence.Document {
	doc := persistence.Document{CaseNumber: r.CaseNumber, Office: r.Office}
	for _, p := range r.Parties {
		party := persistence.Party{Label: p.Label}
		for _, res := range p.Results {
			party.Results = append(party.Results, persistence.Record{
				Type:    string(res.Type),
				Status:  string(res.Status),
				Payload: res.Payload,
			})
		}
		doc.Parties = append(doc.Parties, party)
	}
	return doc
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Locators Locators
	// PartyInterval is the pause before re-opening the party dropdown.
	PartyInterval time.Duration
}

// Dispatcher opens a case, walks its parties and runs the enabled query
// executors for each of them.
type Dispatcher struct {
	registry *sorgu.Registry
	store    Persister
	opts     DispatcherOptions
	log      *logger.Logger
}

func NewDispatcher(registry *sorgu.Registry, store Persister, opts DispatcherOptions, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Locators == (Locators{}) {
		opts.Locators = DefaultLocators()
	}
	return &Dispatcher{registry: registry, store: store, opts: opts, log: log}
}

// PerformQuery runs the enabled query types for every party of caseNumber
// and persists the results. Errors are returned only when the case or its
// parties cannot be reached; executor failures end up in the report.
func (d *Dispatcher) PerformQuery(ctx context.Context, h *Handle, caseNumber string, enabled map[sorgu.Type]bool) (*Report, error) {
	year, seq, err := ParseCaseNumber(caseNumber)
	if err != nil {
		return nil, err
	}
	caseNumber = year + "/" + seq

	types := d.enabledTypes(enabled)
	if len(types) == 0 {
		return nil, errors.New("no query type enabled")
	}

	ctl := h.Controller()
	log := d.log.With("case", caseNumber)
	report := &Report{CaseNumber: caseNumber, StartedAt: time.Now()}

	if err := d.openCase(ctx, ctl, year, seq); err != nil {
		return nil, err
	}
	defer func() {
		if err := ctl.PopScope(ctx); err != nil {
			log.Warn("Failed to close case popup", "error", err)
		}
	}()

	if office, err := ctl.Text(ctx, d.opts.Locators.Office, ctl.Options().ShortTimeout); err == nil {
		report.Office = office
	}

	if !ctl.Click(ctx, d.opts.Locators.PartiesTab) {
		return nil, fmt.Errorf("failed to open party tab of %s", caseNumber)
	}

	labels, err := d.partyLabels(ctx, ctl)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties of %s: %w", caseNumber, err)
	}
	log.Info("Parties found", "count", len(labels), "queries", len(types))

	for i, label := range labels {
		if ctx.Err() != nil {
			log.Warn("Query run cancelled", "error", ctx.Err())
			break
		}
		if i > 0 {
			if err := ctl.Settle(ctx, d.opts.PartyInterval); err != nil {
				break
			}
		}

		if err := d.selectParty(ctx, ctl, i, i > 0); err != nil {
			log.Warn("Failed to select party", "party", label, "error", err)
			continue
		}

		party := PartyReport{Label: label}
		for _, t := range types {
			party.Results = append(party.Results, d.run(ctx, ctl, t, log.With("party", label)))
		}
		report.Parties = append(report.Parties, party)
	}

	report.FinishedAt = time.Now()
	if d.store != nil {
		report.Persisted = d.store.Persist(ctx, report.Document())
	}
	log.Info("Query run finished",
		"parties", len(report.Parties),
		"results", report.Results(),
		"persisted", report.Persisted,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// PerformBatch runs PerformQuery for each case in turn on one session. A
// failing case is logged and skipped.
func (d *Dispatcher) PerformBatch(ctx context.Context, h *Handle, caseNumbers []string, enabled map[sorgu.Type]bool) ([]*Report, map[string]error) {
	var reports []*Report
	failures := make(map[string]error)
	for _, cn := range caseNumbers {
		if ctx.Err() != nil {
			failures[cn] = ctx.Err()
			continue
		}
		report, err := d.PerformQuery(ctx, h, cn, enabled)
		if err != nil {
			d.log.Error("Case query failed", "case", cn, "error", err)
			failures[cn] = err
			continue
		}
		reports = append(reports, report)
	}
	return reports, failures
}

func (d *Dispatcher) enabledTypes(enabled map[sorgu.Type]bool) []sorgu.Type {
	known := make(map[sorgu.Type]bool)
	var types []sorgu.Type
	for _, t := range d.registry.Types() {
		known[t] = true
		if enabled[t] {
			types = append(types, t)
		}
	}
	for t, on := range enabled {
		if on && !known[t] {
			d.log.Warn("Ignoring unknown query type", "query", t)
		}
	}
	return types
}

// openCase searches for the case and opens its detail popup as a scope.
func (d *Dispatcher) openCase(ctx context.Context, ctl *interaction.Controller, year, seq string) error {
	loc := d.opts.Locators
	if !ctl.Click(ctx, loc.Menu) {
		return errors.New("failed to open case menu")
	}
	if !ctl.Click(ctx, loc.SearchMenu) {
		return errors.New("failed to open case search")
	}
	if err := ctl.Input(ctx, loc.YearInput, year); err != nil {
		return fmt.Errorf("failed to enter case year: %w", err)
	}
	if err := ctl.Input(ctx, loc.NumberInput, seq); err != nil {
		return fmt.Errorf("failed to enter case number: %w", err)
	}
	if !ctl.Click(ctx, loc.SearchButton, interaction.WithJSFallback()) {
		return errors.New("failed to run case search")
	}
	visible := ctl.VisibleCount(loc.CasePopup)
	if !ctl.Click(ctx, loc.ResultDetail) {
		return fmt.Errorf("case %s/%s not found", year, seq)
	}
	if _, err := ctl.PushScope(ctx, loc.CasePopup, visible); err != nil {
		return fmt.Errorf("case detail did not open: %w", err)
	}
	return nil
}

// partyLabels opens the party dropdown and reads its entries.
func (d *Dispatcher) partyLabels(ctx context.Context, ctl *interaction.Controller) ([]string, error) {
	options, err := d.openDropdown(ctx, ctl)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(options))
	for _, o := range options {
		text, err := o.Text()
		if err != nil {
			return nil, err
		}
		if text = strings.TrimSpace(text); text != "" {
			labels = append(labels, text)
		}
	}
	if len(labels) == 0 {
		return nil, errors.New("party list is empty")
	}
	return labels, nil
}

// selectParty picks the i-th entry. The dropdown is already open for the
// first party; later parties re-open it.
func (d *Dispatcher) selectParty(ctx context.Context, ctl *interaction.Controller, i int, reopen bool) error {
	var (
		options []browser.Element
		err     error
	)
	if reopen {
		options, err = d.openDropdown(ctx, ctl)
	} else {
		options, err = ctl.FindAll(d.opts.Locators.PartyOptions)
	}
	if err != nil {
		return err
	}
	if i >= len(options) {
		return fmt.Errorf("party %d no longer listed", i)
	}
	if !ctl.ClickElement(ctx, options[i], interaction.WithJSFallback()) {
		return fmt.Errorf("party %d not clickable", i)
	}
	return nil
}

func (d *Dispatcher) openDropdown(ctx context.Context, ctl *interaction.Controller) ([]browser.Element, error) {
	if !ctl.Click(ctx, d.opts.Locators.PartySelect) {
		return nil, errors.New("party dropdown not clickable")
	}
	if _, err := ctl.WaitVisible(ctx, d.opts.Locators.PartyOptions, ctl.Options().ElementTimeout); err != nil {
		return nil, err
	}
	return ctl.FindAll(d.opts.Locators.PartyOptions)
}

// run executes one query type. A panicking executor is recorded as failed.
func (d *Dispatcher) run(ctx context.Context, ctl *interaction.Controller, t sorgu.Type, log *logger.Logger) (res sorgu.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Query executor panicked", "query", t, "panic", r)
			res = d.registry.Failed(t, fmt.Sprint(r))
		}
	}()

	res, err := d.registry.Run(ctx, ctl, t)
	if err != nil {
		log.Error("Query could not run", "query", t, "error", err)
		return d.registry.Failed(t, err.Error())
	}
	if res.Status == sorgu.StatusFailed {
		log.Warn("Query failed", "query", t, "message", res.Message)
	}
	return res
}

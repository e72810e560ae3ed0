// Package extractor reads the portal's case list and, optionally, every
// case's detail popup into persistence documents.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/persistence"
	"github.com/JustJay7/uyap-extractor/internal/session"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// Locators are the controls of the case list and the case detail popup.
// Rows is resolved within Table, RowDetail within a row, and DetailTable
// and PartyTable within the popup.
type Locators struct {
	Menu        browser.Locator
	ListMenu    browser.Locator
	ListButton  browser.Locator
	Table       browser.Locator
	PageInfo    browser.Locator
	Rows        browser.Locator
	RowDetail   browser.Locator
	CasePopup   browser.Locator
	DetailTable browser.Locator
	PartyTable  browser.Locator
}

// DefaultLocators returns the portal's current controls.
func DefaultLocators() Locators {
	return Locators{
		Menu:        session.DefaultLocators().Menu,
		ListMenu:    browser.XPath(`//div[contains(@class,"dx-menu-item")][normalize-space(.)="Dosya Listesi"]`),
		ListButton:  browser.CSS("#dosyaListeleBtn"),
		Table:       browser.CSS("#dosyaListesi .dx-datagrid-rowsview table"),
		PageInfo:    browser.CSS("#dosyaListesi .dx-info"),
		Rows:        browser.CSS("tr.dx-data-row"),
		RowDetail:   browser.CSS(".dx-link-detay"),
		CasePopup:   sorgu.PopupContent,
		DetailTable: browser.CSS(".dosya-bilgileri table"),
		PartyTable:  browser.CSS(".taraf-bilgileri table"),
	}
}

// Persister receives extracted documents.
type Persister interface {
	Persist(ctx context.Context, docs ...persistence.Document) bool
}

// Extraction is the outcome of ExtractData.
type Extraction struct {
	Documents []persistence.Document `json:"-"`
	Files     int                    `json:"files"`
	Detailed  int                    `json:"detailed"`
	// Failed lists the case numbers whose detail popup could not be read.
	Failed    []string      `json:"failed,omitempty"`
	Persisted bool          `json:"persisted"`
	Duration  time.Duration `json:"duration"`
}

type Extractor struct {
	store Persister
	loc   Locators
	log   *logger.Logger
}

// New returns an Extractor. A zero Locators uses DefaultLocators.
func New(store Persister, loc Locators, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	if loc == (Locators{}) {
		loc = DefaultLocators()
	}
	return &Extractor{store: store, loc: loc, log: log}
}

// SearchFiles lists every case in the case list, across all pages.
func (e *Extractor) SearchFiles(ctx context.Context, ctl *interaction.Controller) ([]database.File, error) {
	files, err := listPages(ctx, ctl, e, func(table browser.Element) ([]database.File, error) {
		html, err := table.HTML()
		if err != nil {
			return nil, err
		}
		return parseFiles(html)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("Case list read", "files", len(files))
	return files, nil
}

// ExtractData lists every case, reads each one's detail popup and
// persists the result. A case whose popup fails keeps its list data.
func (e *Extractor) ExtractData(ctx context.Context, ctl *interaction.Controller) (*Extraction, error) {
	start := time.Now()
	ex := &Extraction{}

	docs, err := listPages(ctx, ctl, e, func(table browser.Element) ([]persistence.Document, error) {
		return e.extractPage(ctx, ctl, table, ex)
	})
	if err != nil {
		return nil, err
	}

	ex.Documents = docs
	ex.Files = len(docs)
	if e.store != nil && len(docs) > 0 {
		ex.Persisted = e.store.Persist(ctx, docs...)
	}
	ex.Duration = time.Since(start)

	e.log.Info("Case extraction finished",
		"files", ex.Files,
		"detailed", ex.Detailed,
		"failed", len(ex.Failed),
		"persisted", ex.Persisted,
		"duration", ex.Duration,
	)
	return ex, nil
}

// listPages opens the case list and walks its pages. A "no records"
// dialog yields an empty list.
func listPages[T any](ctx context.Context, ctl *interaction.Controller, e *Extractor, read func(browser.Element) ([]T, error)) ([]T, error) {
	if !ctl.Click(ctx, e.loc.Menu) {
		return nil, errors.New("failed to open case menu")
	}
	if !ctl.Click(ctx, e.loc.ListMenu) {
		return nil, errors.New("failed to open case list")
	}
	if !ctl.Click(ctx, e.loc.ListButton, interaction.WithJSFallback()) {
		return nil, errors.New("failed to list cases")
	}

	out, err := ctl.AwaitOutcome(ctx, e.loc.Table, ctl.Options().ElementTimeout)
	if err != nil {
		return nil, fmt.Errorf("case list did not load: %w", err)
	}
	if out.Failed() {
		e.log.Info("Portal listed no cases", "message", out.FailureText)
		return nil, nil
	}

	return interaction.WalkPages(ctx, ctl, interaction.PageWalk{
		Table:    e.loc.Table,
		PageInfo: e.loc.PageInfo,
	}, read), nil
}

// extractPage reads every row of one list page. Rows are re-resolved by
// index since the grid re-renders after a popup closes.
func (e *Extractor) extractPage(ctx context.Context, ctl *interaction.Controller, table browser.Element, ex *Extraction) ([]persistence.Document, error) {
	initial, err := table.Elements(e.loc.Rows)
	if err != nil {
		return nil, err
	}

	docs := make([]persistence.Document, 0, len(initial))
	for i := range initial {
		if ctx.Err() != nil {
			return docs, nil
		}
		rowEl := initial[i]
		if fresh, err := table.Elements(e.loc.Rows); err == nil && i < len(fresh) {
			rowEl = fresh[i]
		}

		html, err := rowEl.HTML()
		if err != nil {
			e.log.Warn("Failed to read case row", "row", i, "error", err)
			continue
		}
		files, err := parseFiles(html)
		if err != nil || len(files) == 0 {
			continue
		}

		doc, err := e.extractCase(ctx, ctl, rowEl, files[0])
		if err != nil {
			e.log.Warn("Failed to read case detail", "case", files[0].DosyaNo, "error", err)
			ex.Failed = append(ex.Failed, files[0].DosyaNo)
		} else {
			ex.Detailed++
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// extractCase opens the row's detail popup and reads the case's financials
// and parties. The returned document always carries the list data.
func (e *Extractor) extractCase(ctx context.Context, ctl *interaction.Controller, rowEl browser.Element, f database.File) (persistence.Document, error) {
	var (
		detail  *database.FileDetail
		parties Parties
		read    bool
	)

	err := ctl.WithScope(ctx, func() bool {
		if _, err := rowEl.Element(e.loc.RowDetail); err != nil {
			return false
		}
		return ctl.ClickWithin(ctx, rowEl, e.loc.RowDetail,
			interaction.WithJSFallback(), interaction.WithTimeout(ctl.Options().ShortTimeout))
	}, e.loc.CasePopup, func(popup browser.Element) error {
		short := ctl.Options().ShortTimeout

		html, err := e.popupHTML(ctx, ctl, popup, e.loc.DetailTable, short)
		if err != nil {
			return fmt.Errorf("detail table: %w", err)
		}
		d, ok, err := parseDetail(html)
		if err != nil {
			return err
		}
		if ok {
			detail = &d
		}

		// Cases without parties listed are valid; the table is optional.
		if html, err := e.popupHTML(ctx, ctl, popup, e.loc.PartyTable, short); err == nil {
			if parties, err = parseParties(html); err != nil {
				return err
			}
		}
		read = true
		return nil
	})
	if err != nil && read {
		e.log.Warn("Case popup not closed after read", "case", f.DosyaNo, "error", err)
		err = nil
	}

	if parties.Creditor != "" && f.AlacakliAdi == "" {
		f.AlacakliAdi = parties.Creditor
	}
	if f.BorcluAdi == "" && len(parties.Debtors) > 0 {
		f.BorcluAdi = parties.Debtors[0].Ad
	}
	if detail != nil && detail.AlacakliVekili == "" {
		detail.AlacakliVekili = parties.CreditorLawyer
	}

	return persistence.Document{
		CaseNumber: f.DosyaNo,
		Office:     f.IcraMudurlugu,
		Case:       &f,
		Detail:     detail,
		Debtors:    parties.Debtors,
	}, err
}

// popupHTML waits for loc inside popup and returns its HTML.
func (e *Extractor) popupHTML(ctx context.Context, ctl *interaction.Controller, popup browser.Element, loc browser.Locator, timeout time.Duration) (string, error) {
	var el browser.Element
	err := ctl.WaitUntil(ctx, timeout, func() (bool, error) {
		found, err := popup.Element(loc)
		if err != nil {
			if errors.Is(err, browser.ErrStale) {
				return false, err
			}
			return false, nil
		}
		el = found
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return el.HTML()
}

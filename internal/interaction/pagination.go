package interaction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// DefaultPageLabel is the accessible label of the pager's page buttons.
const DefaultPageLabel = "Page %d"

var pageInfoPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)(?:\s*\((\d+))?`)

// PageInfo is the parsed pager caption, e.g. "Page 1 / 3 (50 Kayıt)".
type PageInfo struct {
	Current int
	Total   int
	Records int
}

// ParsePageInfo extracts the current page, the page count and the record
// count from the pager caption.
func ParsePageInfo(text string) (PageInfo, bool) {
	m := pageInfoPattern.FindStringSubmatch(text)
	if m == nil {
		return PageInfo{}, false
	}
	current, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	if total < 1 {
		return PageInfo{}, false
	}
	info := PageInfo{Current: current, Total: total}
	if m[3] != "" {
		info.Records, _ = strconv.Atoi(m[3])
	}
	return info, true
}

// PageWalk describes a paginated table.
type PageWalk struct {
	Table    browser.Locator
	PageInfo browser.Locator
	// LabelFormat renders the accessible label of a page button; defaults
	// to DefaultPageLabel.
	LabelFormat string
}

func (w PageWalk) pageButton(page int) browser.Locator {
	format := w.LabelFormat
	if format == "" {
		format = DefaultPageLabel
	}
	label := fmt.Sprintf(format, page)
	return browser.CSS(fmt.Sprintf(`[aria-label="%s"]`, strings.ReplaceAll(label, `"`, `\"`)))
}

// WalkPages reads every page of a paginated table. read is called once per
// page with the freshly resolved table. The walk stops early, keeping what
// it has, when a page cannot be read or the next page button is missing.
func WalkPages[T any](ctx context.Context, c *Controller, w PageWalk, read func(table browser.Element) ([]T, error)) []T {
	var acc []T

	table, err := c.WaitVisible(ctx, w.Table, c.opts.ElementTimeout)
	if err != nil {
		c.log.Warn("Paginated table not found", "table", w.Table.String(), "error", err)
		return acc
	}

	total := 1
	if text, err := c.Text(ctx, w.PageInfo, c.opts.ShortTimeout); err == nil {
		if info, ok := ParsePageInfo(text); ok {
			total = info.Total
			c.log.Debug("Pagination detected", "pages", info.Total, "records", info.Records)
		}
	} else {
		c.log.Debug("No page info, reading a single page", "error", err)
	}

	for page := 1; page <= total; page++ {
		rows, err := read(table)
		if err != nil {
			c.log.Warn("Failed to read page", "page", page, "error", err)
			return acc
		}
		acc = append(acc, rows...)

		if page == total {
			break
		}

		next := w.pageButton(page + 1)
		if _, err := c.WaitFor(ctx, next, c.opts.ShortTimeout); err != nil {
			c.log.Warn("Next page control not found", "page", page+1, "error", err)
			return acc
		}
		if !c.Click(ctx, next) {
			c.log.Warn("Failed to open next page", "page", page+1)
			return acc
		}

		c.waitPageTurn(ctx, w, table, page+1)

		table, err = c.WaitVisible(ctx, w.Table, c.opts.ElementTimeout)
		if err != nil {
			c.log.Warn("Table lost after page change", "page", page+1, "error", err)
			return acc
		}
	}

	return acc
}

// waitPageTurn waits until the pager reports the wanted page or the old
// table node has been replaced.
func (c *Controller) waitPageTurn(ctx context.Context, w PageWalk, old browser.Element, want int) {
	err := c.WaitUntil(ctx, c.opts.ShortTimeout, func() (bool, error) {
		if old.Stale() {
			return true, nil
		}
		el, err := c.page.Element(w.PageInfo)
		if err != nil {
			return false, nil
		}
		text, err := el.Text()
		if err != nil {
			return false, nil
		}
		info, ok := ParsePageInfo(text)
		return ok && info.Current == want, nil
	})
	if err != nil {
		c.log.Debug("Page turn not confirmed", "page", want, "error", err)
	}
}

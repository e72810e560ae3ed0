package sorgu

import (
	"context"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
)

// TableQuery reads a result table into rows keyed by column.
type TableQuery struct {
	Definition
	Columns []Column
	// Expand, when set, widens a collapsed result table before reading.
	Expand browser.Locator
	// PageInfo, when set, marks the table as paginated; every page is read.
	PageInfo browser.Locator
}

func (q *TableQuery) Type() Type { return q.Definition.Type }
func (q *TableQuery) Empty() any { return []Row{} }

func (q *TableQuery) Execute(ctx context.Context, ctl *interaction.Controller) Result {
	out, res := q.trigger(ctx, ctl, []Row{})
	if res != nil {
		return *res
	}
	table := out.Element

	if !q.Expand.IsZero() {
		short := ctl.Options().ShortTimeout
		if ctl.Click(ctx, q.Expand, interaction.WithAttempts(1), interaction.WithTimeout(short)) {
			if el, err := ctl.WaitVisible(ctx, q.Definition.Result, short); err == nil {
				table = el
			}
		} else {
			ctl.Logger().Debug("Expand control not available, reading collapsed table", "query", q.Definition.Type)
		}
	}

	var rows []Row
	if !q.PageInfo.IsZero() {
		rows = interaction.WalkPages(ctx, ctl, interaction.PageWalk{
			Table:    q.Definition.Result,
			PageInfo: q.PageInfo,
		}, q.read)
	} else {
		var err error
		rows, err = q.read(table)
		if err != nil {
			ctl.Logger().Warn("Failed to read result table", "query", q.Definition.Type, "error", err)
			return *q.failed([]Row{}, err.Error())
		}
	}

	if rows == nil {
		rows = []Row{}
	}
	ctl.Logger().Debug("Table query read", "query", q.Definition.Type, "rows", len(rows))
	return q.data(rows)
}

func (q *TableQuery) read(table browser.Element) ([]Row, error) {
	html, err := table.HTML()
	if err != nil {
		return nil, err
	}
	return parseRows(html, q.Columns)
}

package sorgu

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
)

// Level is one table of a drill-down. When Child is set, every row's Action
// opens Popup, and the rows read there are stored under ChildKey.
type Level struct {
	Rows    browser.Locator
	Columns []Column

	Action   browser.Locator
	Popup    browser.Locator
	ChildKey string
	Child    *Level
}

// DrillDownQuery reads a table whose rows open popups with further tables.
// Popups are closed innermost first. A row whose popup cannot be opened or
// read gets an empty child list; the remaining rows are still read.
type DrillDownQuery struct {
	Definition
	Root Level
}

func (q *DrillDownQuery) Type() Type { return q.Definition.Type }
func (q *DrillDownQuery) Empty() any { return []Row{} }

func (q *DrillDownQuery) Execute(ctx context.Context, ctl *interaction.Controller) Result {
	out, res := q.trigger(ctx, ctl, []Row{})
	if res != nil {
		return *res
	}

	rows, err := q.readLevel(ctx, ctl, out.Element, &q.Root, 0)
	if err != nil {
		ctl.Logger().Warn("Failed to read drill-down table", "query", q.Definition.Type, "error", err)
		return *q.failed([]Row{}, err.Error())
	}
	ctl.Logger().Debug("Drill-down query read", "query", q.Definition.Type, "rows", len(rows))
	return q.data(rows)
}

// readLevel reads the rows of lvl under container and descends into each
// row's popup. Rows are re-resolved by index before use; the portal
// re-renders a grid after one of its popups closes.
func (q *DrillDownQuery) readLevel(ctx context.Context, ctl *interaction.Controller, container browser.Element, lvl *Level, depth int) ([]Row, error) {
	if depth > 0 {
		// Popup grids fill in after the popup itself is shown.
		_ = ctl.WaitUntil(ctx, ctl.Options().ShortTimeout, func() (bool, error) {
			els, err := container.Elements(lvl.Rows)
			return err == nil && len(els) > 0, nil
		})
	}

	initial, err := container.Elements(lvl.Rows)
	if err != nil {
		return nil, err
	}
	q.trace(ctl, tableRead(depth), depth, -1)

	rows := make([]Row, 0, len(initial))
	for i := range initial {
		rowEl := initial[i]
		if fresh, err := container.Elements(lvl.Rows); err == nil && i < len(fresh) {
			rowEl = fresh[i]
		}

		html, err := rowEl.HTML()
		if err != nil {
			ctl.Logger().Warn("Failed to read drill-down row", "query", q.Definition.Type, "depth", depth, "row", i, "error", err)
			continue
		}
		cells, err := TableCells(html, false)
		if err != nil || len(cells) == 0 {
			continue
		}
		row, ok := toRow(cells[0], lvl.Columns)
		if !ok {
			continue
		}

		if lvl.Child != nil {
			row[lvl.ChildKey] = q.drill(ctx, ctl, rowEl, lvl, depth, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// drill opens the row's popup, reads the child level and closes it again.
func (q *DrillDownQuery) drill(ctx context.Context, ctl *interaction.Controller, rowEl browser.Element, lvl *Level, depth, index int) []Row {
	var (
		children []Row
		read     bool
	)

	err := ctl.WithScope(ctx, func() bool {
		// Rows are fully rendered by now; a row without the link has no popup.
		if _, err := rowEl.Element(lvl.Action); err != nil {
			return false
		}
		return ctl.ClickWithin(ctx, rowEl, lvl.Action,
			interaction.WithJSFallback(), interaction.WithTimeout(ctl.Options().ShortTimeout))
	}, lvl.Popup, func(popup browser.Element) error {
		q.trace(ctl, rowOpened(depth), depth, index)
		rows, err := q.readLevel(ctx, ctl, popup, lvl.Child, depth+1)
		if err != nil {
			return err
		}
		children, read = rows, true
		return nil
	})

	switch {
	case err == nil:
		q.trace(ctl, rowClosed(depth), depth, index)
		return children
	case read:
		// The rows are complete; only the close failed.
		ctl.Logger().Warn("Popup not closed after read", "query", q.Definition.Type, "depth", depth, "row", index, "error", err)
		return children
	case errors.Is(err, interaction.ErrScopeNotOpened):
		ctl.Logger().Warn("Row popup did not open", "query", q.Definition.Type, "depth", depth, "row", index, "key", lvl.ChildKey)
	default:
		ctl.Logger().Warn("Row popup failed", "query", q.Definition.Type, "depth", depth, "row", index, "key", lvl.ChildKey, "error", err)
	}
	return []Row{}
}

func (q *DrillDownQuery) trace(ctl *interaction.Controller, state string, depth, row int) {
	ctl.Logger().Debug("Drill-down state", "query", q.Definition.Type, "state", state, "depth", depth, "row", row)
}

var levelNames = []string{"Outer", "Inner", "Deep"}

func levelName(depth int) string {
	if depth < len(levelNames) {
		return levelNames[depth]
	}
	return fmt.Sprintf("Level%d", depth)
}

func tableRead(depth int) string { return levelName(depth) + "TableRead" }
func rowOpened(depth int) string { return levelName(depth) + "RowOpened" }
func rowClosed(depth int) string { return levelName(depth) + "RowClosed" }

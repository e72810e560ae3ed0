package sorgu

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableCells returns the trimmed cell texts of every row in an HTML
// fragment. With headers set, <th> cells count too; otherwise header rows
// are dropped. A bare <tr> fragment is wrapped in a table first; the HTML
// parser discards orphan rows.
func TableCells(fragment string, headers bool) ([][]string, error) {
	src := strings.TrimSpace(fragment)
	if strings.HasPrefix(strings.ToLower(src), "<tr") {
		src = "<table><tbody>" + src + "</tbody></table>"
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	filter := "td"
	if headers {
		filter = "td, th"
	}

	var out [][]string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered(filter)
		if tds.Length() == 0 {
			return
		}
		cells := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, normalizeSpace(td.Text()))
		})
		out = append(out, cells)
	})
	return out, nil
}

// toRow maps cells onto columns. Rows whose first declared column is empty
// are filler rows and are skipped.
func toRow(cells []string, columns []Column) (Row, bool) {
	if len(columns) == 0 || cellAt(cells, columns[0].Index) == "" {
		return nil, false
	}
	row := make(Row, len(columns))
	for _, col := range columns {
		row[col.Key] = cellAt(cells, col.Index)
	}
	return row, true
}

// parseRows turns every row of the fragment into a Row.
func parseRows(fragment string, columns []Column) ([]Row, error) {
	all, err := TableCells(fragment, false)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(all))
	for _, cells := range all {
		if row, ok := toRow(cells, columns); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cols builds sequential columns from keys; an empty key skips a cell.
func cols(keys ...string) []Column {
	out := make([]Column, 0, len(keys))
	for i, k := range keys {
		if k == "" {
			continue
		}
		out = append(out, Column{Index: i, Key: k})
	}
	return out
}

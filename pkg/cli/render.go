package cli

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"ersatz/internal/config"
)

// resultSet is a fully read query result.
type resultSet struct {
	cols []string
	rows [][]any
}

// readResults drains rows. []byte values become strings.
func readResults(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &resultSet{cols: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.rows = append(rs.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func renderResults(w io.Writer, rs *resultSet, format string) error {
	switch format {
	case config.OutputJSON:
		return renderJSON(w, rs)
	case config.OutputCSV:
		return renderCSV(w, rs)
	default:
		return renderTable(w, rs)
	}
}

func renderTable(w io.Writer, rs *resultSet) error {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTable(w, rs)
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	return nil
}

func renderCSV(w io.Writer, rs *resultSet) error {
	newTable(w, rs).RenderCSV()
	return nil
}

func renderJSON(w io.Writer, rs *resultSet) error {
	out := make([]map[string]any, 0, len(rs.rows))
	for _, row := range rs.rows {
		obj := make(map[string]any, len(rs.cols))
		for i, col := range rs.cols {
			obj[col] = row[i]
		}
		out = append(out, obj)
	}
	return printJSON(w, out)
}

func newTable(w io.Writer, rs *resultSet) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(rs.cols))
	for i, col := range rs.cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range rs.rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	return t
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

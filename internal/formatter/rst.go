package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/pgtools/schemac/internal/project"
)

// RSTFormatter renders the documentation tree as reStructuredText with
// grid tables.
type RSTFormatter struct {
	writer io.Writer
}

// NewRSTFormatter creates a new RST formatter.
func NewRSTFormatter(w io.Writer) *RSTFormatter {
	return &RSTFormatter{writer: w}
}

var headerSymbols = map[int]string{
	1: "=",
	2: "-",
	3: "^",
}

// Format writes one section per schema with a grid table per table.
func (f *RSTFormatter) Format(doc *project.Documentation) error {
	for _, s := range doc.Schemas {
		if len(s.Tables) == 0 {
			continue
		}
		f.header(1, s.Name)

		for _, t := range s.Tables {
			f.header(2, t.Name.Name)

			if t.Description != "" {
				_, _ = fmt.Fprintf(f.writer, "%s\n\n", t.Description)
			}

			rows := make([][]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				rows = append(rows, []string{c.Name, c.Type, c.Description})
			}
			f.grid([]string{"name", "data type", "description"}, rows)

			if len(t.PrimaryKey) > 0 {
				_, _ = fmt.Fprintf(f.writer, "Primary key: %s\n\n", strings.Join(t.PrimaryKey, ", "))
			}
			for _, fk := range t.ForeignKeys {
				_, _ = fmt.Fprintf(f.writer, "Foreign key %s: (%s) references %s (%s)\n\n",
					fk.Name,
					strings.Join(fk.Columns, ", "),
					fk.Target,
					strings.Join(fk.TargetColumns, ", "))
			}
		}
	}
	return nil
}

func (f *RSTFormatter) header(level int, text string) {
	_, _ = fmt.Fprintf(f.writer, "%s\n%s\n\n", text, strings.Repeat(headerSymbols[level], len(text)))
}

// grid renders an RST grid table sized to the widest cell per column.
func (f *RSTFormatter) grid(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	sep := gridSeparator("-", widths)
	headerSep := gridSeparator("=", widths)

	_, _ = fmt.Fprintln(f.writer, sep)
	_, _ = fmt.Fprintln(f.writer, gridRow(header, widths))
	_, _ = fmt.Fprintln(f.writer, headerSep)
	for _, row := range rows {
		_, _ = fmt.Fprintln(f.writer, gridRow(row, widths))
		_, _ = fmt.Fprintln(f.writer, sep)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func gridRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
	}
	return "| " + strings.Join(padded, " | ") + " |"
}

func gridSeparator(symbol string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat(symbol, w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/pgtools/schemac/internal/project"
)

// MarkdownFormatter formats the documentation tree as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the whole documentation tree in markdown format
func (f *MarkdownFormatter) Format(doc *project.Documentation) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, s := range doc.Schemas {
		for _, t := range s.Tables {
			if err := f.FormatTable(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(t project.TableDoc) error {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", t.Name)

	if t.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", t.Description)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range t.Columns {
		constraintStr := f.formatConstraints(col, t.PrimaryKey)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(t.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range t.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "- %s: %s → %s (%s)\n",
				fk.Name,
				strings.Join(fk.Columns, ", "),
				fk.Target,
				strings.Join(fk.TargetColumns, ", "))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	return nil
}

func (f *MarkdownFormatter) formatConstraints(col project.ColumnDoc, primaryKey []string) string {
	var constraints []string

	for _, pk := range primaryKey {
		if pk == col.Name {
			constraints = append(constraints, "PK")
			break
		}
	}

	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}

	return strings.Join(constraints, ", ")
}

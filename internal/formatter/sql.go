// Package formatter renders a resolved Model as text: SQL data-definition
// statements, RST or markdown documentation, and Graphviz dot diagrams.
// Every formatter writes to an injected io.Writer and assumes a validated,
// ordered Model; nothing here reports validation errors.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/pgtools/schemac/internal/resolve"
	"github.com/pgtools/schemac/internal/schema"
)

// SQLFormatter emits DDL statements that build the schema from empty.
type SQLFormatter struct {
	writer io.Writer
}

// NewSQLFormatter creates a new SQL formatter.
func NewSQLFormatter(w io.Writer) *SQLFormatter {
	return &SQLFormatter{writer: w}
}

// Format writes the full statement sequence: extensions, schemas, then
// objects in resolver order, then deferred foreign keys, then seed rows.
// Output is deterministic for a fixed Model and Order.
func (f *SQLFormatter) Format(m *schema.Model, ord *resolve.Order) error {
	for _, ext := range m.Extensions {
		f.printf("CREATE EXTENSION %s;\n\n", ext)
	}

	for _, s := range m.Schemas {
		// The public schema exists in every database.
		if s.Name != schema.DefaultSchema {
			f.printf("CREATE SCHEMA %s;\n\n", quoteIdent(s.Name))
		}
	}

	for _, obj := range ord.Objects {
		switch o := obj.(type) {
		case *schema.EnumType:
			f.formatEnumType(o)
		case *schema.Table:
			f.formatTable(o, ord)
		case *schema.View:
			f.formatView(o)
		case *schema.Function:
			f.formatFunction(o)
		}
	}

	for _, def := range ord.Deferred {
		t, ok := m.Table(def.Table)
		if !ok {
			continue
		}
		fk := t.ForeignKeys[def.Index]
		f.printf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);\n\n",
			qualified(t.Name),
			quoteIdent(fk.Name),
			strings.Join(fk.Columns, ", "),
			qualified(fk.RefTable),
			strings.Join(fk.RefColumns, ", "))
	}

	for _, obj := range ord.Objects {
		if t, ok := obj.(*schema.Table); ok {
			f.formatRows(t)
		}
	}

	return nil
}

func (f *SQLFormatter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(f.writer, format, args...)
}

func (f *SQLFormatter) formatEnumType(e *schema.EnumType) {
	labels := make([]string, 0, len(e.Labels))
	for _, label := range e.Labels {
		labels = append(labels, "  "+quoteString(label))
	}
	f.printf("CREATE TYPE %s AS ENUM (\n%s\n);\n\n", qualified(e.Name), strings.Join(labels, ",\n"))
}

func (f *SQLFormatter) formatTable(t *schema.Table, ord *resolve.Order) {
	var parts []string

	for i := range t.Columns {
		parts = append(parts, "  "+columnDefinition(&t.Columns[i]))
	}

	if t.PrimaryKey != nil {
		parts = append(parts, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(t.PrimaryKey.Columns, ", ")))
	}
	for _, u := range t.Unique {
		parts = append(parts, fmt.Sprintf("  UNIQUE (%s)", strings.Join(u.Columns, ", ")))
	}
	for _, c := range t.Checks {
		parts = append(parts, fmt.Sprintf("  CHECK (%s)", c.Expression))
	}
	for i, fk := range t.ForeignKeys {
		if ord.IsDeferred(t.Name, i) {
			continue
		}
		parts = append(parts, fmt.Sprintf("  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(fk.Name),
			strings.Join(fk.Columns, ", "),
			qualified(fk.RefTable),
			strings.Join(fk.RefColumns, ", ")))
	}

	f.printf("CREATE TABLE %s\n(\n%s\n);\n\n", qualified(t.Name), strings.Join(parts, ",\n"))

	if t.Description != "" {
		f.printf("COMMENT ON TABLE %s IS %s;\n\n", qualified(t.Name), quoteString(t.Description))
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Description != "" {
			f.printf("COMMENT ON COLUMN %s.%s IS %s;\n\n",
				qualified(t.Name), quoteIdent(c.Name), quoteString(c.Description))
		}
	}
}

func columnDefinition(c *schema.Column) string {
	parts := []string{quoteIdent(c.Name), c.Type.String()}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	return strings.Join(parts, " ")
}

func (f *SQLFormatter) formatView(v *schema.View) {
	f.printf("CREATE VIEW %s AS\n%s;\n\n", qualified(v.Name), strings.TrimRight(v.Query, "\n"))
}

func (f *SQLFormatter) formatFunction(fn *schema.Function) {
	args := make([]string, 0, len(fn.Arguments))
	for _, a := range fn.Arguments {
		args = append(args, argumentDefinition(a))
	}

	returns := fn.ReturnType
	if fn.ReturnsSet {
		returns = "SETOF " + returns
	}

	f.printf("CREATE FUNCTION %s(%s)\n    RETURNS %s\nAS $$\n%s\n$$ LANGUAGE %s;\n\n",
		qualified(fn.Name),
		strings.Join(args, ", "),
		returns,
		strings.TrimRight(fn.Source, "\n"),
		fn.Language)
}

func argumentDefinition(a schema.Argument) string {
	var parts []string
	if a.Name != "" {
		parts = append(parts, quoteIdent(a.Name))
	}
	parts = append(parts, a.Type)
	if a.Default != "" {
		parts = append(parts, "DEFAULT "+a.Default)
	}
	return strings.Join(parts, " ")
}

func (f *SQLFormatter) formatRows(t *schema.Table) {
	for _, row := range t.Rows {
		columns := make([]string, 0, len(row.Values))
		values := make([]string, 0, len(row.Values))
		for _, rv := range row.Values {
			columns = append(columns, rv.Column)
			if rv.Value.Quoted {
				values = append(values, quoteString(rv.Value.Value))
			} else {
				values = append(values, rv.Value.Value)
			}
		}
		f.printf("INSERT INTO %s (%s) VALUES (%s);\n\n",
			qualified(t.Name), strings.Join(columns, ", "), strings.Join(values, ", "))
	}
}

func qualified(n schema.ObjectName) string {
	return quoteIdent(n.Schema) + "." + quoteIdent(n.Name)
}

func quoteIdent(ident string) string {
	return `"` + ident + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

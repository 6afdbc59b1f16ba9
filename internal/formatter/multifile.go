package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pgtools/schemac/internal/project"
	"github.com/pgtools/schemac/internal/schema"
)

// MultiFileFormatter writes the documentation tree to multiple markdown
// files in a directory: one overview plus one file per table.
type MultiFileFormatter struct {
	OutputDir string
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir string) *MultiFileFormatter {
	return &MultiFileFormatter{OutputDir: outputDir}
}

// Format writes the documentation tree to multiple files
func (f *MultiFileFormatter) Format(doc *project.Documentation) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(doc); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, s := range doc.Schemas {
		for _, t := range s.Tables {
			if err := f.writeTableFile(t, doc); err != nil {
				return fmt.Errorf("failed to write table file for %s: %w", t.Name, err)
			}
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(doc *project.Documentation) error {
	filename := filepath.Join(f.OutputDir, "_overview.md")

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
	_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<schema>.<table>.md`\n\n")
	_, _ = fmt.Fprintf(file, "## Tables\n\n")

	var tables []project.TableDoc
	for _, s := range doc.Schemas {
		tables = append(tables, s.Tables...)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name.String() < tables[j].Name.String()
	})

	for _, t := range tables {
		_, _ = fmt.Fprintf(file, "- **%s**", t.Name)

		if len(t.ForeignKeys) > 0 {
			targets := []string{}
			for _, fk := range t.ForeignKeys {
				targets = append(targets, fk.Target.String())
			}
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(file, "\n")
	}

	return nil
}

func (f *MultiFileFormatter) writeTableFile(t project.TableDoc, doc *project.Documentation) error {
	filename := filepath.Join(f.OutputDir, t.Name.String()+".md")

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	md := NewMarkdownFormatter(file)
	if err := md.FormatTable(t); err != nil {
		return err
	}

	incoming := findIncomingReferences(t.Name, doc)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintf(file, "### Referenced by\n\n")
		for _, ref := range incoming {
			_, _ = fmt.Fprintf(file, "- %s.%s → %s\n",
				ref.Source,
				strings.Join(ref.Columns, ", "),
				strings.Join(ref.TargetColumns, ", "))
		}
		_, _ = fmt.Fprintln(file)
	}

	return nil
}

// IncomingReference is a foreign key pointing at a table from elsewhere.
type IncomingReference struct {
	Source        schema.ObjectName
	Columns       []string
	TargetColumns []string
}

func findIncomingReferences(name schema.ObjectName, doc *project.Documentation) []IncomingReference {
	var incoming []IncomingReference

	for _, s := range doc.Schemas {
		for _, t := range s.Tables {
			for _, fk := range t.ForeignKeys {
				if fk.Target == name {
					incoming = append(incoming, IncomingReference{
						Source:        t.Name,
						Columns:       fk.Columns,
						TargetColumns: fk.TargetColumns,
					})
				}
			}
		}
	}

	return incoming
}

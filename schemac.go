// Package schemac compiles declarative PostgreSQL schema descriptions
// into SQL, documentation, and diagrams, and rebuilds the same
// description from a live database catalog.
//
// A schema description (YAML) is loaded into a validated Model, ordered
// by its dependency graph, and rendered by one of the compilers:
//
//	m, err := schemac.Load(file)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = schemac.CompileSQL(m, os.Stdout)
//
// Foreign keys that would make table creation order cyclic are deferred
// automatically and emitted as ALTER TABLE statements after all tables
// exist. Any other dependency cycle is an error.
//
// Extract goes the other way: it connects to a running PostgreSQL
// database, reads its catalog under a single consistent snapshot, and
// returns a Model equivalent to one the loader would produce:
//
//	m, err := schemac.Extract(ctx, cfg.ConnString(), db.ExtractOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	data, err := schemac.Describe(m).YAML()
package schemac

import (
	"context"
	"io"
	"os"

	"github.com/pgtools/schemac/internal/db"
	"github.com/pgtools/schemac/internal/formatter"
	"github.com/pgtools/schemac/internal/load"
	"github.com/pgtools/schemac/internal/project"
	"github.com/pgtools/schemac/internal/resolve"
	"github.com/pgtools/schemac/internal/schema"
)

// OutputOptions selects between single-writer and multi-file output for
// the markdown compiler.
//
// If OutputDir is set a directory with _overview.md plus one file per
// table is produced and Writer is ignored. Otherwise everything goes to
// Writer, defaulting to os.Stdout.
type OutputOptions struct {
	Writer    io.Writer
	OutputDir string
}

// Load reads a declarative schema description and returns the validated
// Model.
func Load(r io.Reader) (*schema.Model, error) {
	return load.Load(r)
}

// CompileSQL writes the DDL statement sequence that builds the Model's
// schema from an empty database.
func CompileSQL(m *schema.Model, w io.Writer) error {
	ord, err := resolve.Resolve(m)
	if err != nil {
		return err
	}
	return formatter.NewSQLFormatter(w).Format(m, ord)
}

// CompileRST writes reStructuredText documentation for the Model.
func CompileRST(m *schema.Model, w io.Writer) error {
	doc, err := document(m)
	if err != nil {
		return err
	}
	return formatter.NewRSTFormatter(w).Format(doc)
}

// CompileMarkdown writes markdown documentation for the Model, either
// to a single writer or split across files per OutputOptions.
func CompileMarkdown(m *schema.Model, opts *OutputOptions) error {
	doc, err := document(m)
	if err != nil {
		return err
	}

	if opts == nil {
		opts = &OutputOptions{Writer: os.Stdout}
	}
	if opts.OutputDir != "" {
		return formatter.NewMultiFileFormatter(opts.OutputDir).Format(doc)
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return formatter.NewMarkdownFormatter(writer).Format(doc)
}

// CompileDot writes a Graphviz dot diagram of the Model's tables and
// foreign keys.
func CompileDot(m *schema.Model, w io.Writer) error {
	ord, err := resolve.Resolve(m)
	if err != nil {
		return err
	}
	return formatter.NewDotFormatter(w).Format(project.BuildDiagram(m, ord))
}

func document(m *schema.Model) (*project.Documentation, error) {
	ord, err := resolve.Resolve(m)
	if err != nil {
		return nil, err
	}
	return project.BuildDocumentation(m, ord), nil
}

// Extract connects to a PostgreSQL database and rebuilds the Model from
// its catalog under a single consistent snapshot.
func Extract(ctx context.Context, connString string, opts db.ExtractOptions) (*schema.Model, error) {
	client, err := db.NewPostgresClient(ctx, connString)
	if err != nil {
		return nil, &schema.ExtractionError{Op: "connect", Err: err}
	}
	defer client.Close()

	return db.NewExtractor(client).Extract(ctx, opts)
}

// Describe projects the Model back into its declarative description,
// ready to be marshaled as YAML or JSON.
func Describe(m *schema.Model) *load.Description {
	return load.Describe(m)
}

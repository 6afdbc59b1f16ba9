package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	schemac "github.com/pgtools/schemac"
	"github.com/pgtools/schemac/internal/db"
	"github.com/pgtools/schemac/internal/schema"
)

var (
	outputFile string
	outputDir  string
	format     string
	owner      string
	workers    int
)

var rootCmd = &cobra.Command{
	Use:           "schemac",
	Short:         "Compile declarative PostgreSQL schema descriptions",
	Long:          `Schemac compiles a declarative schema description into SQL, RST or markdown documentation, or a Graphviz diagram, and can rebuild the description from a live PostgreSQL database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var compileCmd = &cobra.Command{
	Use:   "compile <sql|rst|md|dot> <schema-file>",
	Short: "Compile a schema description to an output format",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompile,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a schema description from a data source",
}

var fromDBCmd = &cobra.Command{
	Use:   "from-db [schema ...]",
	Short: "Extract the schema description from a PostgreSQL database",
	Long:  `Extracts the schema from the PostgreSQL database selected by the standard PGHOST, PGPORT, PGUSER, and PGDATABASE environment variables. With no schema arguments all non-system schemas are extracted.`,
	RunE:  runExtract,
}

func init() {
	compileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	compileCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file markdown output")

	fromDBCmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	fromDBCmd.Flags().StringVar(&owner, "owner", "", "Only extract schemas owned by this role")
	fromDBCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	fromDBCmd.Flags().IntVar(&workers, "workers", 0, "Maximum concurrent schema extractions")

	extractCmd.AddCommand(fromDBCmd)
	rootCmd.AddCommand(compileCmd, extractCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	kind, path := args[0], args[1]

	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	if outputDir != "" && kind != "md" {
		return fmt.Errorf("--output-dir is only supported for md output")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open schema file: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := schemac.Load(f)
	if err != nil {
		return err
	}

	if outputDir != "" {
		return schemac.CompileMarkdown(m, &schemac.OutputOptions{OutputDir: outputDir})
	}

	writer, closeWriter, err := openOutput()
	if err != nil {
		return err
	}
	defer closeWriter()

	switch kind {
	case "sql":
		return schemac.CompileSQL(m, writer)
	case "rst":
		return schemac.CompileRST(m, writer)
	case "md":
		return schemac.CompileMarkdown(m, &schemac.OutputOptions{Writer: writer})
	case "dot":
		return schemac.CompileDot(m, writer)
	default:
		return fmt.Errorf("invalid output format: %s (must be sql, rst, md, or dot)", kind)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	if format != "yaml" && format != "json" {
		return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
	}

	cfg, err := db.ConfigFromEnv()
	if err != nil {
		return err
	}

	m, err := schemac.Extract(cmd.Context(), cfg.ConnString(), db.ExtractOptions{
		Schemas: args,
		Owner:   owner,
		Workers: workers,
	})
	if err != nil {
		return err
	}

	desc := schemac.Describe(m)
	var data []byte
	if format == "json" {
		data, err = desc.JSON()
	} else {
		data, err = desc.YAML()
	}
	if err != nil {
		return fmt.Errorf("failed to encode schema description: %w", err)
	}

	writer, closeWriter, err := openOutput()
	if err != nil {
		return err
	}
	defer closeWriter()

	_, err = writer.Write(data)
	return err
}

func openOutput() (*os.File, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	closeWriter := func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
		}
	}
	return f, closeWriter, nil
}

// exitCode maps the error taxonomy to process exit codes: 2 for
// definition problems, 3 for dependency cycles, 4 for extraction
// failures, 1 for anything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var (
		validationErr *schema.ValidationError
		duplicateErr  *schema.DuplicateNameError
		referenceErr  *schema.ReferenceError
		cyclicErr     *schema.CyclicDependencyError
		extractionErr *schema.ExtractionError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &duplicateErr), errors.As(err, &referenceErr):
		return 2
	case errors.As(err, &cyclicErr):
		return 3
	case errors.As(err, &extractionErr):
		return 4
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

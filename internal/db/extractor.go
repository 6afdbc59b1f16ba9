package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pgtools/schemac/internal/schema"
)

const defaultWorkers = 4

// Extractor handles schema extraction from PostgreSQL
type Extractor struct {
	client *PostgresClient
}

// ExtractOptions selects what to extract.
type ExtractOptions struct {
	// Schemas is an explicit schema list. Empty means all non-system
	// schemas.
	Schemas []string
	// Owner, when set, restricts schema discovery to schemas owned by
	// that role.
	Owner string
	// Workers caps the number of concurrent per-schema extractions.
	Workers int
}

// NewExtractor creates a new schema extractor
func NewExtractor(client *PostgresClient) *Extractor {
	return &Extractor{client: client}
}

// schemaContents is what one worker extracts for a single schema.
type schemaContents struct {
	enums     []*schema.EnumType
	tables    []*schema.Table
	views     []*schema.View
	functions []*schema.Function
}

// Extract builds a Model from the database catalog. It opens one
// repeatable-read read-only transaction, exports its snapshot, and runs
// one worker per schema on that same snapshot. Any failure aborts the
// whole extraction; no partial Model is returned.
func (e *Extractor) Extract(ctx context.Context, opts ExtractOptions) (*schema.Model, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	tx, err := e.client.Pool().BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, &schema.ExtractionError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snapshot string
	if err := tx.QueryRow(ctx, "SELECT pg_export_snapshot()").Scan(&snapshot); err != nil {
		return nil, &schema.ExtractionError{Op: "export snapshot", Err: err}
	}

	schemas, err := e.listSchemas(ctx, tx, opts)
	if err != nil {
		return nil, &schema.ExtractionError{Op: "list schemas", Err: err}
	}

	extensions, err := e.listExtensions(ctx, tx)
	if err != nil {
		return nil, &schema.ExtractionError{Op: "list extensions", Err: err}
	}

	contents := make([]*schemaContents, len(schemas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range schemas {
		i, name := i, name
		g.Go(func() error {
			sc, err := e.extractSchema(gctx, snapshot, name)
			if err != nil {
				return &schema.ExtractionError{Op: fmt.Sprintf("schema %s", name), Err: err}
			}
			contents[i] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := schema.NewBuilder()
	for _, ext := range extensions {
		b.AddExtension(ext)
	}
	for i, name := range schemas {
		if err := mergeSchema(b, name, contents[i]); err != nil {
			return nil, &schema.ExtractionError{Op: fmt.Sprintf("schema %s", name), Err: err}
		}
	}

	m, err := b.Finish()
	if err != nil {
		return nil, &schema.ExtractionError{Op: "assemble model", Err: err}
	}
	return m, nil
}

func mergeSchema(b *schema.Builder, name string, sc *schemaContents) error {
	b.EnsureSchema(name)
	for _, en := range sc.enums {
		if err := b.AddEnumType(en); err != nil {
			return err
		}
	}
	for _, t := range sc.tables {
		if err := b.AddTable(t); err != nil {
			return err
		}
	}
	for _, v := range sc.views {
		if err := b.AddView(v); err != nil {
			return err
		}
	}
	for _, fn := range sc.functions {
		if err := b.AddFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

// listSchemas resolves the schema selection: the explicit list when
// given, otherwise all non-system schemas, optionally filtered by owner.
func (e *Extractor) listSchemas(ctx context.Context, tx pgx.Tx, opts ExtractOptions) ([]string, error) {
	if len(opts.Schemas) > 0 {
		selected := append([]string(nil), opts.Schemas...)
		sort.Strings(selected)
		return selected, nil
	}

	query := `
		SELECT n.nspname
		FROM pg_namespace n
		JOIN pg_roles r ON r.oid = n.nspowner
		WHERE n.nspname NOT LIKE 'pg\_%'
			AND n.nspname <> 'information_schema'
			AND ($1 = '' OR r.rolname = $1)
		ORDER BY n.nspname
	`

	rows, err := tx.Query(ctx, query, opts.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

func (e *Extractor) listExtensions(ctx context.Context, tx pgx.Tx) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT extname FROM pg_extension WHERE extname <> 'plpgsql' ORDER BY extname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var extensions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		extensions = append(extensions, name)
	}
	return extensions, rows.Err()
}

// extractSchema pulls everything in one schema on its own connection,
// pinned to the exported snapshot of the controlling transaction.
func (e *Extractor) extractSchema(ctx context.Context, snapshot, name string) (*schemaContents, error) {
	conn, err := e.client.Pool().Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET TRANSACTION SNAPSHOT '%s'", snapshot)); err != nil {
		return nil, fmt.Errorf("failed to adopt snapshot: %w", err)
	}

	sc := &schemaContents{}

	if sc.enums, err = extractEnumTypes(ctx, tx, name); err != nil {
		return nil, fmt.Errorf("failed to extract enum types: %w", err)
	}
	if sc.tables, err = extractTables(ctx, tx, name); err != nil {
		return nil, fmt.Errorf("failed to extract tables: %w", err)
	}
	if sc.views, err = extractViews(ctx, tx, name); err != nil {
		return nil, fmt.Errorf("failed to extract views: %w", err)
	}
	if sc.functions, err = extractFunctions(ctx, tx, name); err != nil {
		return nil, fmt.Errorf("failed to extract functions: %w", err)
	}

	return sc, nil
}

func extractEnumTypes(ctx context.Context, tx pgx.Tx, schemaName string) ([]*schema.EnumType, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enums []*schema.EnumType
	byName := make(map[string]*schema.EnumType)
	for rows.Next() {
		var typName, label string
		if err := rows.Scan(&typName, &label); err != nil {
			return nil, err
		}
		en, ok := byName[typName]
		if !ok {
			en = &schema.EnumType{Name: schema.ObjectName{Schema: schemaName, Name: typName}}
			byName[typName] = en
			enums = append(enums, en)
		}
		en.Labels = append(en.Labels, label)
	}
	return enums, rows.Err()
}

func extractTables(ctx context.Context, tx pgx.Tx, schemaName string) ([]*schema.Table, error) {
	query := `
		SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'r'
		ORDER BY c.relname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}

	var tables []*schema.Table
	byName := make(map[string]*schema.Table)
	for rows.Next() {
		var name, description string
		if err := rows.Scan(&name, &description); err != nil {
			rows.Close()
			return nil, err
		}
		t := &schema.Table{
			Name:        schema.ObjectName{Schema: schemaName, Name: name},
			Description: description,
		}
		byName[name] = t
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := extractColumns(ctx, tx, schemaName, byName); err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if err := extractKeyConstraints(ctx, tx, schemaName, byName); err != nil {
		return nil, fmt.Errorf("failed to extract key constraints: %w", err)
	}
	if err := extractForeignKeys(ctx, tx, schemaName, byName); err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	if err := extractCheckConstraints(ctx, tx, schemaName, byName); err != nil {
		return nil, fmt.Errorf("failed to extract check constraints: %w", err)
	}

	return tables, nil
}

func extractColumns(ctx context.Context, tx pgx.Tx, schemaName string, tables map[string]*schema.Table) error {
	query := `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.udt_schema,
			c.udt_name,
			c.character_maximum_length,
			c.is_nullable,
			c.column_default,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '')
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, dataType, udtSchema, udtName, nullable, description string
		var charMaxLength *int
		var defaultVal *string

		if err := rows.Scan(&tableName, &colName, &dataType, &udtSchema, &udtName,
			&charMaxLength, &nullable, &defaultVal, &description); err != nil {
			return err
		}

		t, ok := tables[tableName]
		if !ok {
			continue
		}

		col := schema.Column{
			Name:        colName,
			Type:        columnDataType(dataType, udtSchema, udtName, charMaxLength),
			Nullable:    nullable == "YES",
			Description: description,
		}
		if defaultVal != nil {
			col.Default = *defaultVal
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

// columnDataType maps a catalog type description to a declarable type
// name. User-defined types come back schema-qualified so the model can
// resolve them against extracted enum types.
func columnDataType(dataType, udtSchema, udtName string, charMaxLength *int) schema.DataType {
	if dataType == "USER-DEFINED" {
		return schema.DataType{Name: udtSchema + "." + udtName}
	}
	return schema.DataType{Name: normalizePostgresType(dataType, udtName, charMaxLength)}
}

// normalizePostgresType maps verbose SQL type names to commonly-used
// PostgreSQL equivalents.
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("character varying(%d)", *charMaxLength)
		}
		return "character varying"
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("character(%d)", *charMaxLength)
		}
		return "character"
	case "ARRAY":
		// udt_name has an underscore prefix for arrays (e.g. "_text"
		// for text[], "_int4" for integer[]).
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to their
// declarable forms.
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int2":
		return "smallint"
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

// extractKeyConstraints fills in primary keys and unique constraints.
func extractKeyConstraints(ctx context.Context, tx pgx.Tx, schemaName string, tables map[string]*schema.Table) error {
	query := `
		SELECT rel.relname, c.conname, c.contype::text,
			array_agg(a.attname ORDER BY k.ord) AS columns
		FROM pg_constraint c
		JOIN pg_class rel ON rel.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND c.contype IN ('p', 'u')
		GROUP BY rel.relname, c.conname, c.contype
		ORDER BY rel.relname, c.conname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, conName, conType string
		var columns []string
		if err := rows.Scan(&tableName, &conName, &conType, &columns); err != nil {
			return err
		}

		t, ok := tables[tableName]
		if !ok {
			continue
		}
		switch conType {
		case "p":
			t.PrimaryKey = &schema.PrimaryKey{Name: conName, Columns: columns}
		case "u":
			t.Unique = append(t.Unique, schema.UniqueConstraint{Name: conName, Columns: columns})
		}
	}
	return rows.Err()
}

func extractForeignKeys(ctx context.Context, tx pgx.Tx, schemaName string, tables map[string]*schema.Table) error {
	query := `
		SELECT rel.relname, c.conname,
			array_agg(a.attname ORDER BY k.ord) AS columns,
			fn.nspname, frel.relname,
			array_agg(fa.attname ORDER BY k.ord) AS ref_columns
		FROM pg_constraint c
		JOIN pg_class rel ON rel.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		JOIN pg_class frel ON frel.oid = c.confrelid
		JOIN pg_namespace fn ON fn.oid = frel.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = c.confrelid AND fa.attnum = k.fattnum
		WHERE n.nspname = $1 AND c.contype = 'f'
		GROUP BY rel.relname, c.conname, fn.nspname, frel.relname
		ORDER BY rel.relname, c.conname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, conName, refSchema, refTable string
		var columns, refColumns []string
		if err := rows.Scan(&tableName, &conName, &columns, &refSchema, &refTable, &refColumns); err != nil {
			return err
		}

		t, ok := tables[tableName]
		if !ok {
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Name:       conName,
			Columns:    columns,
			RefTable:   schema.ObjectName{Schema: refSchema, Name: refTable},
			RefColumns: refColumns,
		})
	}
	return rows.Err()
}

func extractCheckConstraints(ctx context.Context, tx pgx.Tx, schemaName string, tables map[string]*schema.Table) error {
	query := `
		SELECT rel.relname, pg_get_expr(c.conbin, c.conrelid)
		FROM pg_constraint c
		JOIN pg_class rel ON rel.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		WHERE n.nspname = $1 AND c.contype = 'c'
		ORDER BY rel.relname, c.conname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, expression string
		if err := rows.Scan(&tableName, &expression); err != nil {
			return err
		}
		t, ok := tables[tableName]
		if !ok {
			continue
		}
		t.Checks = append(t.Checks, schema.CheckConstraint{Expression: expression})
	}
	return rows.Err()
}

func extractViews(ctx context.Context, tx pgx.Tx, schemaName string) ([]*schema.View, error) {
	query := `
		SELECT c.relname,
			COALESCE(obj_description(c.oid, 'pg_class'), ''),
			pg_get_viewdef(c.oid, true)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'v'
		ORDER BY c.relname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}

	var views []*schema.View
	byName := make(map[string]*schema.View)
	for rows.Next() {
		var name, description, definition string
		if err := rows.Scan(&name, &description, &definition); err != nil {
			rows.Close()
			return nil, err
		}
		v := &schema.View{
			Name:        schema.ObjectName{Schema: schemaName, Name: name},
			Description: description,
			Query:       strings.TrimRight(definition, ";\n"),
		}
		byName[name] = v
		views = append(views, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := extractViewDependencies(ctx, tx, schemaName, byName); err != nil {
		return nil, fmt.Errorf("failed to extract view dependencies: %w", err)
	}

	return views, nil
}

// extractViewDependencies records which tables and views each view reads
// from, via the rewrite rules the planner stores for it.
func extractViewDependencies(ctx context.Context, tx pgx.Tx, schemaName string, views map[string]*schema.View) error {
	query := `
		SELECT DISTINCT v.relname, dn.nspname, dc.relname
		FROM pg_rewrite r
		JOIN pg_class v ON v.oid = r.ev_class
		JOIN pg_namespace n ON n.oid = v.relnamespace
		JOIN pg_depend d ON d.objid = r.oid AND d.refclassid = 'pg_class'::regclass
		JOIN pg_class dc ON dc.oid = d.refobjid
		JOIN pg_namespace dn ON dn.oid = dc.relnamespace
		WHERE n.nspname = $1
			AND v.relkind = 'v'
			AND d.refobjid <> v.oid
			AND dn.nspname NOT LIKE 'pg\_%'
			AND dn.nspname <> 'information_schema'
		ORDER BY v.relname, dn.nspname, dc.relname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var viewName, depSchema, depName string
		if err := rows.Scan(&viewName, &depSchema, &depName); err != nil {
			return err
		}
		v, ok := views[viewName]
		if !ok {
			continue
		}
		v.DependsOn = append(v.DependsOn, schema.ObjectName{Schema: depSchema, Name: depName})
	}
	return rows.Err()
}

func extractFunctions(ctx context.Context, tx pgx.Tx, schemaName string) ([]*schema.Function, error) {
	query := `
		SELECT p.proname,
			COALESCE(obj_description(p.oid, 'pg_proc'), ''),
			l.lanname,
			pg_get_function_arguments(p.oid),
			pg_get_function_result(p.oid),
			p.prosrc
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1 AND p.prokind = 'f'
		ORDER BY p.proname
	`

	rows, err := tx.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var functions []*schema.Function
	for rows.Next() {
		var name, description, language, argsText, resultText, source string
		if err := rows.Scan(&name, &description, &language, &argsText, &resultText, &source); err != nil {
			return nil, err
		}

		fn := &schema.Function{
			Name:        schema.ObjectName{Schema: schemaName, Name: name},
			Description: description,
			Language:    language,
			Arguments:   parseFunctionArguments(argsText),
			Source:      strings.Trim(source, "\n"),
		}
		fn.ReturnType = resultText
		if rest, ok := strings.CutPrefix(resultText, "SETOF "); ok {
			fn.ReturnsSet = true
			fn.ReturnType = rest
		}
		functions = append(functions, fn)
	}
	return functions, rows.Err()
}

// parseFunctionArguments splits the catalog's rendered argument list
// ("a integer, b text DEFAULT 3") into individual arguments. Commas
// inside parentheses, as in numeric(10,2), do not split.
func parseFunctionArguments(argsText string) []schema.Argument {
	var args []schema.Argument
	for _, part := range splitTopLevel(argsText) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var arg schema.Argument
		if before, after, ok := cutKeyword(part, " DEFAULT "); ok {
			part = before
			arg.Default = after
		}

		// The name is optional; a lone token is a bare type.
		if name, typ, ok := strings.Cut(part, " "); ok && !isTypeKeyword(name) {
			arg.Name = name
			arg.Type = typ
		} else {
			arg.Type = part
		}
		args = append(args, arg)
	}
	return args
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func cutKeyword(s, keyword string) (before, after string, found bool) {
	if i := strings.Index(s, keyword); i >= 0 {
		return s[:i], s[i+len(keyword):], true
	}
	return s, "", false
}

// isTypeKeyword reports whether a leading token starts a multi-word type
// name rather than naming an argument.
func isTypeKeyword(token string) bool {
	switch strings.ToLower(token) {
	case "character", "double", "timestamp", "time", "bit", "numeric", "interval":
		return true
	}
	return false
}

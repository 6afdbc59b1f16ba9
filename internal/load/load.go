// Package load builds a validated schema Model from a declarative YAML
// description, and turns a Model back into such a description.
package load

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pgtools/schemac/internal/schema"
)

type document struct {
	Extensions []string    `yaml:"extensions"`
	Objects    []yaml.Node `yaml:"objects"`
}

type objectRef struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema"`
}

func (r objectRef) objectName() schema.ObjectName {
	s := r.Schema
	if s == "" {
		s = schema.DefaultSchema
	}
	return schema.ObjectName{Schema: s, Name: r.Name}
}

type enumTypeDef struct {
	objectRef `yaml:",inline"`
	Labels    []string `yaml:"labels"`
}

type columnDef struct {
	Name        string `yaml:"name"`
	DataType    string `yaml:"data_type"`
	Nullable    *bool  `yaml:"nullable"`
	Default     string `yaml:"default"`
	Description string `yaml:"description"`
}

type primaryKeyDef struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

type referencesDef struct {
	Table   objectRef `yaml:"table"`
	Columns []string  `yaml:"columns"`
}

type foreignKeyDef struct {
	Name       string        `yaml:"name"`
	Columns    []string      `yaml:"columns"`
	References referencesDef `yaml:"references"`
}

type uniqueDef struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

type checkDef struct {
	Expression string `yaml:"expression"`
}

type tableDef struct {
	objectRef   `yaml:",inline"`
	Description string          `yaml:"description"`
	Columns     []columnDef     `yaml:"columns"`
	PrimaryKey  *primaryKeyDef  `yaml:"primary_key"`
	ForeignKeys []foreignKeyDef `yaml:"foreign_keys"`
	Unique      []uniqueDef     `yaml:"unique"`
	Check       []checkDef      `yaml:"check"`
	Rows        []yaml.Node     `yaml:"rows"`
}

type viewDef struct {
	objectRef    `yaml:",inline"`
	Description  string   `yaml:"description"`
	Query        string   `yaml:"query"`
	Dependencies []string `yaml:"dependencies"`
}

type argumentDef struct {
	Name     string `yaml:"name"`
	DataType string `yaml:"data_type"`
	Default  string `yaml:"default"`
}

type functionDef struct {
	objectRef    `yaml:",inline"`
	Description  string        `yaml:"description"`
	Language     string        `yaml:"language"`
	Arguments    []argumentDef `yaml:"arguments"`
	ReturnType   string        `yaml:"return_type"`
	ReturnsSet   bool          `yaml:"returns_set"`
	Source       string        `yaml:"source"`
	Dependencies []string      `yaml:"dependencies"`
}

// Load reads a declarative schema description and returns the validated
// Model, or the first error encountered. No partial Model is ever returned.
func Load(r io.Reader) (*schema.Model, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &schema.ValidationError{Path: "document", Message: err.Error()}
	}

	b := schema.NewBuilder()
	for _, ext := range doc.Extensions {
		b.AddExtension(ext)
	}
	for i := range doc.Objects {
		if err := loadObject(b, fmt.Sprintf("objects[%d]", i), &doc.Objects[i]); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

func loadObject(b *schema.Builder, path string, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return &schema.ValidationError{
			Path:    path,
			Message: "object entry must be a mapping with a single kind key",
		}
	}

	kind := node.Content[0].Value
	body := node.Content[1]

	switch kind {
	case "enum_type":
		return loadEnumType(b, path+".enum_type", body)
	case "table":
		return loadTable(b, path+".table", body)
	case "view":
		return loadView(b, path+".view", body)
	case "function":
		return loadFunction(b, path+".function", body)
	default:
		return &schema.ValidationError{
			Path:    path,
			Message: fmt.Sprintf("unknown object kind %q", kind),
		}
	}
}

func decodeInto(path string, node *yaml.Node, out any) error {
	if err := node.Decode(out); err != nil {
		return &schema.ValidationError{Path: path, Message: err.Error()}
	}
	return nil
}

func loadEnumType(b *schema.Builder, path string, node *yaml.Node) error {
	var d enumTypeDef
	if err := decodeInto(path, node, &d); err != nil {
		return err
	}
	if d.Name == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field name"}
	}
	if len(d.Labels) == 0 {
		return &schema.ValidationError{Path: path, Message: "enum type must declare labels"}
	}
	return b.AddEnumType(&schema.EnumType{Name: d.objectName(), Labels: d.Labels})
}

func loadTable(b *schema.Builder, path string, node *yaml.Node) error {
	var d tableDef
	if err := decodeInto(path, node, &d); err != nil {
		return err
	}
	if d.Name == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field name"}
	}
	if len(d.Columns) == 0 {
		return &schema.ValidationError{Path: path, Message: "table must declare columns"}
	}

	t := &schema.Table{
		Name:        d.objectName(),
		Description: d.Description,
	}

	for i, c := range d.Columns {
		colPath := fmt.Sprintf("%s.columns[%d]", path, i)
		if c.Name == "" {
			return &schema.ValidationError{Path: colPath, Message: "missing required field name"}
		}
		if c.DataType == "" {
			return &schema.ValidationError{Path: colPath, Message: "missing required field data_type"}
		}
		nullable := true
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		t.Columns = append(t.Columns, schema.Column{
			Name:        c.Name,
			Type:        schema.DataType{Name: c.DataType},
			Nullable:    nullable,
			Default:     c.Default,
			Description: c.Description,
		})
	}

	if d.PrimaryKey != nil {
		t.PrimaryKey = &schema.PrimaryKey{Name: d.PrimaryKey.Name, Columns: d.PrimaryKey.Columns}
	}

	for i, fk := range d.ForeignKeys {
		fkPath := fmt.Sprintf("%s.foreign_keys[%d]", path, i)
		if len(fk.Columns) == 0 {
			return &schema.ValidationError{Path: fkPath, Message: "foreign key must declare columns"}
		}
		if fk.References.Table.Name == "" {
			return &schema.ValidationError{Path: fkPath, Message: "foreign key must declare references.table"}
		}
		if len(fk.References.Columns) == 0 {
			return &schema.ValidationError{Path: fkPath, Message: "foreign key must declare references.columns"}
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Name:       fk.Name,
			Columns:    fk.Columns,
			RefTable:   fk.References.Table.objectName(),
			RefColumns: fk.References.Columns,
		})
	}

	for _, u := range d.Unique {
		t.Unique = append(t.Unique, schema.UniqueConstraint{Name: u.Name, Columns: u.Columns})
	}
	for _, c := range d.Check {
		t.Checks = append(t.Checks, schema.CheckConstraint{Expression: c.Expression})
	}

	for i := range d.Rows {
		row, err := loadRow(fmt.Sprintf("%s.rows[%d]", path, i), &d.Rows[i])
		if err != nil {
			return err
		}
		t.Rows = append(t.Rows, row)
	}

	return b.AddTable(t)
}

func loadRow(path string, node *yaml.Node) (schema.Row, error) {
	var row schema.Row
	if node.Kind != yaml.MappingNode {
		return row, &schema.ValidationError{Path: path, Message: "row must be a column-to-value mapping"}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return row, &schema.ValidationError{
				Path:    path,
				Message: fmt.Sprintf("value for column %q must be a scalar", key.Value),
			}
		}
		lit := schema.Literal{Value: val.Value, Quoted: val.Tag == "!!str"}
		if val.Tag == "!!null" {
			lit = schema.Literal{Value: "NULL"}
		}
		row.Values = append(row.Values, schema.RowValue{Column: key.Value, Value: lit})
	}
	return row, nil
}

func loadView(b *schema.Builder, path string, node *yaml.Node) error {
	var d viewDef
	if err := decodeInto(path, node, &d); err != nil {
		return err
	}
	if d.Name == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field name"}
	}
	if d.Query == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field query"}
	}
	return b.AddView(&schema.View{
		Name:        d.objectName(),
		Description: d.Description,
		Query:       d.Query,
		DependsOn:   parseDependencies(d.Dependencies),
	})
}

func loadFunction(b *schema.Builder, path string, node *yaml.Node) error {
	var d functionDef
	if err := decodeInto(path, node, &d); err != nil {
		return err
	}
	if d.Name == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field name"}
	}
	if d.ReturnType == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field return_type"}
	}
	if d.Source == "" {
		return &schema.ValidationError{Path: path, Message: "missing required field source"}
	}

	f := &schema.Function{
		Name:        d.objectName(),
		Description: d.Description,
		Language:    d.Language,
		ReturnType:  d.ReturnType,
		ReturnsSet:  d.ReturnsSet,
		Source:      d.Source,
		DependsOn:   parseDependencies(d.Dependencies),
	}
	if f.Language == "" {
		f.Language = "sql"
	}
	for _, a := range d.Arguments {
		f.Arguments = append(f.Arguments, schema.Argument{Name: a.Name, Type: a.DataType, Default: a.Default})
	}
	return b.AddFunction(f)
}

// parseDependencies converts "schema.name" strings into object names;
// unqualified names land in the default schema.
func parseDependencies(deps []string) []schema.ObjectName {
	var names []schema.ObjectName
	for _, dep := range deps {
		if i := strings.IndexByte(dep, '.'); i >= 0 {
			names = append(names, schema.ObjectName{Schema: dep[:i], Name: dep[i+1:]})
		} else {
			names = append(names, schema.ObjectName{Schema: schema.DefaultSchema, Name: dep})
		}
	}
	return names
}

package load

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/pgtools/schemac/internal/schema"
)

// Description is the serializable form of a Model, shaped exactly like the
// source grammar so that loading a marshalled Description reproduces the
// Model. Seed rows are data rather than schema and are not described.
type Description struct {
	Extensions []string      `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Objects    []ObjectEntry `yaml:"objects" json:"objects"`
}

// ObjectEntry is a discriminated entry: exactly one field is set, and the
// field name is the object kind tag.
type ObjectEntry struct {
	EnumType *EnumTypeEntry `yaml:"enum_type,omitempty" json:"enum_type,omitempty"`
	Table    *TableEntry    `yaml:"table,omitempty" json:"table,omitempty"`
	View     *ViewEntry     `yaml:"view,omitempty" json:"view,omitempty"`
	Function *FunctionEntry `yaml:"function,omitempty" json:"function,omitempty"`
}

type EnumTypeEntry struct {
	Name   string   `yaml:"name" json:"name"`
	Schema string   `yaml:"schema" json:"schema"`
	Labels []string `yaml:"labels" json:"labels"`
}

type TableEntry struct {
	Name        string            `yaml:"name" json:"name"`
	Schema      string            `yaml:"schema" json:"schema"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Columns     []ColumnEntry     `yaml:"columns" json:"columns"`
	PrimaryKey  *PrimaryKeyEntry  `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	ForeignKeys []ForeignKeyEntry `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	Unique      []UniqueEntry     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Check       []CheckEntry      `yaml:"check,omitempty" json:"check,omitempty"`
}

type ColumnEntry struct {
	Name        string `yaml:"name" json:"name"`
	DataType    string `yaml:"data_type" json:"data_type"`
	Nullable    bool   `yaml:"nullable" json:"nullable"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type PrimaryKeyEntry struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
}

type ForeignKeyEntry struct {
	Name       string          `yaml:"name" json:"name"`
	Columns    []string        `yaml:"columns" json:"columns"`
	References ReferencesEntry `yaml:"references" json:"references"`
}

type ReferencesEntry struct {
	Table   TableRefEntry `yaml:"table" json:"table"`
	Columns []string      `yaml:"columns" json:"columns"`
}

type TableRefEntry struct {
	Name   string `yaml:"name" json:"name"`
	Schema string `yaml:"schema" json:"schema"`
}

type UniqueEntry struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
}

type CheckEntry struct {
	Expression string `yaml:"expression" json:"expression"`
}

type ViewEntry struct {
	Name         string   `yaml:"name" json:"name"`
	Schema       string   `yaml:"schema" json:"schema"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Query        string   `yaml:"query" json:"query"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

type ArgumentEntry struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	DataType string `yaml:"data_type" json:"data_type"`
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`
}

type FunctionEntry struct {
	Name         string          `yaml:"name" json:"name"`
	Schema       string          `yaml:"schema" json:"schema"`
	Description  string          `yaml:"description,omitempty" json:"description,omitempty"`
	Language     string          `yaml:"language" json:"language"`
	Arguments    []ArgumentEntry `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	ReturnType   string          `yaml:"return_type" json:"return_type"`
	ReturnsSet   bool            `yaml:"returns_set,omitempty" json:"returns_set,omitempty"`
	Source       string          `yaml:"source" json:"source"`
	Dependencies []string        `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Describe turns a Model back into a source description. Objects are listed
// per schema in model order: enum types, tables, functions, views.
func Describe(m *schema.Model) *Description {
	d := &Description{Extensions: m.Extensions}

	for _, s := range m.Schemas {
		for _, e := range s.EnumTypes {
			d.Objects = append(d.Objects, ObjectEntry{EnumType: &EnumTypeEntry{
				Name:   e.Name.Name,
				Schema: e.Name.Schema,
				Labels: e.Labels,
			}})
		}
		for _, t := range s.Tables {
			d.Objects = append(d.Objects, ObjectEntry{Table: describeTable(t)})
		}
		for _, f := range s.Functions {
			d.Objects = append(d.Objects, ObjectEntry{Function: describeFunction(f)})
		}
		for _, v := range s.Views {
			d.Objects = append(d.Objects, ObjectEntry{View: &ViewEntry{
				Name:         v.Name.Name,
				Schema:       v.Name.Schema,
				Description:  v.Description,
				Query:        v.Query,
				Dependencies: describeDependencies(v.DependsOn),
			}})
		}
	}
	return d
}

func describeTable(t *schema.Table) *TableEntry {
	entry := &TableEntry{
		Name:        t.Name.Name,
		Schema:      t.Name.Schema,
		Description: t.Description,
	}
	for _, c := range t.Columns {
		entry.Columns = append(entry.Columns, ColumnEntry{
			Name:        c.Name,
			DataType:    describeColumnType(t, &c),
			Nullable:    c.Nullable,
			Default:     c.Default,
			Description: c.Description,
		})
	}
	if t.PrimaryKey != nil {
		entry.PrimaryKey = &PrimaryKeyEntry{Name: t.PrimaryKey.Name, Columns: t.PrimaryKey.Columns}
	}
	for _, fk := range t.ForeignKeys {
		entry.ForeignKeys = append(entry.ForeignKeys, ForeignKeyEntry{
			Name:    fk.Name,
			Columns: fk.Columns,
			References: ReferencesEntry{
				Table:   TableRefEntry{Name: fk.RefTable.Name, Schema: fk.RefTable.Schema},
				Columns: fk.RefColumns,
			},
		})
	}
	for _, u := range t.Unique {
		entry.Unique = append(entry.Unique, UniqueEntry{Name: u.Name, Columns: u.Columns})
	}
	for _, c := range t.Checks {
		entry.Check = append(entry.Check, CheckEntry{Expression: c.Expression})
	}
	return entry
}

// describeColumnType writes a column type the way the source grammar
// expects it back: enum types in the owning table's schema stay
// unqualified (the loader resolves those against the own schema first),
// any other enum type is written fully qualified.
func describeColumnType(t *schema.Table, c *schema.Column) string {
	if !c.Type.IsEnum() {
		return c.Type.Name
	}
	if c.Type.Enum.Schema == t.Name.Schema {
		return c.Type.Enum.Name
	}
	return c.Type.Enum.String()
}

func describeFunction(f *schema.Function) *FunctionEntry {
	entry := &FunctionEntry{
		Name:         f.Name.Name,
		Schema:       f.Name.Schema,
		Description:  f.Description,
		Language:     f.Language,
		ReturnType:   f.ReturnType,
		ReturnsSet:   f.ReturnsSet,
		Source:       f.Source,
		Dependencies: describeDependencies(f.DependsOn),
	}
	for _, a := range f.Arguments {
		entry.Arguments = append(entry.Arguments, ArgumentEntry{Name: a.Name, DataType: a.Type, Default: a.Default})
	}
	return entry
}

func describeDependencies(deps []schema.ObjectName) []string {
	var out []string
	for _, dep := range deps {
		if dep.Schema == schema.DefaultSchema {
			out = append(out, dep.Name)
		} else {
			out = append(out, dep.String())
		}
	}
	return out
}

// YAML marshals the description as YAML.
func (d *Description) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// JSON marshals the description as indented JSON.
func (d *Description) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

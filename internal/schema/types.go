// Package schema holds the validated in-memory representation of a database
// schema: the object model shared by the loader, the resolver, the emitters
// and the catalog extractor. A Model is built once through a Builder and is
// treated as immutable afterwards.
package schema

// DefaultSchema is the namespace objects belong to when their definition
// does not name one.
const DefaultSchema = "public"

// ObjectName is a fully-qualified object name: namespace plus local name.
// It identifies an object uniquely within a Model.
type ObjectName struct {
	Schema string
	Name   string
}

func (n ObjectName) String() string {
	return n.Schema + "." + n.Name
}

// IsZero reports whether the name is unset.
func (n ObjectName) IsZero() bool {
	return n.Schema == "" && n.Name == ""
}

// Kind discriminates the object kinds the model supports.
type Kind string

const (
	KindEnumType Kind = "enum_type"
	KindTable    Kind = "table"
	KindView     Kind = "view"
	KindFunction Kind = "function"
)

// Object is implemented by every named schema object that participates in
// dependency resolution.
type Object interface {
	ObjectName() ObjectName
	ObjectKind() Kind
}

// Model is a complete, validated database schema.
type Model struct {
	Extensions []string
	Schemas    []*Schema // declaration order
	Objects    []Object  // declaration order, all kinds

	index map[ObjectName]Object
}

// Lookup returns the object registered under the given fully-qualified name.
func (m *Model) Lookup(name ObjectName) (Object, bool) {
	obj, ok := m.index[name]
	return obj, ok
}

// Table returns the table registered under the given name.
func (m *Model) Table(name ObjectName) (*Table, bool) {
	t, ok := m.index[name].(*Table)
	return t, ok
}

// EnumType returns the enum type registered under the given name.
func (m *Model) EnumType(name ObjectName) (*EnumType, bool) {
	e, ok := m.index[name].(*EnumType)
	return e, ok
}

// Schema is a namespace owning tables, enum types, views and functions.
type Schema struct {
	Name      string
	EnumTypes []*EnumType
	Tables    []*Table
	Views     []*View
	Functions []*Function
}

// Table is an ordered sequence of columns with optional constraints and
// seed rows.
type Table struct {
	Name        ObjectName
	Description string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	ForeignKeys []ForeignKey
	Unique      []UniqueConstraint
	Checks      []CheckConstraint
	Rows        []Row
}

func (t *Table) ObjectName() ObjectName { return t.Name }
func (t *Table) ObjectKind() Kind       { return KindTable }

// Column returns the column with the given name, if present.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Column is a single table column.
type Column struct {
	Name        string
	Type        DataType
	Nullable    bool
	Default     string
	Description string
}

// DataType is a column type: either a primitive type name or a resolved
// reference to an EnumType in the same model.
type DataType struct {
	Name string     // type name as written in the source
	Enum ObjectName // resolved enum type; zero for primitives
}

// IsEnum reports whether the type resolved to an enum type.
func (t DataType) IsEnum() bool { return !t.Enum.IsZero() }

// String returns the type name for rendering. Enum types in the default
// schema render unqualified, the way the source grammar writes them.
func (t DataType) String() string {
	if !t.IsEnum() {
		return t.Name
	}
	if t.Enum.Schema == DefaultSchema {
		return t.Enum.Name
	}
	return t.Enum.String()
}

// PrimaryKey names an ordered subset of the owning table's columns.
type PrimaryKey struct {
	Name    string
	Columns []string
}

// ForeignKey ties an ordered list of local columns to the matching columns
// of a target table.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   ObjectName
	RefColumns []string
}

// UniqueConstraint is a table-level uniqueness constraint.
type UniqueConstraint struct {
	Name    string
	Columns []string
}

// CheckConstraint is an opaque table-level check expression.
type CheckConstraint struct {
	Expression string
}

// Row is literal seed data for a table.
type Row struct {
	Values []RowValue
}

// RowValue is one column/value pair of a seed row.
type RowValue struct {
	Column string
	Value  Literal
}

// Literal is a scalar value from the source description. Quoted literals
// render as SQL string literals; unquoted ones pass through verbatim
// (numbers, booleans, expressions like now()).
type Literal struct {
	Value  string
	Quoted bool
}

// EnumType is a named type with an ordered list of labels; label order is
// the value ordering.
type EnumType struct {
	Name   ObjectName
	Labels []string
}

func (e *EnumType) ObjectName() ObjectName { return e.Name }
func (e *EnumType) ObjectKind() Kind       { return KindEnumType }

// View is a named object with an opaque query and a declared dependency
// list used only for ordering and emission.
type View struct {
	Name        ObjectName
	Description string
	Query       string
	DependsOn   []ObjectName
}

func (v *View) ObjectName() ObjectName { return v.Name }
func (v *View) ObjectKind() Kind       { return KindView }

// Function is a named routine with an opaque body and a declared dependency
// list used only for ordering and emission.
type Function struct {
	Name        ObjectName
	Description string
	Language    string
	Arguments   []Argument
	ReturnType  string
	ReturnsSet  bool
	Source      string
	DependsOn   []ObjectName
}

func (f *Function) ObjectName() ObjectName { return f.Name }
func (f *Function) ObjectKind() Kind       { return KindFunction }

// Argument is a function argument.
type Argument struct {
	Name    string
	Type    string
	Default string
}

package schema

import (
	"fmt"
	"strings"
)

// Builder assembles a Model. Objects are registered one by one under their
// fully-qualified name; Finish then resolves every reference against the
// registered set and checks the structural invariants. Construction is
// all-or-nothing: on any error no Model is returned.
//
// The loader and the catalog extractor both build their Models through this
// type, so both enforce exactly the same rules.
type Builder struct {
	extensions []string
	schemas    map[string]*Schema
	schemaList []*Schema
	objects    map[ObjectName]Object
	order      []Object
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		schemas: make(map[string]*Schema),
		objects: make(map[ObjectName]Object),
	}
}

// AddExtension records a database extension to declare before any object.
func (b *Builder) AddExtension(name string) {
	b.extensions = append(b.extensions, name)
}

// EnsureSchema returns the namespace with the given name, registering it on
// first use.
func (b *Builder) EnsureSchema(name string) *Schema {
	if s, ok := b.schemas[name]; ok {
		return s
	}
	s := &Schema{Name: name}
	b.schemas[name] = s
	b.schemaList = append(b.schemaList, s)
	return s
}

func (b *Builder) register(obj Object) error {
	name := obj.ObjectName()
	if _, ok := b.objects[name]; ok {
		return &DuplicateNameError{Name: name}
	}
	b.objects[name] = obj
	b.order = append(b.order, obj)
	return nil
}

// AddEnumType registers an enum type.
func (b *Builder) AddEnumType(e *EnumType) error {
	if err := b.register(e); err != nil {
		return err
	}
	s := b.EnsureSchema(e.Name.Schema)
	s.EnumTypes = append(s.EnumTypes, e)
	return nil
}

// AddTable registers a table.
func (b *Builder) AddTable(t *Table) error {
	if err := b.register(t); err != nil {
		return err
	}
	s := b.EnsureSchema(t.Name.Schema)
	s.Tables = append(s.Tables, t)
	return nil
}

// AddView registers a view.
func (b *Builder) AddView(v *View) error {
	if err := b.register(v); err != nil {
		return err
	}
	s := b.EnsureSchema(v.Name.Schema)
	s.Views = append(s.Views, v)
	return nil
}

// AddFunction registers a function.
func (b *Builder) AddFunction(f *Function) error {
	if err := b.register(f); err != nil {
		return err
	}
	s := b.EnsureSchema(f.Name.Schema)
	s.Functions = append(s.Functions, f)
	return nil
}

// Finish resolves all references and returns the validated Model.
//
// Column types are resolved before foreign keys so that pairwise type
// compatibility compares resolved types on both sides.
func (b *Builder) Finish() (*Model, error) {
	m := &Model{
		Extensions: b.extensions,
		Schemas:    b.schemaList,
		Objects:    b.order,
		index:      b.objects,
	}

	for _, obj := range b.order {
		switch o := obj.(type) {
		case *EnumType:
			if len(o.Labels) == 0 {
				return nil, &ValidationError{Path: o.Name.String(), Message: "enum type has no labels"}
			}
		case *Table:
			if err := b.checkTable(m, o); err != nil {
				return nil, err
			}
		case *View:
			if err := b.checkDependencies(o.Name, o.DependsOn); err != nil {
				return nil, err
			}
		case *Function:
			if err := b.checkDependencies(o.Name, o.DependsOn); err != nil {
				return nil, err
			}
		}
	}

	for _, obj := range b.order {
		if t, ok := obj.(*Table); ok {
			if err := b.resolveForeignKeys(m, t); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (b *Builder) checkTable(m *Model, t *Table) error {
	if len(t.Columns) == 0 {
		return &ValidationError{Path: t.Name.String(), Message: "table has no columns"}
	}

	seen := make(map[string]bool, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		if seen[c.Name] {
			return &ValidationError{
				Path:    t.Name.String(),
				Message: fmt.Sprintf("duplicate column %q", c.Name),
			}
		}
		seen[c.Name] = true

		if err := b.resolveColumnType(m, t, c); err != nil {
			return err
		}
	}

	if pk := t.PrimaryKey; pk != nil {
		if len(pk.Columns) == 0 {
			return &ValidationError{Path: t.Name.String(), Message: "primary key has no columns"}
		}
		if pk.Name == "" {
			pk.Name = t.Name.Name + "_pkey"
		}
		for _, name := range pk.Columns {
			if !seen[name] {
				return &ValidationError{
					Path:    t.Name.String(),
					Message: fmt.Sprintf("primary key names unknown column %q", name),
				}
			}
		}
	}

	for _, u := range t.Unique {
		for _, name := range u.Columns {
			if !seen[name] {
				return &ValidationError{
					Path:    t.Name.String(),
					Message: fmt.Sprintf("unique constraint names unknown column %q", name),
				}
			}
		}
	}

	for i, row := range t.Rows {
		for _, rv := range row.Values {
			if !seen[rv.Column] {
				return &ValidationError{
					Path:    t.Name.String(),
					Message: fmt.Sprintf("row %d names unknown column %q", i, rv.Column),
				}
			}
		}
	}

	return nil
}

// resolveColumnType binds a column's type name to a registered enum type
// where one applies. A schema-qualified name must resolve to an enum type.
// An unqualified name resolves against the enum types of the column's own
// schema first, then against the default schema, and is otherwise taken as
// a primitive type name.
func (b *Builder) resolveColumnType(m *Model, t *Table, c *Column) error {
	name := c.Type.Name

	if i := strings.IndexByte(name, '.'); i >= 0 {
		ref := ObjectName{Schema: name[:i], Name: name[i+1:]}
		enum, ok := m.EnumType(ref)
		if !ok {
			return &ReferenceError{
				Object: t.Name,
				Field:  "column " + c.Name,
				Ref:    name,
			}
		}
		c.Type.Enum = enum.Name
		return nil
	}

	if enum, ok := m.EnumType(ObjectName{Schema: t.Name.Schema, Name: name}); ok {
		c.Type.Enum = enum.Name
	} else if enum, ok := m.EnumType(ObjectName{Schema: DefaultSchema, Name: name}); ok {
		c.Type.Enum = enum.Name
	}
	return nil
}

func (b *Builder) checkDependencies(owner ObjectName, deps []ObjectName) error {
	for _, dep := range deps {
		if _, ok := b.objects[dep]; !ok {
			return &ReferenceError{Object: owner, Ref: dep.String()}
		}
	}
	return nil
}

func (b *Builder) resolveForeignKeys(m *Model, t *Table) error {
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("%s_%s_fk_%d", t.Name.Schema, t.Name.Name, i)
		}

		field := "foreign key " + fk.Name

		if len(fk.Columns) != len(fk.RefColumns) {
			return &ValidationError{
				Path: t.Name.String(),
				Message: fmt.Sprintf("%s: %d local columns reference %d target columns",
					field, len(fk.Columns), len(fk.RefColumns)),
			}
		}

		target, ok := m.Table(fk.RefTable)
		if !ok {
			return &ReferenceError{Object: t.Name, Field: field, Ref: fk.RefTable.String()}
		}

		for j, name := range fk.Columns {
			local, ok := t.Column(name)
			if !ok {
				return &ValidationError{
					Path:    t.Name.String(),
					Message: fmt.Sprintf("%s names unknown column %q", field, name),
				}
			}
			remote, ok := target.Column(fk.RefColumns[j])
			if !ok {
				return &ReferenceError{
					Object: t.Name,
					Field:  field,
					Ref:    fk.RefTable.String() + "." + fk.RefColumns[j],
				}
			}
			if local.Type.String() != remote.Type.String() {
				return &ValidationError{
					Path: t.Name.String(),
					Message: fmt.Sprintf("%s: column %q has type %s but %s.%s has type %s",
						field, name, local.Type, fk.RefTable, remote.Name, remote.Type),
				}
			}
		}

		if !refMatchesKey(target, fk.RefColumns) {
			return &ValidationError{
				Path: t.Name.String(),
				Message: fmt.Sprintf("%s: referenced columns (%s) match neither the primary key nor a unique constraint of %s",
					field, strings.Join(fk.RefColumns, ", "), fk.RefTable),
			}
		}
	}
	return nil
}

// refMatchesKey checks the referenced column list against the target's
// candidate keys: the primary key first, then unique constraints in
// declaration order. Comparison is order-insensitive, like the catalog's.
func refMatchesKey(target *Table, refColumns []string) bool {
	if target.PrimaryKey != nil && sameColumnSet(target.PrimaryKey.Columns, refColumns) {
		return true
	}
	for _, u := range target.Unique {
		if sameColumnSet(u.Columns, refColumns) {
			return true
		}
	}
	return false
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, name := range a {
		set[name] = true
	}
	for _, name := range b {
		if !set[name] {
			return false
		}
	}
	return true
}

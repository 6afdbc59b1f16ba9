// Package project builds read-only projections of a Model for downstream
// renderers: a documentation tree and a diagram graph. Both follow the
// resolver's deterministic order rather than map iteration, and neither
// does any text formatting.
package project

import (
	"github.com/pgtools/schemac/internal/resolve"
	"github.com/pgtools/schemac/internal/schema"
)

// Documentation is a normalized tree of the Model's schemas and tables.
type Documentation struct {
	Schemas []SchemaDoc
}

// SchemaDoc documents one namespace; tables appear in resolver order.
type SchemaDoc struct {
	Name   string
	Tables []TableDoc
}

// TableDoc documents one table.
type TableDoc struct {
	Name        schema.ObjectName
	Description string
	Columns     []ColumnDoc
	PrimaryKey  []string
	ForeignKeys []ForeignKeyDoc
}

// ColumnDoc documents one column with its resolved type name.
type ColumnDoc struct {
	Name        string
	Type        string
	Nullable    bool
	Description string
}

// ForeignKeyDoc summarizes one foreign key.
type ForeignKeyDoc struct {
	Name          string
	Columns       []string
	Target        schema.ObjectName
	TargetColumns []string
}

// BuildDocumentation projects the Model into a documentation tree. Schemas
// keep their declaration order; tables within a schema follow the
// resolver's order.
func BuildDocumentation(m *schema.Model, ord *resolve.Order) *Documentation {
	bySchema := make(map[string][]TableDoc)
	for _, obj := range ord.Objects {
		t, ok := obj.(*schema.Table)
		if !ok {
			continue
		}
		bySchema[t.Name.Schema] = append(bySchema[t.Name.Schema], documentTable(t))
	}

	doc := &Documentation{}
	for _, s := range m.Schemas {
		doc.Schemas = append(doc.Schemas, SchemaDoc{
			Name:   s.Name,
			Tables: bySchema[s.Name],
		})
	}
	return doc
}

func documentTable(t *schema.Table) TableDoc {
	td := TableDoc{
		Name:        t.Name,
		Description: t.Description,
	}
	for _, c := range t.Columns {
		td.Columns = append(td.Columns, ColumnDoc{
			Name:        c.Name,
			Type:        c.Type.String(),
			Nullable:    c.Nullable,
			Description: c.Description,
		})
	}
	if t.PrimaryKey != nil {
		td.PrimaryKey = t.PrimaryKey.Columns
	}
	for _, fk := range t.ForeignKeys {
		td.ForeignKeys = append(td.ForeignKeys, ForeignKeyDoc{
			Name:          fk.Name,
			Columns:       fk.Columns,
			Target:        fk.RefTable,
			TargetColumns: fk.RefColumns,
		})
	}
	return td
}

// Diagram is a graph projection of the Model for diagram renderers: tables
// (and the enum types they use) as nodes, foreign keys as edges.
type Diagram struct {
	Nodes []DiagramNode
	Edges []DiagramEdge
}

// DiagramNode is a diagram node.
type DiagramNode struct {
	Name    schema.ObjectName
	Kind    schema.Kind
	Columns []ColumnDoc // set for table nodes
}

// DiagramEdge is a foreign-key edge, labeled with the constraint name and
// annotated with the column lists on either end.
type DiagramEdge struct {
	Name          string
	Source        schema.ObjectName
	Target        schema.ObjectName
	Columns       []string
	TargetColumns []string
}

// BuildDiagram projects the Model into a diagram graph, reusing the
// resolver's graph for node order and edge set. Enum types appear as nodes
// only when some column references them.
func BuildDiagram(m *schema.Model, ord *resolve.Order) *Diagram {
	d := &Diagram{}

	referenced := make(map[schema.ObjectName]bool)
	for _, e := range ord.Graph.Edges {
		if e.Kind == resolve.EdgeColumnType {
			referenced[e.To] = true
		}
	}

	for _, obj := range ord.Objects {
		switch o := obj.(type) {
		case *schema.Table:
			node := DiagramNode{Name: o.Name, Kind: schema.KindTable}
			for _, c := range o.Columns {
				node.Columns = append(node.Columns, ColumnDoc{
					Name:     c.Name,
					Type:     c.Type.String(),
					Nullable: c.Nullable,
				})
			}
			d.Nodes = append(d.Nodes, node)
		case *schema.EnumType:
			if referenced[o.Name] {
				d.Nodes = append(d.Nodes, DiagramNode{Name: o.Name, Kind: schema.KindEnumType})
			}
		}
	}

	for _, e := range ord.Graph.Edges {
		if e.Kind != resolve.EdgeForeignKey {
			continue
		}
		src, ok := m.Table(e.From)
		if !ok {
			continue
		}
		fk := src.ForeignKeys[e.FKIndex]
		d.Edges = append(d.Edges, DiagramEdge{
			Name:          fk.Name,
			Source:        e.From,
			Target:        e.To,
			Columns:       fk.Columns,
			TargetColumns: fk.RefColumns,
		})
	}
	return d
}

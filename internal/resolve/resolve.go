// Package resolve derives a dependency graph from a validated Model and
// produces a deterministic creation order over its objects.
//
// Foreign-key edges are special: a cycle running only through foreign keys
// is broken by deferring the offending constraints, which the SQL emitter
// then applies after all tables exist. Every other edge kind (column enum
// types, declared view/function dependencies) is structural and must stay
// acyclic.
package resolve

import (
	"github.com/pgtools/schemac/internal/schema"
)

// EdgeKind classifies a dependency edge.
type EdgeKind int

const (
	// EdgeForeignKey links a table to the table its foreign key references.
	// These edges may be deferred to break cycles.
	EdgeForeignKey EdgeKind = iota
	// EdgeColumnType links a table to an enum type used by one of its
	// columns.
	EdgeColumnType
	// EdgeDependency links a view or function to a declared dependency.
	EdgeDependency
)

// Edge is a directed dependency: From requires To to exist first.
type Edge struct {
	From schema.ObjectName
	To   schema.ObjectName
	Kind EdgeKind

	// Name is the constraint name for foreign-key edges and FKIndex the
	// position in the owning table's ForeignKeys list.
	Name    string
	FKIndex int
}

// Graph is the dependency graph over a Model's objects. Nodes appear in
// declaration order; edges in the order their owners declare them.
type Graph struct {
	Nodes []schema.Object
	Edges []Edge

	index map[schema.ObjectName]int
}

// BuildGraph derives the dependency graph from a validated Model. All
// references are already resolved, so every edge endpoint names an
// existing node.
func BuildGraph(m *schema.Model) *Graph {
	g := &Graph{index: make(map[schema.ObjectName]int, len(m.Objects))}

	for i, obj := range m.Objects {
		g.Nodes = append(g.Nodes, obj)
		g.index[obj.ObjectName()] = i
	}

	for _, obj := range m.Objects {
		switch o := obj.(type) {
		case *schema.Table:
			seen := make(map[schema.ObjectName]bool)
			for i := range o.Columns {
				enum := o.Columns[i].Type.Enum
				if !enum.IsZero() && !seen[enum] {
					seen[enum] = true
					g.Edges = append(g.Edges, Edge{From: o.Name, To: enum, Kind: EdgeColumnType})
				}
			}
			for i, fk := range o.ForeignKeys {
				g.Edges = append(g.Edges, Edge{
					From:    o.Name,
					To:      fk.RefTable,
					Kind:    EdgeForeignKey,
					Name:    fk.Name,
					FKIndex: i,
				})
			}
		case *schema.View:
			for _, dep := range o.DependsOn {
				g.Edges = append(g.Edges, Edge{From: o.Name, To: dep, Kind: EdgeDependency})
			}
		case *schema.Function:
			for _, dep := range o.DependsOn {
				g.Edges = append(g.Edges, Edge{From: o.Name, To: dep, Kind: EdgeDependency})
			}
		}
	}
	return g
}

// DeferredForeignKey identifies a foreign key excluded from the initial
// ordering; it must be applied after all tables exist.
type DeferredForeignKey struct {
	Table schema.ObjectName
	Index int // position in the table's ForeignKeys list
	Name  string
}

type deferredKey struct {
	table schema.ObjectName
	index int
}

// Order is a total creation order over a Model's objects plus the set of
// foreign keys that had to be deferred to achieve it.
type Order struct {
	Graph    *Graph
	Objects  []schema.Object
	Deferred []DeferredForeignKey

	deferred map[deferredKey]bool
}

// IsDeferred reports whether the index-th foreign key of the given table
// was deferred.
func (o *Order) IsDeferred(table schema.ObjectName, index int) bool {
	return o.deferred[deferredKey{table: table, index: index}]
}

// Resolve computes the creation order for a validated Model. Every object
// is placed after all objects it depends on; ties are broken by declaration
// order, then by FQN, so repeated runs over the same input produce the same
// order.
//
// When no object can be placed, the first blocked table (in tie-break
// order) whose unsatisfied dependencies are all foreign keys has those
// foreign keys deferred and is placed anyway. If no such table exists the
// remaining objects form a structural cycle and resolution fails with a
// CyclicDependencyError.
func Resolve(m *schema.Model) (*Order, error) {
	g := BuildGraph(m)
	n := len(g.Nodes)

	// Outgoing edges per node. Self-referencing foreign keys impose no
	// ordering constraint and are excluded here.
	out := make([][]int, n)
	for ei, e := range g.Edges {
		if e.From == e.To {
			continue
		}
		from := g.index[e.From]
		out[from] = append(out[from], ei)
	}

	ord := &Order{Graph: g, deferred: make(map[deferredKey]bool)}
	placed := make([]bool, n)
	deferredEdge := make(map[int]bool)

	unsatisfied := func(node int) []int {
		var pending []int
		for _, ei := range out[node] {
			if deferredEdge[ei] {
				continue
			}
			if !placed[g.index[g.Edges[ei].To]] {
				pending = append(pending, ei)
			}
		}
		return pending
	}

	for len(ord.Objects) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && len(unsatisfied(i)) == 0 {
				next = i
				break
			}
		}

		if next < 0 {
			// Every remaining object is blocked. Break the cycle by
			// deferring the foreign keys of the first table whose pending
			// dependencies are all deferrable.
			for i := 0; i < n; i++ {
				if placed[i] {
					continue
				}
				pending := unsatisfied(i)
				if !allForeignKeys(g, pending) {
					continue
				}
				for _, ei := range pending {
					e := g.Edges[ei]
					deferredEdge[ei] = true
					ord.Deferred = append(ord.Deferred, DeferredForeignKey{
						Table: e.From,
						Index: e.FKIndex,
						Name:  e.Name,
					})
					ord.deferred[deferredKey{table: e.From, index: e.FKIndex}] = true
				}
				next = i
				break
			}
		}

		if next < 0 {
			return nil, &schema.CyclicDependencyError{
				Cycle: structuralCycle(g, placed, deferredEdge, unsatisfied),
			}
		}

		placed[next] = true
		ord.Objects = append(ord.Objects, g.Nodes[next])
	}

	return ord, nil
}

func allForeignKeys(g *Graph, edges []int) bool {
	if len(edges) == 0 {
		return false
	}
	for _, ei := range edges {
		if g.Edges[ei].Kind != EdgeForeignKey {
			return false
		}
	}
	return true
}

// structuralCycle walks unsatisfied edges from the first blocked node until
// a node repeats, returning the loop's FQNs in graph order.
func structuralCycle(g *Graph, placed []bool, deferredEdge map[int]bool, unsatisfied func(int) []int) []schema.ObjectName {
	start := -1
	for i := range g.Nodes {
		if !placed[i] {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	visited := make(map[int]int)
	var path []int
	node := start
	for {
		if at, ok := visited[node]; ok {
			cycle := make([]schema.ObjectName, 0, len(path)-at)
			for _, i := range path[at:] {
				cycle = append(cycle, g.Nodes[i].ObjectName())
			}
			return cycle
		}
		visited[node] = len(path)
		path = append(path, node)

		pending := unsatisfied(node)
		if len(pending) == 0 {
			return nil
		}
		node = g.index[g.Edges[pending[0]].To]
	}
}

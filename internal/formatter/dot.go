package formatter

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/pgtools/schemac/internal/project"
	"github.com/pgtools/schemac/internal/schema"
)

// DotFormatter renders the diagram graph in Graphviz dot syntax. Tables
// become record-style HTML labels grouped in one cluster per schema;
// foreign keys become labeled edges.
type DotFormatter struct {
	writer io.Writer
}

// NewDotFormatter creates a new dot formatter.
func NewDotFormatter(w io.Writer) *DotFormatter {
	return &DotFormatter{writer: w}
}

// Format writes the diagram as a single digraph.
func (f *DotFormatter) Format(d *project.Diagram) error {
	f.printf("digraph schema {\n")
	f.printf("  rankdir=LR;\n")
	f.printf("  node [shape=none];\n\n")

	// One cluster per schema, in node order.
	var schemas []string
	bySchema := make(map[string][]project.DiagramNode)
	for _, n := range d.Nodes {
		if _, ok := bySchema[n.Name.Schema]; !ok {
			schemas = append(schemas, n.Name.Schema)
		}
		bySchema[n.Name.Schema] = append(bySchema[n.Name.Schema], n)
	}

	for _, s := range schemas {
		f.printf("  subgraph cluster_%s {\n", nodeID(s))
		f.printf("    label = %q;\n\n", s)
		for _, n := range bySchema[s] {
			f.formatNode(n)
		}
		f.printf("  }\n\n")
	}

	for _, e := range d.Edges {
		f.printf("  %s -> %s [label=%q, taillabel=%q, headlabel=%q];\n",
			nodeID(e.Source.String()),
			nodeID(e.Target.String()),
			e.Name,
			strings.Join(e.Columns, ", "),
			strings.Join(e.TargetColumns, ", "))
	}

	f.printf("}\n")
	return nil
}

func (f *DotFormatter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(f.writer, format, args...)
}

func (f *DotFormatter) formatNode(n project.DiagramNode) {
	if n.Kind == schema.KindEnumType {
		f.printf("    %s [shape=ellipse, label=%q];\n", nodeID(n.Name.String()), n.Name.Name)
		return
	}

	var b strings.Builder
	b.WriteString(`<<table border="0" cellborder="1" cellspacing="0">`)
	fmt.Fprintf(&b, `<tr><td bgcolor="lightgrey" colspan="2"><b>%s</b></td></tr>`, html.EscapeString(n.Name.Name))
	for _, c := range n.Columns {
		fmt.Fprintf(&b, `<tr><td align="left">%s</td><td align="left">%s</td></tr>`,
			html.EscapeString(c.Name), html.EscapeString(c.Type))
	}
	b.WriteString(`</table>>`)

	f.printf("    %s [label=%s];\n", nodeID(n.Name.String()), b.String())
}

// nodeID maps an object name to a dot identifier.
func nodeID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

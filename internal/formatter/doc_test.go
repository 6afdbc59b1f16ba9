package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgtools/schemac/internal/project"
)

func webshopDocumentation(t *testing.T) (*project.Documentation, *project.Diagram) {
	t.Helper()
	m, ord := mustResolve(t, webshopBuilder(t))
	return project.BuildDocumentation(m, ord), project.BuildDiagram(m, ord)
}

func TestMarkdownFormat(t *testing.T) {
	doc, _ := webshopDocumentation(t)

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(doc))
	out := buf.String()

	assert.Contains(t, out, "# Database Schema\n")
	assert.Contains(t, out, "## shop.Order\n\nContains all orders\n")
	assert.Contains(t, out, "- **id:** integer, PK, NOT NULL\n")
	assert.Contains(t, out, "- **created:** timestamp with time zone, NOT NULL\n")
	assert.Contains(t, out, "- **status:** shop.order_status, NOT NULL\n")
	assert.Contains(t, out, "### References\n\n- test: order_id → shop.Order (id)\n")

	// Resolver order: Order documented before OrderLine.
	assert.Less(t, strings.Index(out, "## shop.Order\n"), strings.Index(out, "## shop.OrderLine\n"))
}

func TestRSTFormat(t *testing.T) {
	doc, _ := webshopDocumentation(t)

	var buf bytes.Buffer
	require.NoError(t, NewRSTFormatter(&buf).Format(doc))
	out := buf.String()

	assert.Contains(t, out, "shop\n====\n")
	assert.Contains(t, out, "Order\n-----\n")
	assert.Contains(t, out, "Contains all orders\n")
	assert.Contains(t, out, "Primary key: id\n")
	assert.Contains(t, out, "Foreign key test: (order_id) references shop.Order (id)\n")

	// Grid table: separator, header, header separator.
	lines := strings.Split(out, "\n")
	headerAt := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "| name ") {
			headerAt = i
			break
		}
	}
	require.GreaterOrEqual(t, headerAt, 1)
	assert.True(t, strings.HasPrefix(lines[headerAt-1], "+--"))
	assert.True(t, strings.HasPrefix(lines[headerAt+1], "+=="))
}

func TestDotFormat(t *testing.T) {
	_, diagram := webshopDocumentation(t)

	var buf bytes.Buffer
	require.NoError(t, NewDotFormatter(&buf).Format(diagram))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph schema {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "subgraph cluster_shop {")
	assert.Contains(t, out, `label = "shop";`)
	assert.Contains(t, out, "shop_Order [label=<<table")
	assert.Contains(t, out, `shop_order_status [shape=ellipse, label="order_status"];`)
	assert.Contains(t, out,
		`shop_OrderLine -> shop_Order [label="test", taillabel="order_id", headlabel="id"];`)
	assert.Equal(t, 1, strings.Count(out, `label="test"`))
}

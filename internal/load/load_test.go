package load

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgtools/schemac/internal/schema"
)

func loadWebshop(t *testing.T) *schema.Model {
	t.Helper()

	f, err := os.Open("testdata/webshop.yaml")
	require.NoError(t, err)
	defer f.Close()

	m, err := Load(f)
	require.NoError(t, err)
	return m
}

func TestLoadWebshop(t *testing.T) {
	m := loadWebshop(t)

	assert.Equal(t, []string{"btree_gist"}, m.Extensions)
	require.Len(t, m.Objects, 3)

	order, ok := m.Table(schema.ObjectName{Schema: "shop", Name: "Order"})
	require.True(t, ok)
	assert.Equal(t, "Contains all orders", order.Description)
	require.Len(t, order.Columns, 3)

	created, ok := order.Column("created")
	require.True(t, ok)
	assert.Equal(t, "timestamp with time zone", created.Type.String())
	assert.False(t, created.Nullable)
	assert.Equal(t, "now()", created.Default)

	status, ok := order.Column("status")
	require.True(t, ok)
	assert.True(t, status.Type.IsEnum())
	assert.Equal(t, "shop.order_status", status.Type.String())

	require.NotNil(t, order.PrimaryKey)
	assert.Equal(t, "Order_pkey", order.PrimaryKey.Name)
	assert.Equal(t, []string{"id"}, order.PrimaryKey.Columns)

	line, ok := m.Table(schema.ObjectName{Schema: "shop", Name: "OrderLine"})
	require.True(t, ok)
	require.Len(t, line.ForeignKeys, 1)
	fk := line.ForeignKeys[0]
	assert.Equal(t, "test", fk.Name)
	assert.Equal(t, []string{"order_id"}, fk.Columns)
	assert.Equal(t, schema.ObjectName{Schema: "shop", Name: "Order"}, fk.RefTable)
	assert.Equal(t, []string{"id"}, fk.RefColumns)

	enum, ok := m.EnumType(schema.ObjectName{Schema: "shop", Name: "order_status"})
	require.True(t, ok)
	assert.Equal(t, []string{"new", "paid", "shipped"}, enum.Labels)
}

func TestLoadDefaultSchema(t *testing.T) {
	m, err := Load(strings.NewReader(`
objects:
  - table:
      name: person
      columns:
        - name: id
          data_type: integer
`))
	require.NoError(t, err)

	_, ok := m.Table(schema.ObjectName{Schema: "public", Name: "person"})
	assert.True(t, ok)
}

func TestLoadEnumFromDefaultSchema(t *testing.T) {
	// An unqualified data_type falls back to the default schema's enum
	// types when the table's own schema has no match.
	m, err := Load(strings.NewReader(`
objects:
  - enum_type:
      name: color
      labels:
        - red
        - green
  - table:
      name: item
      schema: shop
      columns:
        - name: id
          data_type: integer
        - name: color
          data_type: color
`))
	require.NoError(t, err)

	item, ok := m.Table(schema.ObjectName{Schema: "shop", Name: "item"})
	require.True(t, ok)
	col, ok := item.Column("color")
	require.True(t, ok)
	assert.True(t, col.Type.IsEnum())
	assert.Equal(t, schema.ObjectName{Schema: "public", Name: "color"}, col.Type.Enum)
}

func TestLoadOwnSchemaEnumWins(t *testing.T) {
	m, err := Load(strings.NewReader(`
objects:
  - enum_type:
      name: color
      labels:
        - red
  - enum_type:
      name: color
      schema: shop
      labels:
        - blue
  - table:
      name: item
      schema: shop
      columns:
        - name: color
          data_type: color
`))
	require.NoError(t, err)

	item, ok := m.Table(schema.ObjectName{Schema: "shop", Name: "item"})
	require.True(t, ok)
	col, ok := item.Column("color")
	require.True(t, ok)
	assert.Equal(t, schema.ObjectName{Schema: "shop", Name: "color"}, col.Type.Enum)
}

func TestLoadRows(t *testing.T) {
	m, err := Load(strings.NewReader(`
objects:
  - table:
      name: country
      columns:
        - name: id
          data_type: integer
        - name: name
          data_type: text
        - name: remark
          data_type: text
      rows:
        - id: 1
          name: Netherlands
          remark: null
`))
	require.NoError(t, err)

	tbl, ok := m.Table(schema.ObjectName{Schema: "public", Name: "country"})
	require.True(t, ok)
	require.Len(t, tbl.Rows, 1)

	values := tbl.Rows[0].Values
	require.Len(t, values, 3)
	assert.Equal(t, schema.Literal{Value: "1"}, values[0].Value)
	assert.Equal(t, schema.Literal{Value: "Netherlands", Quoted: true}, values[1].Value)
	assert.Equal(t, schema.Literal{Value: "NULL"}, values[2].Value)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		errType error
		message string
	}{
		{
			name: "unknown object kind",
			input: `
objects:
  - sequence:
      name: ids
`,
			errType: &schema.ValidationError{},
			message: `unknown object kind "sequence"`,
		},
		{
			name: "duplicate name",
			input: `
objects:
  - table:
      name: person
      columns:
        - name: id
          data_type: integer
  - table:
      name: person
      columns:
        - name: id
          data_type: integer
`,
			errType: &schema.DuplicateNameError{},
			message: "duplicate object name: public.person",
		},
		{
			name: "dangling enum type",
			input: `
objects:
  - table:
      name: Order
      schema: shop
      columns:
        - name: status
          data_type: shop.order_status
`,
			errType: &schema.ReferenceError{},
			message: `shop.Order: column status: reference to undefined object "shop.order_status"`,
		},
		{
			name: "table without columns",
			input: `
objects:
  - table:
      name: person
`,
			errType: &schema.ValidationError{},
			message: "table must declare columns",
		},
		{
			name: "foreign key column count mismatch",
			input: `
objects:
  - table:
      name: a
      columns:
        - name: id
          data_type: integer
      primary_key:
        columns:
          - id
  - table:
      name: b
      columns:
        - name: a_id
          data_type: integer
      foreign_keys:
        - columns:
            - a_id
          references:
            table:
              name: a
            columns:
              - id
              - id2
`,
			errType: &schema.ValidationError{},
			message: "1 local columns reference 2 target columns",
		},
		{
			name: "foreign key target is not a key",
			input: `
objects:
  - table:
      name: a
      columns:
        - name: id
          data_type: integer
        - name: other
          data_type: integer
      primary_key:
        columns:
          - id
  - table:
      name: b
      columns:
        - name: a_other
          data_type: integer
      foreign_keys:
        - columns:
            - a_other
          references:
            table:
              name: a
            columns:
              - other
`,
			errType: &schema.ValidationError{},
			message: "match neither the primary key nor a unique constraint",
		},
		{
			name: "row names unknown column",
			input: `
objects:
  - table:
      name: person
      columns:
        - name: id
          data_type: integer
      rows:
        - id: 1
          nickname: x
`,
			errType: &schema.ValidationError{},
			message: `row 0 names unknown column "nickname"`,
		},
		{
			name: "view without query",
			input: `
objects:
  - view:
      name: totals
`,
			errType: &schema.ValidationError{},
			message: "missing required field query",
		},
		{
			name: "view with undefined dependency",
			input: `
objects:
  - view:
      name: totals
      query: SELECT 1
      dependencies:
        - shop.Order
`,
			errType: &schema.ReferenceError{},
			message: `public.totals: reference to undefined object "shop.Order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.IsType(t, tt.errType, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFunction(t *testing.T) {
	m, err := Load(strings.NewReader(`
objects:
  - function:
      name: add_one
      arguments:
        - name: x
          data_type: integer
      return_type: integer
      source: SELECT x + 1
`))
	require.NoError(t, err)

	obj, ok := m.Lookup(schema.ObjectName{Schema: "public", Name: "add_one"})
	require.True(t, ok)
	fn, ok := obj.(*schema.Function)
	require.True(t, ok)
	assert.Equal(t, "sql", fn.Language)
	assert.False(t, fn.ReturnsSet)
	require.Len(t, fn.Arguments, 1)
	assert.Equal(t, schema.Argument{Name: "x", Type: "integer"}, fn.Arguments[0])
}

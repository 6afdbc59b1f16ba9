package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgtools/schemac/internal/resolve"
	"github.com/pgtools/schemac/internal/schema"
)

func mustResolve(t *testing.T, add func(b *schema.Builder)) (*schema.Model, *resolve.Order) {
	t.Helper()
	b := schema.NewBuilder()
	add(b)
	m, err := b.Finish()
	require.NoError(t, err)
	ord, err := resolve.Resolve(m)
	require.NoError(t, err)
	return m, ord
}

func webshopBuilder(t *testing.T) func(b *schema.Builder) {
	return func(b *schema.Builder) {
		b.AddExtension("btree_gist")
		require.NoError(t, b.AddTable(&schema.Table{
			Name:        schema.ObjectName{Schema: "shop", Name: "OrderLine"},
			Description: "Lines of orders",
			Columns: []schema.Column{
				{Name: "id", Type: schema.DataType{Name: "integer"}},
				{Name: "order_id", Type: schema.DataType{Name: "integer"}},
				{Name: "amount", Type: schema.DataType{Name: "integer"}},
			},
			PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
			ForeignKeys: []schema.ForeignKey{{
				Name:       "test",
				Columns:    []string{"order_id"},
				RefTable:   schema.ObjectName{Schema: "shop", Name: "Order"},
				RefColumns: []string{"id"},
			}},
		}))
		require.NoError(t, b.AddTable(&schema.Table{
			Name:        schema.ObjectName{Schema: "shop", Name: "Order"},
			Description: "Contains all orders",
			Columns: []schema.Column{
				{Name: "id", Type: schema.DataType{Name: "integer"}},
				{Name: "created", Type: schema.DataType{Name: "timestamp with time zone"}, Default: "now()"},
				{Name: "status", Type: schema.DataType{Name: "shop.order_status"}},
			},
			PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
		}))
		require.NoError(t, b.AddEnumType(&schema.EnumType{
			Name:   schema.ObjectName{Schema: "shop", Name: "order_status"},
			Labels: []string{"new", "paid", "shipped"},
		}))
	}
}

func formatSQL(t *testing.T, m *schema.Model, ord *resolve.Order) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewSQLFormatter(&buf).Format(m, ord))
	return buf.String()
}

func TestSQLFormatWebshop(t *testing.T) {
	m, ord := mustResolve(t, webshopBuilder(t))
	out := formatSQL(t, m, ord)

	assert.Contains(t, out, "CREATE EXTENSION btree_gist;\n")
	assert.Contains(t, out, `CREATE SCHEMA "shop";`)
	assert.Contains(t, out, "CREATE TYPE \"shop\".\"order_status\" AS ENUM (\n  'new',\n  'paid',\n  'shipped'\n);")
	assert.Contains(t, out, `  "created" timestamp with time zone NOT NULL DEFAULT now()`)
	assert.Contains(t, out, `  "status" shop.order_status NOT NULL`)
	assert.Contains(t, out, `  CONSTRAINT "test" FOREIGN KEY (order_id) REFERENCES "shop"."Order" (id)`)
	assert.Contains(t, out, `COMMENT ON TABLE "shop"."Order" IS 'Contains all orders';`)

	// Creation order follows dependencies, not declaration order.
	orderAt := strings.Index(out, `CREATE TABLE "shop"."Order"`)
	lineAt := strings.Index(out, `CREATE TABLE "shop"."OrderLine"`)
	require.GreaterOrEqual(t, orderAt, 0)
	require.GreaterOrEqual(t, lineAt, 0)
	assert.Less(t, orderAt, lineAt)

	assert.NotContains(t, out, "ALTER TABLE")
}

func TestSQLFormatDeterministic(t *testing.T) {
	m, ord := mustResolve(t, webshopBuilder(t))

	first := formatSQL(t, m, ord)
	second := formatSQL(t, m, ord)
	assert.Equal(t, first, second)
}

func TestSQLFormatDeferredForeignKey(t *testing.T) {
	m, ord := mustResolve(t, func(b *schema.Builder) {
		for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
			require.NoError(t, b.AddTable(&schema.Table{
				Name: schema.ObjectName{Schema: "public", Name: pair[0]},
				Columns: []schema.Column{
					{Name: "id", Type: schema.DataType{Name: "integer"}},
					{Name: pair[1] + "_id", Type: schema.DataType{Name: "integer"}},
				},
				PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
				ForeignKeys: []schema.ForeignKey{{
					Columns:    []string{pair[1] + "_id"},
					RefTable:   schema.ObjectName{Schema: "public", Name: pair[1]},
					RefColumns: []string{"id"},
				}},
			}))
		}
	})
	out := formatSQL(t, m, ord)

	assert.Equal(t, 1, strings.Count(out, "ALTER TABLE"))
	assert.Contains(t, out,
		`ALTER TABLE "public"."a" ADD CONSTRAINT "public_a_fk_0" FOREIGN KEY (b_id) REFERENCES "public"."b" (id);`)

	// The deferred constraint must not also appear inline.
	assert.Equal(t, 1, strings.Count(out, `"public_a_fk_0"`))
	assert.Contains(t, out, `  CONSTRAINT "public_b_fk_0" FOREIGN KEY (a_id) REFERENCES "public"."a" (id)`)
}

func TestSQLFormatRows(t *testing.T) {
	m, ord := mustResolve(t, func(b *schema.Builder) {
		require.NoError(t, b.AddTable(&schema.Table{
			Name: schema.ObjectName{Schema: "public", Name: "country"},
			Columns: []schema.Column{
				{Name: "id", Type: schema.DataType{Name: "integer"}},
				{Name: "name", Type: schema.DataType{Name: "text"}},
			},
			Rows: []schema.Row{{Values: []schema.RowValue{
				{Column: "id", Value: schema.Literal{Value: "1"}},
				{Column: "name", Value: schema.Literal{Value: "it's here", Quoted: true}},
			}}},
		}))
	})
	out := formatSQL(t, m, ord)

	assert.Contains(t, out, `INSERT INTO "public"."country" (id, name) VALUES (1, 'it''s here');`)
}

func TestSQLFormatViewAndFunction(t *testing.T) {
	m, ord := mustResolve(t, func(b *schema.Builder) {
		require.NoError(t, b.AddView(&schema.View{
			Name:  schema.ObjectName{Schema: "public", Name: "totals"},
			Query: "SELECT count(*) AS n FROM orders",
		}))
		require.NoError(t, b.AddFunction(&schema.Function{
			Name:       schema.ObjectName{Schema: "public", Name: "add_one"},
			Language:   "sql",
			Arguments:  []schema.Argument{{Name: "x", Type: "integer"}},
			ReturnType: "integer",
			Source:     "SELECT x + 1",
		}))
	})
	out := formatSQL(t, m, ord)

	assert.Contains(t, out, "CREATE VIEW \"public\".\"totals\" AS\nSELECT count(*) AS n FROM orders;")
	assert.Contains(t, out,
		"CREATE FUNCTION \"public\".\"add_one\"(\"x\" integer)\n    RETURNS integer\nAS $$\nSELECT x + 1\n$$ LANGUAGE sql;")
}

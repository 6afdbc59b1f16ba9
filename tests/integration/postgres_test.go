//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"strings"
	"testing"

	schemac "github.com/pgtools/schemac"
	"github.com/pgtools/schemac/internal/db"
	"github.com/pgtools/schemac/internal/schema"
)

const webshopDescription = `
objects:
  - enum_type:
      name: order_status
      schema: shop
      labels:
        - new
        - paid
        - shipped
  - table:
      name: Order
      schema: shop
      description: Contains all orders
      columns:
        - name: id
          data_type: integer
          nullable: false
        - name: created
          data_type: timestamp with time zone
          nullable: false
          default: now()
        - name: status
          data_type: shop.order_status
          nullable: false
      primary_key:
        columns:
          - id
  - table:
      name: OrderLine
      schema: shop
      columns:
        - name: id
          data_type: integer
          nullable: false
        - name: order_id
          data_type: integer
          nullable: false
        - name: line_nr
          data_type: integer
          nullable: false
      primary_key:
        columns:
          - id
      unique:
        - columns:
            - order_id
            - line_nr
      foreign_keys:
        - name: test
          columns:
            - order_id
          references:
            table:
              name: Order
              schema: shop
            columns:
              - id
`

// TestPostgresRoundTrip compiles a description to SQL, applies it to a
// live database, extracts the catalog back, and compares the result with
// the original Model.
func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	connString := testConnString()

	m, err := schemac.Load(strings.NewReader(webshopDescription))
	if err != nil {
		t.Fatalf("Failed to load description: %v", err)
	}

	var ddl bytes.Buffer
	if err := schemac.CompileSQL(m, &ddl); err != nil {
		t.Fatalf("Failed to compile SQL: %v", err)
	}

	client, err := db.NewPostgresClient(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer client.Close()

	dropSchema(t, ctx, client, "shop")
	defer dropSchema(t, ctx, client, "shop")

	if _, err := client.Pool().Exec(ctx, ddl.String()); err != nil {
		t.Fatalf("Failed to apply generated SQL: %v", err)
	}

	extracted, err := db.NewExtractor(client).Extract(ctx, db.ExtractOptions{Schemas: []string{"shop"}})
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	order := requireTable(t, extracted, "shop", "Order")
	if order.Description != "Contains all orders" {
		t.Errorf("Expected table description to survive the round trip, got %q", order.Description)
	}
	if order.PrimaryKey == nil || len(order.PrimaryKey.Columns) != 1 || order.PrimaryKey.Columns[0] != "id" {
		t.Errorf("Expected primary key (id), got %+v", order.PrimaryKey)
	}

	status, ok := order.Column("status")
	if !ok {
		t.Fatal("Expected column status on shop.Order")
	}
	if !status.Type.IsEnum() {
		t.Errorf("Expected status to resolve to an enum type, got %s", status.Type)
	}

	line := requireTable(t, extracted, "shop", "OrderLine")
	if len(line.Unique) != 1 {
		t.Fatalf("Expected one unique constraint on shop.OrderLine, got %d", len(line.Unique))
	}
	unique := line.Unique[0]
	if unique.Name == "" {
		t.Error("Expected the extracted unique constraint to carry the catalog's name")
	}
	if len(unique.Columns) != 2 || unique.Columns[0] != "order_id" || unique.Columns[1] != "line_nr" {
		t.Errorf("Expected unique constraint on (order_id, line_nr), got %v", unique.Columns)
	}

	fk := findForeignKey(line, "test")
	if fk == nil {
		t.Fatal("Expected foreign key test on shop.OrderLine")
	}
	if fk.RefTable != (schema.ObjectName{Schema: "shop", Name: "Order"}) {
		t.Errorf("Expected foreign key to reference shop.Order, got %s", fk.RefTable)
	}

	enum, ok := extracted.EnumType(schema.ObjectName{Schema: "shop", Name: "order_status"})
	if !ok {
		t.Fatal("Expected enum type shop.order_status")
	}
	wantLabels := []string{"new", "paid", "shipped"}
	if len(enum.Labels) != len(wantLabels) {
		t.Fatalf("Expected %d enum labels, got %d", len(wantLabels), len(enum.Labels))
	}
	for i, label := range wantLabels {
		if enum.Labels[i] != label {
			t.Errorf("Expected label %d to be %q, got %q", i, label, enum.Labels[i])
		}
	}
}

// TestPostgresExtractDescribe checks that an extracted Model marshals to
// a description the loader accepts again.
func TestPostgresExtractDescribe(t *testing.T) {
	ctx := context.Background()

	client, err := db.NewPostgresClient(ctx, testConnString())
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer client.Close()

	m, err := db.NewExtractor(client).Extract(ctx, db.ExtractOptions{Schemas: []string{"public"}})
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	data, err := schemac.Describe(m).YAML()
	if err != nil {
		t.Fatalf("Failed to marshal description: %v", err)
	}

	if _, err := schemac.Load(bytes.NewReader(data)); err != nil {
		t.Fatalf("Extracted description does not load: %v", err)
	}
}

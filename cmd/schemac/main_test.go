package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgtools/schemac/internal/schema"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no error", err: nil, want: 0},
		{
			name: "validation error",
			err:  &schema.ValidationError{Path: "objects[0]", Message: "missing required field name"},
			want: 2,
		},
		{
			name: "duplicate name",
			err:  &schema.DuplicateNameError{Name: schema.ObjectName{Schema: "shop", Name: "Order"}},
			want: 2,
		},
		{
			name: "reference error",
			err:  &schema.ReferenceError{Object: schema.ObjectName{Schema: "shop", Name: "Order"}, Ref: "shop.missing"},
			want: 2,
		},
		{
			name: "cyclic dependency",
			err:  &schema.CyclicDependencyError{},
			want: 3,
		},
		{
			name: "extraction error",
			err:  &schema.ExtractionError{Op: "connect", Err: errors.New("connection refused")},
			want: 4,
		},
		{
			name: "wrapped validation error",
			err:  fmt.Errorf("compile: %w", &schema.ValidationError{Path: "x", Message: "bad"}),
			want: 2,
		},
		{name: "plain error", err: errors.New("boom"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

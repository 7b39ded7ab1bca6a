package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

func TestParseType(t *testing.T) {
	order := &ir.TypeDef{Name: "Order"}
	resolve := func(name string) (ir.TypeRef, bool) {
		if name == "Order" {
			return order, true
		}
		return nil, false
	}

	tests := []struct {
		expr string
		want ir.TypeRef
	}{
		{"int", ir.Prim("int")},
		{"dict", ir.Prim("dict")},
		{"Order", order},
		{"list<Order>", ir.ListOf{Elem: order}},
		{"set< str >", ir.SetOf{Elem: ir.Prim("str")}},
		{"dict<str, int>", ir.MapOf{Key: ir.Prim("str"), Value: ir.Prim("int")}},
		{"map<str,list<Order>>", ir.MapOf{Key: ir.Prim("str"), Value: ir.ListOf{Elem: order}}},
		{"list<dict<str, set<float>>>", ir.ListOf{Elem: ir.MapOf{
			Key:   ir.Prim("str"),
			Value: ir.SetOf{Elem: ir.Prim("float")},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseType(tt.expr, resolve)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "expected a type name"},
		{"list<int", `expected '>'`},
		{"list<int, str>", "list takes 1 type argument"},
		{"dict<str>", "dict takes 2 type arguments"},
		{"int<str>", "int is not a container type"},
		{"Customer", "unknown type Customer"},
		{"int str", "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseType(tt.expr, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

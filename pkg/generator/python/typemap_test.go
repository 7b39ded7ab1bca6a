package python

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		name string
		in   ir.TypeRef
		want string
	}{
		{"int", ir.Prim("int"), "int"},
		{"double", ir.Prim("double"), "float"},
		{"date", ir.Prim("date"), "date"},
		{"void", ir.Prim("void"), "None"},
		{"bare list", ir.Prim("list"), "list"},
		{"unknown primitive is a named type", ir.Prim("order"), "Order"},
		{"named", ir.Named("orderItem"), "OrderItem"},
		{"list of named", ir.ListOf{Elem: ir.Named("Foo")}, "List[Foo]"},
		{"set of str", ir.SetOf{Elem: ir.Prim("str")}, "Set[str]"},
		{"dict", ir.MapOf{Key: ir.Prim("str"), Value: ir.Prim("int")}, "Dict[str, int]"},
		{
			"deep nesting",
			ir.MapOf{Key: ir.Prim("str"), Value: ir.ListOf{Elem: ir.SetOf{Elem: ir.Named("tag")}}},
			"Dict[str, List[Set[Tag]]]",
		},
		{"nil", nil, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapType(tt.in))
		})
	}
}

func TestMapDefault(t *testing.T) {
	tests := []struct {
		name string
		in   ir.TypeRef
		want string
	}{
		{"bool", ir.Prim("bool"), "False"},
		{"int", ir.Prim("int"), "0"},
		{"float", ir.Prim("float"), "0.0"},
		{"str", ir.Prim("str"), `""`},
		{"date", ir.Prim("date"), "datetime.now()"},
		{"void", ir.Prim("void"), ""},
		{"bare set", ir.Prim("set"), "{}"},
		{"list of int", ir.ListOf{Elem: ir.Prim("int")}, "[]"},
		{"list of named", ir.ListOf{Elem: ir.Named("Order")}, "[]"},
		{"list of list", ir.ListOf{Elem: ir.ListOf{Elem: ir.Prim("str")}}, "[]"},
		{"set", ir.SetOf{Elem: ir.Prim("str")}, "{}"},
		{"dict", ir.MapOf{Key: ir.Prim("str"), Value: ir.Named("Order")}, "{}"},
		{"named", ir.Named("Order"), "Order()"},
		{"unknown primitive", ir.Prim("customer"), "Customer()"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapDefault(tt.in))
		})
	}
}

func TestMapTypeIsPure(t *testing.T) {
	in := ir.MapOf{Key: ir.Prim("str"), Value: ir.ListOf{Elem: ir.Named("order")}}
	first, firstDefault := MapType(in), MapDefault(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, MapType(in))
		assert.Equal(t, firstDefault, MapDefault(in))
	}
}

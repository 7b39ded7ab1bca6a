package ir

// TypeRef is a reference to a type of the model's type algebra.
// It is one of Primitive, *TypeDef, ListOf, SetOf or MapOf.
type TypeRef interface {
	typeRef()
}

// Primitive is a built-in type identified by name (int, str, date, ...)
type Primitive struct {
	Name string
}

// TypeDef is a named record type with typed fields
type TypeDef struct {
	Name   string
	Fields []*Field
}

// ListOf is an ordered collection of Elem
type ListOf struct {
	Elem TypeRef
}

// SetOf is an unordered collection of unique Elem
type SetOf struct {
	Elem TypeRef
}

// MapOf is an associative collection from Key to Value
type MapOf struct {
	Key   TypeRef
	Value TypeRef
}

// Field belongs to exactly one TypeDef
type Field struct {
	Name string
	Type TypeRef
	IsID bool
}

func (Primitive) typeRef() {}
func (*TypeDef) typeRef() {}
func (ListOf) typeRef() {}
func (SetOf) typeRef() {}
func (MapOf) typeRef() {}

// Prim is shorthand for Primitive{Name: name}.
func Prim(name string) Primitive {
	return Primitive{Name: name}
}

// Named returns a TypeDef reference without fields.
func Named(name string) *TypeDef {
	return &TypeDef{Name: name}
}

// TypeName returns the bare name of the outermost named or primitive type.
// Containers return an empty string.
func TypeName(t TypeRef) string {
	switch v := t.(type) {
	case Primitive:
		return v.Name
	case *TypeDef:
		if v != nil {
			return v.Name
		}
	}
	return ""
}

// ReferencedTypedefs walks t and returns every TypeDef it mentions, outermost first.
func ReferencedTypedefs(t TypeRef) []*TypeDef {
	var out []*TypeDef
	var walk func(TypeRef)
	walk = func(t TypeRef) {
		switch v := t.(type) {
		case *TypeDef:
			if v != nil {
				out = append(out, v)
			}
		case ListOf:
			walk(v.Elem)
		case SetOf:
			walk(v.Elem)
		case MapOf:
			walk(v.Key)
			walk(v.Value)
		}
	}
	walk(t)
	return out
}

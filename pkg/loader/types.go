package loader

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

// primitives are the built-in type names of model documents
var primitives = map[string]bool{
	"int": true, "float": true, "double": true, "str": true, "bool": true,
	"date": true, "list": true, "set": true, "dict": true, "void": true,
}

// Resolver looks up a named type. It reports false for unknown names.
type Resolver func(name string) (ir.TypeRef, bool)

// ParseType parses a type expression:
//
//	type  = name [ "<" type { "," type } ">" ]
//
// list<T> and set<T> take one argument, dict<K, V> (or map<K, V>) two.
// Bare primitive names are primitives; other names go through resolve.
func ParseType(expr string, resolve Resolver) (ir.TypeRef, error) {
	p := &typeParser{src: expr, resolve: resolve}
	t, err := p.parseType()
	if err != nil {
		return nil, errors.Wrapf(err, "type %q", expr)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errors.Newf("type %q: unexpected %q at offset %d", expr, p.src[p.pos:], p.pos)
	}
	return t, nil
}

type typeParser struct {
	src     string
	pos     int
	resolve Resolver
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return errors.Newf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) name() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return "", errors.Newf("expected a type name at offset %d", start)
	}
	return p.src[start:p.pos], nil
}

func (p *typeParser) parseType() (ir.TypeRef, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	if p.peek() != '<' {
		return p.named(name)
	}
	p.pos++

	var args []ir.TypeRef
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}

	switch strings.ToLower(name) {
	case "list":
		if len(args) != 1 {
			return nil, errors.Newf("list takes 1 type argument, got %d", len(args))
		}
		return ir.ListOf{Elem: args[0]}, nil
	case "set":
		if len(args) != 1 {
			return nil, errors.Newf("set takes 1 type argument, got %d", len(args))
		}
		return ir.SetOf{Elem: args[0]}, nil
	case "dict", "map":
		if len(args) != 2 {
			return nil, errors.Newf("%s takes 2 type arguments, got %d", name, len(args))
		}
		return ir.MapOf{Key: args[0], Value: args[1]}, nil
	default:
		return nil, errors.Newf("%s is not a container type", name)
	}
}

func (p *typeParser) named(name string) (ir.TypeRef, error) {
	if primitives[name] {
		return ir.Prim(name), nil
	}
	if p.resolve != nil {
		if t, ok := p.resolve(name); ok {
			return t, nil
		}
	}
	return nil, errors.Newf("unknown type %s", name)
}

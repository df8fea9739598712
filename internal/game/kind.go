package game

import (
	"math"

	"github.com/Shopify/go-lua"
)

// Kind classifies a guest value. Lua has a single number type, so integral
// numbers are reported as KindInt and everything else numeric as KindFloat.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTable
	KindFunction
	KindOpaque
)

// String returns the guest-facing name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindTable:
		return "Table"
	case KindFunction:
		return "Function"
	default:
		return "Opaque"
	}
}

// accepts reports whether a value of kind got satisfies an expectation of k.
// Floats accept integral numbers; nothing else is coerced.
func (k Kind) accepts(got Kind) bool {
	if k == KindFloat {
		return got == KindFloat || got == KindInt
	}
	return k == got
}

// maxExactInt is the largest integer a float64 holds without loss.
const maxExactInt = 1 << 53

// kindOf is the single place guest values are classified.
func kindOf(l *lua.State, index int) Kind {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return KindNil
	case lua.TypeBoolean:
		return KindBool
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if isIntegral(n) {
			return KindInt
		}
		return KindFloat
	case lua.TypeString:
		return KindString
	case lua.TypeTable:
		return KindTable
	case lua.TypeFunction:
		return KindFunction
	default:
		return KindOpaque
	}
}

func isIntegral(n float64) bool {
	return n == math.Trunc(n) && math.Abs(n) <= maxExactInt
}

// rawField pushes t[name] for the table at index without consulting its
// metatable, so reading a context never runs guest code.
func rawField(l *lua.State, index int, name string) {
	index = l.AbsIndex(index)
	l.PushString(name)
	l.RawGet(index)
}

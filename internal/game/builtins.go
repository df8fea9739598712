package game

import (
	"fmt"

	"github.com/Shopify/go-lua"
)

// builtins returns the native implementation of every name in signatures.
func (e *Engine) builtins() map[string]lua.Function {
	return map[string]lua.Function{
		BuiltinChoice:       e.choice,
		BuiltinClearChoices: e.clearChoices,
		BuiltinSetState:     e.setState,
		BuiltinSetFlag:      e.setter(BuiltinSetFlag, flagStore),
		BuiltinSetInt:       e.setter(BuiltinSetInt, intStore),
		BuiltinSetFloat:     e.setter(BuiltinSetFloat, floatStore),
		BuiltinGetFlag:      e.getter(BuiltinGetFlag, flagStore),
		BuiltinGetInt:       e.getter(BuiltinGetInt, intStore),
		BuiltinGetFloat:     e.getter(BuiltinGetFloat, floatStore),
	}
}

// bridgeCall checks the arguments of one builtin invocation. Every check
// either returns normally or raises through the engine and never returns.
type bridgeCall struct {
	e    *Engine
	l    *lua.State
	name string
}

func (e *Engine) begin(l *lua.State, name string, arity int) bridgeCall {
	c := bridgeCall{e: e, l: l, name: name}
	if got := l.Top(); got != arity {
		c.fail(violation{detail: fmt.Sprintf("expected %d arguments, got %d", arity, got)})
	}
	c.expect(1, KindTable, "context")
	return c
}

func (c bridgeCall) fail(v violation) {
	v.builtin = c.name
	c.e.raise(c.l, v)
}

func (c bridgeCall) expect(index int, want Kind, param string) {
	if got := kindOf(c.l, index); !want.accepts(got) {
		c.fail(violation{
			detail: fmt.Sprintf("argument %d (%s) expected %s, got %s", index, param, want, got),
		})
	}
}

// varName reads a non-empty variable name argument.
func (c bridgeCall) varName(index int) string {
	c.expect(index, KindString, "name")
	name, _ := c.l.ToString(index)
	if name == "" {
		c.fail(violation{detail: fmt.Sprintf("argument %d (name) must not be empty", index)})
	}
	return name
}

// field pushes context[field] and returns its absolute stack index.
func (c bridgeCall) field(field string, want Kind) int {
	rawField(c.l, 1, field)
	if got := kindOf(c.l, -1); !want.accepts(got) {
		c.fail(violation{
			field:  field,
			detail: fmt.Sprintf("context field %s is %s, want %s", field, got, want),
		})
	}
	return c.l.AbsIndex(-1)
}

// context returns the (possibly mutated) context as the only result.
func (c bridgeCall) context() int {
	c.l.PushValue(1)
	return 1
}

// choice(ctx, handler, display) appends one Choice to ctx.choice_list.
func (e *Engine) choice(l *lua.State) int {
	c := e.begin(l, BuiltinChoice, 3)
	c.expect(2, KindFunction, "handler")
	c.expect(3, KindString, "display")

	list := c.field(FieldChoices, KindTable)
	n := l.RawLength(list)
	l.CreateTable(0, 2)
	l.PushValue(2)
	l.SetField(-2, ChoiceHandle)
	l.PushValue(3)
	l.SetField(-2, ChoiceDisplay)
	l.RawSetInt(list, n+1)
	l.Pop(1)
	return c.context()
}

// clear_choices(ctx) empties ctx.choice_list in place so aliases held by the
// script observe the reset too.
func (e *Engine) clearChoices(l *lua.State) int {
	c := e.begin(l, BuiltinClearChoices, 1)

	list := c.field(FieldChoices, KindTable)
	for i := l.RawLength(list); i >= 1; i-- {
		l.PushNil()
		l.RawSetInt(list, i)
	}
	l.Pop(1)
	return c.context()
}

// set_state(ctx, state) overwrites the phase ordinal.
func (e *Engine) setState(l *lua.State) int {
	c := e.begin(l, BuiltinSetState, 2)
	c.expect(2, KindInt, "state")

	ordinal, _ := l.ToInteger(2)
	if _, ok := knownState(ordinal); !ok {
		c.fail(violation{field: FieldState, detail: fmt.Sprintf("unknown state %d", ordinal)})
	}
	l.PushInteger(ordinal)
	l.SetField(1, FieldState)
	return c.context()
}

// setter builds set_flag, set_int and set_float: upsert name -> value.
func (e *Engine) setter(name string, st store) lua.Function {
	return func(l *lua.State) int {
		c := e.begin(l, name, 3)
		key := c.varName(2)
		c.expect(3, st.kind, "value")

		values := c.field(st.field, KindTable)
		l.PushValue(3)
		l.SetField(values, key)
		l.Pop(1)
		return c.context()
	}
}

// getter builds get_flag, get_int and get_float. There is no default value:
// reading a name that was never set is a violation.
func (e *Engine) getter(name string, st store) lua.Function {
	return func(l *lua.State) int {
		c := e.begin(l, name, 2)
		key := c.varName(2)

		values := c.field(st.field, KindTable)
		rawField(l, values, key)
		got := kindOf(l, -1)
		if got == KindNil {
			c.fail(violation{field: st.field, name: key, detail: fmt.Sprintf("unknown %s %q", st.label, key)})
		}
		if !st.kind.accepts(got) {
			c.fail(violation{
				field:  st.field,
				name:   key,
				detail: fmt.Sprintf("%s %q holds %s, want %s", st.label, key, got, st.kind),
			})
		}
		return 1
	}
}

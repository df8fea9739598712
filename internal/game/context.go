package game

import (
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"
)

// Context is a host-side view of the live guest context table. It holds no
// narrative state of its own: every accessor reads the table, checks the
// guest kind and unwraps it. Once the instance moves the context into a
// handler call, every accessor fails with ErrContextMoved.
type Context struct {
	engine     *Engine
	generation uint64
	moved      bool
}

// Generation counts how many contexts the instance has installed before
// this one. The entry function's result is generation 0.
func (c *Context) Generation() uint64 {
	return c.generation
}

// read pushes the live table, runs fn with it at the returned index and
// restores the stack.
func (c *Context) read(fn func(l *lua.State, table int) error) error {
	if c == nil || c.moved {
		return ErrContextMoved
	}
	if c.engine == nil || c.engine.state == nil {
		return ErrInstanceClosed
	}
	l := c.engine.state
	base := l.Top()
	defer l.SetTop(base)

	rawField(l, lua.RegistryIndex, registryContext)
	if kindOf(l, -1) != KindTable {
		return ErrContextMoved
	}
	return fn(l, l.AbsIndex(-1))
}

// field pushes table[name] and checks its kind.
func field(l *lua.State, table int, accessor, name string, want Kind) error {
	rawField(l, table, name)
	if got := kindOf(l, -1); !want.accepts(got) {
		return violation{
			builtin: accessor,
			field:   name,
			detail:  fmt.Sprintf("context field %s is %s, want %s", name, got, want),
		}.err(nil)
	}
	return nil
}

// State returns the narrative phase. An ordinal outside the declared phases
// is a contract violation, never a default.
func (c *Context) State() (State, error) {
	var state State
	err := c.read(func(l *lua.State, table int) error {
		if err := field(l, table, "Context.State", FieldState, KindInt); err != nil {
			return err
		}
		ordinal, _ := l.ToInteger(-1)
		known, ok := knownState(ordinal)
		if !ok {
			return violation{
				builtin: "Context.State",
				field:   FieldState,
				detail:  fmt.Sprintf("unknown state %d", ordinal),
			}.err(nil)
		}
		state = known
		return nil
	})
	return state, err
}

// Display returns the prose of the current story beat.
func (c *Context) Display() (string, error) {
	var display string
	err := c.read(func(l *lua.State, table int) error {
		if err := field(l, table, "Context.Display", FieldDisplay, KindString); err != nil {
			return err
		}
		display, _ = l.ToString(-1)
		return nil
	})
	return display, err
}

// Choices returns a snapshot of the choice list in presentation order.
// Changing the returned slice does not write back to the context.
func (c *Context) Choices() ([]Choice, error) {
	var choices []Choice
	err := c.read(func(l *lua.State, table int) error {
		if err := field(l, table, "Context.Choices", FieldChoices, KindTable); err != nil {
			return err
		}
		list := l.AbsIndex(-1)
		n := l.RawLength(list)
		choices = make([]Choice, 0, n)
		for i := 1; i <= n; i++ {
			l.RawGetInt(list, i)
			entry := l.AbsIndex(-1)
			if got := kindOf(l, entry); got != KindTable {
				return choiceViolation(i, "entry", fmt.Sprintf("is %s, want Choice", got))
			}
			rawField(l, entry, ChoiceDisplay)
			if got := kindOf(l, -1); got != KindString {
				return choiceViolation(i, ChoiceDisplay, fmt.Sprintf("is %s, want String", got))
			}
			display, _ := l.ToString(-1)
			rawField(l, entry, ChoiceHandle)
			if got := kindOf(l, -1); got != KindFunction {
				return choiceViolation(i, ChoiceHandle, fmt.Sprintf("is %s, want Function", got))
			}
			l.SetTop(list)
			choices = append(choices, Choice{owner: c, index: i - 1, display: display})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return choices, nil
}

func choiceViolation(position int, name, detail string) error {
	return violation{
		builtin: "Context.Choices",
		field:   FieldChoices,
		name:    name,
		detail:  fmt.Sprintf("%s[%d].%s %s", FieldChoices, position, name, detail),
	}.err(nil)
}

// Flag returns a boolean story variable.
func (c *Context) Flag(name string) (bool, error) {
	var value bool
	err := c.lookup(flagStore, name, func(l *lua.State) {
		value = l.ToBoolean(-1)
	})
	return value, err
}

// Int returns an integer story variable.
func (c *Context) Int(name string) (int, error) {
	var value int
	err := c.lookup(intStore, name, func(l *lua.State) {
		value, _ = l.ToInteger(-1)
	})
	return value, err
}

// Float returns a floating story variable.
func (c *Context) Float(name string) (float64, error) {
	var value float64
	err := c.lookup(floatStore, name, func(l *lua.State) {
		value, _ = l.ToNumber(-1)
	})
	return value, err
}

func (c *Context) lookup(st store, name string, unwrap func(l *lua.State)) error {
	accessor := "Context." + strings.ToUpper(st.label[:1]) + st.label[1:]
	return c.read(func(l *lua.State, table int) error {
		if err := field(l, table, accessor, st.field, KindTable); err != nil {
			return err
		}
		rawField(l, -1, name)
		got := kindOf(l, -1)
		if got == KindNil {
			return violation{builtin: accessor, field: st.field, name: name,
				detail: fmt.Sprintf("unknown %s %q", st.label, name)}.err(nil)
		}
		if !st.kind.accepts(got) {
			return violation{builtin: accessor, field: st.field, name: name,
				detail: fmt.Sprintf("%s %q holds %s, want %s", st.label, name, got, st.kind)}.err(nil)
		}
		unwrap(l)
		return nil
	})
}

// pushZeroContext pushes a fresh context: running, no choices, empty
// display and empty stores.
func pushZeroContext(l *lua.State) {
	l.CreateTable(0, 6)
	l.PushInteger(int(StateRunning))
	l.SetField(-2, FieldState)
	l.NewTable()
	l.SetField(-2, FieldChoices)
	l.PushString("")
	l.SetField(-2, FieldDisplay)
	for _, name := range []string{FieldFlags, FieldInts, FieldFloats} {
		l.NewTable()
		l.SetField(-2, name)
	}
}

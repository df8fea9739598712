package game

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/Shopify/go-lua"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

//go:embed runtime.lua
var runtimeSource string

// installRuntime runs the runtime library with the schema table as its
// argument. The library binds each builtin through extern, which checks the
// declared signature against the host's and is removed afterwards.
func (e *Engine) installRuntime() error {
	l := e.state
	natives := e.builtins()

	l.PushGoFunction(func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		declared := lua.CheckString(l, 2)
		native, ok := natives[name]
		if !ok {
			lua.Errorf(l, "extern %s: no native implementation", name)
			return 0
		}
		if want := signatures[name]; declared != want {
			lua.Errorf(l, "extern %s: declared %s, host implements %s", name, declared, want)
			return 0
		}
		if e.declared[name] {
			lua.Errorf(l, "extern %s: declared twice", name)
			return 0
		}
		e.declared[name] = true
		l.PushGoFunction(native)
		l.SetGlobal(name)
		return 0
	})
	l.SetGlobal("extern")

	base := l.Top()
	defer l.SetTop(base)
	if err := lua.LoadBuffer(l, runtimeSource, "=runtime", ""); err != nil {
		return engineInitError("load runtime library", err)
	}
	pushSchema(l)
	if err := l.ProtectedCall(1, 0, 0); err != nil {
		return engineInitError("run runtime library", err)
	}

	l.PushNil()
	l.SetGlobal("extern")

	var missing []string
	for name := range signatures {
		if !e.declared[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return engineInitError("runtime library", fmt.Errorf("builtins not declared: %v", missing))
	}
	return nil
}

// pushSchema pushes the table the runtime library reads its constants from.
func pushSchema(l *lua.State) {
	l.CreateTable(0, 3)

	l.CreateTable(0, 2)
	l.PushInteger(int(StateRunning))
	l.SetField(-2, "running")
	l.PushInteger(int(StateEnded))
	l.SetField(-2, "ended")
	l.SetField(-2, "state")

	l.CreateTable(0, 6)
	for _, field := range []string{FieldState, FieldChoices, FieldDisplay, FieldFlags, FieldInts, FieldFloats} {
		l.PushString(field)
		l.SetField(-2, field)
	}
	l.SetField(-2, "context")

	l.CreateTable(0, 2)
	for _, field := range []string{ChoiceHandle, ChoiceDisplay} {
		l.PushString(field)
		l.SetField(-2, field)
	}
	l.SetField(-2, "choice")
}

func engineInitError(message string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeEngineInit, message,
		map[string]string{"detail": cause.Error()}, cause)
}

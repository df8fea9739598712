package game

import (
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

// Registry slots owned by the host.
const (
	registryContext = "cyoa.context"
	registryEntry   = "cyoa.entry"
)

// Module is one story script. Name is the module name scripts pass to
// require; Path is only used in diagnostics.
type Module struct {
	Name   string
	Path   string
	Source string
}

// Handle refers to a guest function pinned in the registry.
type Handle struct {
	key      string
	Module   string
	Function string
}

// Engine owns one Lua state with the runtime library and story modules
// installed. It is not safe for concurrent use.
type Engine struct {
	state    *lua.State
	fault    *apperrors.Error
	declared map[string]bool
	modules  map[string]bool
}

// NewEngine opens a Lua state, installs the runtime library and compiles
// every module. Modules are registered as preloaded packages and only run
// when required.
func NewEngine(modules []Module) (*Engine, error) {
	e := &Engine{
		state:    lua.NewState(),
		declared: map[string]bool{},
		modules:  map[string]bool{},
	}
	lua.OpenLibraries(e.state)

	if err := e.installRuntime(); err != nil {
		return nil, err
	}
	for _, module := range modules {
		if err := e.addModule(module); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) addModule(module Module) error {
	name := strings.TrimSpace(module.Name)
	if name == "" {
		return apperrors.WithMetadata(apperrors.CodeEngineInit, "module name is required",
			map[string]string{"detail": "module name is required", "path": module.Path})
	}
	if e.modules[name] {
		return apperrors.WithMetadata(apperrors.CodeEngineInit, fmt.Sprintf("duplicate module %q", name),
			map[string]string{"detail": fmt.Sprintf("duplicate module %q", name), "module": name})
	}

	chunkName := module.Path
	if chunkName == "" {
		chunkName = name
	}
	l := e.state
	base := l.Top()
	if err := lua.LoadBuffer(l, module.Source, "@"+chunkName, ""); err != nil {
		l.SetTop(base)
		return apperrors.WrapWithMetadata(apperrors.CodeScriptParse, fmt.Sprintf("parse module %s", name),
			map[string]string{"module": name, "detail": err.Error()}, err)
	}
	l.Global("package")
	l.Field(-1, "preload")
	l.PushValue(-3)
	l.SetField(-2, name)
	l.Pop(3)

	e.modules[name] = true
	return nil
}

// QueryEntry requires module and pins its exported function. A module that
// returns no table may define the function as a global instead.
func (e *Engine) QueryEntry(module, function string) (Handle, error) {
	metadata := map[string]string{"module": module, "function": function}
	message := fmt.Sprintf("entry %s.%s not found", module, function)
	if !e.modules[module] {
		return Handle{}, apperrors.WithMetadata(apperrors.CodeEntryNotFound, message, metadata)
	}

	l := e.state
	base := l.Top()
	defer l.SetTop(base)

	l.Global("require")
	l.PushString(module)
	fault, err := e.pcall(base, 1)
	if fault != nil {
		return Handle{}, fault
	}
	if err != nil {
		metadata["detail"] = err.Error()
		return Handle{}, apperrors.WrapWithMetadata(apperrors.CodeEngineInit, fmt.Sprintf("run module %s", module), metadata, err)
	}
	if kindOf(l, -1) == KindTable {
		rawField(l, -1, function)
	} else {
		l.RawGetInt(lua.RegistryIndex, lua.RegistryIndexGlobals)
		rawField(l, -1, function)
	}
	if kindOf(l, -1) != KindFunction {
		return Handle{}, apperrors.WithMetadata(apperrors.CodeEntryNotFound, message, metadata)
	}
	l.SetField(lua.RegistryIndex, registryEntry)
	return Handle{key: registryEntry, Module: module, Function: function}, nil
}

// push places the pinned function on the stack.
func (e *Engine) push(h Handle) {
	rawField(e.state, lua.RegistryIndex, h.key)
}

// pcall runs the function at base+1 with the arguments above it. On success
// exactly one result is left at base+1; on failure the stack is reset to
// base. A violation latched by a builtin is reported as fault even when the
// guest caught the raised error with pcall.
func (e *Engine) pcall(base, argCount int) (fault *apperrors.Error, err error) {
	l := e.state
	e.fault = nil
	err = l.ProtectedCall(argCount, 1, 0)
	fault, e.fault = e.fault, nil
	if fault != nil || err != nil {
		l.SetTop(base)
	}
	return fault, err
}

// call is pcall with guest runtime errors reported as violations of what.
func (e *Engine) call(base, argCount int, what string) error {
	fault, err := e.pcall(base, argCount)
	if fault != nil {
		return fault
	}
	if err != nil {
		return violation{builtin: what, detail: err.Error()}.err(err)
	}
	return nil
}

// raise latches v and raises it as a Lua error. It does not return.
func (e *Engine) raise(l *lua.State, v violation) {
	err := v.err(nil)
	if e.fault == nil {
		e.fault = err
	}
	lua.Errorf(l, "%s", err.Message)
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.state = nil
}

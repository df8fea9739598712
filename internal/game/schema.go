package game

import "fmt"

// State is the narrative phase stored in the context's state field.
// The ordinals are part of the script contract: scripts read them from the
// State table installed by the runtime library.
type State int

const (
	// StateRunning accepts and dispatches choices.
	StateRunning State = 0
	// StateEnded is terminal; the driver loop exits.
	StateEnded State = 1
)

// String returns the guest-visible name of the phase.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// knownState reports whether ordinal maps onto a declared phase.
func knownState(ordinal int) (State, bool) {
	switch State(ordinal) {
	case StateRunning, StateEnded:
		return State(ordinal), true
	default:
		return 0, false
	}
}

// Context field names.
const (
	FieldState   = "state"
	FieldChoices = "choice_list"
	FieldDisplay = "display"
	FieldFlags   = "flags"
	FieldInts    = "ints"
	FieldFloats  = "floats"
)

// Choice field names.
const (
	ChoiceHandle  = "handle"
	ChoiceDisplay = "display"
)

// Entry convention: the story's entry module exposes this function.
const (
	DefaultEntryModule = "main"
	EntryFunction      = "start"
)

// Builtin names exposed to scripts.
const (
	BuiltinChoice       = "choice"
	BuiltinClearChoices = "clear_choices"
	BuiltinSetState     = "set_state"
	BuiltinSetFlag      = "set_flag"
	BuiltinSetInt       = "set_int"
	BuiltinSetFloat     = "set_float"
	BuiltinGetFlag      = "get_flag"
	BuiltinGetInt       = "get_int"
	BuiltinGetFloat     = "get_float"
)

// signatures is the guest-visible type of every builtin. The runtime library
// must forward-declare each entry with exactly this signature.
var signatures = map[string]string{
	BuiltinChoice:       "(Context, Function, String) -> Context",
	BuiltinClearChoices: "(Context) -> Context",
	BuiltinSetState:     "(Context, Int) -> Context",
	BuiltinSetFlag:      "(Context, String, Bool) -> Context",
	BuiltinSetInt:       "(Context, String, Int) -> Context",
	BuiltinSetFloat:     "(Context, String, Float) -> Context",
	BuiltinGetFlag:      "(Context, String) -> Bool",
	BuiltinGetInt:       "(Context, String) -> Int",
	BuiltinGetFloat:     "(Context, String) -> Float",
}

// Signature returns the guest-visible signature of a builtin.
func Signature(name string) (string, bool) {
	sig, ok := signatures[name]
	return sig, ok
}

// store describes one typed story-variable store on the context.
type store struct {
	field string
	kind  Kind
	label string
}

var (
	flagStore  = store{field: FieldFlags, kind: KindBool, label: "flag"}
	intStore   = store{field: FieldInts, kind: KindInt, label: "int"}
	floatStore = store{field: FieldFloats, kind: KindFloat, label: "float"}
)

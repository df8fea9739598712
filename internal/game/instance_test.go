package game

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

const forkStory = `
local M = {}

local function go_left(ctx)
  ctx = clear_choices(ctx)
  ctx.display = "You went left and found gold."
  ctx = set_int(ctx, "gold", get_int(ctx, "gold") + 5)
  ctx = set_flag(ctx, "went_left", true)
  return set_state(ctx, State.ENDED)
end

local function go_right(ctx)
  ctx = clear_choices(ctx)
  ctx.display = "A wall. You turn back."
  ctx = choice(ctx, go_left, "Go left")
  return ctx
end

function M.start(ctx)
  ctx.display = "A fork in the road."
  ctx = set_int(ctx, "gold", 10)
  ctx = set_float(ctx, "luck", 0.5)
  ctx = choice(ctx, go_left, "Go left")
  ctx = choice(ctx, go_right, "Go right")
  return ctx
end

return M
`

func newTestInstance(t *testing.T, source string, opts ...Option) *Instance {
	t.Helper()
	inst, err := NewInstance(context.Background(), []Module{{Name: "main", Path: "main.lua", Source: source}}, opts...)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func liveContext(t *testing.T, inst *Instance) *Context {
	t.Helper()
	ctx, err := inst.Context()
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	return ctx
}

func choiceLabels(t *testing.T, ctx *Context) []string {
	t.Helper()
	choices, err := ctx.Choices()
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	labels := make([]string, 0, len(choices))
	for _, c := range choices {
		labels = append(labels, c.Display())
	}
	return labels
}

// storyOf wraps a handler body into a story whose single choice runs it.
func storyOf(handler string) string {
	return `
local function step(ctx)
` + handler + `
end

function start(ctx)
  ctx.display = "start"
  return choice(ctx, step, "Step")
end
`
}

func executeFirst(t *testing.T, inst *Instance) error {
	t.Helper()
	choices, err := liveContext(t, inst).Choices()
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if len(choices) == 0 {
		t.Fatal("expected at least one choice")
	}
	return inst.ExecuteChoice(context.Background(), choices[0])
}

func requireViolation(t *testing.T, err error, builtin string) *apperrors.Error {
	t.Helper()
	if !IsContractViolation(err) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if builtin != "" && appErr.Metadata["builtin"] != builtin {
		t.Fatalf("builtin = %q, want %q (%v)", appErr.Metadata["builtin"], builtin, err)
	}
	return appErr
}

func TestNewInstanceRunsEntry(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	ctx := liveContext(t, inst)

	state, err := ctx.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != StateRunning {
		t.Fatalf("state = %v, want RUNNING", state)
	}
	display, err := ctx.Display()
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if display != "A fork in the road." {
		t.Fatalf("display = %q", display)
	}
	labels := choiceLabels(t, ctx)
	if strings.Join(labels, "|") != "Go left|Go right" {
		t.Fatalf("choices = %v", labels)
	}
	gold, err := ctx.Int("gold")
	if err != nil || gold != 10 {
		t.Fatalf("gold = %d, %v", gold, err)
	}
	luck, err := ctx.Float("luck")
	if err != nil || luck != 0.5 {
		t.Fatalf("luck = %v, %v", luck, err)
	}
	if ctx.Generation() != 0 || inst.Steps() != 0 {
		t.Fatalf("generation = %d, steps = %d", ctx.Generation(), inst.Steps())
	}
}

func TestExecuteChoiceInstallsHandlerResult(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	first := liveContext(t, inst)
	choices, err := first.Choices()
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if choices[0].Index() != 0 || choices[1].Index() != 1 {
		t.Fatalf("indexes = %d, %d", choices[0].Index(), choices[1].Index())
	}

	if err := inst.ExecuteChoice(context.Background(), choices[0]); err != nil {
		t.Fatalf("execute: %v", err)
	}
	next := liveContext(t, inst)
	state, err := next.State()
	if err != nil || state != StateEnded {
		t.Fatalf("state = %v, %v", state, err)
	}
	display, _ := next.Display()
	if display != "You went left and found gold." {
		t.Fatalf("display = %q", display)
	}
	gold, err := next.Int("gold")
	if err != nil || gold != 15 {
		t.Fatalf("gold = %d, %v", gold, err)
	}
	left, err := next.Flag("went_left")
	if err != nil || !left {
		t.Fatalf("went_left = %v, %v", left, err)
	}
	if labels := choiceLabels(t, next); len(labels) != 0 {
		t.Fatalf("expected no choices, got %v", labels)
	}
	if inst.Steps() != 1 || next.Generation() != 1 {
		t.Fatalf("steps = %d, generation = %d", inst.Steps(), next.Generation())
	}
}

func TestMovedContextAndStaleChoice(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	first := liveContext(t, inst)
	choices, _ := first.Choices()

	if err := inst.ExecuteChoice(context.Background(), choices[1]); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := first.Display(); !errors.Is(err, ErrContextMoved) {
		t.Fatalf("expected ErrContextMoved, got %v", err)
	}
	if _, err := first.Int("gold"); !errors.Is(err, ErrContextMoved) {
		t.Fatalf("expected ErrContextMoved, got %v", err)
	}
	if err := inst.ExecuteChoice(context.Background(), choices[0]); !errors.Is(err, ErrStaleChoice) {
		t.Fatalf("expected ErrStaleChoice, got %v", err)
	}
	if err := inst.ExecuteChoice(context.Background(), Choice{}); !errors.Is(err, ErrStaleChoice) {
		t.Fatalf("expected ErrStaleChoice for zero choice, got %v", err)
	}

	labels := choiceLabels(t, liveContext(t, inst))
	if strings.Join(labels, "|") != "Go left" {
		t.Fatalf("choices = %v", labels)
	}
}

func TestExecuteChoiceInFlight(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	choices, _ := liveContext(t, inst).Choices()

	inst.mu.Lock()
	err := inst.ExecuteChoice(context.Background(), choices[0])
	_, ctxErr := inst.Context()
	inst.mu.Unlock()
	if !errors.Is(err, ErrChoiceInFlight) {
		t.Fatalf("expected ErrChoiceInFlight, got %v", err)
	}
	if !errors.Is(ctxErr, ErrChoiceInFlight) {
		t.Fatalf("expected ErrChoiceInFlight from Context, got %v", ctxErr)
	}
	if err := inst.ExecuteChoice(context.Background(), choices[0]); err != nil {
		t.Fatalf("execute after unlock: %v", err)
	}
}

func TestChoicesReturnsSnapshot(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	ctx := liveContext(t, inst)
	choices, _ := ctx.Choices()
	choices[0] = choices[1]
	choices = append(choices[:1], choices[2:]...)

	if labels := choiceLabels(t, ctx); strings.Join(labels, "|") != "Go left|Go right" {
		t.Fatalf("choices = %v", labels)
	}
	if len(choices) != 1 {
		t.Fatalf("local slice should have shrunk")
	}
}

func TestHandlerFailuresAreViolations(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		builtin string
		detail  string
	}{
		{
			name:    "unknown int",
			handler: `return set_int(ctx, "gold", get_int(ctx, "silver"))`,
			builtin: BuiltinGetInt,
			detail:  `unknown int "silver"`,
		},
		{
			name: "pcall cannot hide builtin failure",
			handler: `local ok = pcall(get_int, ctx, "silver")
  return ctx`,
			builtin: BuiltinGetInt,
			detail:  `unknown int "silver"`,
		},
		{
			name:    "wrong arity",
			handler: `return choice(ctx, function(c) return c end)`,
			builtin: BuiltinChoice,
			detail:  "expected 3 arguments, got 2",
		},
		{
			name:    "float into int store",
			handler: `return set_int(ctx, "gold", 1.5)`,
			builtin: BuiltinSetInt,
			detail:  "argument 3 (value) expected Int, got Float",
		},
		{
			name:    "context is not a table",
			handler: `return clear_choices("ctx")`,
			builtin: BuiltinClearChoices,
			detail:  "argument 1 (context) expected Table, got String",
		},
		{
			name:    "unknown state ordinal",
			handler: `return set_state(ctx, 7)`,
			builtin: BuiltinSetState,
			detail:  "unknown state 7",
		},
		{
			name: "ill-typed stored value",
			handler: `ctx.ints.gold = "lots"
  return set_int(ctx, "copper", get_int(ctx, "gold"))`,
			builtin: BuiltinGetInt,
			detail:  `int "gold" holds String, want Int`,
		},
		{
			name: "missing context field",
			handler: `ctx.choice_list = nil
  return choice(ctx, function(c) return c end, "Again")`,
			builtin: BuiltinChoice,
			detail:  "context field choice_list is Nil, want Table",
		},
		{
			name:    "empty variable name",
			handler: `return set_flag(ctx, "", true)`,
			builtin: BuiltinSetFlag,
			detail:  "argument 2 (name) must not be empty",
		},
		{
			name:    "handler returns nothing",
			handler: `ctx.display = "lost"`,
			detail:  "returned Nil, want Context",
		},
		{
			name:    "handler raises",
			handler: `error("boom")`,
			detail:  "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newTestInstance(t, storyOf(tt.handler))
			err := executeFirst(t, inst)
			appErr := requireViolation(t, err, tt.builtin)
			if !strings.Contains(appErr.Metadata["detail"], tt.detail) {
				t.Fatalf("detail = %q, want %q", appErr.Metadata["detail"], tt.detail)
			}
			if _, err := inst.Context(); !errors.Is(err, ErrContextMoved) {
				t.Fatalf("expected no live context after failure, got %v", err)
			}
		})
	}
}

func TestViolationMetadataNamesVariable(t *testing.T) {
	inst := newTestInstance(t, storyOf(`return set_int(ctx, "gold", get_int(ctx, "silver"))`))
	appErr := requireViolation(t, executeFirst(t, inst), BuiltinGetInt)
	if appErr.Metadata["name"] != "silver" || appErr.Metadata["field"] != FieldInts {
		t.Fatalf("metadata = %v", appErr.Metadata)
	}
	if appErr.Metadata["signature"] != "get_int(Context, String) -> Int" {
		t.Fatalf("signature = %q", appErr.Metadata["signature"])
	}
}

func TestSetFloatAcceptsIntegralNumbers(t *testing.T) {
	inst := newTestInstance(t, storyOf(`ctx = set_float(ctx, "speed", 3)
  return set_state(ctx, State.ENDED)`))
	if err := executeFirst(t, inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	speed, err := liveContext(t, inst).Float("speed")
	if err != nil || speed != 3 {
		t.Fatalf("speed = %v, %v", speed, err)
	}
}

func TestClearChoicesEmptiesListInPlace(t *testing.T) {
	inst := newTestInstance(t, storyOf(`local list = ctx.choice_list
  ctx = clear_choices(ctx)
  ctx = choice(ctx, function(c) return c end, "Only")
  if list ~= ctx.choice_list or #list ~= 1 then
    error("choice list was replaced")
  end
  return ctx`))
	if err := executeFirst(t, inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if labels := choiceLabels(t, liveContext(t, inst)); strings.Join(labels, "|") != "Only" {
		t.Fatalf("choices = %v", labels)
	}
}

func TestContextAccessorViolations(t *testing.T) {
	inst := newTestInstance(t, storyOf(`ctx.state = 5
  ctx.display = 42
  ctx.flags.door = 1
  return ctx`))
	if err := executeFirst(t, inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	ctx := liveContext(t, inst)

	appErr := requireViolation(t, func() error { _, err := ctx.State(); return err }(), "Context.State")
	if !strings.Contains(appErr.Metadata["detail"], "unknown state 5") {
		t.Fatalf("detail = %q", appErr.Metadata["detail"])
	}
	requireViolation(t, func() error { _, err := ctx.Display(); return err }(), "Context.Display")
	requireViolation(t, func() error { _, err := ctx.Flag("door"); return err }(), "Context.Flag")
	appErr = requireViolation(t, func() error { _, err := ctx.Int("missing"); return err }(), "Context.Int")
	if appErr.Metadata["name"] != "missing" {
		t.Fatalf("metadata = %v", appErr.Metadata)
	}
}

func TestContextReadsIgnoreMetatables(t *testing.T) {
	inst := newTestInstance(t, `
local function step(ctx)
  return ctx
end

function start(ctx)
  ctx.display = nil
  ctx = choice(ctx, step, "First")
  ctx = choice(ctx, step, "Second")
  local first = ctx.choice_list[1]
  first.display = nil
  setmetatable(first, {__index = function(t, k)
    clear_choices(ctx)
    return "hijacked"
  end})
  return setmetatable(ctx, {__index = function(t, k)
    error("guest code ran while reading " .. k)
  end})
end
`)
	ctx := liveContext(t, inst)

	appErr := requireViolation(t, func() error { _, err := ctx.Display(); return err }(), "Context.Display")
	if !strings.Contains(appErr.Metadata["detail"], "display is Nil") {
		t.Fatalf("detail = %q", appErr.Metadata["detail"])
	}
	for i := 0; i < 2; i++ {
		appErr = requireViolation(t, func() error { _, err := ctx.Choices(); return err }(), "Context.Choices")
		if !strings.Contains(appErr.Metadata["detail"], "choice_list[1].display is Nil") {
			t.Fatalf("detail = %q", appErr.Metadata["detail"])
		}
	}
}

func TestExecuteChoiceIgnoresContextMetatable(t *testing.T) {
	inst := newTestInstance(t, `
local function step(ctx)
  ctx.display = "after"
  return ctx
end

function start(ctx)
  ctx.display = "before"
  ctx = choice(ctx, step, "Step")
  return setmetatable(ctx, {__index = function(t, k)
    error("guest code ran while reading " .. k)
  end})
end
`)
	if err := executeFirst(t, inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	ctx := liveContext(t, inst)
	display, err := ctx.Display()
	if err != nil || display != "after" {
		t.Fatalf("display = %q, %v", display, err)
	}
	appErr := requireViolation(t, func() error { _, err := ctx.Flag("lamp"); return err }(), "Context.Flag")
	if !strings.Contains(appErr.Metadata["detail"], `unknown flag "lamp"`) {
		t.Fatalf("detail = %q", appErr.Metadata["detail"])
	}
}

func TestStartMustReturnContext(t *testing.T) {
	_, err := NewInstance(context.Background(), []Module{{Name: "main", Source: `function start(ctx) end`}})
	requireViolation(t, err, "main.start")
}

func TestNewInstanceHostErrors(t *testing.T) {
	tests := []struct {
		name    string
		modules []Module
		opts    []Option
		code    apperrors.Code
	}{
		{
			name:    "missing entry module",
			modules: []Module{{Name: "intro", Source: `return {}`}},
			code:    apperrors.CodeEntryNotFound,
		},
		{
			name:    "missing start function",
			modules: []Module{{Name: "main", Source: `return { begin = function(ctx) return ctx end }`}},
			code:    apperrors.CodeEntryNotFound,
		},
		{
			name:    "syntax error",
			modules: []Module{{Name: "main", Path: "scripts/main.lua", Source: `function start(ctx`}},
			code:    apperrors.CodeScriptParse,
		},
		{
			name:    "module raises while loading",
			modules: []Module{{Name: "main", Source: `error("bad module")`}},
			code:    apperrors.CodeEngineInit,
		},
		{
			name:    "duplicate module",
			modules: []Module{{Name: "main", Source: ``}, {Name: "main", Source: ``}},
			code:    apperrors.CodeEngineInit,
		},
		{
			name:    "custom entry module absent",
			modules: []Module{{Name: "main", Source: forkStory}},
			opts:    []Option{WithEntryModule("prologue")},
			code:    apperrors.CodeEntryNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInstance(context.Background(), tt.modules, tt.opts...)
			if got := apperrors.GetCode(err); got != tt.code {
				t.Fatalf("code = %s, want %s (%v)", got, tt.code, err)
			}
			if !tt.code.Recoverable() {
				t.Fatalf("host error %s should be recoverable", tt.code)
			}
		})
	}
}

func TestEntryModuleCanRequireOtherModules(t *testing.T) {
	modules := []Module{
		{Name: "rooms", Source: `
local rooms = {}
function rooms.hall(ctx)
  ctx = clear_choices(ctx)
  ctx.display = "The hall."
  return set_state(ctx, State.ENDED)
end
return rooms`},
		{Name: "prologue", Source: `
local rooms = require("rooms")
return {
  start = function(ctx)
    ctx.display = "Prologue."
    return choice(ctx, rooms.hall, "Enter")
  end,
}`},
	}
	inst, err := NewInstance(context.Background(), modules, WithEntryModule("prologue"))
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	defer inst.Close()
	if err := executeFirst(t, inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	display, _ := liveContext(t, inst).Display()
	if display != "The hall." {
		t.Fatalf("display = %q", display)
	}
}

func TestCloseReleasesInstance(t *testing.T) {
	inst := newTestInstance(t, forkStory)
	ctx := liveContext(t, inst)
	choices, _ := ctx.Choices()
	if err := inst.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := inst.Context(); !errors.Is(err, ErrInstanceClosed) {
		t.Fatalf("expected ErrInstanceClosed, got %v", err)
	}
	if err := inst.ExecuteChoice(context.Background(), choices[0]); !errors.Is(err, ErrInstanceClosed) {
		t.Fatalf("expected ErrInstanceClosed, got %v", err)
	}
	if _, err := ctx.Display(); !errors.Is(err, ErrContextMoved) {
		t.Fatalf("expected ErrContextMoved, got %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

package game

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Shopify/go-lua"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	platformotel "github.com/louisbranch/cyoa/internal/platform/otel"
)

const tracerName = "github.com/louisbranch/cyoa/internal/game"

// Option configures an Instance.
type Option func(*Instance)

// WithEntryModule overrides the module whose start function begins the story.
func WithEntryModule(name string) Option {
	return func(i *Instance) {
		if name != "" {
			i.entryModule = name
		}
	}
}

// WithLogger enables step logging.
func WithLogger(logger *log.Logger) Option {
	return func(i *Instance) {
		i.logger = logger
	}
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(i *Instance) {
		if tracer != nil {
			i.tracer = tracer
		}
	}
}

// Instance is one playthrough: an engine plus the single live context.
// It is not safe for concurrent use; overlapping ExecuteChoice calls fail
// with ErrChoiceInFlight instead of blocking.
type Instance struct {
	mu          sync.Mutex
	engine      *Engine
	live        *Context
	entryModule string
	steps       int
	logger      *log.Logger
	tracer      trace.Tracer
}

// NewInstance compiles modules, runs the entry module's start function with
// a zero context and installs the result as the live context.
func NewInstance(ctx context.Context, modules []Module, opts ...Option) (*Instance, error) {
	inst := &Instance{
		entryModule: DefaultEntryModule,
		tracer:      platformotel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(inst)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := inst.tracer.Start(ctx, "game.start", trace.WithAttributes(
		attribute.String("cyoa.entry_module", inst.entryModule),
		attribute.Int("cyoa.modules", len(modules)),
	))
	defer span.End()

	engine, err := NewEngine(modules)
	if err != nil {
		return nil, failSpan(span, err)
	}
	inst.engine = engine

	handle, err := engine.QueryEntry(inst.entryModule, EntryFunction)
	if err != nil {
		engine.Close()
		return nil, failSpan(span, err)
	}

	l := engine.state
	base := l.Top()
	engine.push(handle)
	pushZeroContext(l)
	what := inst.entryModule + "." + EntryFunction
	if err := inst.install(base, what); err != nil {
		engine.Close()
		return nil, failSpan(span, err)
	}
	inst.logf("story started from %s", what)
	return inst, nil
}

// install runs the function at base+1 with one argument and stores the
// returned context in the registry.
func (i *Instance) install(base int, what string) error {
	e := i.engine
	l := e.state
	defer l.SetTop(base)
	if err := e.call(base, 1, what); err != nil {
		return err
	}
	if got := kindOf(l, -1); got != KindTable {
		return violation{
			builtin: what,
			detail:  fmt.Sprintf("returned %s, want Context", got),
		}.err(nil)
	}
	l.SetField(lua.RegistryIndex, registryContext)

	generation := uint64(0)
	if i.live != nil {
		generation = i.live.generation + 1
	}
	i.live = &Context{engine: e, generation: generation}
	return nil
}

// Context returns the live context.
func (i *Instance) Context() (*Context, error) {
	if !i.mu.TryLock() {
		return nil, ErrChoiceInFlight
	}
	defer i.mu.Unlock()
	if i.engine == nil {
		return nil, ErrInstanceClosed
	}
	if i.live == nil || i.live.moved {
		return nil, ErrContextMoved
	}
	return i.live, nil
}

// ExecuteChoice moves the live context into the choice's handler and
// installs whatever the handler returns. While the handler runs no context
// is live. If the handler fails the instance has no live context left.
func (i *Instance) ExecuteChoice(ctx context.Context, choice Choice) error {
	if !i.mu.TryLock() {
		return ErrChoiceInFlight
	}
	defer i.mu.Unlock()
	if i.engine == nil {
		return ErrInstanceClosed
	}
	if i.live == nil || i.live.moved {
		return ErrContextMoved
	}
	if choice.owner != i.live {
		return ErrStaleChoice
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := i.tracer.Start(ctx, "game.execute_choice", trace.WithAttributes(
		attribute.Int("cyoa.choice.index", choice.index),
		attribute.String("cyoa.choice.display", choice.display),
		attribute.Int("cyoa.step", i.steps),
	))
	defer span.End()

	e := i.engine
	l := e.state
	base := l.Top()
	rawField(l, lua.RegistryIndex, registryContext)
	if kindOf(l, -1) != KindTable {
		l.SetTop(base)
		return ErrContextMoved
	}
	rawField(l, base+1, FieldChoices)
	if kindOf(l, -1) != KindTable {
		l.SetTop(base)
		return failSpan(span, violation{builtin: "ExecuteChoice", field: FieldChoices,
			detail: "context has no choice list"}.err(nil))
	}
	l.RawGetInt(-1, choice.index+1)
	if kindOf(l, -1) == KindTable {
		rawField(l, -1, ChoiceHandle)
	} else {
		l.PushNil()
	}
	if got := kindOf(l, -1); got != KindFunction {
		l.SetTop(base)
		return failSpan(span, violation{builtin: "ExecuteChoice", field: FieldChoices, name: ChoiceHandle,
			detail: fmt.Sprintf("choice %d handler is %s, want Function", choice.index, got)}.err(nil))
	}
	// Stack: context, list, entry, handler. Reorder to handler, context.
	l.Insert(base + 1)
	l.SetTop(base + 2)

	l.PushNil()
	l.SetField(lua.RegistryIndex, registryContext)
	i.live.moved = true

	what := fmt.Sprintf("choice %q handler", choice.display)
	if err := i.install(base, what); err != nil {
		i.live = nil
		return failSpan(span, err)
	}
	i.steps++
	i.logf("step %d: %s", i.steps, choice.display)
	return nil
}

// Steps returns how many choices have been executed.
func (i *Instance) Steps() int {
	return i.steps
}

// Close releases the engine. Further calls fail with ErrInstanceClosed.
func (i *Instance) Close() error {
	if !i.mu.TryLock() {
		return ErrChoiceInFlight
	}
	defer i.mu.Unlock()
	if i.engine != nil {
		i.engine.Close()
		i.engine = nil
	}
	if i.live != nil {
		i.live.moved = true
		i.live = nil
	}
	return nil
}

func (i *Instance) logf(format string, args ...any) {
	if i.logger == nil {
		return
	}
	i.logger.Printf(format, args...)
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

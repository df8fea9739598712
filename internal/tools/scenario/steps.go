package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/cyoa/internal/game"
)

func (r *Runner) runStep(ctx context.Context, inst *game.Instance, step Step) error {
	if step.Kind == StepExpectSteps {
		want := readInt(step.Args, "value")
		if got := inst.Steps(); got != want {
			return r.assertf("steps = %d, want %d", got, want)
		}
		return nil
	}

	live, err := inst.Context()
	if err != nil {
		return err
	}
	switch step.Kind {
	case StepPick:
		return r.runPick(ctx, inst, live, step.Args)
	case StepExpectDisplay:
		want := requiredString(step.Args, "contains")
		display, err := live.Display()
		if err != nil {
			return err
		}
		if !strings.Contains(display, want) {
			return r.assertf("display %q does not contain %q", display, want)
		}
	case StepExpectChoices:
		want, _ := step.Args["labels"].([]string)
		choices, err := live.Choices()
		if err != nil {
			return err
		}
		got := make([]string, len(choices))
		for i, c := range choices {
			got[i] = c.Display()
		}
		if strings.Join(got, "\n") != strings.Join(want, "\n") {
			return r.assertf("choices = %q, want %q", got, want)
		}
	case StepExpectState:
		want := requiredString(step.Args, "state")
		state, err := live.State()
		if err != nil {
			return err
		}
		if state.String() != want {
			return r.assertf("state = %s, want %s", state, want)
		}
	case StepExpectFlag:
		name := requiredString(step.Args, "name")
		want, _ := step.Args["value"].(bool)
		got, err := live.Flag(name)
		if err != nil {
			return err
		}
		if got != want {
			return r.assertf("flag %s = %t, want %t", name, got, want)
		}
	case StepExpectInt:
		name := requiredString(step.Args, "name")
		want := readInt(step.Args, "value")
		got, err := live.Int(name)
		if err != nil {
			return err
		}
		if got != want {
			return r.assertf("int %s = %d, want %d", name, got, want)
		}
	case StepExpectFloat:
		name := requiredString(step.Args, "name")
		want := readFloat(step.Args, "value")
		got, err := live.Float(name)
		if err != nil {
			return err
		}
		if got != want {
			return r.assertf("float %s = %v, want %v", name, got, want)
		}
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
	return nil
}

func (r *Runner) runPick(ctx context.Context, inst *game.Instance, live *game.Context, args map[string]any) error {
	choices, err := live.Choices()
	if err != nil {
		return err
	}
	choice, err := findChoice(choices, args)
	if err != nil {
		return r.assertf("%v", err)
	}
	r.logf("pick %s", choice)

	err = inst.ExecuteChoice(ctx, choice)
	want, expectViolation := args["violation"].(string)
	if !expectViolation {
		return err
	}
	return r.checkViolation(choice.Display(), want, err)
}

// checkViolation compares the outcome of a pick that should break the script
// contract. Host errors are returned as they are, whatever the assertion mode.
func (r *Runner) checkViolation(label, want string, err error) error {
	if err != nil && !game.IsContractViolation(err) {
		return err
	}
	if err == nil {
		return r.assertf("pick %q: expected violation containing %q, got none", label, want)
	}
	if !strings.Contains(err.Error(), want) {
		return r.assertf("pick %q: violation %q does not contain %q", label, err.Error(), want)
	}
	return nil
}

func findChoice(choices []game.Choice, args map[string]any) (game.Choice, error) {
	if label, ok := args["label"].(string); ok {
		for _, c := range choices {
			if c.Display() == label {
				return c, nil
			}
		}
		return game.Choice{}, fmt.Errorf("no choice labelled %q", label)
	}
	index := readInt(args, "index")
	if index < 0 || index >= len(choices) {
		return game.Choice{}, fmt.Errorf("choice index %d out of range (%d choices)", index, len(choices))
	}
	return choices[index], nil
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func requiredString(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

func readInt(args map[string]any, key string) int {
	switch value := args[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	default:
		return 0
	}
}

func readFloat(args map[string]any, key string) float64 {
	switch value := args[key].(type) {
	case int:
		return float64(value)
	case float64:
		return value
	default:
		return 0
	}
}

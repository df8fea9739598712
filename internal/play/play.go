// Package play drives a game instance: it presents the live context, reads
// the player's pick and dispatches it until the story ends or the player
// quits.
package play

import (
	"context"
	"fmt"

	"github.com/louisbranch/cyoa/internal/game"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

// Game is the part of *game.Instance the loop needs.
type Game interface {
	Context() (*game.Context, error)
	ExecuteChoice(ctx context.Context, choice game.Choice) error
}

// Option is one presented choice.
type Option struct {
	Index int
	Label string
}

// SelectionKind classifies player input.
type SelectionKind int

const (
	// SelectIndex picks the option at Index.
	SelectIndex SelectionKind = iota
	// SelectInvalid is input that is not an index.
	SelectInvalid
	// SelectQuit leaves the story.
	SelectQuit
)

// Selection is one line of player input.
type Selection struct {
	Kind  SelectionKind
	Index int
	Raw   string
}

// Rejection explains why a selection was not dispatched.
type Rejection int

const (
	RejectInvalid Rejection = iota
	RejectOutOfRange
)

func (r Rejection) String() string {
	switch r {
	case RejectInvalid:
		return "invalid"
	case RejectOutOfRange:
		return "out of range"
	default:
		return fmt.Sprintf("Rejection(%d)", int(r))
	}
}

// Presenter renders the story and reads selections.
type Presenter interface {
	RenderPassage(text string) error
	RenderChoices(options []Option) error
	ReadSelection() (Selection, error)
	Reject(selection Selection, reason Rejection) error
}

// Result summarizes a finished loop.
type Result struct {
	Steps   int
	Ended   bool
	Quit    bool
	Display string
}

// Loop runs g until the story ends, the player quits or an error occurs.
// Cancellation is checked between steps; a running handler is never
// interrupted.
func Loop(ctx context.Context, g Game, presenter Presenter) (Result, error) {
	if g == nil {
		return Result{}, fmt.Errorf("game is required")
	}
	if presenter == nil {
		return Result{}, fmt.Errorf("presenter is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var result Result
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		live, err := g.Context()
		if err != nil {
			return result, err
		}
		state, err := live.State()
		if err != nil {
			return result, err
		}
		display, err := live.Display()
		if err != nil {
			return result, err
		}

		switch state {
		case game.StateEnded:
			if err := presenter.RenderPassage(display); err != nil {
				return result, err
			}
			result.Ended = true
			result.Display = display
			return result, nil
		case game.StateRunning:
			choice, quit, err := step(live, display, presenter)
			if err != nil {
				return result, err
			}
			if quit {
				result.Quit = true
				result.Display = display
				return result, nil
			}
			if err := g.ExecuteChoice(ctx, choice); err != nil {
				return result, err
			}
			result.Steps++
		default:
			return result, fmt.Errorf("unreachable state %s", state)
		}
	}
}

// step presents one running context and reads until a valid pick or quit.
func step(live *game.Context, display string, presenter Presenter) (game.Choice, bool, error) {
	choices, err := live.Choices()
	if err != nil {
		return game.Choice{}, false, err
	}
	if len(choices) == 0 {
		return game.Choice{}, false, apperrors.WithMetadata(apperrors.CodeContractViolation,
			"running context has no choices",
			map[string]string{"builtin": "play.Loop", "field": game.FieldChoices, "detail": "running context has no choices"})
	}
	if err := presenter.RenderPassage(display); err != nil {
		return game.Choice{}, false, err
	}
	options := make([]Option, len(choices))
	for i, c := range choices {
		options[i] = Option{Index: c.Index(), Label: c.Display()}
	}
	if err := presenter.RenderChoices(options); err != nil {
		return game.Choice{}, false, err
	}

	for {
		sel, err := presenter.ReadSelection()
		if err != nil {
			return game.Choice{}, false, err
		}
		switch sel.Kind {
		case SelectQuit:
			return game.Choice{}, true, nil
		case SelectIndex:
			if sel.Index >= 0 && sel.Index < len(choices) {
				return choices[sel.Index], false, nil
			}
			err = presenter.Reject(sel, RejectOutOfRange)
		default:
			err = presenter.Reject(sel, RejectInvalid)
		}
		if err != nil {
			return game.Choice{}, false, err
		}
	}
}

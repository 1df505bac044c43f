// Package conversation implements the per-user input flow that collects the
// parameters of a generation order. The machine is pure: it never touches
// storage or the chat transport, callers persist the returned outcome.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownStep reports a persisted step outside the closed set.
	ErrUnknownStep = errors.New("conversation: unknown step")
	// ErrUnknownFunction reports a function value outside the closed set.
	ErrUnknownFunction = errors.New("conversation: unknown function")
	// ErrUnknownMode reports a mode value outside the closed set.
	ErrUnknownMode = errors.New("conversation: unknown mode")
	// ErrInconsistent reports a state whose filled fields do not match its step.
	ErrInconsistent = errors.New("conversation: inconsistent state")
)

// Step names the input the flow currently expects.
type Step string

const (
	StepIdle         Step = ""
	StepFunction     Step = "function"
	StepMode         Step = "mode"
	StepInstrumental Step = "instrumental"
	StepStyle        Step = "style"
	StepPrompt       Step = "prompt"
)

// ParseStep validates a persisted step value.
func ParseStep(s string) (Step, error) {
	switch st := Step(strings.TrimSpace(s)); st {
	case StepIdle, StepFunction, StepMode, StepInstrumental, StepStyle, StepPrompt:
		return st, nil
	}
	return StepIdle, fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

// Function is the top-level capability picked from the start menu.
type Function string

const (
	FunctionGeneration Function = "generation"
	FunctionEdit       Function = "edit"
)

// ParseFunction validates a function value. Empty means unset.
func ParseFunction(s string) (Function, error) {
	switch f := Function(strings.TrimSpace(s)); f {
	case "", FunctionGeneration, FunctionEdit:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFunction, s)
}

// Mode selects how much the user describes up front.
type Mode string

const (
	// ModeClassic infers genre and lyrics from a single description.
	ModeClassic Mode = "classic"
	// ModeCustom asks for an explicit style before the prompt.
	ModeCustom Mode = "custom"
)

// ParseMode validates a mode value. Empty means unset.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case "", ModeClassic, ModeCustom:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// State is the persisted progress of one user through the flow.
type State struct {
	Step         Step
	Function     Function
	Mode         Mode
	Instrumental *bool
	Style        *string
	Prompt       *string
}

// Idle reports whether the state expects no input.
func (s *State) Idle() bool {
	return s == nil || s.Step == StepIdle
}

// Validate checks that exactly the fields of the steps already passed are
// filled. Fields of future steps must be unset.
func (s *State) Validate() error {
	if s.Idle() {
		return nil
	}
	bad := func(why string) error {
		return fmt.Errorf("%w: step %s: %s", ErrInconsistent, s.Step, why)
	}
	if s.Prompt != nil {
		return bad("prompt is filled")
	}
	switch s.Step {
	case StepFunction:
		if s.Function != "" || s.Mode != "" || s.Instrumental != nil || s.Style != nil {
			return bad("later fields are filled")
		}
	case StepMode:
		if s.Function != FunctionGeneration {
			return bad("function is not generation")
		}
		if s.Mode != "" || s.Instrumental != nil || s.Style != nil {
			return bad("later fields are filled")
		}
	case StepInstrumental:
		if s.Function != FunctionGeneration || s.Mode == "" {
			return bad("function or mode missing")
		}
		if s.Instrumental != nil || s.Style != nil {
			return bad("later fields are filled")
		}
	case StepStyle:
		if s.Function != FunctionGeneration || s.Mode != ModeCustom || s.Instrumental == nil {
			return bad("style step outside custom mode")
		}
		if s.Style != nil {
			return bad("style is filled")
		}
	case StepPrompt:
		if s.Function != FunctionGeneration || s.Mode == "" || s.Instrumental == nil {
			return bad("earlier fields missing")
		}
		if (s.Mode == ModeCustom) != (s.Style != nil) {
			return bad("style does not match mode")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, s.Step)
	}
	return nil
}

// Draft holds the accumulated fields an order is built from.
type Draft struct {
	Function     Function
	Mode         Mode
	Instrumental bool
	Style        string
	Prompt       string
}

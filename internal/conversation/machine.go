package conversation

import (
	"strings"
)

// EventKind classifies inbound chat events the flow reacts to.
type EventKind int

const (
	EventText EventKind = iota
	EventStart
	EventReset
	EventFunction
	EventMode
	EventInstrumental
)

var eventNames = map[EventKind]string{
	EventText:         "text",
	EventStart:        "start",
	EventReset:        "reset",
	EventFunction:     "function",
	EventMode:         "mode",
	EventInstrumental: "instrumental",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event is one user action: a command, a button press or free text.
type Event struct {
	Kind  EventKind
	Value string
}

// Start returns the /start event.
func Start() Event { return Event{Kind: EventStart} }

// Reset returns the reset event.
func Reset() Event { return Event{Kind: EventReset} }

// Text wraps a free-text message.
func Text(s string) Event { return Event{Kind: EventText, Value: s} }

// Selection maps a button namespace onto an event. Unknown namespaces
// report false.
func Selection(namespace, value string) (Event, bool) {
	switch namespace {
	case "function":
		return Event{Kind: EventFunction, Value: value}, true
	case "mode":
		return Event{Kind: EventMode, Value: value}, true
	case "instrumental":
		return Event{Kind: EventInstrumental, Value: value}, true
	}
	return Event{}, false
}

// Action tells the caller what to do with the stored state.
type Action int

const (
	// Keep leaves storage untouched.
	Keep Action = iota
	// Save replaces the stored state with Outcome.State.
	Save
	// Delete removes the stored state, returning the user to idle.
	Delete
)

// Reply names the outbound message the transport should render.
type Reply int

const (
	ReplyMainMenu Reply = iota
	ReplyStart
	ReplyReset
	ReplyEditUnavailable
	ReplyModeMenu
	ReplyInstrumentalMenu
	ReplyAskStyle
	ReplyAskDescription
	ReplyAskLyrics
	ReplyInvoice
)

// Outcome is the result of applying one event.
type Outcome struct {
	Action Action
	State  State
	Reply  Reply
	// Draft is set only when the flow completed and an order must be created.
	Draft *Draft
}

func keep(r Reply) Outcome { return Outcome{Action: Keep, Reply: r} }

func save(s State, r Reply) Outcome { return Outcome{Action: Save, State: s, Reply: r} }

// Apply advances cur by ev. A nil cur means the user has no stored state.
// Events that do not fit the current step never mutate state and fall
// through to the main menu.
func Apply(cur *State, ev Event) Outcome {
	switch ev.Kind {
	case EventStart:
		return save(State{Step: StepFunction}, ReplyStart)
	case EventReset:
		return Outcome{Action: Delete, Reply: ReplyReset}
	}

	if cur != nil {
		if err := cur.Validate(); err != nil {
			return Outcome{Action: Delete, Reply: ReplyMainMenu}
		}
	}

	switch ev.Kind {
	case EventFunction:
		return applyFunction(ev.Value)
	case EventMode:
		return applyMode(cur, ev.Value)
	case EventInstrumental:
		return applyInstrumental(cur, ev.Value)
	case EventText:
		return applyText(cur, ev.Value)
	}
	return keep(ReplyMainMenu)
}

// The function menu is the entry point, so a selection is honoured from any
// step and discards whatever was collected before.
func applyFunction(value string) Outcome {
	fn, err := ParseFunction(value)
	if err != nil || fn == "" {
		return keep(ReplyMainMenu)
	}
	if fn == FunctionEdit {
		return save(State{Step: StepFunction}, ReplyEditUnavailable)
	}
	return save(State{Step: StepMode, Function: fn}, ReplyModeMenu)
}

func applyMode(cur *State, value string) Outcome {
	if cur.Idle() || cur.Step != StepMode {
		return keep(ReplyMainMenu)
	}
	mode, err := ParseMode(value)
	if err != nil || mode == "" {
		return keep(ReplyMainMenu)
	}
	return save(State{Step: StepInstrumental, Function: cur.Function, Mode: mode}, ReplyInstrumentalMenu)
}

func applyInstrumental(cur *State, value string) Outcome {
	if cur.Idle() || cur.Step != StepInstrumental {
		return keep(ReplyMainMenu)
	}
	var instrumental bool
	switch value {
	case "true":
		instrumental = true
	case "false":
	default:
		return keep(ReplyMainMenu)
	}
	next := State{Function: cur.Function, Mode: cur.Mode, Instrumental: &instrumental}
	if cur.Mode == ModeCustom {
		next.Step = StepStyle
		return save(next, ReplyAskStyle)
	}
	next.Step = StepPrompt
	return save(next, promptReply(next.Mode, instrumental))
}

func applyText(cur *State, raw string) Outcome {
	if cur.Idle() {
		return keep(ReplyMainMenu)
	}
	text := strings.TrimSpace(raw)
	switch cur.Step {
	case StepStyle:
		if text == "" {
			return keep(ReplyAskStyle)
		}
		next := *cur
		next.Step = StepPrompt
		next.Style = &text
		return save(next, promptReply(next.Mode, *next.Instrumental))
	case StepPrompt:
		if text == "" {
			return keep(promptReply(cur.Mode, *cur.Instrumental))
		}
		d := &Draft{
			Function:     cur.Function,
			Mode:         cur.Mode,
			Instrumental: *cur.Instrumental,
			Prompt:       text,
		}
		if cur.Mode == ModeCustom {
			d.Style = *cur.Style
		}
		return Outcome{Action: Delete, Reply: ReplyInvoice, Draft: d}
	}
	return keep(ReplyMainMenu)
}

// Classic mode always takes a free description; custom songs take lyrics.
func promptReply(mode Mode, instrumental bool) Reply {
	if mode == ModeClassic || instrumental {
		return ReplyAskDescription
	}
	return ReplyAskLyrics
}

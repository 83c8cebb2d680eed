package probe

import "fmt"

// State is a step of the per-event inspection.
type State int

const (
	StateNotVisited State = iota
	StateNavigating
	StateTrackerCheck
	StateWidgetPoll
	StatePass
	StateFail
	StateError
)

var stateNames = map[State]string{
	StateNotVisited:   "not_visited",
	StateNavigating:   "navigating",
	StateTrackerCheck: "tracker_check",
	StateWidgetPoll:   "widget_poll",
	StatePass:         "pass",
	StateFail:         "fail",
	StateError:        "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePass || s == StateFail || s == StateError
}

// transitions lists the allowed next states. Any non-terminal state may
// move to StateError.
var transitions = map[State][]State{
	StateNotVisited:   {StateNavigating},
	StateNavigating:   {StateTrackerCheck},
	StateTrackerCheck: {StateWidgetPoll, StateFail},
	StateWidgetPoll:   {StatePass, StateFail},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}

	if to == StateError {
		return true
	}

	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// TransitionFunc observes every state change of an inspection.
type TransitionFunc func(event string, from, to State)

// inspection tracks one event through the state machine.
type inspection struct {
	event   string
	state   State
	observe TransitionFunc
}

func newInspection(event string, observe TransitionFunc) *inspection {
	return &inspection{event: event, state: StateNotVisited, observe: observe}
}

func (i *inspection) advance(to State) {
	if !CanTransition(i.state, to) {
		// Only reachable through a programming error in the prober.
		panic(fmt.Sprintf("probe: illegal transition %s -> %s for %q", i.state, to, i.event))
	}

	from := i.state
	i.state = to

	if i.observe != nil {
		i.observe(i.event, from, to)
	}
}

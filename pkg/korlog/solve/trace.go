package solve

// EventKind classifies resolution trace events.
type EventKind string

const (
	EventCall      EventKind = "call"
	EventBuiltin   EventKind = "builtin"
	EventMatch     EventKind = "match"
	EventFail      EventKind = "fail"
	EventSolution  EventKind = "solution"
	EventBacktrack EventKind = "backtrack"
	EventBudget    EventKind = "budget"
)

// Event is one observable step of a search. Goal is rendered under the
// substitution current at the time of the event; Clause carries the ID of
// the matched clause on match events.
type Event struct {
	Kind   EventKind
	Step   int
	Depth  int
	Goal   string
	Clause string
	Note   string
}

// TraceFunc receives resolution events while a search runs. A nil trace
// costs nothing.
type TraceFunc func(Event)

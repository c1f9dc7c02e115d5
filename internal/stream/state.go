package stream

import "fmt"

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateErroring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateErroring:
		return "Erroring"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for st := StateIdle; st <= StateClosed; st++ {
		if st.String() == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown session state %q", name)
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
}

// allowed lists the legal edges. Closed has no outgoing edges.
var allowed = map[State][]State{
	StateIdle:       {StateConnecting, StateClosed},
	StateConnecting: {StateStreaming, StateErroring, StateClosed},
	StateStreaming:  {StateErroring, StateClosed},
	StateErroring:   {StateConnecting, StateClosed},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome is how a session finished.
type Outcome string

const (
	OutcomeEndedNormally  Outcome = "ended-normally"
	OutcomeEndedError     Outcome = "ended-error"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeDeliveryFailed Outcome = "delivery-failed"
)

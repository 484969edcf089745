package scheduler

import "fmt"

// State tracks where one client is in its benchmark lifecycle.
type State int

const (
	StatePending State = iota
	StateLaunching
	StateReady
	StateRunningScenarios
	StateTearingDown
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateLaunching:
		return "LAUNCHING"
	case StateReady:
		return "READY"
	case StateRunningScenarios:
		return "RUNNING_SCENARIOS"
	case StateTearingDown:
		return "TEARING_DOWN"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions is the set of legal state changes. Terminal states can
// only be reached through TEARING_DOWN, so a failed launch still gets
// its teardown pass.
var transitions = map[State][]State{
	StatePending:          {StateLaunching},
	StateLaunching:        {StateReady, StateTearingDown},
	StateReady:            {StateRunningScenarios, StateTearingDown},
	StateRunningScenarios: {StateTearingDown},
	StateTearingDown:      {StateDone, StateFailed},
}

// clientState is the per-client lifecycle tracker.
type clientState struct {
	client string
	state  State
}

func newClientState(client string) *clientState {
	return &clientState{client: client, state: StatePending}
}

// to advances the machine, rejecting transitions the lifecycle does not
// allow.
func (c *clientState) to(next State) error {
	for _, allowed := range transitions[c.state] {
		if allowed == next {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("client %s: illegal state transition %s -> %s", c.client, c.state, next)
}

func (c *clientState) is(s State) bool { return c.state == s }

package dao

import "fmt"

// ProposalState mirrors the Governor contract's ProposalState enum. The
// ordinals are fixed by the contract.
type ProposalState uint8

const (
	StatePending ProposalState = iota
	StateActive
	StateCanceled
	StateDefeated
	StateSucceeded
	StateQueued
	StateExpired
	StateExecuted
)

var stateNames = [...]string{
	StatePending:   "Pending",
	StateActive:    "Active",
	StateCanceled:  "Canceled",
	StateDefeated:  "Defeated",
	StateSucceeded: "Succeeded",
	StateQueued:    "Queued",
	StateExpired:   "Expired",
	StateExecuted:  "Executed",
}

// ProposalStateFromUint8 maps the value returned by state(uint256)
func ProposalStateFromUint8(v uint8) (ProposalState, error) {
	if int(v) >= len(stateNames) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownState, v)
	}

	return ProposalState(v), nil
}

func (s ProposalState) String() string {
	if int(s) >= len(stateNames) {
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}

	return stateNames[s]
}

// IsFinal reports whether no further transition is possible
func (s ProposalState) IsFinal() bool {
	switch s {
	case StateCanceled, StateDefeated, StateExpired, StateExecuted:
		return true
	}

	return false
}

func (s ProposalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

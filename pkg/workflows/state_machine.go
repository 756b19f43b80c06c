package workflows

// StateMachine enforces signature request status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewRequestLifecycle builds the state machine for signature requests.
// SIGNED and REJECTED are terminal; an audit trail is never reopened.
func NewRequestLifecycle() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"PENDING":  {"SIGNED", "REJECTED"},
			"SIGNED":   {},
			"REJECTED": {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

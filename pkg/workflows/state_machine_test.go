package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestLifecycleTransitions(t *testing.T) {
	sm := NewRequestLifecycle()

	assert.True(t, sm.CanTransition("PENDING", "SIGNED"))
	assert.True(t, sm.CanTransition("PENDING", "REJECTED"))

	assert.False(t, sm.CanTransition("SIGNED", "PENDING"))
	assert.False(t, sm.CanTransition("SIGNED", "REJECTED"))
	assert.False(t, sm.CanTransition("REJECTED", "SIGNED"))
	assert.False(t, sm.CanTransition("REJECTED", "PENDING"))

	assert.False(t, sm.CanTransition("UNKNOWN", "SIGNED"))
}

func TestRequestLifecycleAllowedTransitions(t *testing.T) {
	sm := NewRequestLifecycle()

	assert.ElementsMatch(t, []string{"SIGNED", "REJECTED"}, sm.GetAllowedTransitions("PENDING"))
	assert.Empty(t, sm.GetAllowedTransitions("SIGNED"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthTrackerDowngradeOnly(t *testing.T) {
	h := NewHealthTracker("opentargets", "reactome")
	assert.Equal(t, HealthGreen, h.Get("opentargets"))

	h.BeginPhase()
	h.Degrade("opentargets", true)
	assert.Equal(t, HealthYellow, h.Get("opentargets"))
	assert.True(t, h.PhaseDegraded())

	// Timeouts never add up to red.
	h.Degrade("opentargets", true)
	h.FinalizePhase("opentargets", 2)
	assert.Equal(t, HealthYellow, h.Get("opentargets"))

	// A phase where every call failed hard goes red and stays red.
	h.BeginPhase()
	h.Degrade("reactome", false)
	h.Degrade("reactome", false)
	h.FinalizePhase("reactome", 2)
	assert.Equal(t, HealthRed, h.Get("reactome"))

	h.BeginPhase()
	h.Degrade("reactome", true)
	assert.Equal(t, HealthRed, h.Get("reactome"))
}

func TestHealthTrackerPartialPhaseFailuresStayYellow(t *testing.T) {
	h := NewHealthTracker("chembl")
	h.BeginPhase()
	h.Degrade("chembl", false)
	h.FinalizePhase("chembl", 3)
	assert.Equal(t, HealthYellow, h.Get("chembl"))

	snap := h.Snapshot()
	assert.Equal(t, HealthYellow, snap["chembl"])

	assert.Equal(t, HealthGreen, h.Get("unknown"))
}

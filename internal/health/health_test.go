package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryWorstStatusWins(t *testing.T) {
	r := NewRegistry()
	r.Register("a", CheckerFunc(func() ComponentHealth { return ComponentHealth{Name: "a", Status: "ok"} }))
	assert.Equal(t, "ok", r.Check().Status)

	r.Register("b", CheckerFunc(func() ComponentHealth { return ComponentHealth{Name: "b", Status: "degraded"} }))
	assert.Equal(t, "degraded", r.Check().Status)

	r.Register("c", CheckerFunc(func() ComponentHealth { return ComponentHealth{Name: "c", Status: "error"} }))
	report := r.Check()
	assert.Equal(t, "error", report.Status)
	assert.Len(t, report.Components, 3)
}

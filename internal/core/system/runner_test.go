package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase           { return r.phase }
func (r recorder) Update(_ time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"flush", PhaseOutput, &log})
	r.Register(recorder{"drain", PhaseInput, &log})
	r.Register(recorder{"world", PhaseUpdate, &log})
	r.Register(recorder{"pending", PhasePreUpdate, &log})
	r.Register(recorder{"ai-after-world", PhaseUpdate, &log})

	r.Tick(time.Second)

	assert.Equal(t, []string{"drain", "pending", "world", "ai-after-world", "flush"}, log)
	assert.Equal(t, 5, r.Len())
}

func TestTickPhaseRunsOnlyThatPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"drain", PhaseInput, &log})
	r.Register(recorder{"world", PhaseUpdate, &log})

	r.TickPhase(PhaseUpdate, time.Second)
	assert.Equal(t, []string{"world"}, log)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "input", PhaseInput.String())
	assert.Equal(t, "cleanup", PhaseCleanup.String())
	assert.Equal(t, "unknown", Phase(99).String())
}

func TestRegisterBetweenTicksKeepsRunOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"drain", PhaseInput, &log})
	r.Register(recorder{"flush", PhaseOutput, &log})
	r.Tick(time.Second)

	r.Register(recorder{"world", PhaseUpdate, &log})
	r.Register(recorder{"late-drain", PhaseInput, &log})
	log = nil
	r.Tick(time.Second)
	assert.Equal(t, []string{"drain", "late-drain", "world", "flush"}, log)

	log = nil
	r.TickPhase(PhaseInput, time.Second)
	r.TickPhase(PhasePersist, time.Second)
	assert.Equal(t, []string{"drain", "late-drain"}, log)
}

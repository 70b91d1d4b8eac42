package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/metric"
	"go.uber.org/zap"
)

type probe struct {
	phase coresys.Phase
	fn    func()
}

func (p probe) Phase() coresys.Phase   { return p.phase }
func (p probe) Update(_ time.Duration) { p.fn() }

func newLoop(runner *coresys.Runner, bus *event.Bus) *Loop {
	return New(time.Millisecond, runner, bus, metric.New(), zap.NewNop())
}

func stage(name string, log *[]string, err error) Stage {
	return Stage{
		Name: name,
		Init: func() error {
			*log = append(*log, "init "+name)
			return err
		},
		Cleanup: func() { *log = append(*log, "cleanup "+name) },
	}
}

func TestInitRunsStagesAndDeliversLoadEvents(t *testing.T) {
	bus := event.NewBus()
	var created []event.MapCreated
	event.Subscribe(bus, func(ev event.MapCreated) { created = append(created, ev) })

	var calls []string
	l := newLoop(coresys.NewRunner(), bus)
	require.NoError(t, l.AddStage(stage("world", &calls, nil)))
	require.NoError(t, l.AddStage(Stage{Name: "maps", Init: func() error {
		event.Emit(bus, event.MapCreated{MapID: 1})
		return nil
	}}))
	assert.Equal(t, StateConstructed, l.State())

	require.NoError(t, l.Init())
	assert.Equal(t, StateRunning, l.State())
	assert.Equal(t, []string{"init world"}, calls)
	assert.Len(t, created, 1)
	assert.NotEmpty(t, l.RunID())

	require.ErrorIs(t, l.AddStage(Stage{Name: "late"}), ErrAlreadyBuilt)
	require.Error(t, l.Init())
}

func TestInitFailureCleansUpInReverseAndNeverRuns(t *testing.T) {
	var calls []string
	boom := errors.New("port in use")

	ran := false
	runner := coresys.NewRunner()
	runner.Register(probe{coresys.PhaseUpdate, func() { ran = true }})

	l := newLoop(runner, event.NewBus())
	for _, st := range []Stage{
		stage("scripting", &calls, nil),
		stage("world", &calls, nil),
		stage("transport", &calls, boom),
		stage("never", &calls, nil),
	} {
		require.NoError(t, l.AddStage(st))
	}

	err := l.Init()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "transport")
	assert.Equal(t, StateTerminated, l.State())
	assert.Equal(t, []string{
		"init scripting", "init world", "init transport",
		"cleanup world", "cleanup scripting",
	}, calls)

	require.ErrorIs(t, l.Run(context.Background()), ErrNotRunning)
	assert.False(t, ran)
	assert.Zero(t, l.Ticks())
}

func TestStopLetsTheCurrentTickFinish(t *testing.T) {
	var order []string
	var l *Loop
	runner := coresys.NewRunner()
	runner.Register(probe{coresys.PhaseInput, func() {
		order = append(order, "input")
		l.Stop()
	}})
	runner.Register(probe{coresys.PhaseCleanup, func() { order = append(order, "cleanup") }})

	var calls []string
	l = newLoop(runner, event.NewBus())
	require.NoError(t, l.AddStage(stage("a", &calls, nil)))
	require.NoError(t, l.AddStage(stage("b", &calls, nil)))
	require.NoError(t, l.Init())

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []string{"input", "cleanup"}, order)
	assert.Equal(t, uint64(1), l.Ticks())
	assert.Equal(t, StateTerminated, l.State())
	assert.Equal(t, []string{"init a", "init b", "cleanup b", "cleanup a"}, calls)
}

func TestRunEndsOnContextCancel(t *testing.T) {
	runner := coresys.NewRunner()
	ticked := make(chan struct{}, 1)
	runner.Register(probe{coresys.PhaseUpdate, func() {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}})

	l := newLoop(runner, event.NewBus())
	require.NoError(t, l.Init())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	<-ticked
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, StateTerminated, l.State())
	assert.GreaterOrEqual(t, l.Ticks(), uint64(1))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "cleaning-up", StateCleaningUp.String())
	assert.Equal(t, "State(9)", State(9).String())
}

// Package loop drives the server: staged startup, the fixed-rate tick and
// reverse-order teardown.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/metric"
	"go.uber.org/zap"
)

type State int32

const (
	StateConstructed State = iota
	StateInitializing
	StateRunning
	StateCleaningUp
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCleaningUp:
		return "cleaning-up"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	ErrNotRunning   = errors.New("loop is not running")
	ErrAlreadyBuilt = errors.New("stages can only be added before init")
)

// Stage is one startup step. Init acquires, Cleanup releases; a stage whose
// Init failed is not cleaned up.
type Stage struct {
	Name    string
	Init    func() error
	Cleanup func()
}

// Loop owns the tick. Everything the systems touch is mutated on the
// goroutine that calls Run.
type Loop struct {
	state    atomic.Int32
	stages   []Stage
	acquired []Stage

	runner   *coresys.Runner
	bus      *event.Bus
	interval time.Duration
	ticks    uint64

	stopOnce sync.Once
	stopCh   chan struct{}

	runID   string
	metrics *metric.Metrics
	log     *zap.Logger
}

func New(interval time.Duration, runner *coresys.Runner, bus *event.Bus, metrics *metric.Metrics, log *zap.Logger) *Loop {
	runID := uuid.NewString()
	l := &Loop{
		runner:   runner,
		bus:      bus,
		interval: interval,
		stopCh:   make(chan struct{}),
		runID:    runID,
		metrics:  metrics,
		log:      log.With(zap.String("run", runID)),
	}
	l.state.Store(int32(StateConstructed))
	return l
}

// RunID identifies this process run in logs, the journal and published
// events.
func (l *Loop) RunID() string { return l.runID }

func (l *Loop) State() State { return State(l.state.Load()) }

// Ticks is the number of ticks started so far. Loop goroutine only.
func (l *Loop) Ticks() uint64 { return l.ticks }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.log.Debug("loop state", zap.Stringer("state", s))
}

// AddStage appends a startup stage. Stages initialize in the order added.
func (l *Loop) AddStage(st Stage) error {
	if l.State() != StateConstructed {
		return fmt.Errorf("add stage %s: %w", st.Name, ErrAlreadyBuilt)
	}
	l.stages = append(l.stages, st)
	return nil
}

// Init runs every stage. On the first failure the stages acquired so far
// are released in reverse order, the loop ends Terminated and the error is
// returned; it never reaches Running.
func (l *Loop) Init() error {
	if l.State() != StateConstructed {
		return fmt.Errorf("init from state %s", l.State())
	}
	l.setState(StateInitializing)

	for _, st := range l.stages {
		start := time.Now()
		if st.Init != nil {
			if err := st.Init(); err != nil {
				l.log.Error("stage failed", zap.String("stage", st.Name), zap.Error(err))
				l.cleanup()
				return fmt.Errorf("init %s: %w", st.Name, err)
			}
		}
		l.acquired = append(l.acquired, st)
		l.log.Info("stage ready", zap.String("stage", st.Name), zap.Duration("took", time.Since(start)))
	}

	// Deliver load-time events (MapCreated) so maps tick from the first tick.
	l.bus.Dispatch()
	l.setState(StateRunning)
	return nil
}

// Run ticks at the configured rate until ctx is done or Stop is called, then
// releases every stage. A stop request is seen between ticks; a tick that
// has started always completes.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() != StateRunning {
		return ErrNotRunning
	}
	l.log.Info("loop running", zap.Duration("tick", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for !l.stopRequested(ctx) {
		l.Tick()

		select {
		case <-ticker.C:
		case <-ctx.Done():
		case <-l.stopCh:
		}
	}

	l.log.Info("loop stopping", zap.Uint64("ticks", l.ticks))
	l.cleanup()
	return nil
}

func (l *Loop) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// Tick runs every phase once.
func (l *Loop) Tick() {
	l.ticks++
	start := time.Now()
	l.runner.Tick(l.interval)
	took := time.Since(start)
	l.metrics.Tick(took)
	if took > l.interval {
		l.log.Warn("tick overran", zap.Uint64("tick", l.ticks), zap.Duration("took", took))
	}
}

// Stop asks Run to return after the current tick. Safe from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Loop) cleanup() {
	l.setState(StateCleaningUp)
	for i := len(l.acquired) - 1; i >= 0; i-- {
		st := l.acquired[i]
		if st.Cleanup != nil {
			st.Cleanup()
		}
		l.log.Debug("stage released", zap.String("stage", st.Name))
	}
	l.acquired = nil
	l.setState(StateTerminated)
}

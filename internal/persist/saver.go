package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PlayerSaver persists player snapshots.
type PlayerSaver interface {
	SavePlayers(ctx context.Context, rows []PlayerRow) error
}

// SaveResult reports the outcome of one snapshot batch back to the game loop.
type SaveResult struct {
	Tick  uint64
	Count int
	Err   error
}

type saveJob struct {
	tick uint64
	rows []PlayerRow
}

// Saver writes snapshot batches on its own goroutine so the game loop never
// waits on the database. Results come back through Results and are applied
// on a later tick.
type Saver struct {
	store   PlayerSaver
	jobs    chan saveJob
	results chan SaveResult
	timeout time.Duration
	wg      sync.WaitGroup
	log     *zap.Logger
}

func NewSaver(store PlayerSaver, log *zap.Logger) *Saver {
	return &Saver{
		store:   store,
		jobs:    make(chan saveJob, 4),
		results: make(chan SaveResult, 4),
		timeout: 10 * time.Second,
		log:     log,
	}
}

// Start launches the worker. It exits when Stop closes the job queue.
func (s *Saver) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for job := range s.jobs {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			err := s.store.SavePlayers(ctx, job.rows)
			cancel()
			res := SaveResult{Tick: job.tick, Count: len(job.rows), Err: err}
			select {
			case s.results <- res:
			default:
				s.log.Warn("save result dropped, loop is not draining results", zap.Uint64("tick", job.tick))
			}
		}
	}()
}

// Enqueue hands a batch to the worker. It returns false when the worker is
// still busy with earlier batches; the caller retries on a later tick.
func (s *Saver) Enqueue(tick uint64, rows []PlayerRow) bool {
	select {
	case s.jobs <- saveJob{tick: tick, rows: rows}:
		return true
	default:
		return false
	}
}

// Results delivers completed batches.
func (s *Saver) Results() <-chan SaveResult {
	return s.results
}

// Stop waits for queued batches to be written.
func (s *Saver) Stop() {
	close(s.jobs)
	s.wg.Wait()
}

package system

import (
	"time"

	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/entity"
	"github.com/worldsrv/server/internal/handler"
	"github.com/worldsrv/server/internal/persist"
	"go.uber.org/zap"
)

// SnapshotQueue takes player snapshots for asynchronous saving.
type SnapshotQueue interface {
	Enqueue(tick uint64, rows []persist.PlayerRow) bool
	Results() <-chan persist.SaveResult
}

// PersistenceSystem snapshots every online player each interval ticks and
// hands the rows to the save worker. The loop never waits on the database;
// results are logged when they come back. Phase 5 (Persist).
type PersistenceSystem struct {
	store     *entity.Storage
	saver     SnapshotQueue
	ticks     func() uint64
	interval  int
	tickCount int
	log       *zap.Logger
}

func NewPersistenceSystem(store *entity.Storage, saver SnapshotQueue, ticks func() uint64, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{
		store:    store,
		saver:    saver,
		ticks:    ticks,
		interval: intervalTicks,
		log:      log,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.drainResults()

	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveAll()
}

// SaveAll queues a snapshot of every online player right now. Also called
// once during shutdown.
func (s *PersistenceSystem) SaveAll() {
	rows := Snapshot(s.store)
	if len(rows) == 0 {
		return
	}
	if !s.saver.Enqueue(s.ticks(), rows) {
		s.log.Warn("save queue full, snapshot skipped", zap.Int("players", len(rows)))
	}
}

// Enqueue saves a single row, used for players leaving the world.
func (s *PersistenceSystem) Enqueue(row persist.PlayerRow) {
	if !s.saver.Enqueue(s.ticks(), []persist.PlayerRow{row}) {
		s.log.Warn("save queue full, logout snapshot skipped", zap.String("player", row.Name))
	}
}

func (s *PersistenceSystem) drainResults() {
	for {
		select {
		case res := <-s.saver.Results():
			if res.Err != nil {
				s.log.Error("player save failed", zap.Uint64("tick", res.Tick), zap.Int("players", res.Count), zap.Error(res.Err))
				continue
			}
			s.log.Debug("players saved", zap.Uint64("tick", res.Tick), zap.Int("players", res.Count))
		default:
			return
		}
	}
}

// Snapshot returns the persisted form of every live player.
func Snapshot(store *entity.Storage) []persist.PlayerRow {
	var rows []persist.PlayerRow
	store.Each(func(e *entity.Entity) {
		if e.Kind == entity.KindPlayer {
			rows = append(rows, handler.SnapshotRow(e))
		}
	})
	return rows
}

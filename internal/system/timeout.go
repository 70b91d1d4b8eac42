package system

import (
	"time"

	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/net"
	"go.uber.org/zap"
)

// TimeoutSystem closes sessions that sent nothing for longer than the user
// timeout. The input phase of the next tick removes them. Phase 3
// (PostUpdate).
type TimeoutSystem struct {
	store   *net.SessionStore
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewTimeoutSystem(store *net.SessionStore, timeout time.Duration, log *zap.Logger) *TimeoutSystem {
	return &TimeoutSystem{store: store, timeout: timeout, now: time.Now, log: log}
}

func (s *TimeoutSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *TimeoutSystem) Update(_ time.Duration) {
	if s.timeout <= 0 {
		return
	}
	now := s.now()
	s.store.Each(func(sess *net.Session) {
		if sess.IsClosed() {
			return
		}
		if idle := now.Sub(sess.LastSeen()); idle > s.timeout {
			s.log.Info("session timed out", zap.Uint64("session", sess.ID()), zap.Duration("idle", idle))
			sess.Close()
		}
	})
}

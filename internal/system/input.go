package system

import (
	"time"

	"github.com/worldsrv/server/internal/auth"
	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/handler"
	"github.com/worldsrv/server/internal/journal"
	"github.com/worldsrv/server/internal/net"
	"github.com/worldsrv/server/internal/net/packet"
	"go.uber.org/zap"
)

// SessionSource hands over freshly accepted sessions.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// AuthResults delivers finished logins from the auth workers.
type AuthResults interface {
	Results() <-chan auth.Result
}

// Journal records every input the loop applies: accepted sessions, login
// results, dispatched frames and dropped sessions.
type Journal interface {
	Append(rec journal.Record)
}

// InputSystem admits new sessions, applies finished logins, drops closed
// sessions and dispatches every queued frame in global receipt order.
// Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	store      *net.SessionStore
	registry   *packet.Registry
	deps       *handler.Deps
	auth       AuthResults
	journal    Journal
	ticks      func() uint64
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	source SessionSource,
	store *net.SessionStore,
	registry *packet.Registry,
	deps *handler.Deps,
	auth AuthResults,
	journal Journal,
	ticks func() uint64,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		source:     source,
		store:      store,
		registry:   registry,
		deps:       deps,
		auth:       auth,
		journal:    journal,
		ticks:      ticks,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptSessions()
	s.applyLogins()

	// Frames of sessions that closed since the last tick are still
	// dispatched; cleanup follows below.
	for _, p := range s.store.Drain(s.maxPerTick) {
		if !s.registry.Dispatch(p.Session, p.Data) {
			s.log.Debug("packet dropped", zap.Uint64("session", p.Session.ID()), zap.Uint64("seq", p.Seq))
		}
		s.record(journal.Record{Kind: journal.KindPacket, Seq: p.Seq, Session: p.Session.ID(), Data: p.Data})
	}

	s.dropClosed()
}

func (s *InputSystem) acceptSessions() {
	if s.source == nil {
		return
	}
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
			s.record(journal.Record{Kind: journal.KindConnect, Session: sess.ID(), Addr: sess.Addr()})
			event.Emit(s.deps.Bus, event.ConnectionEstablished{SessionID: sess.ID(), Addr: sess.Addr()})
		default:
			return
		}
	}
}

func (s *InputSystem) applyLogins() {
	if s.auth == nil {
		return
	}
	for {
		select {
		case res := <-s.auth.Results():
			sess := s.store.Get(res.SessionID)
			if sess == nil || sess.IsClosed() {
				s.log.Debug("login result for a gone session", zap.Uint64("session", res.SessionID))
				continue
			}
			rec := journal.Record{Kind: journal.KindLogin, Session: res.SessionID, Account: res.Name}
			if res.Err != nil {
				rec.Err = res.Err.Error()
			}
			s.record(rec)
			handler.CompleteLogin(sess, res, s.deps)
		default:
			return
		}
	}
}

func (s *InputSystem) dropClosed() {
	var closed []*net.Session
	s.store.Each(func(sess *net.Session) {
		if sess.IsClosed() {
			closed = append(closed, sess)
		}
	})
	for _, sess := range closed {
		// anything that arrived after the drain snapshot is discarded
		handler.LeaveWorld(sess.ID(), "closed", s.deps)
		s.record(journal.Record{Kind: journal.KindClose, Session: sess.ID(), Err: "closed"})
		s.store.Remove(sess.ID())
		s.log.Info("session removed", zap.Uint64("session", sess.ID()))
	}
}

func (s *InputSystem) record(rec journal.Record) {
	if s.journal == nil {
		return
	}
	rec.Tick = s.ticks()
	s.journal.Append(rec)
}

// Lookup resolves a session id for handlers. It returns a nil interface, not
// a typed nil, when the session is gone.
func Lookup(store *net.SessionStore) handler.SessionLookup {
	return func(id uint64) handler.Conn {
		if sess := store.Get(id); sess != nil {
			return sess
		}
		return nil
	}
}

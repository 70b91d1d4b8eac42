package packet

import (
	"errors"
	"fmt"

	"github.com/worldsrv/server/internal/metric"
	"go.uber.org/zap"
)

var (
	ErrUnknownMessageType = errors.New("no handler for message type")
	ErrStateNotAllowed    = errors.New("message type not allowed in session state")
	ErrRegistryFrozen     = errors.New("handler registry is frozen")
)

// Peer is the originating connection as seen by the dispatcher.
type Peer interface {
	ID() uint64
	State() SessionState
}

// HandlerFunc receives the peer, a reader positioned on the verified payload
// and the raw envelope bytes for handlers that forward or journal them.
type HandlerFunc func(peer Peer, r *Reader, raw []byte)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
// It is filled once at startup and frozen before the game loop runs; lookups
// on the hot path take no lock.
type Registry struct {
	handlers map[MsgType]*handlerEntry
	frozen   bool
	metrics  *metric.Metrics
	log      *zap.Logger
}

func NewRegistry(metrics *metric.Metrics, log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[MsgType]*handlerEntry),
		metrics:  metrics,
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given session
// states.
func (reg *Registry) Register(t MsgType, states []SessionState, fn HandlerFunc) error {
	if reg.frozen {
		return fmt.Errorf("register %s: %w", t, ErrRegistryFrozen)
	}
	if _, ok := schemas[t]; !ok {
		return fmt.Errorf("register %s: no schema", t)
	}
	if _, dup := reg.handlers[t]; dup {
		return fmt.Errorf("register %s: duplicate handler", t)
	}
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[t] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
	return nil
}

// Freeze makes the registry read-only.
func (reg *Registry) Freeze() { reg.frozen = true }

func (reg *Registry) Frozen() bool { return reg.frozen }

// Has reports whether a handler is registered for t.
func (reg *Registry) Has(t MsgType) bool {
	_, ok := reg.handlers[t]
	return ok
}

// Dispatch verifies raw, resolves its handler and invokes it. It returns false
// when the packet was dropped or the handler panicked. Malformed input never
// reaches a handler and never terminates the connection.
func (reg *Registry) Dispatch(peer Peer, raw []byte) bool {
	env, err := Verify(raw)
	if err != nil {
		reg.log.Warn("illegal client packet",
			zap.Uint64("session", peer.ID()),
			zap.Int("length", len(raw)),
			zap.Error(err),
		)
		return false
	}

	entry, ok := reg.handlers[env.Type]
	if !ok {
		reg.log.Warn("no handler for client message",
			zap.Uint64("session", peer.ID()),
			zap.Stringer("type", env.Type),
			zap.Error(ErrUnknownMessageType),
		)
		return false
	}
	state := peer.State()
	if !entry.allowedStates[state] {
		reg.log.Warn("message not allowed in this state",
			zap.Uint64("session", peer.ID()),
			zap.Stringer("type", env.Type),
			zap.Stringer("state", state),
			zap.Error(ErrStateNotAllowed),
		)
		return false
	}

	reg.metrics.Packet(metric.DirectionIn, env.Type.String(), len(raw))
	reg.log.Debug("received", zap.Uint64("session", peer.ID()), zap.Stringer("type", env.Type))

	return reg.safeCall(entry.fn, peer, env, raw) == nil
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot take down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, peer Peer, env Envelope, raw []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint64("session", peer.ID()),
				zap.Stringer("type", env.Type),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.Type, rec)
		}
	}()
	fn(peer, NewReader(env.Payload), raw)
	return nil
}

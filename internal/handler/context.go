package handler

import (
	"github.com/worldsrv/server/internal/auth"
	"github.com/worldsrv/server/internal/config"
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/net/packet"
	"github.com/worldsrv/server/internal/persist"
	"github.com/worldsrv/server/internal/world"
	"go.uber.org/zap"
)

// Conn is the session as seen by handlers.
type Conn interface {
	packet.Peer
	Send(data []byte)
	SetState(st packet.SessionState)
	Close()
	Addr() string
}

// AuthQueue accepts login requests for the auth workers.
type AuthQueue interface {
	Submit(req auth.Request) bool
}

// SessionLookup resolves a session id to its connection, nil when gone.
type SessionLookup func(id uint64) Conn

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	World    *world.World
	Bus      *event.Bus
	Auth     AuthQueue
	Sessions SessionLookup

	// SaveOnLeave, when set, receives the final snapshot of a player that
	// leaves the world.
	SaveOnLeave func(row persist.PlayerRow)
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) error {
	wrap := func(fn func(Conn, *packet.Reader, *Deps)) packet.HandlerFunc {
		return func(peer packet.Peer, r *packet.Reader, _ []byte) {
			fn(peer.(Conn), r, deps)
		}
	}

	anyState := []packet.SessionState{packet.StateHandshake, packet.StateAuthenticating, packet.StateInWorld}
	inWorld := []packet.SessionState{packet.StateInWorld}

	handlers := []struct {
		t      packet.MsgType
		states []packet.SessionState
		fn     func(Conn, *packet.Reader, *Deps)
	}{
		{packet.MsgUserConnect, []packet.SessionState{packet.StateHandshake}, HandleUserConnect},
		{packet.MsgUserDisconnect, anyState, HandleUserDisconnect},
		{packet.MsgMove, inWorld, HandleMove},
		{packet.MsgAttack, inWorld, HandleAttack},
		{packet.MsgPing, anyState, HandlePing},
	}
	for _, h := range handlers {
		if err := reg.Register(h.t, h.states, wrap(h.fn)); err != nil {
			return err
		}
	}
	return nil
}

package handler

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/auth"
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/entity"
	"github.com/worldsrv/server/internal/net/packet"
	"github.com/worldsrv/server/internal/persist"
	"go.uber.org/zap"
	"golang.org/x/text/secure/precis"
)

const defaultPlayerHealth = 100

var (
	errInvalidName   = errors.New("invalid account name")
	errAuthBusy      = errors.New("auth queue full")
	errAlreadyOnline = errors.New("account already online")
	errNoStartMap    = errors.New("start map not loaded")
)

// HandleUserConnect validates the account name and hands the credentials to
// the auth workers. The answer arrives on a later tick through CompleteLogin.
func HandleUserConnect(sess Conn, r *packet.Reader, deps *Deps) {
	msg := packet.DecodeUserConnect(r)

	name, err := precis.UsernameCaseMapped.String(msg.Name)
	if err != nil || name == "" {
		rejectLogin(sess, msg.Name, errInvalidName, deps)
		return
	}

	ok := deps.Auth.Submit(auth.Request{
		SessionID: sess.ID(),
		Name:      name,
		Password:  msg.Password,
		Addr:      sess.Addr(),
	})
	if !ok {
		rejectLogin(sess, name, errAuthBusy, deps)
		return
	}
	sess.SetState(packet.StateAuthenticating)
	deps.Log.Debug("login submitted", zap.Uint64("session", sess.ID()), zap.String("account", name))
}

func rejectLogin(sess Conn, name string, reason error, deps *Deps) {
	sess.SetState(packet.StateHandshake)
	sess.Send(packet.EncodeAuthFailed())
	event.Emit(deps.Bus, event.AuthFailed{SessionID: sess.ID(), Name: name, Reason: reason.Error()})
}

// CompleteLogin applies an auth result: the player entity is queued for
// spawn and the client gets the seed, its own spawn and a snapshot of the
// map it enters.
func CompleteLogin(sess Conn, res auth.Result, deps *Deps) {
	if sess.State() != packet.StateAuthenticating {
		return // closed or quit while the worker was busy
	}
	if !res.OK() {
		rejectLogin(sess, res.Name, res.Err, deps)
		return
	}
	if playerOnline(res.Name, deps) {
		rejectLogin(sess, res.Name, errAlreadyOnline, deps)
		return
	}

	st, err := startState(res, deps)
	if err != nil {
		deps.Log.Error("no map to spawn player", zap.String("account", res.Name), zap.Error(err))
		rejectLogin(sess, res.Name, err, deps)
		return
	}
	st.Peer = sess.ID()

	store := deps.World.Entities()
	id := store.QueueSpawn(st)
	sess.SetState(packet.StateInWorld)

	sess.Send(packet.EncodeSeed(deps.Config.Server.Seed))
	sess.Send(packet.EncodeUserSpawn(uint64(id), st.Name, st.Position))
	m, _ := deps.World.Map(st.MapID)
	for _, other := range m.Entities() {
		if e, ok := store.Get(other); ok {
			sess.Send(packet.EncodeEntitySpawn(uint64(e.ID), uint8(e.Kind), e.Position, e.Orientation))
		}
	}

	deps.Log.Info("player entered world",
		zap.Uint64("session", sess.ID()),
		zap.String("account", res.Name),
		zap.Uint64("entity", uint64(id)),
		zap.Uint32("map", st.MapID),
		zap.Bool("new_account", res.Created),
	)
}

// startState places a player at its saved position when that map still
// exists, else at the centre of the start map's floor.
func startState(res auth.Result, deps *Deps) (entity.State, error) {
	st := entity.State{
		Kind: entity.KindPlayer,
		Name: res.Name,
		Attributes: map[string]float64{
			entity.AttrHealth:   defaultPlayerHealth,
			entity.AttrStrength: 1,
		},
		Behavior: entity.Behavior{
			Name:     "Input",
			Steering: ai.Input{},
			Speed:    deps.Config.World.PlayerSpeed,
		},
	}
	if s := res.Saved; s != nil {
		if m, ok := deps.World.Map(s.MapID); ok {
			st.MapID = s.MapID
			st.Position = m.Bounds().Clamp(mgl32.Vec3{s.X, s.Y, s.Z})
			st.Orientation = s.Orientation
			if s.Health > 0 {
				st.Attributes[entity.AttrHealth] = s.Health
			}
			return st, nil
		}
	}
	m, ok := deps.World.Map(deps.Config.World.StartMap)
	if !ok {
		return st, errNoStartMap
	}
	b := m.Bounds()
	center := b.Min.Add(b.Max).Mul(0.5)
	center[1] = b.Min[1]
	st.MapID = m.ID()
	st.Position = center
	return st, nil
}

// playerOnline also counts players whose spawn is still queued, so two
// sessions logging in as the same account in one tick cannot both enter.
func playerOnline(name string, deps *Deps) bool {
	online := false
	store := deps.World.Entities()
	store.Each(func(e *entity.Entity) {
		if e.Kind == entity.KindPlayer && e.Name == name {
			online = true
		}
	})
	store.EachQueued(func(_ entity.ID, st entity.State) {
		if st.Kind == entity.KindPlayer && st.Name == name {
			online = true
		}
	})
	return online
}

// LeaveWorld queues the removal of a session's player entity and reports the
// lost connection. A spawn that is still queued is cancelled instead, nothing
// is saved for it. It returns the entity id, zero when the session never
// entered the world.
func LeaveWorld(sessionID uint64, reason string, deps *Deps) entity.ID {
	var id entity.ID
	store := deps.World.Entities()
	if e, ok := store.ByPeer(sessionID); ok {
		id = e.ID
		if deps.SaveOnLeave != nil {
			deps.SaveOnLeave(SnapshotRow(e))
		}
		store.QueueRemove(e.ID)
	} else if queued, ok := store.CancelSpawn(sessionID); ok {
		id = queued
		deps.Log.Debug("cancelled queued player spawn",
			zap.Uint64("session", sessionID),
			zap.Uint64("entity", uint64(queued)),
		)
	}
	event.Emit(deps.Bus, event.ConnectionLost{SessionID: sessionID, EntityID: uint64(id), Reason: reason})
	return id
}

// SnapshotRow is the persisted form of a player entity.
func SnapshotRow(e *entity.Entity) persist.PlayerRow {
	return persist.PlayerRow{
		Name:        e.Name,
		MapID:       e.MapID,
		X:           e.Position[0],
		Y:           e.Position[1],
		Z:           e.Position[2],
		Orientation: e.Orientation,
		Health:      e.Attr(entity.AttrHealth),
	}
}

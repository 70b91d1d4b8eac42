package handler

import (
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/entity"
	"github.com/worldsrv/server/internal/net/packet"
)

// SubscribeBroadcasts forwards entity events to the clients that can see
// them. Spawns and removals go to every player on the map; updates only to
// players in the chunks around the new position.
func SubscribeBroadcasts(deps *Deps) {
	event.Subscribe(deps.Bus, func(ev event.EntitySpawned) {
		m, ok := deps.World.Map(ev.MapID)
		if !ok {
			return
		}
		data := packet.EncodeEntitySpawn(ev.EntityID, ev.Kind, ev.Position, ev.Orientation)
		sendToPlayers(deps, m.Entities(), ev.Peer, data)
	})

	event.Subscribe(deps.Bus, func(ev event.EntityRemoved) {
		m, ok := deps.World.Map(ev.MapID)
		if !ok {
			return
		}
		sendToPlayers(deps, m.Entities(), ev.Peer, packet.EncodeEntityRemove(ev.EntityID))
	})

	event.Subscribe(deps.Bus, func(ev event.EntityUpdated) {
		m, ok := deps.World.Map(ev.MapID)
		if !ok {
			return
		}
		data := packet.EncodeEntityUpdate(ev.EntityID, ev.Position, ev.Orientation)
		sendToPlayers(deps, m.Nearby(ev.Position), 0, data)
	})
}

// sendToPlayers sends data to the in-world session behind every player in
// ids, skipping the session named by except.
func sendToPlayers(deps *Deps, ids []entity.ID, except uint64, data []byte) {
	store := deps.World.Entities()
	for _, id := range ids {
		e, ok := store.Get(id)
		if !ok || e.Kind != entity.KindPlayer || e.Peer == 0 || e.Peer == except {
			continue
		}
		sess := deps.Sessions(e.Peer)
		if sess == nil || sess.State() != packet.StateInWorld {
			continue
		}
		sess.Send(data)
	}
}

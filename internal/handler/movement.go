package handler

import (
	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/net/packet"
	"github.com/worldsrv/server/internal/world"
)

// HandleMove records the client's movement keys and facing. The player moves
// when the map advances its steering, so a move never teleports.
func HandleMove(sess Conn, r *packet.Reader, deps *Deps) {
	msg := packet.DecodeMove(r)

	store := deps.World.Entities()
	player, ok := store.ByPeer(sess.ID())
	if !ok {
		return // spawn still queued
	}

	yaw := world.NormalizeAngle(msg.Yaw)
	player.Intent = ai.Intent{Directions: msg.Directions & packet.MoveMask, Yaw: yaw}
	if player.Orientation != yaw {
		store.Move(player.ID, player.Position, yaw)
	}
}

package handler

import (
	"github.com/worldsrv/server/internal/entity"
	"github.com/worldsrv/server/internal/net/packet"
	"go.uber.org/zap"
)

// AttackRange is the reach of a melee hit in world units.
const AttackRange = 4

// HandleAttack applies a melee hit from the session's player to an NPC on
// the same map. Damage is the attacker's strength, at least 1. A target at
// zero health is queued for removal and respawned by its spawn group.
func HandleAttack(sess Conn, r *packet.Reader, deps *Deps) {
	msg := packet.DecodeAttack(r)

	store := deps.World.Entities()
	attacker, ok := store.ByPeer(sess.ID())
	if !ok {
		return
	}
	target, ok := store.Get(entity.ID(msg.Target))
	if !ok || target.Kind != entity.KindNPC || target.MapID != attacker.MapID {
		return
	}
	if target.Position.Sub(attacker.Position).Len() > AttackRange {
		return
	}

	dmg := attacker.Attr(entity.AttrStrength)
	if dmg < 1 {
		dmg = 1
	}
	hp := target.Attr(entity.AttrHealth) - dmg
	target.SetAttr(entity.AttrHealth, hp)

	if hp <= 0 {
		deps.Log.Debug("npc killed",
			zap.Uint64("attacker", uint64(attacker.ID)),
			zap.Uint64("target", uint64(target.ID)),
		)
		store.QueueRemove(target.ID)
	}
}

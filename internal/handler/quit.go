package handler

import (
	"github.com/worldsrv/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleUserDisconnect closes the session. Entity cleanup happens when the
// input system notices the closed session on the next drain.
func HandleUserDisconnect(sess Conn, _ *packet.Reader, deps *Deps) {
	deps.Log.Info("client quit", zap.Uint64("session", sess.ID()))
	sess.Close()
}

// HandlePing answers with the same sequence number. Receiving any frame
// already refreshed the session's inactivity timer.
func HandlePing(sess Conn, r *packet.Reader, _ *Deps) {
	ping := packet.DecodePing(r)
	sess.Send(packet.EncodePong(ping.Seq))
}

package net

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// FrameConn is a message-oriented client connection. TCP connections frame
// envelopes with a length prefix; WebSocket connections carry one envelope
// per binary message.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte, deadline time.Time) error
	RemoteAddr() string
	Close() error
}

type tcpConn struct {
	c net.Conn
}

// NewTCPConn wraps a stream connection with the length-prefixed codec.
func NewTCPConn(c net.Conn) FrameConn {
	return &tcpConn{c: c}
}

func (t *tcpConn) ReadFrame() ([]byte, error) {
	return ReadFrame(t.c)
}

func (t *tcpConn) WriteFrame(data []byte, deadline time.Time) error {
	if !deadline.IsZero() {
		_ = t.c.SetWriteDeadline(deadline)
	}
	return WriteFrame(t.c, data)
}

func (t *tcpConn) RemoteAddr() string { return t.c.RemoteAddr().String() }
func (t *tcpConn) Close() error       { return t.c.Close() }

var errTextMessage = errors.New("websocket: text messages are not accepted")

type wsConn struct {
	c *websocket.Conn
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(c *websocket.Conn) FrameConn {
	return &wsConn{c: c}
}

func (w *wsConn) ReadFrame() ([]byte, error) {
	mt, data, err := w.c.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read ws message: %w", err)
	}
	if mt != websocket.BinaryMessage {
		return nil, errTextMessage
	}
	return data, nil
}

func (w *wsConn) WriteFrame(data []byte, deadline time.Time) error {
	if !deadline.IsZero() {
		_ = w.c.SetWriteDeadline(deadline)
	}
	if err := w.c.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write ws message: %w", err)
	}
	return nil
}

func (w *wsConn) RemoteAddr() string { return w.c.RemoteAddr().String() }
func (w *wsConn) Close() error       { return w.c.Close() }

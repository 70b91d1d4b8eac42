package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/worldsrv/server/internal/metric"
	"go.uber.org/zap"
)

// Server accepts TCP (and optionally WebSocket) connections and creates
// Sessions. New sessions are handed to the game loop through a channel.
type Server struct {
	listener   net.Listener
	ws         *http.Server
	wsLn       net.Listener
	upgrader   websocket.Upgrader
	nextID     atomic.Uint64
	seq        atomic.Uint64
	active     atomic.Int64
	maxClients int
	opts       SessionOptions
	newConns   chan *Session
	metrics    *metric.Metrics
	log        *zap.Logger
	closeCh    chan struct{}
}

// NewServer binds the TCP listener, and the websocket listener when wsAddr
// is not empty.
func NewServer(bindAddr, wsAddr string, maxClients int, opts SessionOptions, metrics *metric.Metrics, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener:   ln,
		maxClients: maxClients,
		opts:       opts,
		newConns:   make(chan *Session, 64),
		metrics:    metrics,
		log:        log,
		closeCh:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if wsAddr != "" {
		wsLn, err := net.Listen("tcp", wsAddr)
		if err != nil {
			ln.Close()
			return nil, err
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/", s.handleWS)
		s.wsLn = wsLn
		s.ws = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	return s, nil
}

// Start runs the accept loops in their own goroutines.
func (s *Server) Start() {
	go s.AcceptLoop()
	if s.ws != nil {
		go func() {
			if err := s.ws.Serve(s.wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("websocket listener stopped", zap.Error(err))
			}
		}()
	}
}

// AcceptLoop accepts TCP connections until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.admit(NewTCPConn(conn))
	}
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	s.admit(NewWSConn(conn))
}

// admit turns a connection into a session, enforcing the client cap.
func (s *Server) admit(conn FrameConn) {
	if s.active.Add(1) > int64(s.maxClients) {
		s.active.Add(-1)
		s.log.Warn("max clients reached, rejecting connection", zap.String("addr", conn.RemoteAddr()))
		conn.Close()
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.opts, &s.seq, s.metrics, s.log)
	sess.onClose = func() { s.active.Add(-1) }

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("new session queue full, rejecting connection")
		sess.Close()
		return
	}
	sess.Start()
	s.log.Info("client connected", zap.Uint64("session", id), zap.String("addr", sess.Addr()))
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Active reports the number of open sessions.
func (s *Server) Active() int { return int(s.active.Load()) }

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	if s.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.ws.Shutdown(ctx)
	}
}

// Addr returns the TCP listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// WSAddr returns the websocket listener's address, or nil when disabled.
func (s *Server) WSAddr() net.Addr {
	if s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}

package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/worldsrv/server/internal/metric"
	"github.com/worldsrv/server/internal/net/packet"
	"go.uber.org/zap"
)

// Inbound is one received envelope stamped with its global receipt sequence.
type Inbound struct {
	Seq  uint64
	Data []byte
}

// SessionOptions are the per-connection limits taken from the network config.
type SessionOptions struct {
	InQueueSize      int
	OutQueueSize     int
	PacketsPerSecond int // 0 = unlimited
	WriteTimeout     time.Duration
}

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	id   uint64
	conn FrameConn
	addr string

	state atomic.Int32 // packet.SessionState

	// InQueue has exactly one producer (readLoop) and one consumer (the game loop).
	InQueue  chan Inbound
	OutQueue chan []byte // writer goroutine reads from here

	outBuf [][]byte // buffered packets, flushed by the output system (game loop only)

	seq      *atomic.Uint64 // shared receipt counter
	lastSeen atomic.Int64   // unix nanos of the last inbound frame

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func()

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int
	pktCount   int
	pktResetAt int64

	writeTimeout time.Duration
	metrics      *metric.Metrics
	log          *zap.Logger
}

func NewSession(conn FrameConn, id uint64, opts SessionOptions, seq *atomic.Uint64, metrics *metric.Metrics, log *zap.Logger) *Session {
	s := &Session{
		id:           id,
		conn:         conn,
		addr:         conn.RemoteAddr(),
		InQueue:      make(chan Inbound, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		seq:          seq,
		closeCh:      make(chan struct{}),
		pktPerSec:    opts.PacketsPerSecond,
		writeTimeout: opts.WriteTimeout,
		metrics:      metrics,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateHandshake))
	s.Touch()
	return s
}

func (s *Session) ID() uint64   { return s.id }
func (s *Session) Addr() string { return s.addr }

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Touch marks the session as active now.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen is the time of the last inbound frame (or of creation).
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Deliver stamps data with the next receipt sequence and queues it for the
// game loop. It blocks while the queue is full and returns false once the
// session is closed.
func (s *Session) Deliver(data []byte) bool {
	if s.closed.Load() {
		return false
	}
	in := Inbound{Seq: s.seq.Add(1), Data: data}
	select {
	case s.InQueue <- in:
		s.Touch()
		return true
	case <-s.closeCh:
		return false
	}
}

// Send buffers a packet for sending. Nothing is written until FlushOutput.
// Called only from the game loop goroutine.
func (s *Session) Send(data []byte) {
	if s.closed.Load() || len(data) == 0 {
		return
	}
	s.outBuf = append(s.outBuf, data)
	s.metrics.Packet(metric.DirectionOut, packet.MsgType(data[0]).String(), len(data))
}

// Pending reports how many packets wait for the next flush.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput hands the buffered packets to the writer goroutine.
// Non-blocking: if OutQueue is full the session is disconnected.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down. Safe to call more than once from any
// goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

func (s *Session) readLoop() {
	defer s.Close()

	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
				return
			}
		}

		// Block rather than drop: dropped input would desync the client.
		if !s.Deliver(data) {
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			var deadline time.Time
			if s.writeTimeout > 0 {
				deadline = time.Now().Add(s.writeTimeout)
			}
			if err := s.conn.WriteFrame(data, deadline); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

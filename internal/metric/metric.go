package metric

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds the network traffic counters. Counter updates are atomic and
// safe from any goroutine.
type Metrics struct {
	reg         *prometheus.Registry
	packetCount *prometheus.CounterVec
	packetSize  *prometheus.CounterVec
	tickTime    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		packetCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "network_packet_count",
			Help: "Number of packets by direction and message type.",
		}, []string{"direction", "type"}),
		packetSize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "network_packet_size",
			Help: "Packet bytes by direction and message type.",
		}, []string{"direction", "type"}),
		tickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "server_tick_seconds",
			Help:    "Wall time spent running one tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	m.reg.MustRegister(m.packetCount, m.packetSize, m.tickTime)
	return m
}

// Packet records one packet of size bytes.
func (m *Metrics) Packet(direction, msgType string, size int) {
	if m == nil {
		return
	}
	m.packetCount.WithLabelValues(direction, msgType).Inc()
	m.packetSize.WithLabelValues(direction, msgType).Add(float64(size))
}

// Tick records the duration of one server tick.
func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickTime.Observe(d.Seconds())
}

// PacketCount returns the counter for one direction/type pair.
func (m *Metrics) PacketCount(direction, msgType string) prometheus.Counter {
	return m.packetCount.WithLabelValues(direction, msgType)
}

// PacketSize returns the byte counter for one direction/type pair.
func (m *Metrics) PacketSize(direction, msgType string) prometheus.Counter {
	return m.packetSize.WithLabelValues(direction, msgType)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Server exposes the registry over HTTP at /metrics.
type Server struct {
	srv  *http.Server
	addr string
	log  *zap.Logger
}

func NewServer(addr string, m *Metrics, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start binds the listen address and serves in a background goroutine. A
// bind failure is returned, not logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.srv.Addr, err)
	}
	s.addr = ln.Addr().String()
	s.log.Info("metrics listening", zap.String("addr", s.addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() string { return s.addr }

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

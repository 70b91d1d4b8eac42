package messaging

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// NatsServer is an in-process NATS server for deployments without an
// external broker.
type NatsServer struct {
	ns *server.Server

	startupTimeout time.Duration
	host           string
	port           int
}

type NatsServerOpt func(*NatsServer)

func WithHost(host string) NatsServerOpt {
	return func(s *NatsServer) { s.host = host }
}

// WithPort sets the client port; -1 picks a random free port.
func WithPort(port int) NatsServerOpt {
	return func(s *NatsServer) { s.port = port }
}

func WithStartTimeout(d time.Duration) NatsServerOpt {
	return func(s *NatsServer) { s.startupTimeout = d }
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
	}
	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   s.host,
		Port:   s.port,
		NoSigs: true, // the process owns signal handling
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	s.ns = ns
	return s, nil
}

// Start runs the server in the background and waits until it accepts clients.
func (n *NatsServer) Start() error {
	go n.ns.Start()
	if !n.ns.ReadyForConnections(n.startupTimeout) {
		n.ns.Shutdown()
		return fmt.Errorf("nats server not ready for connections after %s", n.startupTimeout)
	}
	return nil
}

// ClientURL is the URL publishers connect to.
func (n *NatsServer) ClientURL() string {
	return n.ns.ClientURL()
}

func (n *NatsServer) Shutdown() {
	n.ns.Shutdown()
	n.ns.WaitForShutdown()
}

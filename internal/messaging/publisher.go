package messaging

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/worldsrv/server/internal/core/event"
	"go.uber.org/zap"
)

// Subjects, relative to the configured prefix.
const (
	SubjectEntitySpawned         = "entity.spawned"
	SubjectEntityRemoved         = "entity.removed"
	SubjectEntityUpdated         = "entity.updated"
	SubjectConnectionEstablished = "connection.established"
	SubjectConnectionLost        = "connection.lost"
	SubjectAuthFailed            = "auth.failed"
)

// Record is the msgpack envelope of every published event.
type Record struct {
	RunID string             `msgpack:"run_id"`
	Time  int64              `msgpack:"time"` // unix millis
	Event msgpack.RawMessage `msgpack:"event"`
}

// Publisher mirrors bus events to NATS subjects.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	runID  string
	log    *zap.Logger
}

// Connect dials a NATS server.
func Connect(url, prefix, runID string, log *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("worldsrv-"+runID),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Publisher{conn: conn, prefix: prefix, runID: runID, log: log}, nil
}

// Subject returns the full subject for a relative name.
func (p *Publisher) Subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish encodes ev with msgpack and publishes it. nats buffers the write,
// so this never waits on the network.
func (p *Publisher) Publish(name string, ev any) error {
	body, err := msgpack.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data, err := msgpack.Marshal(Record{RunID: p.runID, Time: time.Now().UnixMilli(), Event: body})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", name, err)
	}
	return p.conn.Publish(p.Subject(name), data)
}

// Attach subscribes the publisher to every externally visible bus event.
func (p *Publisher) Attach(bus *event.Bus) {
	forward[event.EntitySpawned](p, bus, SubjectEntitySpawned)
	forward[event.EntityRemoved](p, bus, SubjectEntityRemoved)
	forward[event.EntityUpdated](p, bus, SubjectEntityUpdated)
	forward[event.ConnectionEstablished](p, bus, SubjectConnectionEstablished)
	forward[event.ConnectionLost](p, bus, SubjectConnectionLost)
	forward[event.AuthFailed](p, bus, SubjectAuthFailed)
}

func forward[T any](p *Publisher, bus *event.Bus, subject string) {
	event.Subscribe(bus, func(ev T) {
		if err := p.Publish(subject, ev); err != nil {
			p.log.Warn("publish failed", zap.String("subject", subject), zap.Error(err))
		}
	})
}

// Flush waits until buffered messages reached the server.
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.conn.FlushTimeout(timeout)
}

// Conn exposes the underlying connection for subscribers.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Decode unpacks a published record and its event into out.
func Decode(data []byte, out any) (Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, msgpack.Unmarshal(rec.Event, out)
}

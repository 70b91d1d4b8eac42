package packet

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/worldsrv/server/internal/metric"
)

type fakePeer struct {
	id    uint64
	state SessionState
}

func (p fakePeer) ID() uint64          { return p.id }
func (p fakePeer) State() SessionState { return p.state }

func newTestRegistry(t *testing.T) (*Registry, *metric.Metrics, *int) {
	t.Helper()
	m := metric.New()
	reg := NewRegistry(m, zap.NewNop())
	calls := new(int)
	require.NoError(t, reg.Register(MsgMove, []SessionState{StateInWorld}, func(_ Peer, r *Reader, _ []byte) {
		*calls++
		DecodeMove(r)
	}))
	reg.Freeze()
	return reg, m, calls
}

func TestDispatchRejectsMalformedWithoutInvokingHandler(t *testing.T) {
	reg, m, calls := newTestRegistry(t)
	peer := fakePeer{id: 1, state: StateInWorld}
	valid := EncodeMove(MoveForward, 0, 0)

	inconsistent := append([]byte(nil), valid...)
	inconsistent[0] = byte(MsgAttack)

	for _, raw := range [][]byte{nil, valid[:2], valid[:len(valid)-3], inconsistent, append(valid, 0)} {
		assert.False(t, reg.Dispatch(peer, raw))
	}
	assert.Zero(t, *calls)
	assert.Zero(t, testutil.ToFloat64(m.PacketCount(metric.DirectionIn, "Move")))
}

func TestDispatchCountsExactlyOncePerValidPacket(t *testing.T) {
	reg, m, calls := newTestRegistry(t)
	peer := fakePeer{id: 1, state: StateInWorld}
	raw := EncodeMove(MoveForward, 0, 1)

	for i := 1; i <= 3; i++ {
		require.True(t, reg.Dispatch(peer, raw))
		assert.Equal(t, float64(i), testutil.ToFloat64(m.PacketCount(metric.DirectionIn, "Move")))
		assert.Equal(t, float64(i*len(raw)), testutil.ToFloat64(m.PacketSize(metric.DirectionIn, "Move")))
	}
	assert.Equal(t, 3, *calls)
}

func TestDispatchUnknownTypeIsDropped(t *testing.T) {
	reg, m, calls := newTestRegistry(t)
	assert.False(t, reg.Dispatch(fakePeer{id: 1, state: StateInWorld}, EncodePing(1)))
	assert.Zero(t, *calls)
	assert.Zero(t, testutil.ToFloat64(m.PacketCount(metric.DirectionIn, "Ping")))
}

func TestDispatchEnforcesSessionState(t *testing.T) {
	reg, _, calls := newTestRegistry(t)
	assert.False(t, reg.Dispatch(fakePeer{id: 1, state: StateHandshake}, EncodeMove(0, 0, 0)))
	assert.Zero(t, *calls)
}

func TestDispatchRecoversHandlerPanicAndStillCounts(t *testing.T) {
	m := metric.New()
	reg := NewRegistry(m, zap.NewNop())
	require.NoError(t, reg.Register(MsgPing, []SessionState{StateHandshake}, func(Peer, *Reader, []byte) {
		panic("boom")
	}))
	reg.Freeze()

	assert.False(t, reg.Dispatch(fakePeer{id: 2}, EncodePing(5)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketCount(metric.DirectionIn, "Ping")))
}

func TestHandlerReceivesRawBuffer(t *testing.T) {
	reg := NewRegistry(metric.New(), zap.NewNop())
	var gotRaw []byte
	var gotPeer uint64
	require.NoError(t, reg.Register(MsgAttack, []SessionState{StateInWorld}, func(p Peer, r *Reader, raw []byte) {
		gotPeer = p.ID()
		gotRaw = raw
		assert.Equal(t, uint64(77), DecodeAttack(r).Target)
	}))
	raw := EncodeAttack(77)
	require.True(t, reg.Dispatch(fakePeer{id: 9, state: StateInWorld}, raw))
	assert.Equal(t, uint64(9), gotPeer)
	assert.Same(t, &raw[0], &gotRaw[0])
}

func TestRegisterAfterFreezeFails(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	err := reg.Register(MsgPing, nil, func(Peer, *Reader, []byte) {})
	require.ErrorIs(t, err, ErrRegistryFrozen)
	assert.False(t, reg.Has(MsgPing))
	assert.True(t, reg.Frozen())
}

func TestRegisterRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	reg := NewRegistry(metric.New(), zap.NewNop())
	noop := func(Peer, *Reader, []byte) {}
	require.NoError(t, reg.Register(MsgPing, nil, noop))
	assert.Error(t, reg.Register(MsgPing, nil, noop))
	assert.Error(t, reg.Register(MsgType(200), nil, noop))
}

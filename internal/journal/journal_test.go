package journal

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteThenReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "run-1", zap.NewNop())
	require.NoError(t, err)

	want := []Record{
		{Kind: KindConnect, Tick: 1, Session: 3, Addr: "127.0.0.1:4000"},
		{Kind: KindLogin, Tick: 1, Session: 3, Account: "alice"},
		{Kind: KindPacket, Tick: 1, Seq: 1, Session: 3, Data: []byte{5, 4, 0, 1, 0, 0, 0}},
		{Kind: KindLogin, Tick: 1, Session: 4, Account: "bob", Err: "bad password"},
		{Kind: KindPacket, Tick: 2, Seq: 3, Session: 3, Data: []byte{5, 4, 0, 2, 0, 0, 0}},
		{Kind: KindClose, Tick: 3, Session: 3, Err: "closed"},
	}
	for _, rec := range want {
		w.Append(rec)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, uint64(0), w.Dropped())

	r, err := Open(Path(dir, "run-1"))
	require.NoError(t, err)
	defer r.Close()

	var got []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, want, got)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(Path(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDroppedRecordsMakeCloseFail(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w, err := Create(t.TempDir(), "run-2", zap.New(core))
	require.NoError(t, err)

	w.Append(Record{Kind: KindPacket, Tick: 1, Seq: 1, Session: 1, Data: []byte{2, 0, 0}})
	w.drop(Record{Tick: 2})
	w.drop(Record{Tick: 2})

	assert.Equal(t, uint64(2), w.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("journal queue full, run can no longer be replayed").Len())

	err = w.Close()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "2 records dropped")
}

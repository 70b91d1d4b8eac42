package persist

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type recordingStore struct {
	mu   sync.Mutex
	rows []PlayerRow
	err  error
}

func (r *recordingStore) SavePlayers(_ context.Context, rows []PlayerRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return r.err
}

func waitResult(t *testing.T, s *Saver) SaveResult {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no save result")
		return SaveResult{}
	}
}

func TestSaverWritesAsynchronously(t *testing.T) {
	store := &recordingStore{}
	s := NewSaver(store, zap.NewNop())
	s.Start()
	defer s.Stop()

	require.True(t, s.Enqueue(10, []PlayerRow{{Name: "alice", MapID: 1}, {Name: "bob", MapID: 2}}))
	res := waitResult(t, s)
	assert.Equal(t, uint64(10), res.Tick)
	assert.Equal(t, 2, res.Count)
	require.NoError(t, res.Err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.rows, 2)
}

func TestSaverReportsErrors(t *testing.T) {
	store := &recordingStore{err: errors.New("connection refused")}
	s := NewSaver(store, zap.NewNop())
	s.Start()
	defer s.Stop()

	require.True(t, s.Enqueue(1, []PlayerRow{{Name: "alice"}}))
	res := waitResult(t, s)
	require.Error(t, res.Err)
}

func TestSaverStopFlushesQueuedBatches(t *testing.T) {
	store := &recordingStore{}
	s := NewSaver(store, zap.NewNop())
	s.Start()
	require.True(t, s.Enqueue(1, []PlayerRow{{Name: "a"}}))
	s.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.rows, 1)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	assert.True(t, ValidatePassword(hash, "hunter2"))
	assert.False(t, ValidatePassword(hash, "hunter3"))
}

func TestMigrationFilesEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(MigrationFS(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
}

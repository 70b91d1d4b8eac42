package persist

import "context"

// Store is the Postgres-backed account and player store used by the auth
// worker and the snapshot saver.
type Store struct {
	Accounts *AccountRepo
	Players  *PlayerRepo
}

func NewStore(db *DB) *Store {
	return &Store{
		Accounts: NewAccountRepo(db),
		Players:  NewPlayerRepo(db),
	}
}

func (s *Store) LoadAccount(ctx context.Context, name string) (*AccountRow, error) {
	return s.Accounts.Load(ctx, name)
}

func (s *Store) CreateAccount(ctx context.Context, name, rawPassword, ip string) (*AccountRow, error) {
	return s.Accounts.Create(ctx, name, rawPassword, ip)
}

func (s *Store) LoadPlayer(ctx context.Context, name string) (*PlayerRow, error) {
	return s.Players.Load(ctx, name)
}

func (s *Store) SavePlayers(ctx context.Context, rows []PlayerRow) error {
	return s.Players.SaveBatch(ctx, rows)
}

func (s *Store) MarkActive(ctx context.Context, name, ip string) error {
	return s.Accounts.UpdateLastActive(ctx, name, ip)
}

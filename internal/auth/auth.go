package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/worldsrv/server/internal/persist"
	"go.uber.org/zap"
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrBadPassword    = errors.New("wrong password")
	ErrBanned         = errors.New("account banned")
)

// Store is the account backend the worker authenticates against.
type Store interface {
	LoadAccount(ctx context.Context, name string) (*persist.AccountRow, error)
	CreateAccount(ctx context.Context, name, rawPassword, ip string) (*persist.AccountRow, error)
	LoadPlayer(ctx context.Context, name string) (*persist.PlayerRow, error)
	MarkActive(ctx context.Context, name, ip string) error
}

// Request is one login attempt.
type Request struct {
	SessionID uint64
	Name      string
	Password  string
	Addr      string
}

// Result is the outcome of a Request. Saved is the player's last stored
// placement, nil for new players.
type Result struct {
	SessionID uint64
	Name      string
	Err       error
	Created   bool
	Saved     *persist.PlayerRow
}

func (r Result) OK() bool { return r.Err == nil }

// Authenticator checks credentials on worker goroutines so bcrypt and
// database round trips never run on the game loop. Results are read by the
// loop on a later tick.
type Authenticator struct {
	store        Store
	autoRegister bool
	timeout      time.Duration
	requests     chan Request
	results      chan Result
	wg           sync.WaitGroup
	log          *zap.Logger
}

func NewAuthenticator(store Store, autoRegister bool, log *zap.Logger) *Authenticator {
	return &Authenticator{
		store:        store,
		autoRegister: autoRegister,
		timeout:      5 * time.Second,
		requests:     make(chan Request, 64),
		results:      make(chan Result, 64),
		log:          log,
	}
}

// Start launches n workers. They exit when Stop is called.
func (a *Authenticator) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		a.wg.Add(1)
		go a.worker()
	}
}

func (a *Authenticator) worker() {
	defer a.wg.Done()
	for req := range a.requests {
		res := a.authenticate(req)
		if res.Err != nil {
			a.log.Info("login rejected",
				zap.Uint64("session", req.SessionID),
				zap.String("account", req.Name),
				zap.Error(res.Err),
			)
		}
		a.results <- res
	}
}

func (a *Authenticator) authenticate(req Request) Result {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	res := Result{SessionID: req.SessionID, Name: req.Name}

	acc, err := a.store.LoadAccount(ctx, req.Name)
	if err != nil {
		res.Err = fmt.Errorf("load account: %w", err)
		return res
	}
	if acc == nil {
		if !a.autoRegister {
			res.Err = ErrUnknownAccount
			return res
		}
		if _, err := a.store.CreateAccount(ctx, req.Name, req.Password, req.Addr); err != nil {
			res.Err = fmt.Errorf("create account: %w", err)
			return res
		}
		res.Created = true
		a.log.Info("account created", zap.String("account", req.Name))
		return res
	}
	if !persist.ValidatePassword(acc.PasswordHash, req.Password) {
		res.Err = ErrBadPassword
		return res
	}
	if acc.Banned {
		res.Err = ErrBanned
		return res
	}
	if err := a.store.MarkActive(ctx, req.Name, req.Addr); err != nil {
		a.log.Warn("update last active failed", zap.String("account", req.Name), zap.Error(err))
	}

	saved, err := a.store.LoadPlayer(ctx, req.Name)
	if err != nil {
		res.Err = fmt.Errorf("load player: %w", err)
		return res
	}
	res.Saved = saved
	return res
}

// Submit queues a request. It returns false when the queue is full.
func (a *Authenticator) Submit(req Request) bool {
	select {
	case a.requests <- req:
		return true
	default:
		return false
	}
}

// Results delivers finished requests.
func (a *Authenticator) Results() <-chan Result {
	return a.results
}

// Stop closes the request queue and waits for the workers. Results still
// buffered are left for the caller to discard.
func (a *Authenticator) Stop() {
	close(a.requests)
	go func() {
		// unblock workers stuck on a full results channel
		for range a.results {
		}
	}()
	a.wg.Wait()
	close(a.results)
}

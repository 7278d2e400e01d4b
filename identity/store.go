package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Lockout controls account lockout after repeated failed sign ins.
type Lockout struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// DefaultLockout locks an account for five minutes after five failures.
func DefaultLockout() Lockout {
	return Lockout{MaxFailedAttempts: 5, Duration: 5 * time.Minute}
}

func (l Lockout) Enabled() bool {
	return l.MaxFailedAttempts > 0 && l.Duration > 0
}

// Store groups the identity repositories with the password hasher, the
// token providers and the lockout rules.
type Store struct {
	db            *bun.DB
	users         Users
	roles         Roles
	refreshTokens RefreshTokens
	hasher        PasswordHasher
	tokens        *TokenProviders
	lockout       Lockout
}

type StoreOption func(*Store)

func WithPasswordHasher(h PasswordHasher) StoreOption {
	return func(s *Store) {
		s.hasher = h
	}
}

func WithTokenProviders(t *TokenProviders) StoreOption {
	return func(s *Store) {
		if t != nil {
			s.tokens = t
		}
	}
}

func WithLockout(l Lockout) StoreOption {
	return func(s *Store) {
		s.lockout = l
	}
}

func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:            db,
		users:         NewUsersRepository(db),
		roles:         NewRolesRepository(db),
		refreshTokens: NewRefreshTokensRepository(db),
		hasher:        DefaultPasswordHasher(),
		lockout:       DefaultLockout(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tokens == nil {
		s.tokens = NewTokenProviders(nil)
	}
	return s
}

func (s *Store) Validate() error {
	if s.db == nil {
		return errors.New("identity database should be initialized")
	}
	if s.users == nil {
		return errors.New("repository users should be initialized")
	}
	if s.roles == nil {
		return errors.New("repository roles should be initialized")
	}
	if s.refreshTokens == nil {
		return errors.New("repository refresh tokens should be initialized")
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.db.RunInTx(ctx, opts, f)
	}
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Users() Users { return s.users }

func (s *Store) Roles() Roles { return s.roles }

func (s *Store) RefreshTokens() RefreshTokens { return s.refreshTokens }

func (s *Store) Hasher() PasswordHasher { return s.hasher }

func (s *Store) Tokens() *TokenProviders { return s.tokens }

func (s *Store) Lockout() Lockout { return s.lockout }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

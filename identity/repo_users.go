package identity

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user repository.
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByUserName(ctx context.Context, userName string) (*User, error)
	FindByUserNameTx(ctx context.Context, tx bun.IDB, userName string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) (string, error)
	RecordFailedAccessTx(ctx context.Context, tx bun.IDB, user *User, lockout Lockout) error
	ResetAccessFailedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "normalized_email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.findOne(ctx, tx, "id", id.String())
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findOne(ctx, tx, "normalized_email", Normalize(email))
}

func (a *users) FindByUserName(ctx context.Context, userName string) (*User, error) {
	return a.FindByUserNameTx(ctx, a.db, userName)
}

func (a *users) FindByUserNameTx(ctx context.Context, tx bun.IDB, userName string) (*User, error) {
	return a.findOne(ctx, tx, "normalized_user_name", Normalize(userName))
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts a new user after checking that neither the user name
// nor the email is taken.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	count, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("normalized_user_name = ?", user.NormalizedUserName).
		WhereOr("normalized_email = ?", user.NormalizedEmail).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateUser
	}

	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.updateColumns(ctx, tx, id, map[string]any{
		"email_confirmed": true,
	})
}

// SetPasswordTx stores a new hash and rotates the security stamp, which
// invalidates outstanding tokens. It returns the new stamp.
func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) (string, error) {
	stamp := NewSecurityStamp()
	err := a.updateColumns(ctx, tx, id, map[string]any{
		"password_hash":       passwordHash,
		"security_stamp":      stamp,
		"access_failed_count": 0,
		"lockout_end":         nil,
	})
	return stamp, err
}

// RecordFailedAccessTx counts a failed sign in and locks the account once
// the lockout threshold is reached.
func (a *users) RecordFailedAccessTx(ctx context.Context, tx bun.IDB, user *User, lockout Lockout) error {
	failed := user.AccessFailedCount + 1
	values := map[string]any{"access_failed_count": failed}

	if lockout.Enabled() && failed >= lockout.MaxFailedAttempts {
		end := time.Now().UTC().Add(lockout.Duration)
		values["lockout_end"] = end
		values["access_failed_count"] = 0
		user.LockoutEnd = &end
		failed = 0
	}

	if err := a.updateColumns(ctx, tx, user.ID, values); err != nil {
		return err
	}
	user.AccessFailedCount = failed
	return nil
}

func (a *users) ResetAccessFailedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.updateColumns(ctx, tx, id, map[string]any{
		"access_failed_count": 0,
		"lockout_end":         nil,
	})
}

func (a *users) updateColumns(ctx context.Context, tx bun.IDB, id uuid.UUID, values map[string]any) error {
	q := tx.NewUpdate().
		Model((*User)(nil)).
		Where("id = ?", id.String()).
		Set("updated_at = ?", time.Now().UTC())

	for column, value := range values {
		q = q.Set("? = ?", bun.Ident(column), value)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

func prepareUserDefaults(user *User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.UserName == "" {
		user.UserName = user.Email
	}
	user.NormalizedUserName = Normalize(user.UserName)
	user.NormalizedEmail = Normalize(user.Email)
	if user.SecurityStamp == "" {
		user.SecurityStamp = NewSecurityStamp()
	}
	now := time.Now().UTC()
	if user.CreatedAt == nil {
		user.CreatedAt = &now
	}
	if user.UpdatedAt == nil {
		user.UpdatedAt = &now
	}
}

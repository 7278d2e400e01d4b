package identity

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sort"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the role repository.
type Roles interface {
	repository.Repository[*Role]

	FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	EnsureTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	AddUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleName string) error
	ForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	ForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]string, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "normalized_name"
		},
	})
	return &roles{Repository: repo, db: db}
}

func (r *roles) FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.normalized_name = ?", Normalize(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"role": name,
				})
		}
		return nil, err
	}
	return record, nil
}

// EnsureTx returns the named role, creating it when missing.
func (r *roles) EnsureTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	role, err := r.FindByNameTx(ctx, tx, name)
	if err == nil {
		return role, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return r.Repository.CreateTx(ctx, tx, &Role{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: Normalize(name),
	})
}

func (r *roles) AddUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleName string) error {
	role, err := r.EnsureTx(ctx, tx, roleName)
	if err != nil {
		return err
	}
	_, err = tx.NewInsert().
		Model(&UserRole{UserID: userID, RoleID: role.ID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (r *roles) ForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return r.ForUserTx(ctx, r.db, userID)
}

// ForUserTx returns the role names of a user in sorted order.
func (r *roles) ForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]string, error) {
	var names []string
	err := tx.NewSelect().
		Model((*Role)(nil)).
		Column("ir.name").
		Join("JOIN identity_user_roles AS iur ON iur.role_id = ir.id").
		Where("iur.user_id = ?", userID.String()).
		Scan(ctx, &names)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

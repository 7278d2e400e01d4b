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

// RefreshTokens is the refresh token repository.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ip string, ttl time.Duration) (*RefreshToken, error)
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error)
	RevokeTx(ctx context.Context, tx bun.IDB, token *RefreshToken, ip, replacedBy string) error
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})
	return &refreshTokens{Repository: repo, db: db}
}

// IssueTx creates and stores a random refresh token for the user.
func (r *refreshTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ip string, ttl time.Duration) (*RefreshToken, error) {
	now := time.Now().UTC()
	return r.Repository.CreateTx(ctx, tx, &RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		Token:       RandomTokenString(40),
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		CreatedByIP: ip,
	})
}

func (r *refreshTokens) FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (r *refreshTokens) RevokeTx(ctx context.Context, tx bun.IDB, token *RefreshToken, ip, replacedBy string) error {
	now := time.Now().UTC()
	_, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Set("revoked_by_ip = ?", ip).
		Set("replaced_by_token = ?", replacedBy).
		Where("id = ?", token.ID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	token.RevokedAt = &now
	token.RevokedByIP = ip
	token.ReplacedByToken = replacedBy
	return nil
}

func (r *refreshTokens) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error) {
	var records []*RefreshToken
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", time.Now().UTC()).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

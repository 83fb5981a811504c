package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

const tokenColumns = `
	id, proposal_id, purpose, token, expires_at, used_at, last_accessed_at, access_count,
	client_ip, client_user_agent, client_seen_update, created_at`

type TokenRepositoryAdapter struct {
	q sqlx.ExtContext
}

func NewTokenRepositoryAdapter(q sqlx.ExtContext) *TokenRepositoryAdapter {
	return &TokenRepositoryAdapter{q: q}
}

func (r *TokenRepositoryAdapter) Create(ctx context.Context, token *entity.CapabilityToken) error {
	query := `
		INSERT INTO proposal_tokens (id, proposal_id, purpose, token, expires_at, client_seen_update, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		token.ID, token.ProposalID, string(token.Purpose), token.Token,
		token.ExpiresAt, token.ClientSeenUpdate, token.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать токен")
	}
	return nil
}

func (r *TokenRepositoryAdapter) FindByToken(ctx context.Context, secret string) (*entity.CapabilityToken, error) {
	var row tokenRow
	query := `SELECT ` + tokenColumns + ` FROM proposal_tokens WHERE token = $1`
	if err := sqlx.GetContext(ctx, r.q, &row, query, secret); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTokenNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить токен")
	}
	return row.toEntity(), nil
}

func (r *TokenRepositoryAdapter) FindReusable(ctx context.Context, proposalID uuid.UUID, purpose valueobject.TokenPurpose, now time.Time) (*entity.CapabilityToken, error) {
	var row tokenRow
	query := `SELECT ` + tokenColumns + ` FROM proposal_tokens
		WHERE proposal_id = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, r.q, &row, query, proposalID, string(purpose), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить токен")
	}
	return row.toEntity(), nil
}

func (r *TokenRepositoryAdapter) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.CapabilityToken, error) {
	var rows []tokenRow
	query := `SELECT ` + tokenColumns + ` FROM proposal_tokens WHERE proposal_id = $1 ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, proposalID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить токены")
	}

	result := make([]*entity.CapabilityToken, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *TokenRepositoryAdapter) RecordAccess(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error {
	query := `
		UPDATE proposal_tokens
		SET access_count = access_count + 1, last_accessed_at = $2, expires_at = $3
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query, id, accessedAt, expiresAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить токен")
	}
	return expectAffected(res, apperror.ErrTokenNotFound)
}

func (r *TokenRepositoryAdapter) ConsumeApproval(ctx context.Context, secret string, now time.Time, info entity.ClientInfo) (bool, error) {
	// Единственная условная запись: из двух конкурентных запросов used_at выставит только один.
	query := `
		UPDATE proposal_tokens
		SET used_at = $2, client_ip = $3, client_user_agent = $4
		WHERE token = $1 AND purpose = $5 AND used_at IS NULL AND expires_at > $2
	`
	res, err := r.q.ExecContext(ctx, query, secret, now, info.IPPtr(), info.UserAgentPtr(), string(valueobject.TokenPurposeApproval))
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось использовать токен")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось использовать токен")
	}
	return affected == 1, nil
}

func (r *TokenRepositoryAdapter) SetSeenUpdateByProposal(ctx context.Context, proposalID uuid.UUID, seen bool) (int64, error) {
	query := `UPDATE proposal_tokens SET client_seen_update = $2 WHERE proposal_id = $1 AND purpose = $3`
	res, err := r.q.ExecContext(ctx, query, proposalID, seen, string(valueobject.TokenPurposePortal))
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить токены")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить токены")
	}
	return affected, nil
}

func (r *TokenRepositoryAdapter) SetSeenUpdateByToken(ctx context.Context, secret string, seen bool) error {
	query := `UPDATE proposal_tokens SET client_seen_update = $2 WHERE token = $1 AND purpose = $3`
	res, err := r.q.ExecContext(ctx, query, secret, seen, string(valueobject.TokenPurposePortal))
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить токен")
	}
	return expectAffected(res, apperror.ErrTokenNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить число изменённых строк")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

type tokenRow struct {
	ID               uuid.UUID  `db:"id"`
	ProposalID       uuid.UUID  `db:"proposal_id"`
	Purpose          string     `db:"purpose"`
	Token            string     `db:"token"`
	ExpiresAt        time.Time  `db:"expires_at"`
	UsedAt           *time.Time `db:"used_at"`
	LastAccessedAt   *time.Time `db:"last_accessed_at"`
	AccessCount      int        `db:"access_count"`
	ClientIP         *string    `db:"client_ip"`
	ClientUserAgent  *string    `db:"client_user_agent"`
	ClientSeenUpdate bool       `db:"client_seen_update"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (t *tokenRow) toEntity() *entity.CapabilityToken {
	return &entity.CapabilityToken{
		ID:               t.ID,
		ProposalID:       t.ProposalID,
		Purpose:          valueobject.TokenPurpose(t.Purpose),
		Token:            t.Token,
		ExpiresAt:        t.ExpiresAt,
		UsedAt:           t.UsedAt,
		LastAccessedAt:   t.LastAccessedAt,
		AccessCount:      t.AccessCount,
		ClientIP:         t.ClientIP,
		ClientUserAgent:  t.ClientUserAgent,
		ClientSeenUpdate: t.ClientSeenUpdate,
		CreatedAt:        t.CreatedAt,
	}
}

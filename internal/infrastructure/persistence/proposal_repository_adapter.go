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

const proposalColumns = `
	p.id, p.owner_id, p.client_id, p.number, p.title, p.notes, p.status,
	p.subtotal, p.discount, p.tax, p.total, p.validity_days, p.expiry_date,
	p.updated_after_comment, p.version, p.created_at, p.updated_at, p.sent_at, p.approved_at`

type ProposalRepositoryAdapter struct {
	q sqlx.ExtContext
}

func NewProposalRepositoryAdapter(q sqlx.ExtContext) *ProposalRepositoryAdapter {
	return &ProposalRepositoryAdapter{q: q}
}

func (r *ProposalRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return r.find(ctx, `SELECT `+proposalColumns+` FROM proposals p WHERE p.id = $1`, id)
}

func (r *ProposalRepositoryAdapter) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return r.find(ctx, `SELECT `+proposalColumns+` FROM proposals p WHERE p.id = $1 FOR UPDATE`, id)
}

func (r *ProposalRepositoryAdapter) find(ctx context.Context, query string, id uuid.UUID) (*entity.Proposal, error) {
	var row proposalRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложение")
	}
	return row.toEntity(), nil
}

func (r *ProposalRepositoryAdapter) Update(ctx context.Context, proposal *entity.Proposal) error {
	query := `
		UPDATE proposals SET title = $3, notes = $4, status = $5, subtotal = $6, discount = $7,
		tax = $8, total = $9, validity_days = $10, expiry_date = $11, updated_after_comment = $12,
		updated_at = $13, sent_at = $14, approved_at = $15, version = version + 1
		WHERE id = $1 AND version = $2
	`
	res, err := r.q.ExecContext(ctx, query,
		proposal.ID, proposal.Version, proposal.Title, proposal.Notes, string(proposal.Status),
		proposal.Subtotal, proposal.Discount, proposal.Tax, proposal.Total, proposal.ValidityDays,
		proposal.ExpiryDate, proposal.UpdatedAfterComment, proposal.UpdatedAt, proposal.SentAt,
		proposal.ApprovedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить предложение")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить предложение")
	}
	if affected == 0 {
		// Отличаем удалённое предложение от устаревшей версии.
		if _, findErr := r.FindByID(ctx, proposal.ID); findErr != nil {
			return findErr
		}
		return apperror.ErrVersionConflict
	}

	proposal.Version++
	return nil
}

func (r *ProposalRepositoryAdapter) ListSentExpiredBefore(ctx context.Context, now time.Time, limit int) ([]*entity.Proposal, error) {
	var rows []proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals p
		WHERE p.status = $1 AND p.expiry_date IS NOT NULL AND p.expiry_date < $2
		ORDER BY p.expiry_date ASC LIMIT $3`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, string(valueobject.ProposalStatusSent), now, limit); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить просроченные предложения")
	}

	result := make([]*entity.Proposal, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

type proposalRow struct {
	ID                  uuid.UUID  `db:"id"`
	OwnerID             uuid.UUID  `db:"owner_id"`
	ClientID            uuid.UUID  `db:"client_id"`
	Number              string     `db:"number"`
	Title               string     `db:"title"`
	Notes               *string    `db:"notes"`
	Status              string     `db:"status"`
	Subtotal            float64    `db:"subtotal"`
	Discount            float64    `db:"discount"`
	Tax                 float64    `db:"tax"`
	Total               float64    `db:"total"`
	ValidityDays        int        `db:"validity_days"`
	ExpiryDate          *time.Time `db:"expiry_date"`
	UpdatedAfterComment bool       `db:"updated_after_comment"`
	Version             int        `db:"version"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	SentAt              *time.Time `db:"sent_at"`
	ApprovedAt          *time.Time `db:"approved_at"`
}

func (p *proposalRow) toEntity() *entity.Proposal {
	return &entity.Proposal{
		ID:                  p.ID,
		OwnerID:             p.OwnerID,
		ClientID:            p.ClientID,
		Number:              p.Number,
		Title:               p.Title,
		Notes:               p.Notes,
		Status:              valueobject.ProposalStatus(p.Status),
		Subtotal:            p.Subtotal,
		Discount:            p.Discount,
		Tax:                 p.Tax,
		Total:               p.Total,
		ValidityDays:        p.ValidityDays,
		ExpiryDate:          p.ExpiryDate,
		UpdatedAfterComment: p.UpdatedAfterComment,
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		SentAt:              p.SentAt,
		ApprovedAt:          p.ApprovedAt,
	}
}

package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// ChangeLogRepositoryAdapter только вставка и чтение; UPDATE/DELETE дополнительно блокирует триггер в БД.
type ChangeLogRepositoryAdapter struct {
	q sqlx.ExtContext
}

func NewChangeLogRepositoryAdapter(q sqlx.ExtContext) *ChangeLogRepositoryAdapter {
	return &ChangeLogRepositoryAdapter{q: q}
}

func (r *ChangeLogRepositoryAdapter) Append(ctx context.Context, entry *entity.ChangeLogEntry) error {
	query := `
		INSERT INTO proposal_change_log (id, proposal_id, field_name, old_value, new_value, change_type,
		changed_by, client_approval, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID, entry.ProposalID, entry.FieldName, entry.OldValue, entry.NewValue,
		string(entry.ChangeType), entry.ChangedBy, entry.ClientApproval, entry.ClientIP,
		entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать журнал изменений")
	}
	return nil
}

func (r *ChangeLogRepositoryAdapter) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ChangeLogEntry, error) {
	var rows []changeLogRow
	query := `
		SELECT id, proposal_id, field_name, old_value, new_value, change_type, changed_by,
		client_approval, client_ip, user_agent, created_at
		FROM proposal_change_log WHERE proposal_id = $1 ORDER BY created_at DESC, seq DESC
	`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, proposalID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить журнал изменений")
	}

	result := make([]*entity.ChangeLogEntry, len(rows))
	for i, row := range rows {
		result[i] = &entity.ChangeLogEntry{
			ID:             row.ID,
			ProposalID:     row.ProposalID,
			FieldName:      row.FieldName,
			OldValue:       row.OldValue,
			NewValue:       row.NewValue,
			ChangeType:     entity.ChangeType(row.ChangeType),
			ChangedBy:      row.ChangedBy,
			ClientApproval: row.ClientApproval,
			ClientIP:       row.ClientIP,
			UserAgent:      row.UserAgent,
			CreatedAt:      row.CreatedAt,
		}
	}
	return result, nil
}

type changeLogRow struct {
	ID             uuid.UUID `db:"id"`
	ProposalID     uuid.UUID `db:"proposal_id"`
	FieldName      string    `db:"field_name"`
	OldValue       *string   `db:"old_value"`
	NewValue       *string   `db:"new_value"`
	ChangeType     string    `db:"change_type"`
	ChangedBy      string    `db:"changed_by"`
	ClientApproval *bool     `db:"client_approval"`
	ClientIP       *string   `db:"client_ip"`
	UserAgent      *string   `db:"user_agent"`
	CreatedAt      time.Time `db:"created_at"`
}

type CommentRepositoryAdapter struct {
	q sqlx.ExtContext
}

func NewCommentRepositoryAdapter(q sqlx.ExtContext) *CommentRepositoryAdapter {
	return &CommentRepositoryAdapter{q: q}
}

func (r *CommentRepositoryAdapter) Create(ctx context.Context, comment *entity.ClientComment) error {
	query := `
		INSERT INTO client_comments (id, proposal_id, token_id, client_name, client_email, comment,
		client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		comment.ID, comment.ProposalID, comment.TokenID, comment.ClientName, comment.ClientEmail,
		comment.Comment, comment.ClientIP, comment.UserAgent, comment.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить комментарий")
	}
	return nil
}

func (r *CommentRepositoryAdapter) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ClientComment, error) {
	var rows []commentRow
	query := `
		SELECT id, proposal_id, token_id, client_name, client_email, comment, client_ip, user_agent, created_at
		FROM client_comments WHERE proposal_id = $1 ORDER BY created_at DESC
	`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, proposalID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить комментарии")
	}

	result := make([]*entity.ClientComment, len(rows))
	for i, row := range rows {
		c := entity.ClientComment(row)
		result[i] = &c
	}
	return result, nil
}

type commentRow struct {
	ID          uuid.UUID `db:"id"`
	ProposalID  uuid.UUID `db:"proposal_id"`
	TokenID     uuid.UUID `db:"token_id"`
	ClientName  string    `db:"client_name"`
	ClientEmail string    `db:"client_email"`
	Comment     string    `db:"comment"`
	ClientIP    *string   `db:"client_ip"`
	UserAgent   *string   `db:"user_agent"`
	CreatedAt   time.Time `db:"created_at"`
}

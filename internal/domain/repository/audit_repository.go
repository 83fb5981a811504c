package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

// ChangeLogRepository журнал только на добавление: обновлять и удалять записи нельзя.
type ChangeLogRepository interface {
	Append(ctx context.Context, entry *entity.ChangeLogEntry) error
	// ListByProposal от новых к старым.
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ChangeLogEntry, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *entity.ClientComment) error
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ClientComment, error)
}

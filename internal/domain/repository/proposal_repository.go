package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

type ProposalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	// FindByIDForUpdate блокирует строку до конца транзакции.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	// Update пишет предложение только если версия в БД совпадает с proposal.Version,
	// иначе возвращает apperror.ErrVersionConflict. При успехе увеличивает proposal.Version.
	Update(ctx context.Context, proposal *entity.Proposal) error
	ListSentExpiredBefore(ctx context.Context, now time.Time, limit int) ([]*entity.Proposal, error)
}

// ProposalReadRepository денормализованная модель чтения для владельца и портала.
type ProposalReadRepository interface {
	FindView(ctx context.Context, id uuid.UUID) (*entity.ProposalView, error)
	ListViewsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.ProposalView, error)
	FindItems(ctx context.Context, proposalID uuid.UUID) ([]entity.ProposalItem, error)
	FindCompany(ctx context.Context, ownerID uuid.UUID) (*entity.Company, error)
}

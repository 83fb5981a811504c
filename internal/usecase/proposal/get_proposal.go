package proposal

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

// loadOwned читает предложение и проверяет, что оно принадлежит владельцу.
func loadOwned(ctx context.Context, reads repository.ProposalReadRepository, proposalID, ownerID uuid.UUID) (*entity.ProposalView, error) {
	view, err := reads.FindView(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !view.Proposal.IsOwnedBy(ownerID) {
		return nil, apperror.ErrForbidden
	}
	return view, nil
}

type GetProposalUseCase struct {
	reads repository.ProposalReadRepository
}

func NewGetProposalUseCase(reads repository.ProposalReadRepository) *GetProposalUseCase {
	return &GetProposalUseCase{reads: reads}
}

func (uc *GetProposalUseCase) Execute(ctx context.Context, proposalID, ownerID uuid.UUID) (*entity.ProposalView, error) {
	return loadOwned(ctx, uc.reads, proposalID, ownerID)
}

type ListMyProposalsUseCase struct {
	reads repository.ProposalReadRepository
}

func NewListMyProposalsUseCase(reads repository.ProposalReadRepository) *ListMyProposalsUseCase {
	return &ListMyProposalsUseCase{reads: reads}
}

func (uc *ListMyProposalsUseCase) Execute(ctx context.Context, ownerID uuid.UUID) ([]*entity.ProposalView, error) {
	return uc.reads.ListViewsByOwner(ctx, ownerID)
}

// GetHistoryUseCase журнал изменений, от новых записей к старым.
type GetHistoryUseCase struct {
	reads repository.ProposalReadRepository
	audit *audit.Log
}

func NewGetHistoryUseCase(reads repository.ProposalReadRepository, auditLog *audit.Log) *GetHistoryUseCase {
	return &GetHistoryUseCase{reads: reads, audit: auditLog}
}

func (uc *GetHistoryUseCase) Execute(ctx context.Context, proposalID, ownerID uuid.UUID) ([]*entity.ChangeLogEntry, error) {
	if _, err := loadOwned(ctx, uc.reads, proposalID, ownerID); err != nil {
		return nil, err
	}
	return uc.audit.ListFor(ctx, proposalID)
}

type ListCommentsUseCase struct {
	reads    repository.ProposalReadRepository
	comments repository.CommentRepository
}

func NewListCommentsUseCase(reads repository.ProposalReadRepository, comments repository.CommentRepository) *ListCommentsUseCase {
	return &ListCommentsUseCase{reads: reads, comments: comments}
}

func (uc *ListCommentsUseCase) Execute(ctx context.Context, proposalID, ownerID uuid.UUID) ([]*entity.ClientComment, error) {
	if _, err := loadOwned(ctx, uc.reads, proposalID, ownerID); err != nil {
		return nil, err
	}
	return uc.comments.ListByProposal(ctx, proposalID)
}

// ListTokensUseCase токены предложения со счётчиками обращений.
type ListTokensUseCase struct {
	reads  repository.ProposalReadRepository
	tokens *token.Store
}

func NewListTokensUseCase(reads repository.ProposalReadRepository, tokens *token.Store) *ListTokensUseCase {
	return &ListTokensUseCase{reads: reads, tokens: tokens}
}

func (uc *ListTokensUseCase) Execute(ctx context.Context, proposalID, ownerID uuid.UUID) ([]*entity.CapabilityToken, error) {
	if _, err := loadOwned(ctx, uc.reads, proposalID, ownerID); err != nil {
		return nil, err
	}
	return uc.tokens.ListForProposal(ctx, proposalID)
}

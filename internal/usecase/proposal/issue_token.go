package proposal

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

type IssueTokenInput struct {
	ProposalID uuid.UUID
	OwnerID    uuid.UUID
	Purpose    valueobject.TokenPurpose
}

type IssuedToken struct {
	Token *entity.CapabilityToken
	URL   string
}

// IssueTokenUseCase явная выдача ссылки для уже отправленного предложения.
type IssueTokenUseCase struct {
	uow    repository.UnitOfWork
	tokens *token.Store
	links  token.Links
}

func NewIssueTokenUseCase(uow repository.UnitOfWork, tokens *token.Store, links token.Links) *IssueTokenUseCase {
	return &IssueTokenUseCase{uow: uow, tokens: tokens, links: links}
}

func (uc *IssueTokenUseCase) Execute(ctx context.Context, input IssueTokenInput) (*IssuedToken, error) {
	if !input.Purpose.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректное назначение токена")
	}

	var issued *entity.CapabilityToken
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		proposal, err := tx.Proposals().FindByID(ctx, input.ProposalID)
		if err != nil {
			return err
		}
		if !proposal.IsOwnedBy(input.OwnerID) {
			return apperror.ErrForbidden
		}
		if proposal.Status == valueobject.ProposalStatusDraft {
			return apperror.New(apperror.ErrCodeBadRequest, "черновик нельзя открыть клиенту, сначала отправьте предложение")
		}

		issued, err = uc.tokens.In(tx.Tokens()).Issue(ctx, proposal.ID, input.Purpose)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: issued, URL: uc.links.URLFor(issued)}, nil
}

package proposal

import (
	"context"
	"errors"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

// PortalView всё, что клиент видит по портальной ссылке.
type PortalView struct {
	View             *entity.ProposalView
	Items            []entity.ProposalItem
	Company          *entity.Company
	ClientSeenUpdate bool
}

type PortalUseCase struct {
	uow    repository.UnitOfWork
	reads  repository.ProposalReadRepository
	tokens *token.Store
}

func NewPortalUseCase(uow repository.UnitOfWork, reads repository.ProposalReadRepository, tokens *token.Store) *PortalUseCase {
	return &PortalUseCase{uow: uow, reads: reads, tokens: tokens}
}

// View проверяет портальный токен (с продлением и учётом обращения) и собирает страницу.
// Черновик клиенту не показывается, и обращение к его токену не засчитывается.
func (uc *PortalUseCase) View(ctx context.Context, secret string) (*PortalView, error) {
	var tok *entity.CapabilityToken
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		tok, err = uc.tokens.In(tx.Tokens()).ValidateFor(ctx, secret, valueobject.TokenPurposePortal)
		if err != nil {
			return err
		}
		p, err := tx.Proposals().FindByID(ctx, tok.ProposalID)
		if err != nil {
			return err
		}
		if !p.Status.IsClientVisible() {
			return apperror.ErrTokenNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := uc.reads.FindView(ctx, tok.ProposalID)
	if err != nil {
		return nil, err
	}
	items, err := uc.reads.FindItems(ctx, tok.ProposalID)
	if err != nil {
		return nil, err
	}
	company, err := uc.reads.FindCompany(ctx, view.Proposal.OwnerID)
	if err != nil && !errors.Is(err, apperror.ErrCompanyNotFound) {
		return nil, err
	}

	return &PortalView{
		View:             view,
		Items:            items,
		Company:          company,
		ClientSeenUpdate: tok.ClientSeenUpdate,
	}, nil
}

// MarkSeen клиент закрыл баннер об обновлении. Обращением к токену не считается.
func (uc *PortalUseCase) MarkSeen(ctx context.Context, secret string) error {
	return uc.tokens.MarkUpdateSeen(ctx, secret)
}

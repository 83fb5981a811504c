package contestation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/notification"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/notify"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
	"github.com/ignatzorin/proposal-portal/internal/validation"
)

// ResolveInput правки владельца. nil означает «не менять».
type ResolveInput struct {
	ProposalID      uuid.UUID
	OwnerID         uuid.UUID
	ExpectedVersion *int
	Title           *string
	Notes           *string
	Subtotal        *float64
	Discount        *float64
	Tax             *float64
	ValidityDays    *int
	Notify          bool
}

type ResolveResult struct {
	Proposal *entity.Proposal
	Changes  []entity.FieldChange
}

type ResolveContestedUseCase struct {
	uow      repository.UnitOfWork
	tokens   *token.Store
	audit    *audit.Log
	notifier *notify.Notifier
}

func NewResolveContestedUseCase(uow repository.UnitOfWork, tokens *token.Store, auditLog *audit.Log, notifier *notify.Notifier) *ResolveContestedUseCase {
	return &ResolveContestedUseCase{
		uow:      uow,
		tokens:   tokens,
		audit:    auditLog,
		notifier: notifier,
	}
}

// Execute пересчитывает итоги, возвращает предложение в sent с флагом пересмотра
// и пишет по записи журнала на каждое изменившееся поле. Уведомление клиенту
// отправляется после фиксации и на результат не влияет.
func (uc *ResolveContestedUseCase) Execute(ctx context.Context, input ResolveInput) (*ResolveResult, error) {
	if err := validateResolve(&input); err != nil {
		return nil, err
	}

	var (
		result *ResolveResult
		portal *entity.CapabilityToken
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		proposal, err := tx.Proposals().FindByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return err
		}
		if !proposal.IsOwnedBy(input.OwnerID) {
			return apperror.ErrForbidden
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != proposal.Version {
			return apperror.ErrVersionConflict
		}
		// Статус проверяем до правок.
		if _, err := valueobject.TransitionResolve.Apply(proposal.Status); err != nil {
			return err
		}

		tokens := uc.tokens.In(tx.Tokens())
		now := tokens.Now()
		before := proposal.Clone()
		if err := applyChanges(proposal, input, now); err != nil {
			return err
		}
		if err := proposal.Resolve(now); err != nil {
			return err
		}
		if err := tx.Proposals().Update(ctx, proposal); err != nil {
			return err
		}

		changes := entity.DiffProposals(before, proposal)
		if _, err := uc.audit.In(tx.ChangeLog()).AppendDiff(ctx, proposal.ID, changes, audit.OwnerActor(input.OwnerID)); err != nil {
			return err
		}

		if input.Notify {
			portal, err = tokens.Issue(ctx, proposal.ID, valueobject.TokenPurposePortal)
			if err != nil {
				return err
			}
			if err := tokens.MarkUpdateUnseen(ctx, proposal.ID); err != nil {
				return err
			}
		}

		result = &ResolveResult{Proposal: proposal, Changes: changes}
		return nil
	})
	metrics.WorkflowResults.WithLabelValues("resolve", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id": input.ProposalID,
		"owner_id":    input.OwnerID,
		"changes":     len(result.Changes),
		"notify":      input.Notify,
	}).Info("Оспоренное предложение исправлено и отправлено повторно")

	if input.Notify && uc.notifier != nil {
		uc.notifier.Notify(ctx, notification.KindRevised, input.ProposalID, portal, nil)
	}
	return result, nil
}

func applyChanges(p *entity.Proposal, input ResolveInput, now time.Time) error {
	if input.Title != nil {
		p.Title = *input.Title
	}
	if input.Notes != nil {
		notes := *input.Notes
		p.Notes = &notes
		if notes == "" {
			p.Notes = nil
		}
	}

	current := p.Totals()
	subtotal, discount, tax := current.Subtotal, current.Discount, current.Tax
	if input.Subtotal != nil {
		subtotal = *input.Subtotal
	}
	if input.Discount != nil {
		discount = *input.Discount
	}
	if input.Tax != nil {
		tax = *input.Tax
	}
	totals, err := valueobject.NewTotals(subtotal, discount, tax)
	if err != nil {
		return err
	}
	p.SetTotals(totals)

	if input.ValidityDays != nil {
		if err := p.SetValidityDays(*input.ValidityDays, now); err != nil {
			return err
		}
	}
	return nil
}

func validateResolve(input *ResolveInput) error {
	var errs []error
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		input.Title = &title
		errs = append(errs, validation.ValidateProposalTitle(title))
	}
	errs = append(errs, validation.ValidateProposalNotes(input.Notes))
	if input.Subtotal != nil {
		errs = append(errs, validation.ValidateAmount("сумма", *input.Subtotal))
	}
	if input.ValidityDays != nil {
		errs = append(errs, validation.ValidateValidityDays(*input.ValidityDays))
	}
	for _, err := range errs {
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	return nil
}

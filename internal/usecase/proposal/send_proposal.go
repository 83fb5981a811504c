// Package proposal действия владельца над своими предложениями и клиентский портал.
package proposal

import (
	"context"

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
)

type SendProposalInput struct {
	ProposalID uuid.UUID
	OwnerID    uuid.UUID
	Notify     bool
}

type SendProposalResult struct {
	Proposal    *entity.Proposal
	Portal      *entity.CapabilityToken
	Approval    *entity.CapabilityToken
	PortalURL   string
	ApprovalURL string
}

type SendProposalUseCase struct {
	uow      repository.UnitOfWork
	tokens   *token.Store
	audit    *audit.Log
	notifier *notify.Notifier
	links    token.Links
}

func NewSendProposalUseCase(uow repository.UnitOfWork, tokens *token.Store, auditLog *audit.Log, notifier *notify.Notifier, links token.Links) *SendProposalUseCase {
	return &SendProposalUseCase{
		uow:      uow,
		tokens:   tokens,
		audit:    auditLog,
		notifier: notifier,
		links:    links,
	}
}

// Execute переводит черновик в sent и выдаёт клиенту портальную и одобряющую ссылки.
func (uc *SendProposalUseCase) Execute(ctx context.Context, input SendProposalInput) (*SendProposalResult, error) {
	var result *SendProposalResult
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		proposal, err := tx.Proposals().FindByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return err
		}
		if !proposal.IsOwnedBy(input.OwnerID) {
			return apperror.ErrForbidden
		}

		tokens := uc.tokens.In(tx.Tokens())
		from := proposal.Status
		if err := proposal.Send(tokens.Now()); err != nil {
			return err
		}
		if err := tx.Proposals().Update(ctx, proposal); err != nil {
			return err
		}
		if err := uc.audit.In(tx.ChangeLog()).AppendStatusChange(ctx, proposal.ID, from, proposal.Status, audit.OwnerActor(input.OwnerID)); err != nil {
			return err
		}

		portal, err := tokens.Issue(ctx, proposal.ID, valueobject.TokenPurposePortal)
		if err != nil {
			return err
		}
		approval, err := tokens.Issue(ctx, proposal.ID, valueobject.TokenPurposeApproval)
		if err != nil {
			return err
		}

		result = &SendProposalResult{
			Proposal:    proposal,
			Portal:      portal,
			Approval:    approval,
			PortalURL:   uc.links.PortalURL(portal.Token),
			ApprovalURL: uc.links.ApprovalURL(approval.Token),
		}
		return nil
	})
	metrics.WorkflowResults.WithLabelValues("send", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id": input.ProposalID,
		"owner_id":    input.OwnerID,
		"expiry_date": result.Proposal.ExpiryDate,
	}).Info("Предложение отправлено клиенту")

	if input.Notify && uc.notifier != nil {
		uc.notifier.Notify(ctx, notification.KindSent, input.ProposalID, result.Portal, result.Approval)
	}
	return result, nil
}

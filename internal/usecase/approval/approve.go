// Package approval одобрение предложения клиентом по одноразовой ссылке.
package approval

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

type ApproveInput struct {
	Secret     string
	ClientName string
	Client     entity.ClientInfo
}

type ApproveUseCase struct {
	uow    repository.UnitOfWork
	tokens *token.Store
	audit  *audit.Log
}

func NewApproveUseCase(uow repository.UnitOfWork, tokens *token.Store, auditLog *audit.Log) *ApproveUseCase {
	return &ApproveUseCase{
		uow:    uow,
		tokens: tokens,
		audit:  auditLog,
	}
}

// Execute проверяет токен, тратит его, переводит предложение в approved и пишет журнал.
// Все шаги в одной транзакции: при любой ошибке токен остаётся неиспользованным.
func (uc *ApproveUseCase) Execute(ctx context.Context, input ApproveInput) (uuid.UUID, error) {
	var proposalID uuid.UUID

	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		tokens := uc.tokens.In(tx.Tokens())

		tok, err := tokens.ValidateFor(ctx, input.Secret, valueobject.TokenPurposeApproval)
		if err != nil {
			return err
		}
		if err := tokens.Consume(ctx, input.Secret, input.Client); err != nil {
			return err
		}

		proposal, err := tx.Proposals().FindByIDForUpdate(ctx, tok.ProposalID)
		if err != nil {
			return err
		}
		from := proposal.Status
		if err := proposal.Approve(tokens.Now()); err != nil {
			return err
		}
		if err := tx.Proposals().Update(ctx, proposal); err != nil {
			return err
		}

		approved := true
		actor := audit.ClientActor(input.Client, &approved)
		if err := uc.audit.In(tx.ChangeLog()).AppendStatusChange(ctx, proposal.ID, from, proposal.Status, actor); err != nil {
			return err
		}

		proposalID = proposal.ID
		return nil
	})
	metrics.WorkflowResults.WithLabelValues("approve", metrics.Result(err)).Inc()
	if err != nil {
		return uuid.Nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"client_name": input.ClientName,
		"client_ip":   input.Client.IP,
	}).Info("Предложение одобрено клиентом")
	return proposalID, nil
}

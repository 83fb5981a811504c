// Package contestation комментарии клиента по портальной ссылке и ответ владельца на них.
package contestation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
	"github.com/ignatzorin/proposal-portal/internal/validation"
)

type SubmitCommentInput struct {
	Secret      string
	ClientName  string
	ClientEmail string
	Comment     string
	Client      entity.ClientInfo
}

type SubmitCommentUseCase struct {
	uow    repository.UnitOfWork
	tokens *token.Store
	audit  *audit.Log
}

func NewSubmitCommentUseCase(uow repository.UnitOfWork, tokens *token.Store, auditLog *audit.Log) *SubmitCommentUseCase {
	return &SubmitCommentUseCase{
		uow:    uow,
		tokens: tokens,
		audit:  auditLog,
	}
}

// Execute сохраняет комментарий и безусловно переводит предложение в contested.
// Уведомление владельцу не отправляется: он увидит смену статуса через синхронизацию.
func (uc *SubmitCommentUseCase) Execute(ctx context.Context, input SubmitCommentInput) (*entity.ClientComment, error) {
	if err := validateComment(&input); err != nil {
		return nil, err
	}

	var comment *entity.ClientComment
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		tokens := uc.tokens.In(tx.Tokens())
		tok, err := tokens.ValidateFor(ctx, input.Secret, valueobject.TokenPurposePortal)
		if err != nil {
			return err
		}
		now := tokens.Now()

		comment = &entity.ClientComment{
			ID:          uuid.New(),
			ProposalID:  tok.ProposalID,
			TokenID:     tok.ID,
			ClientName:  input.ClientName,
			ClientEmail: input.ClientEmail,
			Comment:     input.Comment,
			ClientIP:    input.Client.IPPtr(),
			UserAgent:   input.Client.UserAgentPtr(),
			CreatedAt:   now,
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}

		proposal, err := tx.Proposals().FindByIDForUpdate(ctx, tok.ProposalID)
		if err != nil {
			return err
		}
		from := proposal.Status
		if err := proposal.Contest(now); err != nil {
			return err
		}
		if err := tx.Proposals().Update(ctx, proposal); err != nil {
			return err
		}

		log := uc.audit.In(tx.ChangeLog())
		if err := log.AppendClientComment(ctx, proposal.ID, input.Comment, input.Client); err != nil {
			return err
		}
		return log.AppendStatusChange(ctx, proposal.ID, from, proposal.Status, audit.ClientActor(input.Client, nil))
	})
	metrics.WorkflowResults.WithLabelValues("contest", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id": comment.ProposalID,
		"client_ip":   input.Client.IP,
	}).Info("Клиент оспорил предложение")
	return comment, nil
}

func validateComment(input *SubmitCommentInput) error {
	input.ClientName = strings.TrimSpace(input.ClientName)
	input.ClientEmail = strings.ToLower(strings.TrimSpace(input.ClientEmail))
	input.Comment = strings.TrimSpace(input.Comment)

	for _, err := range []error{
		validation.ValidateClientName(input.ClientName),
		validation.ValidateEmail(input.ClientEmail),
		validation.ValidateComment(input.Comment),
	} {
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	return nil
}

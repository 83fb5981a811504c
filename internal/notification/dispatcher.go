// Package notification исходящие уведомления клиентам. Доставка best-effort:
// ошибки логируются вызывающей стороной и никогда не откатывают переход статуса.
package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/logger"
)

// Kind повод уведомления.
type Kind string

const (
	KindSent    Kind = "sent"
	KindRevised Kind = "revised"
)

// Request данные уведомления о предложении.
type Request struct {
	Kind           Kind
	ProposalID     uuid.UUID
	ClientEmail    string
	ClientName     string
	ProposalNumber string
	ProposalTitle  string
	ProposalURL    string
	ApprovalURL    string
}

// Ошибки, которые повторная попытка не исправит.
var (
	ErrNotConfigured = errors.New("notification: канал доставки не настроен")
	ErrNoRecipient   = errors.New("notification: у клиента нет email")
)

// IsPermanent сообщает, что повторять отправку бессмысленно.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrNoRecipient)
}

// Dispatcher отправляет уведомление клиенту.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// LogDispatcher только пишет уведомление в лог. Используется, когда SMTP не настроен.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, req Request) error {
	logger.Log.WithFields(logrus.Fields{
		"proposal_id":  req.ProposalID,
		"kind":         req.Kind,
		"client_email": req.ClientEmail,
		"proposal_url": req.ProposalURL,
	}).Info("Уведомление клиенту (SMTP не настроен)")
	return nil
}

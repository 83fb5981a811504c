// Package notify best-effort уведомление клиента после зафиксированного перехода.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/notification"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

type Notifier struct {
	dispatcher notification.Dispatcher
	reads      repository.ProposalReadRepository
	links      token.Links
}

func NewNotifier(dispatcher notification.Dispatcher, reads repository.ProposalReadRepository, links token.Links) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		reads:      reads,
		links:      links,
	}
}

// Notify ничего не возвращает: ошибки только логируются и не влияют на переход.
// approval может быть nil.
func (n *Notifier) Notify(ctx context.Context, kind notification.Kind, proposalID uuid.UUID, portal, approval *entity.CapabilityToken) {
	log := logger.Log.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"kind":        kind,
	})

	view, err := n.reads.FindView(ctx, proposalID)
	if err != nil {
		log.WithError(err).Warn("Уведомление не отправлено: не удалось загрузить предложение")
		return
	}
	if view.Client == nil || view.Client.Email == nil || *view.Client.Email == "" {
		log.Warn("Уведомление не отправлено: у клиента нет email")
		return
	}

	req := notification.Request{
		Kind:           kind,
		ProposalID:     proposalID,
		ClientEmail:    *view.Client.Email,
		ClientName:     view.Client.Name,
		ProposalNumber: view.Proposal.Number,
		ProposalTitle:  view.Proposal.Title,
		ProposalURL:    n.links.PortalURL(portal.Token),
	}
	if approval != nil {
		req.ApprovalURL = n.links.ApprovalURL(approval.Token)
	}

	if err := n.dispatcher.Dispatch(ctx, req); err != nil {
		log.WithError(err).Warn("Не удалось поставить уведомление в очередь")
	}
}

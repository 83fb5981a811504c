package proposal

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
)

const defaultSweepBatch = 100

// ExpirySweeper переводит отправленные предложения с истёкшим сроком в expired.
type ExpirySweeper struct {
	uow       repository.UnitOfWork
	proposals repository.ProposalRepository
	audit     *audit.Log
	now       func() time.Time
	batch     int
}

func NewExpirySweeper(uow repository.UnitOfWork, proposals repository.ProposalRepository, auditLog *audit.Log, now func() time.Time) *ExpirySweeper {
	if now == nil {
		now = time.Now
	}
	return &ExpirySweeper{
		uow:       uow,
		proposals: proposals,
		audit:     auditLog,
		now:       now,
		batch:     defaultSweepBatch,
	}
}

// Run вызывает SweepOnce с заданным интервалом до отмены ctx.
func (s *ExpirySweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.Log.WithError(err).Warn("Проход по просроченным предложениям завершился с ошибкой")
			}
		}
	}
}

// SweepOnce обрабатывает одну пачку. Каждое предложение в своей транзакции:
// статус перепроверяется под блокировкой, параллельное одобрение или комментарий побеждают.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	candidates, err := s.proposals.ListSentExpiredBefore(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		ok, err := s.expire(ctx, candidate, now)
		metrics.WorkflowResults.WithLabelValues("expire", metrics.Result(err)).Inc()
		if err != nil {
			logger.Log.WithField("proposal_id", candidate.ID).WithError(err).Warn("Не удалось пометить предложение просроченным")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		logger.Log.WithFields(logrus.Fields{
			"expired":    expired,
			"candidates": len(candidates),
		}).Info("Просроченные предложения помечены")
	}
	return expired, nil
}

func (s *ExpirySweeper) expire(ctx context.Context, candidate *entity.Proposal, now time.Time) (bool, error) {
	expired := false
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		proposal, err := tx.Proposals().FindByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if proposal.Status != valueobject.ProposalStatusSent || !proposal.IsPastExpiry(now) {
			return nil
		}

		from := proposal.Status
		if err := proposal.Expire(now); err != nil {
			return err
		}
		if err := tx.Proposals().Update(ctx, proposal); err != nil {
			return err
		}
		expired = true
		return s.audit.In(tx.ChangeLog()).AppendStatusChange(ctx, proposal.ID, from, proposal.Status, audit.SystemActor())
	})
	return expired && err == nil, err
}

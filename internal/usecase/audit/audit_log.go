// Package audit журнал изменений предложения только на добавление.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Actor кто внёс изменение и откуда.
type Actor struct {
	ChangedBy      string
	ClientApproval *bool
	Client         entity.ClientInfo
}

func OwnerActor(ownerID uuid.UUID) Actor {
	return Actor{ChangedBy: ownerID.String()}
}

// ClientActor действие клиента по ссылке. approval nil, если действие не про одобрение.
func ClientActor(info entity.ClientInfo, approval *bool) Actor {
	return Actor{ChangedBy: entity.ChangedByClient, ClientApproval: approval, Client: info}
}

func SystemActor() Actor {
	return Actor{ChangedBy: entity.ChangedBySystem}
}

type Log struct {
	entries repository.ChangeLogRepository
	now     func() time.Time
}

func NewLog(entries repository.ChangeLogRepository, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{entries: entries, now: now}
}

// In возвращает копию журнала, пишущую через репозиторий транзакции.
func (l *Log) In(entries repository.ChangeLogRepository) *Log {
	return &Log{entries: entries, now: l.now}
}

// Append только вставка: существующие записи никогда не меняются.
func (l *Log) Append(ctx context.Context, entry *entity.ChangeLogEntry) error {
	if entry.ProposalID == uuid.Nil || entry.FieldName == "" || entry.ChangedBy == "" {
		return apperror.New(apperror.ErrCodeValidation, "запись журнала без предложения, поля или автора")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ChangeType == "" {
		entry.ChangeType = entity.ChangeTypeUpdate
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	return l.entries.Append(ctx, entry)
}

func (l *Log) AppendStatusChange(ctx context.Context, proposalID uuid.UUID, from, to valueobject.ProposalStatus, actor Actor) error {
	if from == to {
		return nil
	}
	oldValue := from.String()
	newValue := to.String()
	return l.Append(ctx, actor.entry(proposalID, "status", &oldValue, &newValue))
}

// AppendClientComment фиксирует комментарий клиента под полем observacoes_cliente.
func (l *Log) AppendClientComment(ctx context.Context, proposalID uuid.UUID, comment string, info entity.ClientInfo) error {
	approval := false
	actor := ClientActor(info, &approval)
	return l.Append(ctx, actor.entry(proposalID, entity.FieldClientComments, nil, &comment))
}

// AppendDiff пишет по одной записи на каждое реально изменившееся поле.
func (l *Log) AppendDiff(ctx context.Context, proposalID uuid.UUID, changes []entity.FieldChange, actor Actor) (int, error) {
	written := 0
	for _, ch := range changes {
		if err := l.Append(ctx, actor.entry(proposalID, ch.Field, ch.OldValue, ch.NewValue)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// ListFor записи предложения от новых к старым.
func (l *Log) ListFor(ctx context.Context, proposalID uuid.UUID) ([]*entity.ChangeLogEntry, error) {
	return l.entries.ListByProposal(ctx, proposalID)
}

func (a Actor) entry(proposalID uuid.UUID, field string, oldValue, newValue *string) *entity.ChangeLogEntry {
	return &entity.ChangeLogEntry{
		ProposalID:     proposalID,
		FieldName:      field,
		OldValue:       oldValue,
		NewValue:       newValue,
		ChangeType:     entity.ChangeTypeUpdate,
		ChangedBy:      a.ChangedBy,
		ClientApproval: a.ClientApproval,
		ClientIP:       a.Client.IPPtr(),
		UserAgent:      a.Client.UserAgentPtr(),
	}
}

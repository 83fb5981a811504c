// Package changesync поддерживает коллекции предложений в сессиях владельцев
// согласованными с сервером по push-событиям, без опроса.
package changesync

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

// EventType тип изменения строки предложения.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event сырое событие источника. Полезной нагрузке не доверяем: запись перечитывается.
type Event struct {
	Type       EventType `json:"op"`
	ProposalID uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
}

// ParseEvent разбирает payload pg_notify.
func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("changesync: некорректный payload события: %w", err)
	}
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Event{}, fmt.Errorf("changesync: неизвестный тип события %q", ev.Type)
	}
	if ev.ProposalID == uuid.Nil || ev.OwnerID == uuid.Nil {
		return Event{}, fmt.Errorf("changesync: в событии нет id или owner_id")
	}
	return ev, nil
}

// Change событие вместе с перечитанной полной записью (nil для delete).
type Change struct {
	Type       EventType
	ProposalID uuid.UUID
	OwnerID    uuid.UUID
	Record     *entity.ProposalView
}

// ConnState состояние подписки на источник.
type ConnState string

const (
	StateDegraded ConnState = "degraded"
	StateRestored ConnState = "restored"
)

// Source поставщик событий об изменениях предложений.
type Source interface {
	Events() <-chan Event
	// States может вернуть nil, если источник не теряет соединение.
	States() <-chan ConnState
	Close() error
}

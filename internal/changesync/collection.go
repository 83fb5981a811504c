package changesync

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

// Notice разовое уведомление владельцу о смене статуса предложения.
type Notice struct {
	ProposalID uuid.UUID
	Number     string
	Title      string
	From       valueobject.ProposalStatus
	To         valueobject.ProposalStatus
}

// Collection упорядоченная коллекция предложений одной сессии, ключ id.
// Новые записи в начале. Не потокобезопасна: ей владеет горутина сессии.
type Collection struct {
	byID  map[uuid.UUID]*entity.ProposalView
	order []uuid.UUID
}

func NewCollection() *Collection {
	return &Collection{byID: make(map[uuid.UUID]*entity.ProposalView)}
}

// Reset заменяет содержимое снимком сервера в порядке выдачи.
func (c *Collection) Reset(views []*entity.ProposalView) {
	c.byID = make(map[uuid.UUID]*entity.ProposalView, len(views))
	c.order = c.order[:0]
	for _, v := range views {
		if v == nil || v.Proposal == nil {
			continue
		}
		if _, ok := c.byID[v.Proposal.ID]; ok {
			continue
		}
		c.byID[v.Proposal.ID] = v
		c.order = append(c.order, v.Proposal.ID)
	}
}

// Insert добавляет запись в начало. Уже известный id не трогается: более новые
// версии приходят через Update.
func (c *Collection) Insert(v *entity.ProposalView) bool {
	id := v.Proposal.ID
	if _, ok := c.byID[id]; ok {
		return false
	}
	c.byID[id] = v
	c.order = append([]uuid.UUID{id}, c.order...)
	return true
}

// Update заменяет запись на месте. Notice возвращается, только если статус изменился.
// Отсутствующая запись вставляется в начало, устаревшая версия игнорируется.
func (c *Collection) Update(v *entity.ProposalView) (*Notice, bool) {
	id := v.Proposal.ID
	current, ok := c.byID[id]
	if !ok {
		c.Insert(v)
		return nil, true
	}
	if v.Proposal.Version < current.Proposal.Version {
		return nil, false
	}
	c.byID[id] = v

	if current.Proposal.Status == v.Proposal.Status {
		return nil, true
	}
	return &Notice{
		ProposalID: id,
		Number:     v.Proposal.Number,
		Title:      v.Proposal.Title,
		From:       current.Proposal.Status,
		To:         v.Proposal.Status,
	}, true
}

func (c *Collection) Delete(id uuid.UUID) bool {
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Apply сливает изменение в коллекцию. Запись, исчезнувшая к моменту перечитывания,
// обрабатывается как удаление.
func (c *Collection) Apply(ch Change) (applied bool, notice *Notice) {
	if ch.Type == EventDelete || ch.Record == nil || ch.Record.Proposal == nil {
		return c.Delete(ch.ProposalID), nil
	}
	switch ch.Type {
	case EventInsert:
		current, existed := c.byID[ch.ProposalID]
		if !existed {
			return c.Insert(ch.Record), nil
		}
		// Повторная доставка insert: та же версия ничего не меняет, более новая
		// сливается как обычное обновление вместе с уведомлением о статусе.
		if ch.Record.Proposal.Version <= current.Proposal.Version {
			return false, nil
		}
		notice, applied = c.Update(ch.Record)
		return applied, notice
	default:
		notice, applied = c.Update(ch.Record)
		return applied, notice
	}
}

func (c *Collection) Get(id uuid.UUID) (*entity.ProposalView, bool) {
	v, ok := c.byID[id]
	return v, ok
}

func (c *Collection) Len() int {
	return len(c.order)
}

// Snapshot упорядоченный вид только для чтения: новый срез, записи менять нельзя.
func (c *Collection) Snapshot() []*entity.ProposalView {
	out := make([]*entity.ProposalView, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

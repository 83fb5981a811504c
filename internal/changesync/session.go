package changesync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

// Fetcher перечитывает полные записи предложений вместе с клиентом.
type Fetcher interface {
	FindView(ctx context.Context, id uuid.UUID) (*entity.ProposalView, error)
	ListViewsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.ProposalView, error)
}

// MessageType тип исходящего сообщения сессии.
type MessageType string

const (
	MessageInserted      MessageType = "proposal.inserted"
	MessageUpdated       MessageType = "proposal.updated"
	MessageDeleted       MessageType = "proposal.deleted"
	MessageStatusChanged MessageType = "proposal.status_changed"
	MessageSnapshot      MessageType = "sync.snapshot"
	MessageDegraded      MessageType = "sync.degraded"
	MessageRestored      MessageType = "sync.restored"
)

// Причины полной пересинхронизации.
const (
	ReasonInitial    = "initial"
	ReasonOverflow   = "overflow"
	ReasonReconnect  = "reconnect"
	ReasonClient     = "client"
	ReasonFetchError = "fetch_error"
)

// Message исходящее сообщение сессии. Заполнены только поля, нужные типу.
type Message struct {
	Type       MessageType
	ProposalID uuid.UUID
	Record     *entity.ProposalView
	Records    []*entity.ProposalView
	Notice     *Notice
	Reason     string
}

// Session состояние одного подключения владельца. Хаб кладёт изменения в inbox
// без блокировки; при переполнении сессия помечается деградировавшей и пересинхронизируется.
type Session struct {
	ownerID uuid.UUID
	fetcher Fetcher

	inbox   chan Change
	control chan ConnState
	resync  chan string
	out     chan Message

	degraded atomic.Bool

	mu         sync.RWMutex
	collection *Collection

	onResync func(reason string)
}

type SessionOption func(*Session)

// WithResyncHook вызывается при каждой полной пересинхронизации (метрики).
func WithResyncHook(fn func(reason string)) SessionOption {
	return func(s *Session) {
		s.onResync = fn
	}
}

func NewSession(ownerID uuid.UUID, fetcher Fetcher, inboxSize int, opts ...SessionOption) *Session {
	if inboxSize <= 0 {
		inboxSize = 64
	}
	s := &Session{
		ownerID:    ownerID,
		fetcher:    fetcher,
		inbox:      make(chan Change, inboxSize),
		control:    make(chan ConnState, 4),
		resync:     make(chan string, 1),
		out:        make(chan Message, inboxSize),
		collection: NewCollection(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) OwnerID() uuid.UUID {
	return s.ownerID
}

// Messages канал исходящих сообщений. Закрывается, когда Run завершается.
func (s *Session) Messages() <-chan Message {
	return s.out
}

// Deliver не блокирует. false означает переполнение: сессия уйдёт в пересинхронизацию.
func (s *Session) Deliver(ch Change) bool {
	if ch.OwnerID != s.ownerID {
		return true
	}
	select {
	case s.inbox <- ch:
		return true
	default:
		s.degraded.Store(true)
		s.RequestResync(ReasonOverflow)
		return false
	}
}

// Signal передаёт сессии состояние источника событий.
func (s *Session) Signal(state ConnState) {
	select {
	case s.control <- state:
	default:
		// Сигналы идемпотентны; при restored сессия всё равно перечитает снимок.
		if state == StateRestored {
			s.RequestResync(ReasonReconnect)
		}
	}
}

// RequestResync просит полную пересинхронизацию. Повторные запросы схлопываются.
func (s *Session) RequestResync(reason string) {
	select {
	case s.resync <- reason:
	default:
	}
}

func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

// Snapshot текущая упорядоченная коллекция только для чтения.
func (s *Session) Snapshot() []*entity.ProposalView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Snapshot()
}

// Run загружает начальный снимок и применяет изменения по порядку доставки до отмены ctx.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.out)

	if err := s.reload(ctx, ReasonInitial); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch := <-s.inbox:
			if !s.apply(ctx, ch) {
				return ctx.Err()
			}
		case state := <-s.control:
			if !s.handleState(ctx, state) {
				return ctx.Err()
			}
		case reason := <-s.resync:
			if err := s.reload(ctx, reason); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.degraded.Store(true)
				if !s.emit(ctx, Message{Type: MessageDegraded, Reason: ReasonFetchError}) {
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Session) apply(ctx context.Context, ch Change) bool {
	s.mu.Lock()
	_, existed := s.collection.Get(ch.ProposalID)
	applied, notice := s.collection.Apply(ch)
	s.mu.Unlock()

	if !applied {
		return true
	}

	msg := Message{ProposalID: ch.ProposalID, Record: ch.Record}
	switch {
	case ch.Type == EventDelete || ch.Record == nil:
		msg.Type = MessageDeleted
		msg.Record = nil
	case existed:
		msg.Type = MessageUpdated
	default:
		msg.Type = MessageInserted
	}
	if !s.emit(ctx, msg) {
		return false
	}
	if notice != nil {
		return s.emit(ctx, Message{Type: MessageStatusChanged, ProposalID: ch.ProposalID, Notice: notice})
	}
	return true
}

func (s *Session) handleState(ctx context.Context, state ConnState) bool {
	switch state {
	case StateDegraded:
		s.degraded.Store(true)
		return s.emit(ctx, Message{Type: MessageDegraded, Reason: ReasonReconnect})
	case StateRestored:
		if err := s.reload(ctx, ReasonReconnect); err != nil {
			return ctx.Err() == nil
		}
	}
	return true
}

// reload отбрасывает накопленные изменения, перечитывает снимок и сообщает о восстановлении.
func (s *Session) reload(ctx context.Context, reason string) error {
	s.drainInbox()

	views, err := s.fetcher.ListViewsByOwner(ctx, s.ownerID)
	if err != nil {
		return err
	}
	if s.onResync != nil {
		s.onResync(reason)
	}

	s.mu.Lock()
	s.collection.Reset(views)
	snapshot := s.collection.Snapshot()
	s.mu.Unlock()

	if !s.emit(ctx, Message{Type: MessageSnapshot, Records: snapshot, Reason: reason}) {
		return ctx.Err()
	}
	if s.degraded.Swap(false) {
		if !s.emit(ctx, Message{Type: MessageRestored, Reason: reason}) {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Session) drainInbox() {
	for {
		select {
		case <-s.inbox:
		default:
			return
		}
	}
}

func (s *Session) emit(ctx context.Context, msg Message) bool {
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

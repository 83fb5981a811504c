package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/goroutine"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Hub держит сессии синхронизации владельцев и раздаёт им изменения из источника.
// Каждое событие перечитывается один раз и доставляется всем сессиям владельца без блокировки.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]map[*changesync.Session]struct{}
	register   chan *changesync.Session
	unregister chan *changesync.Session
	changes    chan changesync.Change
	states     chan changesync.ConnState
	done       chan struct{}

	source  changesync.Source
	fetcher changesync.Fetcher
}

// NewHub создаёт новый хаб.
func NewHub(source changesync.Source, fetcher changesync.Fetcher) *Hub {
	return &Hub{
		sessions:   make(map[uuid.UUID]map[*changesync.Session]struct{}),
		register:   make(chan *changesync.Session),
		unregister: make(chan *changesync.Session),
		changes:    make(chan changesync.Change, 64),
		states:     make(chan changesync.ConnState, 8),
		done:       make(chan struct{}),
		source:     source,
		fetcher:    fetcher,
	}
}

// Fetcher нужен сессиям для снимков.
func (h *Hub) Fetcher() changesync.Fetcher {
	return h.fetcher
}

// Run запускает главный цикл хаба до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	goroutine.SafeGoWithContext(ctx, h.pump)

	for {
		select {
		case <-ctx.Done():
			return
		case session := <-h.register:
			h.addSession(session)
		case session := <-h.unregister:
			h.removeSession(session)
		case change := <-h.changes:
			h.deliver(change)
		case state := <-h.states:
			h.signal(state)
		}
	}
}

// Register добавляет сессию.
func (h *Hub) Register(ctx context.Context, session *changesync.Session) error {
	select {
	case h.register <- session:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister удаляет сессию. После остановки хаба ничего не делает.
func (h *Hub) Unregister(session *changesync.Session) {
	select {
	case h.unregister <- session:
	case <-h.done:
	}
}

// SessionCount число сессий владельца.
func (h *Hub) SessionCount(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[ownerID])
}

func (h *Hub) hasOwner(ownerID uuid.UUID) bool {
	return h.SessionCount(ownerID) > 0
}

// pump читает источник и перечитывает полную запись вне главного цикла.
func (h *Hub) pump(ctx context.Context) {
	events := h.source.Events()
	states := h.source.States()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.SyncEvents.WithLabelValues(string(ev.Type)).Inc()
			if !h.hasOwner(ev.OwnerID) {
				continue
			}
			change, err := h.resolve(ctx, ev)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{
					"proposal_id": ev.ProposalID,
					"owner_id":    ev.OwnerID,
				}).WithError(err).Warn("Не удалось перечитать предложение, сессии будут пересинхронизированы")
				h.resyncOwner(ev.OwnerID)
				continue
			}
			select {
			case h.changes <- change:
			case <-ctx.Done():
				return
			}
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			select {
			case h.states <- state:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) resolve(ctx context.Context, ev changesync.Event) (changesync.Change, error) {
	change := changesync.Change{Type: ev.Type, ProposalID: ev.ProposalID, OwnerID: ev.OwnerID}
	if ev.Type == changesync.EventDelete {
		return change, nil
	}

	view, err := h.fetcher.FindView(ctx, ev.ProposalID)
	if err != nil {
		if errors.Is(err, apperror.ErrProposalNotFound) {
			// Удалено раньше, чем мы успели перечитать.
			change.Type = changesync.EventDelete
			return change, nil
		}
		return change, err
	}
	if view.Proposal.OwnerID != ev.OwnerID {
		change.Type = changesync.EventDelete
		return change, nil
	}
	change.Record = view
	return change, nil
}

func (h *Hub) resyncOwner(ownerID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions[ownerID] {
		session.RequestResync(changesync.ReasonFetchError)
	}
}

func (h *Hub) addSession(session *changesync.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := session.OwnerID()
	if _, ok := h.sessions[owner]; !ok {
		h.sessions[owner] = make(map[*changesync.Session]struct{})
	}
	h.sessions[owner][session] = struct{}{}
	metrics.SyncSessions.Inc()
}

func (h *Hub) removeSession(session *changesync.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := session.OwnerID()
	if sessions, ok := h.sessions[owner]; ok {
		if _, exists := sessions[session]; !exists {
			return
		}
		delete(sessions, session)
		metrics.SyncSessions.Dec()
		if len(sessions) == 0 {
			delete(h.sessions, owner)
		}
	}
}

func (h *Hub) deliver(change changesync.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for session := range h.sessions[change.OwnerID] {
		if !session.Deliver(change) {
			logger.Log.WithField("owner_id", change.OwnerID).Warn("Очередь сессии переполнена, сессия будет пересинхронизирована")
		}
	}
}

func (h *Hub) signal(state changesync.ConnState) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sessions := range h.sessions {
		for session := range sessions {
			session.Signal(state)
		}
	}
}

package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/goroutine"
	"github.com/ignatzorin/proposal-portal/internal/logger"
)

// ProposalChangesChannel канал pg_notify, в который пишет триггер trg_proposals_notify.
const ProposalChangesChannel = "proposal_changes"

// ChangeListener источник changesync поверх LISTEN/NOTIFY.
// Переподключение с экспоненциальной паузой делает сам pq.Listener.
type ChangeListener struct {
	listener *pq.Listener
	events   chan changesync.Event
	states   chan changesync.ConnState
	cancel   context.CancelFunc
	once     sync.Once
}

func NewChangeListener(ctx context.Context, dsn string, minReconnect, maxReconnect time.Duration) (*ChangeListener, error) {
	cl := &ChangeListener{
		events: make(chan changesync.Event, 256),
		states: make(chan changesync.ConnState, 8),
	}

	cl.listener = pq.NewListener(dsn, minReconnect, maxReconnect, cl.onEvent)
	if err := cl.listener.Listen(ProposalChangesChannel); err != nil {
		_ = cl.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", ProposalChangesChannel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl.cancel = cancel
	goroutine.SafeGoWithContext(runCtx, cl.run)
	return cl, nil
}

func (cl *ChangeListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		logger.Log.WithError(err).Warn("Соединение LISTEN потеряно")
		cl.pushState(changesync.StateDegraded)
	case pq.ListenerEventReconnected:
		logger.Log.Info("Соединение LISTEN восстановлено")
		cl.pushState(changesync.StateRestored)
	case pq.ListenerEventConnectionAttemptFailed:
		logger.Log.WithError(err).Debug("Попытка переподключения LISTEN не удалась")
	}
}

func (cl *ChangeListener) pushState(state changesync.ConnState) {
	select {
	case cl.states <- state:
	default:
	}
}

func (cl *ChangeListener) run(ctx context.Context) {
	defer close(cl.events)

	keepalive := time.NewTicker(90 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-cl.listener.Notify:
			if !ok {
				return
			}
			// nil приходит после переподключения: пропущенные события восполнит пересинхронизация.
			if n == nil {
				continue
			}
			ev, err := changesync.ParseEvent(n.Extra)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"payload": n.Extra}).WithError(err).Warn("Некорректное событие изменения")
				continue
			}
			select {
			case cl.events <- ev:
			case <-ctx.Done():
				return
			}
		case <-keepalive.C:
			goroutine.SafeGo(func() {
				if err := cl.listener.Ping(); err != nil {
					logger.Log.WithError(err).Debug("Ping LISTEN не прошёл")
				}
			})
		}
	}
}

func (cl *ChangeListener) Events() <-chan changesync.Event {
	return cl.events
}

func (cl *ChangeListener) States() <-chan changesync.ConnState {
	return cl.states
}

func (cl *ChangeListener) Close() error {
	var err error
	cl.once.Do(func() {
		cl.cancel()
		err = cl.listener.Close()
	})
	return err
}

package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/goroutine"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// AsyncConfig параметры пула отправки.
type AsyncConfig struct {
	Workers         int
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	SendTimeout     time.Duration
}

func (c AsyncConfig) withDefaults() AsyncConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

// AsyncDispatcher ставит уведомления в очередь и отправляет их пулом воркеров
// с экспоненциальными повторами. Dispatch не ждёт доставки.
type AsyncDispatcher struct {
	next   Dispatcher
	config AsyncConfig
	queue  chan Request

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewAsyncDispatcher(next Dispatcher, config AsyncConfig) *AsyncDispatcher {
	config = config.withDefaults()
	return &AsyncDispatcher{
		next:   next,
		config: config,
		queue:  make(chan Request, config.QueueSize),
	}
}

// Start запускает воркеры. Они работают до Stop или отмены ctx.
func (d *AsyncDispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			defer d.wg.Done()
			d.worker(ctx)
		})
	}
}

// Dispatch кладёт уведомление в очередь. Ошибка только при переполнении или остановке.
func (d *AsyncDispatcher) Dispatch(_ context.Context, req Request) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return apperror.New(apperror.ErrCodeNotificationFailed, "очередь уведомлений остановлена")
	}

	select {
	case d.queue <- req:
		return nil
	default:
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return apperror.New(apperror.ErrCodeNotificationFailed, "очередь уведомлений переполнена")
	}
}

// Stop перестаёт принимать уведомления, дорабатывает очередь и ждёт воркеры.
func (d *AsyncDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *AsyncDispatcher) worker(ctx context.Context) {
	for req := range d.queue {
		d.deliver(ctx, req)
	}
}

func (d *AsyncDispatcher) deliver(ctx context.Context, req Request) {
	log := logger.Log.WithFields(logrus.Fields{
		"proposal_id": req.ProposalID,
		"kind":        req.Kind,
	})

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.config.InitialInterval
	policy.MaxInterval = d.config.MaxInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
		err := d.next.Dispatch(sendCtx, req)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		log.WithError(err).WithField("attempt", attempt).Debug("Попытка отправки уведомления не удалась")
		return err
	}

	var b backoff.BackOff = backoff.WithMaxRetries(policy, d.config.MaxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("attempts", attempt).Warn("Не удалось отправить уведомление клиенту")
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	log.WithField("attempts", attempt).Info("Уведомление клиенту отправлено")
}

// Package metrics счётчики Prometheus для портала предложений.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

const namespace = "proposal_portal"

var (
	// TokenValidations результат проверки capability-токена: purpose, result (ok или код ошибки).
	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validations_total",
		Help:      "Проверки capability-токенов по назначению и результату.",
	}, []string{"purpose", "result"})

	TokenRenewals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "portal_token_renewals_total",
		Help:      "Продления истёкших портальных токенов при обращении.",
	})

	// WorkflowResults исходы переходов: workflow (approve, contest, resolve, send, expire), result.
	WorkflowResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_results_total",
		Help:      "Исходы операций жизненного цикла предложения.",
	}, []string{"workflow", "result"})

	// Notifications исходы отправки уведомлений: sent, failed, dropped.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Исходы отправки уведомлений клиентам.",
	}, []string{"result"})

	SyncSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_sessions",
		Help:      "Активные сессии синхронизации владельцев.",
	})

	// SyncEvents события источника изменений по типу.
	SyncEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_events_total",
		Help:      "События изменений предложений, полученные из источника.",
	}, []string{"op"})

	// SyncResyncs полные пересинхронизации сессий: reason (overflow, reconnect, client, fetch_error).
	SyncResyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_resyncs_total",
		Help:      "Полные пересинхронизации сессий по причине.",
	}, []string{"reason"})
)

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result превращает ошибку в метку результата: ok или код AppError.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperror.CodeOf(err))
}

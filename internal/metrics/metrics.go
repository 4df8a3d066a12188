// Package metrics содержит метрики Prometheus для доски.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Количество активных live-подписок
	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newsboard",
			Name:      "live_subscriptions",
			Help:      "Number of active live-query subscriptions",
		},
	)

	// Сколько полных наборов статей доставлено подписчикам
	PushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsboard",
			Name:      "pushes_total",
			Help:      "Total number of full result sets pushed to subscribers",
		},
	)

	// Ошибки перезагрузки live-запроса
	ReloadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsboard",
			Name:      "reload_errors_total",
			Help:      "Total number of failed live-query reloads",
		},
	)

	// Количество смонтированных view в браузерах
	MountedViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newsboard",
			Name:      "mounted_views",
			Help:      "Number of board views mounted over SSE",
		},
	)

	// Попытки входа по результату
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsboard",
			Name:      "login_attempts_total",
			Help:      "Total number of administrator login attempts",
		},
		[]string{"result"},
	)
)

// Записывает результат попытки входа
func RecordLogin(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	LoginAttemptsTotal.WithLabelValues(result).Inc()
}

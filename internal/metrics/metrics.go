// Package metrics собирает метрики Prometheus для токенов и контекста пользователя.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector собирает метрики и реализует user.Recorder
type Collector struct {
	tokenDecode  *prometheus.CounterVec
	tokenIssued  prometheus.Counter
	userTransmit *prometheus.CounterVec
	rateLimited  prometheus.Counter
	httpStatus   *prometheus.CounterVec
}

// NewCollector создает Collector и регистрирует метрики в reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokenDecode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "index12306_token_decode_total",
			Help: "Token decode attempts by outcome.",
		}, []string{"outcome"}),
		tokenIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index12306_token_issued_total",
			Help: "Tokens issued.",
		}),
		userTransmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "index12306_user_transmit_total",
			Help: "Requests passed through the user transmit middleware.",
		}, []string{"authenticated"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index12306_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "index12306_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.tokenDecode,
		c.tokenIssued,
		c.userTransmit,
		c.rateLimited,
		c.httpStatus,
	)

	return c
}

// RecordDecode записывает исход декодирования токена
func (c *Collector) RecordDecode(outcome string) {
	c.tokenDecode.WithLabelValues(outcome).Inc()
}

// RecordTransmit записывает, пришел ли запрос с пользователем
func (c *Collector) RecordTransmit(authenticated bool) {
	c.userTransmit.WithLabelValues(strconv.FormatBool(authenticated)).Inc()
}

// RecordTokenIssued записывает выпуск токена
func (c *Collector) RecordTokenIssued() {
	c.tokenIssued.Inc()
}

// RecordRateLimited записывает отклоненный лимитером запрос
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordHTTPStatus записывает код ответа
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler возвращает HTTP handler для scrape
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

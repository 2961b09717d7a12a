package middleware

import (
	"net/http"
	"strconv"
	"time"

	"fitness-dashboard/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func RequestMetrics(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			defer func(begin time.Time) {
				metricsManager.HistogramRequestDuration.
					With(prometheus.Labels{"method": req.Method}).
					Observe(time.Since(begin).Seconds())
			}(time.Now())

			resp := &responseWriter{ResponseWriter: respWriter, statusCode: http.StatusOK}
			next.ServeHTTP(resp, req)

			metricsManager.CounterRequests.With(prometheus.Labels{
				"method": req.Method,
				"status": strconv.Itoa(resp.statusCode),
			}).Inc()
		})
	}
}

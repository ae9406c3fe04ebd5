package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/menulens/internal/observability/metrics"
)

// NewMetrics records request counts, latencies and in-flight requests by
// registered route. Unmatched paths are recorded as "unmatched" to keep
// label cardinality bounded.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)
			if err != nil {
				// writes the status now; the server's handler skips committed responses
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(c.Request().Method, route, c.Response().Status, time.Since(start).Seconds())
			return err
		}
	}
}

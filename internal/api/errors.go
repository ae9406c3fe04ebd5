package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// Kinds for failures that carry no domain kind
const (
	kindNotFound = "not_found"
	kindInternal = "internal"
)

// ErrorBody is the JSON error envelope. Kind and Retryable let a client
// choose between a retry affordance and a final failure state.
type ErrorBody struct {
	Kind              string `json:"kind"`
	Message           string `json:"message"`
	Retryable         bool   `json:"retryable"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// statusFor maps a domain error to an HTTP status
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindInvalidRequest:
		return http.StatusBadRequest
	case errors.KindUnsupportedImage:
		return http.StatusUnprocessableEntity
	case errors.KindExtractionFailed:
		if errors.IsKind(err, errors.KindUnsupportedImage) {
			return http.StatusUnprocessableEntity
		}
		if errors.Retryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case errors.KindRateLimited:
		return http.StatusTooManyRequests
	case errors.KindGenerationFailed:
		if errors.ClassOf(err) == errors.ClassTransient {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the status and envelope for err
func errorBody(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.KindOf(err) == "" && errors.As(err, &he) {
		body := ErrorBody{Kind: string(errors.KindInvalidRequest), Message: fmt.Sprint(he.Message)}
		switch {
		case he.Code == http.StatusNotFound:
			body.Kind = kindNotFound
		case he.Code >= http.StatusInternalServerError:
			body.Kind = kindInternal
		}
		return he.Code, body
	}

	kind := string(errors.KindOf(err))
	if kind == "" {
		kind = kindInternal
	}
	body := ErrorBody{
		Kind:      kind,
		Message:   errors.UserMessage(err),
		Retryable: errors.Retryable(err),
	}
	if d := errors.RetryAfterOf(err); d > 0 {
		body.RetryAfterSeconds = int(math.Ceil(d.Seconds()))
	}
	return statusFor(err), body
}

// handleError is the echo error handler. Responses already written by a
// handler or by the metrics middleware are left alone.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorBody(err)
	body.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	if body.RetryAfterSeconds > 0 {
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(body.RetryAfterSeconds))
	}

	route := c.Path()
	if route == "" {
		route = "unmatched"
	}
	s.httpMetrics().RecordError(route, body.Kind)

	log := s.log.WithContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("route", route),
			logger.Int("status", status),
			logger.String("kind", body.Kind),
			logger.Error(err))
	} else {
		log.Debug("request rejected",
			logger.String("route", route),
			logger.Int("status", status),
			logger.String("kind", body.Kind),
			logger.Error(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, errorResponse{Error: body})
	}
	if werr != nil {
		log.Warn("failed to write error response", logger.Error(werr))
	}
}

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.HTTP
}

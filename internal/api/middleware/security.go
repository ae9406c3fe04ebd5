package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// one year, in seconds
const defaultHSTSMaxAge = 31536000

// apiCSP fits a JSON API that also serves generated images from its own origin
const apiCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'none'"

// SecurityConfig holds the CORS and response header policy.
type SecurityConfig struct {
	AllowedOrigins        []string
	HSTSMaxAge            int
	ContentSecurityPolicy string
}

// APISecurity returns the policy for the menu API. An empty origin list
// allows any origin.
func APISecurity(origins []string) SecurityConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return SecurityConfig{
		AllowedOrigins:        origins,
		HSTSMaxAge:            defaultHSTSMaxAge,
		ContentSecurityPolicy: apiCSP,
	}
}

// NewCORS allows browser clients on the configured origins. The API
// uses no cookies, so credentials are never allowed.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
		},
		// clients read Retry-After to schedule a retry of rate limited requests
		ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderRetryAfter},
		MaxAge:        600,
	})
}

// NewSecureHeaders sets nosniff, frame and HSTS headers plus the CSP.
func NewSecureHeaders(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            config.HSTSMaxAge,
		ContentSecurityPolicy: config.ContentSecurityPolicy,
	})
}

// NewBodyLimit rejects request bodies larger than limit, e.g. "12MB".
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}

// NewGzip compresses API responses. Artifacts are already compressed
// images and promhttp negotiates its own encoding.
func NewGzip() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
	})
}

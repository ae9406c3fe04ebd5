package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/menu"
	"github.com/tphakala/menulens/internal/ocr"
)

// extractRequest is the JSON form of an extraction request. Image is a data
// URL, bare base64 or an http(s) URL.
type extractRequest struct {
	Image  string `json:"image"`
	Target string `json:"target"`
	Warm   bool   `json:"warm"`
	Style  string `json:"style"`
}

// ExtractResponse is a menu plus per-dish warm-up outcomes when requested.
type ExtractResponse struct {
	*menu.Menu
	Warm []WarmItem `json:"warm,omitempty"`
}

// WarmItem is the outcome of one dish image request during warm-up.
type WarmItem struct {
	Slug     string               `json:"slug"`
	Artifact *generation.Artifact `json:"artifact,omitempty"`
	Error    *ErrorBody           `json:"error,omitempty"`
}

type warmRequest struct {
	Style  string      `json:"style"`
	Dishes []menu.Dish `json:"dishes"`
}

// extractMenu handles POST /api/v1/menu/extract. The image arrives as a
// multipart "image" file, a raw image/* body or a JSON extractRequest.
func (s *Server) extractMenu(c echo.Context) error {
	ctx := c.Request().Context()

	req, image, err := s.readExtractRequest(c)
	if err != nil {
		return err
	}
	if req.Target == "" {
		req.Target = s.config.TranslateTarget
	}

	m, err := s.extractor.Extract(ctx, image, req.Target)
	if err != nil {
		return err
	}

	resp := ExtractResponse{Menu: m}
	if s.images != nil {
		if req.Warm {
			resp.Warm = warmItems(s.images.WarmMenu(ctx, m, req.Style))
		} else {
			s.images.Remember(m)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) readExtractRequest(c echo.Context) (extractRequest, []byte, error) {
	ctx := c.Request().Context()
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		req := extractRequest{
			Target: c.FormValue("target"),
			Style:  c.FormValue("style"),
			Warm:   parseBool(c.FormValue("warm")),
		}
		fh, err := c.FormFile("image")
		if err != nil {
			return req, nil, errors.InvalidRequest("api", "multipart field \"image\" is required")
		}
		image, err := s.readUpload(fh)
		return req, image, err

	case strings.HasPrefix(contentType, "image/"), contentType == echo.MIMEOctetStream:
		req := extractRequest{
			Target: c.QueryParam("target"),
			Style:  c.QueryParam("style"),
			Warm:   parseBool(c.QueryParam("warm")),
		}
		image, err := s.readLimited(c.Request().Body)
		return req, image, err

	default:
		var req extractRequest
		if err := c.Bind(&req); err != nil {
			return req, nil, errors.InvalidRequest("api", "request body must be JSON with an \"image\" field")
		}
		if req.Image == "" {
			return req, nil, errors.InvalidRequest("api", "\"image\" is required")
		}
		image, err := ocr.LoadImage(ctx, req.Image, s.loadOpts)
		return req, image, err
	}
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.UnsupportedImage("unreadable upload")
	}
	defer f.Close()
	return s.readLimited(f)
}

func (s *Server) readLimited(r io.Reader) ([]byte, error) {
	limit := s.loadOpts.MaxBytes
	if limit <= 0 {
		limit = ocr.DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.UnsupportedImage("unreadable upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.UnsupportedImage("image exceeds " + strconv.FormatInt(limit, 10) + " bytes")
	}
	if len(data) == 0 {
		return nil, errors.UnsupportedImage("empty image")
	}
	return data, nil
}

// dishImage handles GET /api/v1/dishes/:slug/image. The call returns once
// the image exists, waiting on an in-flight generation when there is one.
// With redirect=true the client is sent to the artifact itself.
func (s *Server) dishImage(c echo.Context) error {
	return s.serveDishImage(c, parseBool(c.QueryParam("force")))
}

// regenerateDishImage handles POST /api/v1/dishes/:slug/image, which always
// mints a new key epoch.
func (s *Server) regenerateDishImage(c echo.Context) error {
	return s.serveDishImage(c, true)
}

func (s *Server) serveDishImage(c echo.Context, force bool) error {
	slug := c.Param("slug")
	style := c.QueryParam("style")
	opts := generation.RequestOptions{
		Force:      force,
		Name:       c.QueryParam("name"),
		Translated: c.QueryParam("translated"),
	}

	artifact, err := s.images.Request(c.Request().Context(), slug, style, opts)
	if err != nil {
		return err
	}
	if parseBool(c.QueryParam("redirect")) {
		return c.Redirect(http.StatusFound, artifact.URL)
	}
	return c.JSON(http.StatusOK, artifact)
}

// warmMenu handles POST /api/v1/menu/warm for a menu extracted earlier.
func (s *Server) warmMenu(c echo.Context) error {
	var req warmRequest
	if err := c.Bind(&req); err != nil {
		return errors.InvalidRequest("api", "request body must be JSON with a \"dishes\" array")
	}
	if err := s.checkBatch(len(req.Dishes)); err != nil {
		return err
	}

	m := &menu.Menu{Dishes: req.Dishes}
	results := s.images.WarmMenu(c.Request().Context(), m, req.Style)
	return c.JSON(http.StatusOK, map[string]any{"results": warmItems(results)})
}

// checkBatch rejects empty batches and batches over the configured cap.
func (s *Server) checkBatch(n int) error {
	switch {
	case n == 0:
		return errors.InvalidRequest("api", "\"dishes\" must not be empty")
	case n > s.config.MaxBatchDishes:
		return errors.InvalidRequest("api", fmt.Sprintf("at most %d dishes per request, got %d", s.config.MaxBatchDishes, n))
	}
	return nil
}

func warmItems(results []generation.WarmResult) []WarmItem {
	items := make([]WarmItem, len(results))
	for i, r := range results {
		items[i] = WarmItem{Slug: r.Slug}
		if r.Err != nil {
			_, body := errorBody(r.Err)
			items[i].Error = &body
			continue
		}
		artifact := r.Artifact
		items[i].Artifact = &artifact
	}
	return items
}

// health handles GET /health. Any failing dependency check turns the
// answer into 503.
func (s *Server) health(c echo.Context) error {
	uptime := time.Since(s.startTime)
	status, code := "healthy", http.StatusOK

	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(c.Request().Context()); err != nil {
			checks[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":         status,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.build != nil {
		body["version"] = s.build.GetVersion()
		body["build_date"] = s.build.GetBuildDate()
		body["system_id"] = s.build.GetSystemID()
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	return c.JSON(code, body)
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

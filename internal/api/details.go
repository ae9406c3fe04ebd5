package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/menulens/internal/details"
	"github.com/tphakala/menulens/internal/errors"
)

// DishDetails describes dishes for diners.
type DishDetails interface {
	Name() string
	Describe(ctx context.Context, req details.Request) (details.Details, error)
	DescribeBatch(ctx context.Context, reqs []details.Request) ([]details.Details, error)
}

type detailsBatchRequest struct {
	Dishes []details.Request `json:"dishes"`
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// TranslateResponse is the answer of POST /api/v1/translate.
type TranslateResponse struct {
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text"`
	Target         string `json:"target"`
	Provider       string `json:"provider"`
}

// dishDetails handles POST /api/v1/dishes/:slug/details. The body is
// optional and carries the names a provider needs to describe a dish it
// has not seen.
func (s *Server) dishDetails(c echo.Context) error {
	var req details.Request
	if err := c.Bind(&req); err != nil {
		return errors.InvalidRequest("api", "request body must be JSON")
	}
	req.Slug = c.Param("slug")

	d, err := s.details.Describe(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// batchDishDetails handles POST /api/v1/dishes/details.
func (s *Server) batchDishDetails(c echo.Context) error {
	var req detailsBatchRequest
	if err := c.Bind(&req); err != nil {
		return errors.InvalidRequest("api", "request body must be JSON with a \"dishes\" array")
	}
	if err := s.checkBatch(len(req.Dishes)); err != nil {
		return err
	}

	out, err := s.details.DescribeBatch(c.Request().Context(), req.Dishes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"details": out})
}

// translateText handles POST /api/v1/translate for a single text.
func (s *Server) translateText(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return errors.InvalidRequest("api", "request body must be JSON with a \"text\" field")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return errors.InvalidRequest("api", "\"text\" is required")
	}
	if req.Target == "" {
		req.Target = s.config.TranslateTarget
	}

	out, err := s.translator.Translate(c.Request().Context(), []string{req.Text}, req.Target)
	if err != nil {
		if errors.KindOf(err) != "" {
			return err
		}
		return errors.ProviderUnavailable("api", s.translator.Name(), err)
	}
	if len(out) != 1 {
		return errors.ProviderUnavailable("api", s.translator.Name(), errors.NewStd("translator returned no text"))
	}
	return c.JSON(http.StatusOK, TranslateResponse{
		Text:           req.Text,
		TranslatedText: out[0],
		Target:         req.Target,
		Provider:       s.translator.Name(),
	})
}

package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/httpclient"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

const (
	visionProviderName      = "vision"
	defaultVisionEndpoint   = "https://vision.googleapis.com/v1/images:annotate"
	defaultVisionMaxResults = 50
	// the annotate API reports no per-annotation confidence for TEXT_DETECTION
	defaultVisionConfidence = 0.9
)

func init() {
	Register(visionProviderName, func(_ context.Context, settings *conf.OCRSettings, deps Deps) (Provider, error) {
		return NewVision(&settings.Vision, deps.HTTP, deps.Log)
	})
}

// Vision calls the Google Cloud Vision images:annotate REST endpoint with an
// API key.
type Vision struct {
	client     *httpclient.Client
	endpoint   string
	apiKey     string
	maxResults int
	hints      []string
	log        logger.Logger
}

// NewVision creates a Vision provider.
func NewVision(settings *conf.VisionSettings, client *httpclient.Client, log logger.Logger) (*Vision, error) {
	if settings.APIKey == "" {
		return nil, errors.Newf("vision OCR provider requires an API key").
			Component("ocr").
			Category(errors.CategoryConfiguration).
			Context("provider", visionProviderName).
			Build()
	}
	v := &Vision{
		client:     client,
		endpoint:   settings.Endpoint,
		apiKey:     settings.APIKey,
		maxResults: settings.MaxResults,
		hints:      settings.LanguageHints,
		log:        log,
	}
	if v.endpoint == "" {
		v.endpoint = defaultVisionEndpoint
	}
	if v.maxResults <= 0 {
		v.maxResults = defaultVisionMaxResults
	}
	if v.client == nil {
		v.client = httpclient.New(nil)
	}
	if v.log == nil {
		v.log = logger.Global().Module("ocr")
	}
	v.log = v.log.With(logger.String("provider", visionProviderName))
	return v, nil
}

// Name implements Provider.
func (v *Vision) Name() string { return visionProviderName }

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type visionRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features     []visionFeature `json:"features"`
	ImageContext *struct {
		LanguageHints []string `json:"languageHints"`
	} `json:"imageContext,omitempty"`
}

// Extract implements Provider.
func (v *Vision) Extract(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	if _, err := ValidateImage(image); err != nil {
		return nil, err
	}

	var req visionRequest
	req.Image.Content = base64.StdEncoding.EncodeToString(image)
	req.Features = []visionFeature{{Type: "TEXT_DETECTION", MaxResults: v.maxResults}}
	if len(v.hints) > 0 {
		req.ImageContext = &struct {
			LanguageHints []string `json:"languageHints"`
		}{LanguageHints: v.hints}
	}
	payload := map[string][]visionRequest{"requests": {req}}

	endpoint := v.endpoint + "?" + url.Values{"key": {v.apiKey}}.Encode()

	start := time.Now()
	body, err := v.client.PostJSON(ctx, endpoint, payload)
	if err != nil {
		return nil, v.classify(err)
	}

	lines, err := parseVisionResponse(body)
	if err != nil {
		return nil, err
	}
	v.log.Debug("vision OCR completed",
		logger.Int("lines", len(lines)),
		logger.Duration("duration", time.Since(start)))
	return lines, nil
}

// classify maps transport and HTTP failures. Credential, billing, quota and
// server problems make the provider unavailable; a rejected request means the
// image itself is the problem.
func (v *Vision) classify(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return errors.ProviderUnavailable("ocr", visionProviderName, scrubKey(err, v.apiKey))
	}

	reason := statusErr.Body
	if obj, jerr := jason.NewObjectFromBytes([]byte(statusErr.Body)); jerr == nil {
		if msg, merr := obj.GetString("error", "message"); merr == nil {
			reason = msg
		}
		if details, derr := obj.GetObjectArray("error", "details"); derr == nil {
			for _, d := range details {
				if r, rerr := d.GetString("reason"); rerr == nil && r != "" {
					reason = r + ": " + reason
					break
				}
			}
		}
	}

	v.log.Warn("vision OCR request rejected",
		logger.Int("status", statusErr.Code),
		logger.String("reason", reason))

	switch {
	case statusErr.Code == http.StatusBadRequest && !strings.Contains(reason, "API key"):
		return errors.UnsupportedImage(reason)
	default:
		return errors.ProviderUnavailable("ocr", visionProviderName,
			fmt.Errorf("status %d: %s", statusErr.Code, reason))
	}
}

// parseVisionResponse reads responses[0].textAnnotations. The first annotation
// is the whole text block and is skipped; the rest are individual lines.
func parseVisionResponse(body []byte) ([]menu.TextLine, error) {
	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, errors.ProviderUnavailable("ocr", visionProviderName, fmt.Errorf("decode response: %w", err))
	}
	responses, err := root.GetObjectArray("responses")
	if err != nil || len(responses) == 0 {
		return nil, nil
	}
	first := responses[0]
	if msg, err := first.GetString("error", "message"); err == nil && msg != "" {
		return nil, errors.UnsupportedImage(msg)
	}

	annotations, err := first.GetObjectArray("textAnnotations")
	if err != nil || len(annotations) < 2 {
		return nil, nil
	}

	lines := make([]menu.TextLine, 0, len(annotations)-1)
	for _, ann := range annotations[1:] {
		text, err := ann.GetString("description")
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		confidence := defaultVisionConfidence
		if c, err := ann.GetFloat64("confidence"); err == nil && c > 0 && c <= 1 {
			confidence = c
		}
		lines = append(lines, menu.TextLine{
			Text:       text,
			Confidence: confidence,
			Box:        visionBox(ann),
		})
	}
	return lines, nil
}

func visionBox(ann *jason.Object) menu.Box {
	var box menu.Box
	vertices, err := ann.GetObjectArray("boundingPoly", "vertices")
	if err != nil {
		return box
	}
	for i := 0; i < len(vertices) && i < len(box); i++ {
		// absent coordinates are zero in the API's encoding
		x, _ := vertices[i].GetFloat64("x")
		y, _ := vertices[i].GetFloat64("y")
		box[i] = menu.Point{X: x, Y: y}
	}
	return box
}

// scrubKey removes the API key from transport errors, which embed the URL.
func scrubKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.NewStd(strings.ReplaceAll(err.Error(), key, "[REDACTED]"))
}

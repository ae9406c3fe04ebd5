// Package gemini holds the pieces shared by every component that talks to
// the Gemini API: client construction, JSON answer cleanup and failure
// classification.
package gemini

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/errors"
)

// Options configures a Gemini client.
type Options struct {
	APIKey string
	// HTTPClient and BaseURL are optional, tests point them at a local server
	HTTPClient *http.Client
	BaseURL    string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, opts Options) (*genai.Client, error) {
	if opts.APIKey == "" {
		return nil, errors.Newf("gemini API key is not configured").
			Component("gemini").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// StripCodeFence removes a surrounding Markdown code fence, with or without a
// language tag, from a model answer.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty gemini response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response has no text")
	}
	return b.String(), nil
}

// Failure describes how a failed Gemini call should be treated.
type Failure struct {
	// Unavailable is a credential, billing or connectivity problem; another
	// provider may still succeed.
	Unavailable bool
	Class       errors.Class
	StatusCode  int
}

// Classify inspects err from the genai SDK.
//
// Throttling, timeouts and server errors are transient. Missing credentials,
// disabled billing and network failures make the provider unavailable.
// Everything else, notably invalid arguments and safety rejections, is
// permanent.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}
	if code, status, ok := apiErrorCode(err); ok {
		f := Failure{StatusCode: code, Class: errors.ClassPermanent}
		switch {
		case code == http.StatusTooManyRequests && status == "RESOURCE_EXHAUSTED" && isQuotaMessage(err):
			// hard quota exhaustion, retrying will not help
		case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
			f.Class = errors.ClassTransient
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			f.Unavailable = true
			f.Class = errors.ClassTransient
		}
		return f
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return Failure{Class: errors.ClassTransient}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return Failure{Unavailable: true, Class: errors.ClassTransient}
	}
	return Failure{Class: errors.ClassPermanent}
}

func apiErrorCode(err error) (code int, status string, ok bool) {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}

func isQuotaMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") && !strings.Contains(msg, "per minute")
}

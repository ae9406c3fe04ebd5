package translate

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func textLines(texts ...string) []menu.TextLine {
	out := make([]menu.TextLine, len(texts))
	for i, s := range texts {
		out[i] = menu.TextLine{Text: s, Confidence: 0.9, Box: menu.RectBox(0, float64(i*40), 300, 30)}
	}
	return out
}

// upperTranslator upper-cases texts and records every batch it receives
type upperTranslator struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (u *upperTranslator) Name() string { return "upper" }

func (u *upperTranslator) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	u.mu.Lock()
	u.batches = append(u.batches, append([]string(nil), texts...))
	u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = strings.ToUpper(s)
	}
	return out, nil
}

package ocr

import (
	"context"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/menu"
)

func init() {
	Register("mock", func(_ context.Context, _ *conf.OCRSettings, _ Deps) (Provider, error) {
		return NewMock(), nil
	})
}

const mockConfidence = 0.95

// mockLines is a small printed Chinese lunch menu, each dish followed by its
// price. The section headings 凉菜 and 汤类 are printed as wide and as
// clearly as the dishes, so the narrow-header rule keeps them and they come
// out as dishes too.
var mockLines = []struct {
	text           string
	x1, y1, x2, y2 float64
}{
	{"凉菜", 100, 50, 200, 80},
	{"花生豆腐汤", 100, 100, 250, 130},
	{"8元", 300, 100, 350, 130},
	{"鱼香肉丝套餐", 100, 150, 280, 180},
	{"8元", 300, 150, 350, 180},
	{"宫保鸡丁套餐", 100, 200, 280, 230},
	{"8元", 300, 200, 350, 230},
	{"汤类", 100, 250, 200, 280},
	{"花蛤豆腐汤", 100, 300, 250, 330},
	{"8元", 300, 300, 350, 330},
}

// Mock is a deterministic provider that returns the same menu for every
// decodable image. It is the default fallback when real providers are down.
type Mock struct {
	// Lines overrides the built-in menu when set
	Lines []menu.TextLine
	// SkipValidation accepts any non-empty input
	SkipValidation bool
}

// NewMock returns the built-in mock provider.
func NewMock() *Mock { return &Mock{} }

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Extract implements Provider.
func (m *Mock) Extract(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.SkipValidation {
		if _, err := ValidateImage(image); err != nil {
			return nil, err
		}
	}
	if m.Lines != nil {
		out := make([]menu.TextLine, len(m.Lines))
		copy(out, m.Lines)
		return out, nil
	}
	return MockLines(), nil
}

// MockLines returns a fresh copy of the built-in mock menu.
func MockLines() []menu.TextLine {
	out := make([]menu.TextLine, len(mockLines))
	for i, l := range mockLines {
		out[i] = menu.TextLine{
			Text:       l.text,
			Confidence: mockConfidence,
			Box:        menu.RectBox(l.x1, l.y1, l.x2-l.x1, l.y2-l.y1),
		}
	}
	return out
}

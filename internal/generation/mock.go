package generation

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
)

const mockImageSize = 64

// MockGenerator draws a solid square whose colour is derived from the slug.
// It never fails and never leaves the process.
type MockGenerator struct {
	calls atomic.Int64
}

// NewMockGenerator creates a mock generator.
func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

// Name implements Generator.
func (m *MockGenerator) Name() string { return "mock" }

// Calls returns the number of Generate calls so far.
func (m *MockGenerator) Calls() int64 { return m.calls.Load() }

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt Prompt) (Image, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt.Slug + ":" + prompt.Style))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, mockImageSize, mockImageSize))
	for x := range mockImageSize {
		for y := range mockImageSize {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, err
	}
	return Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

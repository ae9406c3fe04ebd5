package analysis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

// ExtractOptions controls FileAnalysis.
type ExtractOptions struct {
	Target string
	// Warm requests an image for every extracted dish
	Warm  bool
	Style string
}

// WarmOutcome is the JSON form of one warm-up result.
type WarmOutcome struct {
	Slug     string               `json:"slug"`
	Artifact *generation.Artifact `json:"artifact,omitempty"`
	Error    string               `json:"error,omitempty"`
	Kind     string               `json:"kind,omitempty"`
}

// FileReport is what the extract command prints.
type FileReport struct {
	*menu.Menu
	Warm []WarmOutcome `json:"warm,omitempty"`
}

// FileAnalysis extracts the menu in source and writes it to out as
// indented JSON. A failure to warm dish images is reported per dish and
// does not fail the call.
func FileAnalysis(ctx context.Context, r *Runtime, source string, opts ExtractOptions, out io.Writer) (*FileReport, error) {
	image, err := r.ReadImage(ctx, source)
	if err != nil {
		return nil, err
	}
	m, err := r.Pipeline.Extract(ctx, image, opts.Target)
	if err != nil {
		return nil, err
	}
	r.log.Info("menu extracted",
		logger.Int("dishes", len(m.Dishes)),
		logger.String("language", m.DetectedLang.Tag))

	report := &FileReport{Menu: m}
	if opts.Warm {
		if err := r.OpenImages(ctx); err != nil {
			return nil, err
		}
		for _, res := range r.Images.WarmMenu(ctx, m, opts.Style) {
			report.Warm = append(report.Warm, warmOutcome(res))
		}
	}

	if out != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(report); err != nil {
			return report, err
		}
	}
	return report, nil
}

package analysis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tphakala/menulens/internal/details"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
)

// DescribeDishes looks up details for dishes and writes them to out as JSON.
func DescribeDishes(ctx context.Context, r *Runtime, reqs []details.Request, out io.Writer) ([]details.Details, error) {
	if r.Details == nil {
		return nil, errors.Newf("dish details are disabled, set details.provider").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	described, err := r.Details.DescribeBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	r.log.Info("dish details ready",
		logger.String("provider", r.Details.Name()),
		logger.Int("dishes", len(described)))

	if out != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(described); err != nil {
			return described, err
		}
	}
	return described, nil
}

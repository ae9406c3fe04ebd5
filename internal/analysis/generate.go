package analysis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/logger"
)

// GenerateOptions controls GenerateDish.
type GenerateOptions struct {
	Style      string
	Name       string
	Translated string
	Force      bool
}

// GenerateDish returns the image for one dish, generating it unless a
// persisted artifact already exists, and writes the artifact to out as JSON.
func GenerateDish(ctx context.Context, r *Runtime, slug string, opts GenerateOptions, out io.Writer) (generation.Artifact, error) {
	if err := r.OpenImages(ctx); err != nil {
		return generation.Artifact{}, err
	}
	artifact, err := r.Images.Request(ctx, slug, opts.Style, generation.RequestOptions{
		Force:      opts.Force,
		Name:       opts.Name,
		Translated: opts.Translated,
	})
	if err != nil {
		return generation.Artifact{}, err
	}
	r.log.Info("dish image ready",
		logger.String("key", artifact.Key),
		logger.String("url", artifact.URL))

	if out != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(artifact); err != nil {
			return artifact, err
		}
	}
	return artifact, nil
}

func warmOutcome(res generation.WarmResult) WarmOutcome {
	o := WarmOutcome{Slug: res.Slug}
	if res.Err != nil {
		o.Error = errors.UserMessage(res.Err)
		o.Kind = string(errors.KindOf(res.Err))
		return o
	}
	artifact := res.Artifact
	o.Artifact = &artifact
	return o
}

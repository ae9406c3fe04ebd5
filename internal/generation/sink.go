package generation

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/menulens/internal/errors"
)

// Sink stores a generated image and returns the URL it is served at.
type Sink interface {
	Store(ctx context.Context, key Key, img Image) (string, error)
}

// FileSink writes images below Dir and serves them under BaseURL.
type FileSink struct {
	Dir     string
	BaseURL string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir, baseURL string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("create artifacts directory: %w", err)).
			Component("generation").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	return &FileSink{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// RelativePath is where the artifact for key lives below Dir.
func RelativePath(key Key, mimeType string) string {
	return filepath.Join(key.Slug, fmt.Sprintf("%s-e%d%s", key.Style, key.Epoch, extensionFor(mimeType)))
}

// Store implements Sink. The file is written under a temporary name and
// renamed so readers never see a partial image.
func (s *FileSink) Store(ctx context.Context, key Key, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", errors.GenerationFailed(errors.ClassTransient, fmt.Errorf("generator returned no image data"))
	}

	if err := key.Validate(); err != nil {
		return "", errors.GenerationFailed(errors.ClassPermanent, err)
	}
	rel := RelativePath(key, img.MIMEType)
	path := filepath.Join(s.Dir, rel)
	if !within(s.Dir, path) {
		return "", errors.GenerationFailed(errors.ClassPermanent,
			fmt.Errorf("artifact path %q escapes %q", rel, s.Dir))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", s.ioError(err, path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", s.ioError(err, path)
	}
	if _, err := tmp.Write(img.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", s.ioError(err, path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", s.ioError(err, path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", s.ioError(err, path)
	}

	return s.BaseURL + "/" + url.PathEscape(key.Slug) + "/" + url.PathEscape(filepath.Base(rel)), nil
}

// within reports whether path is dir or below it
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *FileSink) ioError(err error, path string) error {
	return errors.New(fmt.Errorf("store generated image: %w", err)).
		Component("generation").
		Category(errors.CategoryFileIO).
		Kind(errors.KindGenerationFailed).
		Class(errors.ClassTransient).
		Context("path", path).
		Build()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

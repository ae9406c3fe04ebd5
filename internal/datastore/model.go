package datastore

import (
	"time"

	"github.com/tphakala/menulens/internal/generation"
)

// GeneratedImage is one succeeded generation record. Pending and failed
// records are never persisted.
type GeneratedImage struct {
	ID        uint      `gorm:"primaryKey"`
	CacheKey  string    `gorm:"column:cache_key;size:255;uniqueIndex;not null"`
	Slug      string    `gorm:"size:191;index:idx_generated_images_slug_style;not null"`
	Style     string    `gorm:"size:64;index:idx_generated_images_slug_style;not null"`
	Epoch     uint64    `gorm:"not null;default:0"`
	URL       string    `gorm:"size:1024;not null"`
	MIMEType  string    `gorm:"column:mime_type;size:64"`
	Provider  string    `gorm:"size:32"`
	Prompt    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func fromArtifact(a *generation.Artifact) GeneratedImage {
	return GeneratedImage{
		CacheKey:  a.Key,
		Slug:      a.Slug,
		Style:     a.Style,
		Epoch:     a.Epoch,
		URL:       a.URL,
		MIMEType:  a.MIMEType,
		Provider:  a.Provider,
		Prompt:    a.Prompt,
		CreatedAt: a.CreatedAt,
	}
}

func (g *GeneratedImage) artifact() generation.Artifact {
	return generation.Artifact{
		Key:       g.CacheKey,
		Slug:      g.Slug,
		Style:     g.Style,
		Epoch:     g.Epoch,
		URL:       g.URL,
		MIMEType:  g.MIMEType,
		Provider:  g.Provider,
		Prompt:    g.Prompt,
		CreatedAt: g.CreatedAt,
	}
}

package translate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/menulens/internal/errors"
)

// builtinGlossary is the offline English glossary for common Chinese menu
// entries.
var builtinGlossary = map[string]map[string]string{
	"en": {
		"凉菜":     "Cold Dishes",
		"花生豆腐汤":  "Peanut Tofu Soup",
		"8元":     "8 Yuan",
		"鱼香肉丝套餐": "Fish-Flavored Shredded Pork Set",
		"宫保鸡丁套餐": "Kung Pao Chicken Set",
		"汤类":     "Soups",
		"花蛤豆腐汤":  "Clam Tofu Soup",
	},
}

// Dictionary translates from a glossary. Unknown texts are returned as is.
type Dictionary struct {
	mu      sync.RWMutex
	entries map[string]map[string]string // target -> source -> translation
}

// NewDictionary returns a dictionary seeded with the built-in glossary.
func NewDictionary() *Dictionary {
	d := &Dictionary{entries: make(map[string]map[string]string)}
	d.Merge(builtinGlossary)
	return d
}

// Name implements Translator.
func (d *Dictionary) Name() string { return "dictionary" }

// Merge adds glossary entries, replacing existing ones.
func (d *Dictionary) Merge(glossary map[string]map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for target, entries := range glossary {
		key := normalizeTarget(target)
		if d.entries[key] == nil {
			d.entries[key] = make(map[string]string, len(entries))
		}
		for src, dst := range entries {
			d.entries[key][strings.TrimSpace(src)] = dst
		}
	}
}

// LoadGlossaryFile merges a YAML glossary keyed by target language:
//
//	en:
//	  麻婆豆腐: Mapo Tofu
//	de:
//	  麻婆豆腐: Mapo-Tofu
func (d *Dictionary) LoadGlossaryFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(fmt.Errorf("read glossary: %w", err)).
			Component("translate").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	var glossary map[string]map[string]string
	if err := yaml.Unmarshal(data, &glossary); err != nil {
		return errors.New(fmt.Errorf("parse glossary: %w", err)).
			Component("translate").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	d.Merge(glossary)
	return nil
}

// Translate implements Translator.
func (d *Dictionary) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := d.entries[normalizeTarget(target)]
	out := make([]string, len(texts))
	for i, text := range texts {
		if tr, ok := entries[strings.TrimSpace(text)]; ok {
			out[i] = tr
		} else {
			out[i] = text
		}
	}
	return out, nil
}

// normalizeTarget reduces a tag like "en-US" to its lowercase base
func normalizeTarget(target string) string {
	target = strings.ToLower(strings.TrimSpace(target))
	if base, _, ok := strings.Cut(target, "-"); ok {
		return base
	}
	return target
}

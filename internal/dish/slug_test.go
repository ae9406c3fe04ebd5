package dish

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"testing/quick"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Kung Pao Chicken", "kung-pao-chicken"},
		{"collapsed whitespace", "kung   pao\tchicken", "kung-pao-chicken"},
		{"surrounding space", "  Mapo Tofu \n", "mapo-tofu"},
		{"diacritics", "Crème Brûlée", "creme-brulee"},
		{"punctuation removed", "Mom's Noodles!", "moms-noodles"},
		{"dash is a word break", "Dan-Dan Noodles", "dan-dan-noodles"},
		{"emoji stripped", "Spicy 🌶️ Wontons", "spicy-wontons"},
		{"fullwidth folded", "ＡＢＣ　Ｓｏｕｐ", "abc-soup"},
		{"cjk kept", "宫保鸡丁套餐", "宫保鸡丁套餐"},
		{"digits kept", "Set 2", "set-2"},
		{"sharp s folds", "Weißwurst", "weisswurst"},
		{"only symbols", "*** --- !!!", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Slug(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Kung Pao Chicken", Normalize("  Kung \t Pao\n\nChicken  "))
	assert.Equal(t, "Hot Pot", Normalize("Hot 🔥 Pot"))
	assert.Equal(t, "Tofu", Normalize("To\u200bfu\x00"))
	assert.Equal(t, "花蛤豆腐汤", Normalize("花蛤豆腐汤"))
	assert.Equal(t, "$12.99", Normalize(" $12.99 "))
	// composed and decomposed forms normalize identically
	assert.Equal(t, Normalize("Cr\u00e8me"), Normalize("Cre\u0300me"))
}

// dishName generates names from a small alphabet that includes accents,
// punctuation and mixed whitespace.
type dishName string

var nameRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZéüñçÉ0123456789 '!.-宫保鸡丁")

func (dishName) Generate(r *rand.Rand, size int) reflect.Value {
	n := r.Intn(size + 1)
	var b strings.Builder
	for range n {
		b.WriteRune(nameRunes[r.Intn(len(nameRunes))])
	}
	return reflect.ValueOf(dishName(b.String()))
}

// variant rewrites s with random casing and widened whitespace.
func variant(s string, r *rand.Rand) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", r.Intn(3)))
	for _, c := range s {
		switch {
		case c == ' ':
			b.WriteString(strings.Repeat(" ", 1+r.Intn(3)))
			if r.Intn(2) == 0 {
				b.WriteRune('\t')
			}
		case r.Intn(2) == 0:
			b.WriteRune(unicode.ToUpper(c))
		default:
			b.WriteRune(unicode.ToLower(c))
		}
	}
	b.WriteString(strings.Repeat("\n", r.Intn(2)))
	return b.String()
}

func TestSlugProperties(t *testing.T) {
	t.Parallel()

	cfg := &quick.Config{MaxCount: 500}
	rng := rand.New(rand.NewSource(42))

	deterministic := func(n dishName) bool {
		return Slug(string(n)) == Slug(string(n))
	}
	caseAndSpaceInsensitive := func(n dishName) bool {
		return Slug(string(n)) == Slug(variant(string(n), rng))
	}
	idempotent := func(n dishName) bool {
		s := Slug(string(n))
		return Slug(s) == s
	}
	normalizedEqual := func(n dishName) bool {
		return Slug(string(n)) == Slug(Normalize(string(n)))
	}
	onlyAlnumAndSeparator := func(n dishName) bool {
		s := Slug(string(n))
		if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
			return false
		}
		for _, r := range s {
			if r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return false
			}
			if unicode.IsUpper(r) {
				return false
			}
		}
		return true
	}

	for name, prop := range map[string]any{
		"deterministic":                deterministic,
		"case and space insensitive":   caseAndSpaceInsensitive,
		"idempotent":                   idempotent,
		"normalization invariant":      normalizedEqual,
		"only lowercase alnum and '-'": onlyAlnumAndSeparator,
	} {
		if err := quick.Check(prop, cfg); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

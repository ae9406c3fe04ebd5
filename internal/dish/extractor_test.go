package dish

import (
	"math/rand"
	"reflect"
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/menu"
)

func line(text string, conf float64) menu.TextLine {
	return menu.TextLine{Text: text, Confidence: conf, Box: menu.RectBox(0, 0, 400, 30)}
}

func lines(texts ...string) []menu.TextLine {
	out := make([]menu.TextLine, len(texts))
	for i, s := range texts {
		out[i] = line(s, 0.9)
	}
	return out
}

func TestExtract_DropsPricesAndHeaders(t *testing.T) {
	t.Parallel()

	dishes := NewExtractor(DefaultOptions()).Extract(lines("Kung Pao Chicken", "$12.99", "APPETIZERS"))

	require.Len(t, dishes, 1)
	assert.Equal(t, "Kung Pao Chicken", dishes[0].OriginalName)
	assert.Equal(t, "kung-pao-chicken", dishes[0].Slug)
	assert.Equal(t, []int{0}, dishes[0].SourceLineRefs)
}

func TestExtract_PriceHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		price bool
	}{
		{"$12.99", true},
		{"8元", true},
		{"¥ 38", true},
		{"12,50 €", true},
		{"120 kr", true},
		{"15-18", true},
		{"RMB 25", true},
		{"Set 2", false},
		{"2 Eggs Fried Rice", false},
		{"...", false},
		{"鱼香肉丝套餐", false},
	}
	e := NewExtractor(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.price, e.isPrice(Normalize(tt.text)))
		})
	}
}

func TestExtract_HeaderHeuristic(t *testing.T) {
	t.Parallel()

	wide := menu.RectBox(0, 0, 400, 30)
	narrow := menu.RectBox(0, 0, 60, 30)

	input := []menu.TextLine{
		{Text: "宫保鸡丁套餐", Confidence: 0.95, Box: wide},
		{Text: "汤类", Confidence: 0.5, Box: narrow},      // narrow low-confidence caseless header
		{Text: "凉菜", Confidence: 0.95, Box: narrow},     // narrow but confident, kept
		{Text: "Soups", Confidence: 0.5, Box: narrow},   // has lowercase, kept
		{Text: "DESSERTS", Confidence: 0.99, Box: wide}, // all caps
		{Text: "套餐A", Confidence: 0.95, Box: wide},      // single cased letter is not all caps
	}

	got := NewExtractor(DefaultOptions()).Extract(input)
	var names []string
	for _, d := range got {
		names = append(names, d.OriginalName)
	}
	assert.Equal(t, []string{"宫保鸡丁套餐", "凉菜", "Soups", "套餐A"}, names)
}

func TestExtract_MergeKeepsMostConfidentName(t *testing.T) {
	t.Parallel()

	tr := "Gong Bao Ji Ding"
	input := []menu.TextLine{
		line("kung   pao chicken", 0.4),
		line("Mapo Tofu", 0.8),
		line("Kung Pao Chicken", 0.92).WithTranslation(tr),
		line("KUNG pao chicken", 0.7),
	}

	dishes := NewExtractor(DefaultOptions()).Extract(input)
	require.Len(t, dishes, 2)

	kp := dishes[0]
	assert.Equal(t, "kung-pao-chicken", kp.Slug, "first-seen order")
	assert.Equal(t, "Kung Pao Chicken", kp.OriginalName)
	assert.InDelta(t, 0.92, kp.Confidence, 1e-9)
	assert.Equal(t, []int{0, 2, 3}, kp.SourceLineRefs)
	require.NotNil(t, kp.TranslatedName)
	assert.Equal(t, tr, *kp.TranslatedName)

	assert.Equal(t, "Mapo Tofu", dishes[1].OriginalName)
}

func TestExtract_TieKeepsEarliest(t *testing.T) {
	t.Parallel()

	dishes := NewExtractor(DefaultOptions()).Extract([]menu.TextLine{
		line("mapo tofu", 0.8),
		line("Mapo Tofu", 0.8),
	})
	require.Len(t, dishes, 1)
	assert.Equal(t, "mapo tofu", dishes[0].OriginalName)
	assert.Equal(t, "Mapo Tofu", dishes[0].DisplayName)
}

func TestExtract_MinConfidenceAndEmpty(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Options{MinConfidence: 0.5})
	dishes := e.Extract([]menu.TextLine{
		line("Blurry Dish", 0.3),
		line("   ", 0.9),
		line("🍜", 0.9),
		line("!!!", 0.9),
		line("Beef Noodle Soup", 0.6),
	})
	require.Len(t, dishes, 1)
	assert.Equal(t, "Beef Noodle Soup", dishes[0].OriginalName)
	assert.Equal(t, []int{4}, dishes[0].SourceLineRefs)

	assert.Empty(t, e.Extract(nil))
}

func TestExtract_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	tr := "Cold Dishes"
	input := []menu.TextLine{line("凉菜", 0.9).WithTranslation(tr)}
	before := slices.Clone(input)

	dishes := NewExtractor(DefaultOptions()).Extract(input)
	require.Len(t, dishes, 1)
	*dishes[0].TranslatedName = "changed"

	assert.Equal(t, before[0].Text, input[0].Text)
	assert.Equal(t, "Cold Dishes", *input[0].Translated)
}

// menuLines generates OCR output mixing dish variants, prices and headers.
type menuLines []menu.TextLine

var (
	dishPool   = []string{"Kung Pao Chicken", "kung pao  chicken", "Mapo Tofu", "MAPO tofu", "Crème Brûlée", "creme brulee", "花蛤豆腐汤", "Dan-Dan Noodles", "dan dan noodles"}
	pricePool  = []string{"$12.99", "8元", "¥38", "12,50 €"}
	headerPool = []string{"APPETIZERS", "SOUPS", "DESSERTS"}
)

func (menuLines) Generate(r *rand.Rand, size int) reflect.Value {
	n := r.Intn(size + 1)
	out := make(menuLines, n)
	for i := range out {
		var text string
		switch r.Intn(4) {
		case 0:
			text = pricePool[r.Intn(len(pricePool))]
		case 1:
			text = headerPool[r.Intn(len(headerPool))]
		default:
			text = dishPool[r.Intn(len(dishPool))]
		}
		out[i] = menu.TextLine{
			Text:       text,
			Confidence: float64(r.Intn(100)+1) / 100,
			Box:        menu.RectBox(0, float64(i*40), 300+float64(r.Intn(100)), 30),
		}
	}
	return reflect.ValueOf(out)
}

func TestExtractProperties(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultOptions())
	cfg := &quick.Config{MaxCount: 300}

	prop := func(in menuLines) bool {
		dishes := e.Extract(in)

		seenSlugs := map[string]bool{}
		seenRefs := map[int]bool{}
		lastFirstRef := -1
		for _, d := range dishes {
			if d.Slug == "" || seenSlugs[d.Slug] || d.Slug != Slug(d.OriginalName) {
				return false
			}
			seenSlugs[d.Slug] = true
			if len(d.SourceLineRefs) == 0 || !slices.IsSorted(d.SourceLineRefs) {
				return false
			}
			// first-seen order
			if d.SourceLineRefs[0] <= lastFirstRef {
				return false
			}
			lastFirstRef = d.SourceLineRefs[0]

			best := 0.0
			for _, ref := range d.SourceLineRefs {
				if seenRefs[ref] || Slug(in[ref].Text) != d.Slug {
					return false
				}
				seenRefs[ref] = true
				best = max(best, in[ref].Confidence)
			}
			if d.Confidence != best {
				return false
			}
			if e.isPrice(d.OriginalName) {
				return false
			}
		}
		// every price line is absent
		for i, l := range in {
			if slices.Contains(pricePool, l.Text) && seenRefs[i] {
				return false
			}
		}
		return true
	}
	if err := quick.Check(prop, cfg); err != nil {
		t.Error(err)
	}

	deterministic := func(in menuLines) bool {
		return reflect.DeepEqual(e.Extract(in), e.Extract(in))
	}
	if err := quick.Check(deterministic, cfg); err != nil {
		t.Error(err)
	}
}

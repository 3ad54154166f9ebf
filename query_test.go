package sleuth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormulateUsesBothPhrasings(t *testing.T) {
	f := NewQueryFormulator(NewSeededRand(7))
	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		q := f.Formulate("  vips_thumbnail  ")
		assert.NotEmpty(t, q)
		assert.Contains(t, q, "vips_thumbnail")
		seen[q] = true
	}
	assert.Equal(t, map[string]bool{
		"Link to vips_thumbnail png or jpg image": true,
		"href to vips_thumbnail file":             true,
	}, seen)
}

func TestFormulateIsDeterministicPerSeed(t *testing.T) {
	a := NewQueryFormulator(NewSeededRand(42))
	b := NewQueryFormulator(NewSeededRand(42))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Formulate("Azure OpenAI"), b.Formulate("Azure OpenAI"))
	}
}

type fixedRand int

func (f fixedRand) IntN(int) int { return int(f) }

func TestFormulateCustomPhrasings(t *testing.T) {
	f := NewQueryFormulator(fixedRand(1), "no placeholder", "%s documentation", "%s %s", "%s for %d", "100%% %s", "%s default values")
	assert.Equal(t, []Phrasing{"%s documentation", "100%% %s", "%s default values"}, f.Phrasings())
	assert.Equal(t, "100% Azure OpenAI", f.Formulate("Azure   OpenAI"))
	assert.Equal(t, "Azure OpenAI default values", NewQueryFormulator(fixedRand(1), "%s %s", "%s manual", "%s default values").Formulate("Azure OpenAI"))

	single := NewQueryFormulator(nil, "%s reference")
	assert.Equal(t, "reference", single.Formulate(""))
}

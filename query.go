package sleuth

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Phrasing is a fmt template with a single %s for the subject.
type Phrasing string

// Default phrasings: an asset-link framing and a hyperlink/file framing.
const (
	PhrasingAssetLink Phrasing = "Link to %s png or jpg image"
	PhrasingHyperlink Phrasing = "href to %s file"
)

// valid reports whether p has exactly one verb and it is %s.
func (p Phrasing) valid() bool {
	verbs := strings.ReplaceAll(string(p), "%%", "")
	return strings.Count(verbs, "%") == 1 && strings.Count(verbs, "%s") == 1
}

// RandSource picks an index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// NewSeededRand returns a deterministic RandSource.
func NewSeededRand(seed uint64) RandSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// QueryFormulator turns a subject into one of several search phrasings,
// chosen at random per call to diversify coverage across retries.
type QueryFormulator struct {
	phrasings []Phrasing
	rnd       RandSource
}

// NewQueryFormulator builds a formulator. A nil source uses the global
// generator; no phrasings means the two defaults.
func NewQueryFormulator(rnd RandSource, phrasings ...Phrasing) *QueryFormulator {
	if rnd == nil {
		rnd = globalRand{}
	}
	var usable []Phrasing
	for _, p := range phrasings {
		if p.valid() {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		usable = []Phrasing{PhrasingAssetLink, PhrasingHyperlink}
	}
	return &QueryFormulator{phrasings: usable, rnd: rnd}
}

// Formulate returns a search query for subject. The result is never empty.
func (f *QueryFormulator) Formulate(subject string) string {
	subject = strings.Join(strings.Fields(subject), " ")
	p := f.phrasings[0]
	if len(f.phrasings) > 1 {
		p = f.phrasings[f.rnd.IntN(len(f.phrasings))]
	}
	return strings.Join(strings.Fields(fmt.Sprintf(string(p), subject)), " ")
}

// Phrasings returns the configured templates.
func (f *QueryFormulator) Phrasings() []Phrasing {
	out := make([]Phrasing, len(f.phrasings))
	copy(out, f.phrasings)
	return out
}

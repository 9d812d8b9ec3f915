package hdc

import (
	"math"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"
)

// FeatureDim is the dimension of the intermediate n-gram accumulator before
// projection into hypervector space (spec.md §4.1: "Tokenise ... accumulate
// into accumulator slot h mod feature_dim").
const FeatureDim = 1024

// programmingVocabulary is the fixed keyword-boost vocabulary (spec.md
// §4.1: "Add keyword boosts for a fixed vocabulary (programming
// nouns/verbs)"). Grounded on the task domain named throughout spec.md
// §4.4 (knapsack, edit distance, sorting, parsing programming tasks).
var programmingVocabulary = []string{
	"function", "return", "loop", "array", "list", "dict", "map", "set",
	"string", "integer", "float", "boolean", "class", "struct", "sort",
	"search", "recursion", "recursive", "iterate", "index", "pointer",
	"stack", "queue", "tree", "graph", "node", "edge", "algorithm",
	"input", "output", "print", "read", "write", "parse", "compile",
	"variable", "constant", "condition", "branch", "exception", "error",
	"test", "assert", "compute", "calculate", "sum", "product", "count",
	"reverse", "insert", "delete", "update", "traverse", "append",
	"knapsack", "distance", "dynamic", "greedy", "backtrack", "divide",
}

var keywordSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(programmingVocabulary))
	for _, w := range programmingVocabulary {
		m[w] = struct{}{}
	}
	return m
}()

// Encoder turns task text into a deterministic Hypervector. The same text
// always produces the same vector (spec.md §4.1 Contract), because the
// n-gram hash, keyword vocabulary and projection matrix are all fixed for
// the lifetime of an Encoder.
type Encoder struct {
	mu        sync.Mutex
	dim       int
	projOnce  sync.Once
	projector *mat.Dense // dim x FeatureDim, fixed pseudo-random
	seed      uint64
}

// NewEncoder builds an encoder targeting the given hypervector dimension.
// seed fixes the pseudo-random projection matrix; spec.md's Non-goals
// explicitly exclude reproducing the original's exact random seeds, so any
// fixed seed is acceptable as long as it is stable across calls.
func NewEncoder(dim int, seed uint64) *Encoder {
	return &Encoder{dim: dim, seed: seed}
}

// Encode deterministically maps text to a Hypervector (spec.md §4.1).
func (e *Encoder) Encode(text string) *Hypervector {
	acc := e.accumulate(text)
	e.mu.Lock()
	proj := e.projectorMatrix()
	e.mu.Unlock()

	accVec := mat.NewVecDense(FeatureDim, acc)
	outVec := mat.NewVecDense(e.dim, nil)
	outVec.MulVec(proj, accVec)

	dense := make([]float64, e.dim)
	for i := 0; i < e.dim; i++ {
		dense[i] = outVec.AtVec(i)
	}
	return normalise(dense)
}

// accumulate builds the length-FeatureDim n-gram + keyword accumulator.
func (e *Encoder) accumulate(text string) []float64 {
	acc := make([]float64, FeatureDim)
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	for n := 2; n <= 3; n++ {
		for _, gram := range ngrams(lower, n) {
			h := xxhash.Sum64String(gram)
			slot := int(h % FeatureDim)
			sign := 1.0
			if (h>>1)&1 == 1 {
				sign = -1.0
			}
			acc[slot] += sign
		}
	}

	for _, tok := range tokens {
		if _, ok := keywordSet[tok]; ok {
			h := xxhash.Sum64String("kw:" + tok)
			slot := int(h % FeatureDim)
			acc[slot] += 2.0 // keyword boost, stronger than an incidental n-gram hit
		}
	}

	var sumSq float64
	for _, v := range acc {
		sumSq += v * v
	}
	if sumSq > 1e-12 {
		norm := math.Sqrt(sumSq)
		for i := range acc {
			acc[i] /= norm
		}
	}
	return acc
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// ngrams returns character n-grams of the lowercased, whitespace-collapsed
// text, per spec.md §4.1 ("extract all 2-grams and 3-grams").
func ngrams(s string, n int) []string {
	joined := strings.Join(strings.Fields(s), " ")
	runes := []rune(joined)
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

// projectorMatrix lazily builds the fixed pseudo-random projection matrix
// (dim x FeatureDim) used to map the n-gram accumulator into hypervector
// space (spec.md §4.1: "Project ... by multiplying with a fixed
// pseudo-random projection matrix").
func (e *Encoder) projectorMatrix() *mat.Dense {
	e.projOnce.Do(func() {
		rng := newSplitMix64(e.seed)
		data := make([]float64, e.dim*FeatureDim)
		for i := range data {
			// Each entry is a random sign from the low bit of a uniform
			// uint64, scaled to ±1/Dim: deterministic, cheap, good enough
			// for a fixed random projection (Johnson-Lindenstrauss style).
			u := rng.next()
			if u&1 == 0 {
				data[i] = 1.0 / float64(Dim)
			} else {
				data[i] = -1.0 / float64(Dim)
			}
		}
		e.projector = mat.NewDense(e.dim, FeatureDim, data)
	})
	return e.projector
}

// splitMix64 is a small deterministic PRNG used only to seed the fixed
// projection matrix; it need not be cryptographically strong, only stable.
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Package hdc implements the hyperdimensional-computing pattern memory:
// text encoding into bipolar hypervectors, and a concept memory that
// classifies and learns prototypes from them (spec.md §4.1).
package hdc

import (
	"math"

	"github.com/bits-and-blooms/bitset"
)

// Dim is the executor-path hypervector dimension (spec.md §3: "reference
// D=4096 for executor, D=10000 for research paths"). The research dimension
// is not exercised by the executor and is left as ResearchDim for callers
// that want it.
const (
	Dim         = 4096
	ResearchDim = 10000
)

// Hypervector is a bipolar {-1,+1} vector of fixed dimension, represented as
// a sign bitset (1 = +1, 0 = -1) for O(word) bind/permute, plus the dense
// float64 view used for bundling and cosine similarity. Keeping both views
// in sync is cheaper than recomputing one from the other on every access
// since bind/permute are called far more often than cosine.
type Hypervector struct {
	signs *bitset.BitSet
	dense []float64
	dim   uint
}

// NewHypervector allocates a zeroed hypervector of the given dimension.
func NewHypervector(dim int) *Hypervector {
	return &Hypervector{
		signs: bitset.New(uint(dim)),
		dense: make([]float64, dim),
		dim:   uint(dim),
	}
}

// FromDense builds a bipolar hypervector from a dense real vector by taking
// the sign of each component (ties resolve to +1); the dense view holds
// those ±1 values unnormalised.
func FromDense(v []float64) *Hypervector {
	hv := NewHypervector(len(v))
	for i, x := range v {
		if x >= 0 {
			hv.signs.Set(uint(i))
			hv.dense[i] = 1
		} else {
			hv.dense[i] = -1
		}
	}
	return hv
}

// Dim returns the hypervector's dimension.
func (hv *Hypervector) Dim() int { return int(hv.dim) }

// At returns the bipolar value at index i: +1 or -1.
func (hv *Hypervector) At(i int) float64 {
	if hv.signs.Test(uint(i)) {
		return 1
	}
	return -1
}

// Dense returns the dense real-valued view: ±1 entries for hypervectors
// built by FromDense, L2-normalised components for those produced through
// normalise (Bundle, Encode, Learn). Callers must not mutate the slice.
func (hv *Hypervector) Dense() []float64 { return hv.dense }

// Clone returns a deep copy.
func (hv *Hypervector) Clone() *Hypervector {
	out := &Hypervector{
		signs: hv.signs.Clone(),
		dense: make([]float64, len(hv.dense)),
		dim:   hv.dim,
	}
	copy(out.dense, hv.dense)
	return out
}

// Bind performs element-wise XOR-like binding: the XOR of the two operands'
// sign bits, i.e. the negated sign product (equal signs give -1). Binding
// is involutive — Bind(Bind(a,b), b) == a.
func Bind(a, b *Hypervector) *Hypervector {
	if a.dim != b.dim {
		panic("hdc: dimension mismatch in Bind")
	}
	out := NewHypervector(int(a.dim))
	xored := a.signs.SymmetricDifference(b.signs)
	out.signs = xored
	for i := uint(0); i < a.dim; i++ {
		if out.signs.Test(i) {
			out.dense[i] = 1
		} else {
			out.dense[i] = -1
		}
	}
	return out
}

// Permute cyclically shifts the hypervector by shift positions (can be
// negative). Used to encode sequence/position information.
func Permute(a *Hypervector, shift int) *Hypervector {
	n := int(a.dim)
	shift = ((shift % n) + n) % n
	out := NewHypervector(n)
	for i := 0; i < n; i++ {
		src := (i - shift + n) % n
		if a.signs.Test(uint(src)) {
			out.signs.Set(uint(i))
			out.dense[i] = 1
		} else {
			out.dense[i] = -1
		}
	}
	return out
}

// Bundle superimposes (element-wise sums) a set of hypervectors, then
// L2-normalises the result. Invariant (spec.md §3): after bundle+normalise
// the result has unit L2 norm.
func Bundle(vs ...*Hypervector) *Hypervector {
	if len(vs) == 0 {
		return NewHypervector(Dim)
	}
	dim := vs[0].dim
	sum := make([]float64, dim)
	for _, v := range vs {
		for i := uint(0); i < dim; i++ {
			sum[i] += v.dense[i]
		}
	}
	return normalise(sum)
}

// normalise L2-normalises a dense vector and packs it into a Hypervector,
// preserving sign for the bit-packed view.
func normalise(v []float64) *Hypervector {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	out := NewHypervector(len(v))
	if norm < 1e-12 {
		return out
	}
	for i, x := range v {
		normalised := x / norm
		out.dense[i] = normalised
		if normalised >= 0 {
			out.signs.Set(uint(i))
		}
	}
	return out
}

// Cosine returns the cosine similarity between two hypervectors' dense
// views, in [-1, 1].
func Cosine(a, b *Hypervector) float64 {
	if a.dim != b.dim {
		panic("hdc: dimension mismatch in Cosine")
	}
	var dot, na, nb float64
	for i := uint(0); i < a.dim; i++ {
		dot += a.dense[i] * b.dense[i]
		na += a.dense[i] * a.dense[i]
		nb += b.dense[i] * b.dense[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < 1e-12 {
		return 0
	}
	return dot / denom
}

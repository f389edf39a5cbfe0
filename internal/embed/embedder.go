// Package embed provides query embeddings for the semantic cache.
package embed

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deep-research/internal/model"
)

// Embedder maps text to a fixed-length vector. Implementations must be
// purely functional: same text, same vector, no side effects.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dimensions() int
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// vector is empty, zero, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Hashing is a deterministic feature-hashing embedder. Words and word
// bigrams of the normalized text are hashed into a fixed number of
// buckets and the result is L2-normalized. It needs no network, no model
// weights, and no state, which keeps cache lookups purely local.
type Hashing struct {
	dims int
}

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 256

// NewHashing creates a hashing embedder with the given dimensionality.
func NewHashing(dims int) (*Hashing, error) {
	if dims <= 0 {
		return nil, eris.Errorf("embed: dimensions must be positive, got %d", dims)
	}
	return &Hashing{dims: dims}, nil
}

// Dimensions returns the vector size.
func (h *Hashing) Dimensions() int { return h.dims }

// Embed hashes the normalized words and bigrams of text into h.dims
// buckets. Bigrams carry half the weight of single words so that shared
// vocabulary dominates but word order still contributes.
func (h *Hashing) Embed(text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	words := strings.Fields(model.NormalizeQuery(text))
	if len(words) == 0 {
		return vec, nil
	}

	for _, w := range words {
		vec[h.bucket(w)] += 1.0
	}
	for i := 0; i+1 < len(words); i++ {
		vec[h.bucket(words[i]+" "+words[i+1])] += 0.5
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (h *Hashing) bucket(token string) int {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(token))
	return int(hash.Sum32() % uint32(h.dims))
}

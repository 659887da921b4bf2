package pattern

import (
	"math"

	"lukechampine.com/blake3"
)

// Embedder turns a token stream into a fixed-length numeric vector. Any
// deterministic implementation works: the same tokens must always produce
// the same embedding. No external model is assumed or required.
type Embedder interface {
	Embed(tokens []string) []float64
	Dim() int
}

// HashEmbedder is the default embedder. It buckets tokens into a
// fixed-length frequency vector by hashing, then L2-normalizes, so cosine
// similarity over embeddings approximates token-set overlap.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder with the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// Dim returns the embedding length.
func (e *HashEmbedder) Dim() int { return e.dim }

// Embed hashes each token into a bucket and returns the normalized
// frequency vector.
func (e *HashEmbedder) Embed(tokens []string) []float64 {
	vec := make([]float64, e.dim)
	for _, tok := range tokens {
		sum := blake3.Sum256([]byte(tok))
		bucket := int(uint32(sum[0])|uint32(sum[1])<<8|uint32(sum[2])<<16|uint32(sum[3])<<24) % e.dim
		vec[bucket]++
	}
	return normalize(vec)
}

func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine computes the cosine similarity of two equal-length vectors.
// Mismatched lengths or zero vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package domain

import (
	"fmt"
	"image"
	"math"
)

// Embedding is a fixed-length face descriptor produced by a feature extractor.
type Embedding []float64

// Face is one detected face with its bounding region and descriptor.
type Face struct {
	Region    image.Rectangle
	Embedding Embedding
}

// Gallery holds index-aligned encodings and identity labels.
// Encodings[i] belongs to Names[i]. Duplicate-looking encodings for one
// identity are expected and kept.
type Gallery struct {
	Encodings []Embedding `json:"encodings"`
	Names     []string    `json:"names"`
}

// NewGallery returns an empty gallery.
func NewGallery() *Gallery {
	return &Gallery{Encodings: []Embedding{}, Names: []string{}}
}

// Len returns the number of (identity, embedding) pairs.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Encodings)
}

// Dimension returns the embedding length, or 0 for an empty gallery.
func (g *Gallery) Dimension() int {
	if g.Len() == 0 {
		return 0
	}
	return len(g.Encodings[0])
}

// Validate checks the alignment and dimension invariants.
func (g *Gallery) Validate() error {
	if len(g.Encodings) != len(g.Names) {
		return fmt.Errorf("%d encodings but %d names", len(g.Encodings), len(g.Names))
	}
	dim := g.Dimension()
	for i, enc := range g.Encodings {
		if len(enc) == 0 || len(enc) != dim {
			return fmt.Errorf("encoding %d has dimension %d, expected %d", i, len(enc), dim)
		}
		for _, v := range enc {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("encoding %d contains a non-finite value", i)
			}
		}
		if g.Names[i] == "" {
			return fmt.Errorf("encoding %d has an empty identity", i)
		}
	}
	return nil
}

// Add appends embeddings under identity. Nothing is appended if any
// embedding has the wrong dimension.
func (g *Gallery) Add(identity string, embeddings ...Embedding) error {
	dim := g.Dimension()
	for _, emb := range embeddings {
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) == 0 || len(emb) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), dim)
		}
	}
	for _, emb := range embeddings {
		g.Encodings = append(g.Encodings, append(Embedding(nil), emb...))
		g.Names = append(g.Names, identity)
	}
	return nil
}

// Identities returns distinct identities in first-appearance order.
func (g *Gallery) Identities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range g.Names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// EmbeddingsOf returns the embeddings stored under identity, in gallery order.
func (g *Gallery) EmbeddingsOf(identity string) []Embedding {
	var out []Embedding
	for i, name := range g.Names {
		if name == identity {
			out = append(out, g.Encodings[i])
		}
	}
	return out
}

// Package matcher resolves a query embedding to a gallery identity using
// Euclidean distance thresholding and a majority vote over all gallery
// entries within tolerance.
//
// Tie-break policy: when two identities receive the same number of votes, the
// identity whose first candidate appears earliest in gallery order wins. The
// policy is arbitrary but reproducible; it does not prefer the closest match.
package matcher

import (
	"math"
	"sort"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Unknown is the identity label reported when nothing matches.
const Unknown = "Unknown"

// DefaultTolerance is used when a caller passes a non-positive tolerance.
const DefaultTolerance = 0.6

// Candidate is a gallery entry within tolerance of a query.
type Candidate struct {
	Position int // index in the gallery
	Identity string
	Distance float64
}

// Result is the outcome of a match.
type Result struct {
	Identity string  `json:"identity"`
	Known    bool    `json:"known"`
	Votes    int     `json:"votes"`
	Distance float64 `json:"distance"` // closest candidate of the winning identity
}

// UnknownResult is returned when no candidate is within tolerance.
func UnknownResult() Result {
	return Result{Identity: Unknown}
}

// Distance returns the Euclidean distance between a and b, or +Inf when the
// dimensions differ.
func Distance(a, b domain.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// Candidates returns every gallery entry whose distance to query is <= tolerance,
// in gallery order.
func Candidates(query domain.Embedding, g *domain.Gallery, tolerance float64) []Candidate {
	if g.Len() == 0 || len(query) != g.Dimension() {
		return nil
	}
	var out []Candidate
	for i, enc := range g.Encodings {
		d := Distance(query, enc)
		if d <= tolerance {
			out = append(out, Candidate{Position: i, Identity: g.Names[i], Distance: d})
		}
	}
	return out
}

// Match returns the identity with the most candidates within tolerance.
// Parameters:
//   - query: embedding of the face to identify.
//   - g: gallery to search.
//   - tolerance: maximum distance for a candidate; <= 0 selects DefaultTolerance.
//
// Returns:
//   - Result: winning identity, or Unknown when there are no candidates.
func Match(query domain.Embedding, g *domain.Gallery, tolerance float64) Result {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Vote(Candidates(query, g, tolerance))
}

// Vote tallies candidates per identity. Candidates may arrive in any order;
// they are ranked by gallery position first so the tie-break holds for
// candidate lists produced by an external index.
func Vote(candidates []Candidate) Result {
	if len(candidates) == 0 {
		return UnknownResult()
	}

	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	type tally struct {
		votes   int
		closest float64
	}
	tallies := make(map[string]*tally)
	var order []string
	for _, c := range ordered {
		t, ok := tallies[c.Identity]
		if !ok {
			t = &tally{closest: math.Inf(1)}
			tallies[c.Identity] = t
			order = append(order, c.Identity)
		}
		t.votes++
		if c.Distance < t.closest {
			t.closest = c.Distance
		}
	}

	best := order[0]
	for _, name := range order[1:] {
		if tallies[name].votes > tallies[best].votes {
			best = name
		}
	}

	return Result{
		Identity: best,
		Known:    true,
		Votes:    tallies[best].votes,
		Distance: tallies[best].closest,
	}
}

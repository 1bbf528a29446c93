// Package matcher decides which known student, if any, a probe encoding
// belongs to. Pure nearest-neighbor under Euclidean distance with a fixed
// acceptance threshold.
package matcher

import (
	"math"

	"github.com/classmark/classmark/internal/gallery"
)

// candidateK is how many approximate neighbors to pull from an indexed
// gallery before exact re-ranking.
const candidateK = 16

// Match is an accepted nearest-neighbor result.
type Match struct {
	StudentID string
	Distance  float64
}

// EuclideanDistance computes the L2 distance between two encodings. Vectors
// of different lengths are infinitely far apart, so a dimension mix-up can
// never produce a match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Best returns the gallery entry nearest to the probe, if it is within
// threshold. Ties at the minimum distance resolve to the lexicographically
// lowest student id, so results are deterministic across runs.
//
// Unindexed galleries are scanned in full. With an HNSW index built, the
// candidate set is approximate: only the candidateK nearest neighbors the
// index returns are re-ranked with exact distances, so the true nearest entry
// can in principle fall outside the set. Distances reported for a match are
// always exact.
func Best(probe []float32, g *gallery.Gallery, threshold float64) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	found := false

	for _, e := range g.Candidates(probe, candidateK) {
		d := EuclideanDistance(probe, e.Vector)
		if d < best.Distance || (d == best.Distance && found && e.StudentID < best.StudentID) {
			best = Match{StudentID: e.StudentID, Distance: d}
			found = true
		}
	}

	if !found || best.Distance > threshold {
		return Match{}, false
	}
	return best, true
}

package gallery

import (
	"errors"

	"github.com/coder/hnsw"
)

const indexMaxNeighbors = 16

// hnswIndex accelerates candidate lookup for large galleries. Keys are
// positions in the gallery's entry slice, so search results map straight back
// to entries.
type hnswIndex struct {
	graph   *hnsw.Graph[int]
	entries []Entry
}

// BuildIndex builds the HNSW candidate index over the gallery. Worth it only
// for galleries large enough that a linear scan per frame hurts; callers
// gate on size.
func (g *Gallery) BuildIndex() error {
	if len(g.entries) == 0 {
		return errors.New("cannot index an empty gallery")
	}

	graph := hnsw.NewGraph[int]()
	graph.M = indexMaxNeighbors
	graph.Ml = 1.0 / float64(indexMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	for i := range g.entries {
		graph.Add(hnsw.MakeNode(i, g.entries[i].Vector))
	}

	g.index = &hnswIndex{graph: graph, entries: g.entries}
	return nil
}

// Indexed reports whether a candidate index is in use.
func (g *Gallery) Indexed() bool {
	return g.index != nil
}

func (ix *hnswIndex) search(probe []float32, k int) []Entry {
	if k <= 0 {
		k = indexMaxNeighbors
	}
	nodes := ix.graph.Search(probe, k)
	out := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		if n.Key >= 0 && n.Key < len(ix.entries) {
			out = append(out, ix.entries[n.Key])
		}
	}
	return out
}

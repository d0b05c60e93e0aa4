package graph

import "sort"

// ChunkMetrics summarizes a chunk's position in the import graph.
type ChunkMetrics struct {
	Chunk           string
	FanIn           int
	FanOut          int
	ImportanceScore float64
}

// CalculateImportanceScore ranks a chunk's significance for API discovery:
//
//	Score = (FanIn * 2) + (FanOut * 1) + (Network ? 10 : 0)
//
// where Network marks chunks that call fetch or create an axios client.
func CalculateImportanceScore(fanIn, fanOut int, network bool) float64 {
	score := float64(fanIn*2) + float64(fanOut)
	if network {
		score += 10
	}
	return score
}

// TopChunks returns the n highest scoring chunks, ties broken by id.
func (g *Graph) TopChunks(n int) []ChunkMetrics {
	if n <= 0 {
		return nil
	}
	out := make([]ChunkMetrics, 0, g.set.Len())
	for _, c := range g.set.All() {
		fanIn := len(g.importedBy[c.ID])
		fanOut := len(g.imports[c.ID])
		out = append(out, ChunkMetrics{
			Chunk:           c.ID,
			FanIn:           fanIn,
			FanOut:          fanOut,
			ImportanceScore: CalculateImportanceScore(fanIn, fanOut, c.ContainsFetch || c.IsAxiosClient),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ImportanceScore == out[j].ImportanceScore {
			return out[i].Chunk < out[j].Chunk
		}
		return out[i].ImportanceScore > out[j].ImportanceScore
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

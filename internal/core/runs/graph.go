package runs

import (
	"log/slog"
	"sort"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
)

// BuildGraph assembles a graph view from a run's posts and edges.
// When maxNodes > 0 and the post count exceeds it, the graph is trimmed to
// the top-scoring nodes by engagement (stable: ties keep input order).
// Edges survive only when both endpoints are retained, and degrees are
// recomputed from the filtered edge set.
func BuildGraph(posts []ingestion.Post, edges []ingestion.Edge, maxNodes int) *Graph {
	if maxNodes > 0 && len(posts) > maxNodes {
		slog.Info("applying max nodes filter", "from", len(posts), "to", maxNodes)

		trimmed := make([]ingestion.Post, len(posts))
		copy(trimmed, posts)
		sort.SliceStable(trimmed, func(i, j int) bool {
			return trimmed[i].EngagementScore() > trimmed[j].EngagementScore()
		})
		posts = trimmed[:maxNodes]
	}

	uriSet := make(map[string]bool, len(posts))
	for _, p := range posts {
		uriSet[p.URI] = true
	}

	filtered := make([]ingestion.Edge, 0, len(edges))
	for _, e := range edges {
		if uriSet[e.SrcURI] && uriSet[e.DstURI] {
			filtered = append(filtered, e)
		}
	}

	inDegree := make(map[string]int)
	outDegree := make(map[string]int)
	for _, e := range filtered {
		outDegree[e.SrcURI]++
		inDegree[e.DstURI]++
	}

	nodes := make([]GraphNode, 0, len(posts))
	for _, p := range posts {
		nodes = append(nodes, GraphNode{
			URI:          p.URI,
			Text:         p.Text,
			AuthorHandle: p.AuthorHandle,
			AuthorDID:    p.AuthorDID,
			CreatedAt:    p.CreatedAt,
			Metrics:      p.Metrics,
			InDegree:     inDegree[p.URI],
			OutDegree:    outDegree[p.URI],
		})
	}

	graphEdges := make([]GraphEdge, 0, len(filtered))
	for _, e := range filtered {
		graphEdges = append(graphEdges, GraphEdge{
			Src:  e.SrcURI,
			Dst:  e.DstURI,
			Type: string(e.Type),
		})
	}

	stats := GraphStats{
		NodeCount: len(nodes),
		EdgeCount: len(graphEdges),
	}
	if len(posts) > 0 {
		timeMin := posts[0].CreatedAt
		timeMax := posts[0].CreatedAt
		for _, p := range posts[1:] {
			if p.CreatedAt.Before(timeMin) {
				timeMin = p.CreatedAt
			}
			if p.CreatedAt.After(timeMax) {
				timeMax = p.CreatedAt
			}
		}
		stats.TimeMin = &timeMin
		stats.TimeMax = &timeMax
	}

	return &Graph{
		Nodes: nodes,
		Edges: graphEdges,
		Stats: stats,
	}
}

package ingestion

import (
	"log/slog"
	"time"

	"github.com/AryanB1/Source-Graph/internal/atproto/appview"
)

// timestampLayouts are tried in order when parsing API timestamps.
// The API normally emits RFC 3339 with a trailing Z, but older records
// occasionally lack an offset, fractional seconds, or the time entirely.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing "Z" designator is
// treated as UTC. Returns false for empty or unparseable input.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	slog.Warn("failed to parse timestamp", "value", s)
	return time.Time{}, false
}

// NormalizePost converts a raw API post into a canonical Post.
// Returns false when the payload is unusable (missing URI or author
// identity); those are logged and skipped, never fatal.
func NormalizePost(raw appview.PostView) (Post, bool) {
	if raw.URI == "" {
		slog.Warn("post missing URI, skipping")
		return Post{}, false
	}

	if raw.Author == nil || raw.Author.DID == "" || raw.Author.Handle == "" {
		slog.Warn("post missing author info, skipping", "uri", raw.URI)
		return Post{}, false
	}

	var text, createdAtStr string
	if raw.Record != nil {
		text = raw.Record.Text
		createdAtStr = raw.Record.CreatedAt
	}
	if createdAtStr == "" {
		createdAtStr = raw.IndexedAt
	}

	createdAt, ok := ParseTimestamp(createdAtStr)
	if !ok {
		slog.Warn("post has invalid timestamp, using current time", "uri", raw.URI)
		createdAt = time.Now()
	}

	return Post{
		URI:          raw.URI,
		CID:          raw.CID,
		AuthorDID:    raw.Author.DID,
		AuthorHandle: raw.Author.Handle,
		CreatedAt:    createdAt,
		Text:         text,
		Metrics: PostMetrics{
			LikeCount:   raw.LikeCount,
			RepostCount: raw.RepostCount,
			ReplyCount:  raw.ReplyCount,
			QuoteCount:  raw.QuoteCount,
		},
	}, true
}

// threadWalker accumulates posts and edges while traversing a conversation
// tree. Posts dedupe by URI and edges by identity triple, first seen wins.
type threadWalker struct {
	posts    *postSet
	edges    []Edge
	seen     map[edgeKey]bool
	maxDepth int
}

// ExtractThreadPostsAndEdges walks a getPostThread tree and collects the
// posts plus REPLY edges it contains. Both the parent chain and the reply
// children draw from the same depth budget; once it is spent, a branch is
// simply not expanded further.
func ExtractThreadPostsAndEdges(thread *appview.ThreadNode, maxDepth int) ([]Post, []Edge) {
	w := &threadWalker{
		posts:    newPostSet(),
		seen:     make(map[edgeKey]bool),
		maxDepth: maxDepth,
	}
	w.visit(thread, "", 0)
	return w.posts.Posts(), w.edges
}

func (w *threadWalker) visit(node *appview.ThreadNode, parentURI string, depth int) {
	if node == nil || depth >= w.maxDepth {
		return
	}

	switch node.Type {
	case appview.ThreadNodeTypePost:
		if node.Post == nil {
			return
		}
		post, ok := NormalizePost(*node.Post)
		if !ok {
			return
		}
		w.posts.Add(post)

		if parentURI != "" {
			createdAt := post.CreatedAt
			w.addEdge(Edge{
				SrcURI:    post.URI,
				DstURI:    parentURI,
				Type:      EdgeTypeReply,
				CreatedAt: &createdAt,
			})
		}

		if node.Parent != nil {
			w.visit(node.Parent, post.URI, depth+1)
		}
		for _, reply := range node.Replies {
			w.visit(reply, post.URI, depth+1)
		}

	case appview.ThreadNodeTypeBlocked:
		slog.Debug("encountered blocked post in thread")

	case appview.ThreadNodeTypeNotFound:
		slog.Debug("encountered not found post in thread")

	default:
		slog.Warn("unknown thread node type", "type", node.Type)
	}
}

func (w *threadWalker) addEdge(e Edge) {
	if w.seen[e.key()] {
		return
	}
	w.seen[e.key()] = true
	w.edges = append(w.edges, e)
}

// ExtractQuoteEdges normalizes a page of quote posts and emits one QUOTE
// edge per post pointing at targetURI. Order is preserved; posts that fail
// normalization are skipped.
func ExtractQuoteEdges(rawPosts []appview.PostView, targetURI string) ([]Post, []Edge) {
	var posts []Post
	var edges []Edge

	for _, raw := range rawPosts {
		post, ok := NormalizePost(raw)
		if !ok {
			continue
		}
		posts = append(posts, post)

		createdAt := post.CreatedAt
		edges = append(edges, Edge{
			SrcURI:    post.URI,
			DstURI:    targetURI,
			Type:      EdgeTypeQuote,
			CreatedAt: &createdAt,
		})
	}

	return posts, edges
}

// DeduplicatePosts keeps the first occurrence per URI, preserving order.
func DeduplicatePosts(posts []Post) []Post {
	set := newPostSet()
	for _, p := range posts {
		set.Add(p)
	}
	return set.Posts()
}

// DeduplicateEdges keeps the first occurrence per (src, dst, type) triple,
// preserving order. Timestamp differences do not make edges distinct.
func DeduplicateEdges(edges []Edge) []Edge {
	seen := make(map[edgeKey]bool, len(edges))
	deduped := make([]Edge, 0, len(edges))

	for _, e := range edges {
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		deduped = append(deduped, e)
	}

	return deduped
}

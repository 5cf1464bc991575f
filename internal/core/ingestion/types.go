package ingestion

import "time"

// EdgeType distinguishes the two relationship kinds between posts.
type EdgeType string

const (
	EdgeTypeQuote EdgeType = "QUOTE"
	EdgeTypeReply EdgeType = "REPLY"
)

// PostMetrics holds a post's engagement counters.
type PostMetrics struct {
	LikeCount   int `json:"likeCount"`
	RepostCount int `json:"repostCount"`
	ReplyCount  int `json:"replyCount"`
	QuoteCount  int `json:"quoteCount"`
}

// Post is a normalized content node. Two posts are the same entity iff
// their URIs are equal.
type Post struct {
	URI          string      `json:"uri"`
	CID          string      `json:"cid,omitempty"`
	AuthorDID    string      `json:"authorDid"`
	AuthorHandle string      `json:"authorHandle"`
	CreatedAt    time.Time   `json:"createdAt"`
	Text         string      `json:"text"`
	Metrics      PostMetrics `json:"metrics"`
}

// EngagementScore is the sum of the four engagement counters, used for
// top-K node selection during graph assembly.
func (p Post) EngagementScore() int {
	return p.Metrics.LikeCount + p.Metrics.RepostCount + p.Metrics.ReplyCount + p.Metrics.QuoteCount
}

// Edge is a directed relationship between two posts. Identity is the
// (src, dst, type) triple; the timestamp is informational only.
// REPLY edges point child to parent, QUOTE edges quoting to quoted.
type Edge struct {
	SrcURI    string     `json:"srcUri"`
	DstURI    string     `json:"dstUri"`
	Type      EdgeType   `json:"edgeType"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type edgeKey struct {
	src string
	dst string
	typ EdgeType
}

func (e Edge) key() edgeKey {
	return edgeKey{src: e.SrcURI, dst: e.DstURI, typ: e.Type}
}

// IngestResult is the outcome of one crawl invocation: the collected posts
// and edges plus the client's final request counters.
type IngestResult struct {
	Posts         []Post
	Edges         []Edge
	TotalRequests int
	CacheHits     int
	CacheMisses   int
}

// QueryModeInputs parameterize a flat paginated search crawl.
type QueryModeInputs struct {
	Query           string
	TimeWindowHours int
	MaxPages        int
	PageSize        int
	Lang            string
}

// SeedModeInputs parameterize a seed-based thread and quote expansion crawl.
type SeedModeInputs struct {
	SeedURI       string
	MaxDepth      int
	MaxQuotePages int
	MaxNodes      int
}

// postSet accumulates posts keyed by URI, first occurrence wins,
// preserving insertion order.
type postSet struct {
	order []Post
	seen  map[string]bool
}

func newPostSet() *postSet {
	return &postSet{seen: make(map[string]bool)}
}

func (s *postSet) Add(p Post) bool {
	if s.seen[p.URI] {
		return false
	}
	s.seen[p.URI] = true
	s.order = append(s.order, p)
	return true
}

func (s *postSet) Len() int {
	return len(s.order)
}

func (s *postSet) Posts() []Post {
	return s.order
}

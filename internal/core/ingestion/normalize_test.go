package ingestion

import (
	"testing"
	"time"

	"github.com/AryanB1/Source-Graph/internal/atproto/appview"
)

func validPostView(uri string) appview.PostView {
	return appview.PostView{
		URI: uri,
		CID: "bafyreiabc",
		Author: &appview.Author{
			DID:    "did:plc:abc123",
			Handle: "alice.bsky.social",
		},
		Record: &appview.Record{
			Text:      "hello world",
			CreatedAt: "2024-01-15T10:30:00Z",
		},
		IndexedAt:   "2024-01-15T10:31:00Z",
		LikeCount:   10,
		RepostCount: 5,
		ReplyCount:  3,
		QuoteCount:  2,
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{
			name:  "rfc3339 with zulu",
			input: "2024-01-15T10:30:00Z",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "fractional seconds",
			input: "2024-01-15T10:30:00.123Z",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 123000000, time.UTC),
			ok:    true,
		},
		{
			name:  "explicit offset",
			input: "2024-01-15T10:30:00+02:00",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", 2*3600)),
			ok:    true,
		},
		{
			name:  "no offset",
			input: "2024-01-15T10:30:00",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "date only",
			input: "2024-01-15",
			want:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
		{
			name:  "garbage",
			input: "not-a-timestamp",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePost(t *testing.T) {
	t.Run("valid post", func(t *testing.T) {
		post, ok := NormalizePost(validPostView("at://did:plc:abc123/app.bsky.feed.post/1"))
		if !ok {
			t.Fatal("expected post to normalize")
		}
		if post.URI != "at://did:plc:abc123/app.bsky.feed.post/1" {
			t.Errorf("unexpected URI %q", post.URI)
		}
		if post.AuthorHandle != "alice.bsky.social" {
			t.Errorf("unexpected handle %q", post.AuthorHandle)
		}
		if post.Text != "hello world" {
			t.Errorf("unexpected text %q", post.Text)
		}
		want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if !post.CreatedAt.Equal(want) {
			t.Errorf("createdAt = %v, want %v", post.CreatedAt, want)
		}
		if post.EngagementScore() != 20 {
			t.Errorf("engagement score = %d, want 20", post.EngagementScore())
		}
	})

	t.Run("missing uri skipped", func(t *testing.T) {
		raw := validPostView("")
		if _, ok := NormalizePost(raw); ok {
			t.Error("expected post without URI to be skipped")
		}
	})

	t.Run("missing author skipped", func(t *testing.T) {
		raw := validPostView("at://x/1")
		raw.Author = nil
		if _, ok := NormalizePost(raw); ok {
			t.Error("expected post without author to be skipped")
		}
	})

	t.Run("missing handle skipped", func(t *testing.T) {
		raw := validPostView("at://x/1")
		raw.Author.Handle = ""
		if _, ok := NormalizePost(raw); ok {
			t.Error("expected post without handle to be skipped")
		}
	})

	t.Run("missing record falls back to indexedAt", func(t *testing.T) {
		raw := validPostView("at://x/1")
		raw.Record = nil
		post, ok := NormalizePost(raw)
		if !ok {
			t.Fatal("expected post to normalize")
		}
		if post.Text != "" {
			t.Errorf("expected empty text, got %q", post.Text)
		}
		want := time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC)
		if !post.CreatedAt.Equal(want) {
			t.Errorf("createdAt = %v, want indexedAt fallback %v", post.CreatedAt, want)
		}
	})

	t.Run("unparseable timestamp falls back to now", func(t *testing.T) {
		raw := validPostView("at://x/1")
		raw.Record.CreatedAt = "garbage"
		raw.IndexedAt = ""

		// Record.CreatedAt takes priority over IndexedAt even when invalid
		before := time.Now()
		post, ok := NormalizePost(raw)
		if !ok {
			t.Fatal("expected post to normalize")
		}
		if post.CreatedAt.Before(before) {
			t.Errorf("expected current-time fallback, got %v", post.CreatedAt)
		}
	})

	t.Run("zero metrics", func(t *testing.T) {
		raw := validPostView("at://x/1")
		raw.LikeCount, raw.RepostCount, raw.ReplyCount, raw.QuoteCount = 0, 0, 0, 0
		post, ok := NormalizePost(raw)
		if !ok {
			t.Fatal("expected post to normalize")
		}
		if post.EngagementScore() != 0 {
			t.Errorf("engagement score = %d, want 0", post.EngagementScore())
		}
	})
}

func threadPost(uri string) *appview.ThreadNode {
	pv := validPostView(uri)
	return &appview.ThreadNode{
		Type: appview.ThreadNodeTypePost,
		Post: &pv,
	}
}

func TestExtractThreadPostsAndEdges(t *testing.T) {
	t.Run("simple thread", func(t *testing.T) {
		root := threadPost("at://root")
		reply1 := threadPost("at://reply1")
		reply2 := threadPost("at://reply2")
		root.Replies = []*appview.ThreadNode{reply1, reply2}

		posts, edges := ExtractThreadPostsAndEdges(root, 3)

		if len(posts) != 3 {
			t.Fatalf("expected 3 posts, got %d", len(posts))
		}
		if posts[0].URI != "at://root" {
			t.Errorf("expected root first, got %q", posts[0].URI)
		}
		if len(edges) != 2 {
			t.Fatalf("expected 2 edges, got %d", len(edges))
		}
		for _, e := range edges {
			if e.Type != EdgeTypeReply {
				t.Errorf("expected REPLY edge, got %q", e.Type)
			}
			if e.DstURI != "at://root" {
				t.Errorf("expected edge to point at root, got %q", e.DstURI)
			}
		}
	})

	t.Run("depth budget prunes deep branches", func(t *testing.T) {
		root := threadPost("at://root")
		reply := threadPost("at://reply")
		nested := threadPost("at://nested")
		reply.Replies = []*appview.ThreadNode{nested}
		root.Replies = []*appview.ThreadNode{reply}

		posts, edges := ExtractThreadPostsAndEdges(root, 2)

		if len(posts) != 2 {
			t.Fatalf("expected depth cap to keep 2 posts, got %d", len(posts))
		}
		if len(edges) != 1 {
			t.Fatalf("expected 1 edge, got %d", len(edges))
		}
	})

	t.Run("parent chain walked", func(t *testing.T) {
		node := threadPost("at://seed")
		parent := threadPost("at://parent")
		node.Parent = parent

		posts, edges := ExtractThreadPostsAndEdges(node, 3)

		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}
		if len(edges) != 1 {
			t.Fatalf("expected 1 edge, got %d", len(edges))
		}
		if edges[0].SrcURI != "at://parent" || edges[0].DstURI != "at://seed" {
			t.Errorf("unexpected parent edge %s -> %s", edges[0].SrcURI, edges[0].DstURI)
		}
	})

	t.Run("blocked node terminates branch", func(t *testing.T) {
		root := threadPost("at://root")
		root.Replies = []*appview.ThreadNode{
			{Type: appview.ThreadNodeTypeBlocked},
			{Type: appview.ThreadNodeTypeNotFound},
			{Type: "app.bsky.feed.defs#somethingNew"},
		}

		posts, edges := ExtractThreadPostsAndEdges(root, 3)

		if len(posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(posts))
		}
		if len(edges) != 0 {
			t.Fatalf("expected no edges, got %d", len(edges))
		}
	})

	t.Run("nil thread", func(t *testing.T) {
		posts, edges := ExtractThreadPostsAndEdges(nil, 3)
		if len(posts) != 0 || len(edges) != 0 {
			t.Errorf("expected empty result for nil thread, got %d posts %d edges", len(posts), len(edges))
		}
	})
}

func TestExtractQuoteEdges(t *testing.T) {
	rawPosts := []appview.PostView{
		validPostView("at://quote1"),
		{URI: "at://broken"}, // missing author, skipped
		validPostView("at://quote2"),
	}

	posts, edges := ExtractQuoteEdges(rawPosts, "at://target")

	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	for i, e := range edges {
		if e.Type != EdgeTypeQuote {
			t.Errorf("edge %d: expected QUOTE, got %q", i, e.Type)
		}
		if e.DstURI != "at://target" {
			t.Errorf("edge %d: expected dst at://target, got %q", i, e.DstURI)
		}
		if e.SrcURI != posts[i].URI {
			t.Errorf("edge %d: src %q does not match post %q", i, e.SrcURI, posts[i].URI)
		}
	}
}

func TestDeduplicatePosts(t *testing.T) {
	a := Post{URI: "at://a", Text: "first"}
	aDupe := Post{URI: "at://a", Text: "second"}
	b := Post{URI: "at://b"}

	deduped := DeduplicatePosts([]Post{a, aDupe, b})

	if len(deduped) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(deduped))
	}
	// First occurrence wins
	if deduped[0].Text != "first" {
		t.Errorf("expected first occurrence kept, got text %q", deduped[0].Text)
	}
	if deduped[1].URI != "at://b" {
		t.Errorf("expected order preserved, got %q", deduped[1].URI)
	}
}

func TestDeduplicateEdges(t *testing.T) {
	ts1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	edges := []Edge{
		{SrcURI: "at://a", DstURI: "at://b", Type: EdgeTypeQuote, CreatedAt: &ts1},
		{SrcURI: "at://a", DstURI: "at://b", Type: EdgeTypeQuote, CreatedAt: &ts2}, // dupe, timestamp ignored
		{SrcURI: "at://a", DstURI: "at://b", Type: EdgeTypeReply},                  // different type, kept
		{SrcURI: "at://b", DstURI: "at://a", Type: EdgeTypeQuote},                  // reversed, kept
	}

	deduped := DeduplicateEdges(edges)

	if len(deduped) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(deduped))
	}
	if deduped[0].CreatedAt == nil || !deduped[0].CreatedAt.Equal(ts1) {
		t.Error("expected first occurrence's timestamp kept")
	}
}

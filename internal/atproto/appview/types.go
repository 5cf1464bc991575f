package appview

// Thread node type tags returned by app.bsky.feed.getPostThread.
// The thread payload is a tagged tree; anything outside this closed set is
// treated as unrecognized and terminates that branch.
const (
	ThreadNodeTypePost     = "app.bsky.feed.defs#threadViewPost"
	ThreadNodeTypeBlocked  = "app.bsky.feed.defs#blockedPost"
	ThreadNodeTypeNotFound = "app.bsky.feed.defs#notFoundPost"
)

// Author identifies a post's author.
type Author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// Record holds the authored content of a post.
type Record struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// PostView is a post as returned by the AppView API.
type PostView struct {
	URI         string  `json:"uri"`
	CID         string  `json:"cid"`
	Author      *Author `json:"author"`
	Record      *Record `json:"record"`
	IndexedAt   string  `json:"indexedAt"`
	LikeCount   int     `json:"likeCount"`
	RepostCount int     `json:"repostCount"`
	ReplyCount  int     `json:"replyCount"`
	QuoteCount  int     `json:"quoteCount"`
}

// ThreadNode is one node of a conversation tree. Only threadViewPost nodes
// carry a post, parent, and replies; blocked and not-found nodes decode with
// just the type tag set.
type ThreadNode struct {
	Type    string        `json:"$type"`
	Post    *PostView     `json:"post"`
	Parent  *ThreadNode   `json:"parent"`
	Replies []*ThreadNode `json:"replies"`
}

// SearchPostsResponse is the payload of app.bsky.feed.searchPosts.
type SearchPostsResponse struct {
	Posts  []PostView `json:"posts"`
	Cursor string     `json:"cursor"`
}

// ThreadResponse is the payload of app.bsky.feed.getPostThread.
type ThreadResponse struct {
	Thread *ThreadNode `json:"thread"`
}

// QuotesResponse is the payload of app.bsky.feed.getQuotes.
type QuotesResponse struct {
	URI    string     `json:"uri"`
	Posts  []PostView `json:"posts"`
	Cursor string     `json:"cursor"`
}

// PostsResponse is the payload of app.bsky.feed.getPosts.
type PostsResponse struct {
	Posts []PostView `json:"posts"`
}

package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
)

// Run modes accepted by CreateRun.
const (
	ModeQuery = "query"
	ModeSeed  = "seed"
)

// Run records one ingestion invocation and its inputs.
type Run struct {
	RunID     uuid.UUID
	Mode      string
	Query     string
	SeedURI   string
	CreatedAt time.Time
	Params    RunParams
}

// RunParams are the optional crawl bounds supplied with a run request.
// Zero values mean "use the default".
type RunParams struct {
	TimeWindowHours int    `json:"timeWindowHours,omitempty"`
	MaxPages        int    `json:"maxPages,omitempty"`
	PageSize        int    `json:"pageSize,omitempty"`
	Lang            string `json:"lang,omitempty"`
	MaxDepth        int    `json:"maxDepth,omitempty"`
	MaxQuotePages   int    `json:"maxQuotePages,omitempty"`
	MaxNodes        int    `json:"maxNodes,omitempty"`
}

// CreateRunRequest is the payload for creating a run.
type CreateRunRequest struct {
	Mode    string    `json:"mode"`
	Query   string    `json:"query,omitempty"`
	SeedURI string    `json:"seedUri,omitempty"`
	Params  RunParams `json:"params"`
}

// CreateRunResponse carries the identifier of a created run.
type CreateRunResponse struct {
	RunID string `json:"runId"`
}

// GraphNode is one node of an assembled graph view.
type GraphNode struct {
	URI          string                `json:"uri"`
	Text         string                `json:"text"`
	AuthorHandle string                `json:"authorHandle"`
	AuthorDID    string                `json:"authorDid"`
	CreatedAt    time.Time             `json:"createdAt"`
	Metrics      ingestion.PostMetrics `json:"metrics"`
	InDegree     int                   `json:"inDegree"`
	OutDegree    int                   `json:"outDegree"`
}

// GraphEdge is one edge of an assembled graph view.
type GraphEdge struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Type string `json:"type"`
}

// GraphStats summarizes an assembled graph.
type GraphStats struct {
	NodeCount int        `json:"nodeCount"`
	EdgeCount int        `json:"edgeCount"`
	TimeMin   *time.Time `json:"timeMin,omitempty"`
	TimeMax   *time.Time `json:"timeMax,omitempty"`
}

// Graph is the assembled view returned for a run.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

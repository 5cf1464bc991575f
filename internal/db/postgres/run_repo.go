package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

type postgresRunRepo struct {
	db *sql.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sql.DB) runs.Repository {
	if db == nil {
		panic("postgres: db cannot be nil")
	}
	return &postgresRunRepo{db: db}
}

// CreateRun inserts a new run record
func (r *postgresRunRepo) CreateRun(ctx context.Context, run *runs.Run) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal run params: %w", err)
	}

	query := `
		INSERT INTO runs (run_id, mode, query, seed_uri, created_at, params_json)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID, run.Mode, nullString(run.Query), nullString(run.SeedURI),
		run.CreatedAt, paramsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// UpsertPosts inserts posts, updating all fields on URI conflict.
// The batch is URI-deduplicated first: Postgres rejects a multi-row
// INSERT ... ON CONFLICT DO UPDATE that touches the same row twice.
func (r *postgresRunRepo) UpsertPosts(ctx context.Context, posts []ingestion.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	query, args, count := buildUpsertPosts(posts)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to upsert posts: %w", err)
	}
	return count, nil
}

// buildUpsertPosts renders the batched upsert statement for a deduplicated
// copy of posts, returning the row count actually sent.
func buildUpsertPosts(posts []ingestion.Post) (string, []interface{}, int) {
	posts = ingestion.DeduplicatePosts(posts)

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO posts (
			uri, cid, author_did, author_handle, created_at, text,
			like_count, repost_count, reply_count, quote_count
		) VALUES `)

	args := make([]interface{}, 0, len(posts)*10)
	for i, p := range posts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		sb.WriteString(placeholders(base, 10))
		args = append(args,
			p.URI, nullString(p.CID), p.AuthorDID, p.AuthorHandle, p.CreatedAt, p.Text,
			p.Metrics.LikeCount, p.Metrics.RepostCount, p.Metrics.ReplyCount, p.Metrics.QuoteCount,
		)
	}

	sb.WriteString(`
		ON CONFLICT (uri) DO UPDATE SET
			cid = EXCLUDED.cid,
			author_did = EXCLUDED.author_did,
			author_handle = EXCLUDED.author_handle,
			created_at = EXCLUDED.created_at,
			text = EXCLUDED.text,
			like_count = EXCLUDED.like_count,
			repost_count = EXCLUDED.repost_count,
			reply_count = EXCLUDED.reply_count,
			quote_count = EXCLUDED.quote_count
	`)

	return sb.String(), args, len(posts)
}

// InsertEdges inserts edges, ignoring duplicates of the identity triple
func (r *postgresRunRepo) InsertEdges(ctx context.Context, edges []ingestion.Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (src_uri, dst_uri, edge_type, created_at) VALUES `)

	args := make([]interface{}, 0, len(edges)*4)
	for i, e := range edges {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*4, 4))
		args = append(args, e.SrcURI, e.DstURI, string(e.Type), nullTime(e.CreatedAt))
	}

	sb.WriteString(` ON CONFLICT (src_uri, dst_uri, edge_type) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return 0, fmt.Errorf("failed to insert edges: %w", err)
	}
	return len(edges), nil
}

// LinkRunPosts associates post URIs with a run
func (r *postgresRunRepo) LinkRunPosts(ctx context.Context, runID uuid.UUID, uris []string) (int, error) {
	if len(uris) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO run_posts (run_id, uri) VALUES `)

	args := make([]interface{}, 0, len(uris)*2)
	for i, uri := range uris {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*2, 2))
		args = append(args, runID, uri)
	}

	sb.WriteString(` ON CONFLICT DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return 0, fmt.Errorf("failed to link run posts: %w", err)
	}
	return len(uris), nil
}

// LinkRunEdges associates edges with a run
func (r *postgresRunRepo) LinkRunEdges(ctx context.Context, runID uuid.UUID, edges []ingestion.Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO run_edges (run_id, src_uri, dst_uri, edge_type, created_at) VALUES `)

	args := make([]interface{}, 0, len(edges)*5)
	for i, e := range edges {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*5, 5))
		args = append(args, runID, e.SrcURI, e.DstURI, string(e.Type), nullTime(e.CreatedAt))
	}

	sb.WriteString(` ON CONFLICT DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return 0, fmt.Errorf("failed to link run edges: %w", err)
	}
	return len(edges), nil
}

// GetRun fetches a run by ID
func (r *postgresRunRepo) GetRun(ctx context.Context, runID uuid.UUID) (*runs.Run, error) {
	query := `
		SELECT run_id, mode, query, seed_uri, created_at, params_json
		FROM runs
		WHERE run_id = $1
	`

	var run runs.Run
	var query_, seedURI sql.NullString
	var paramsJSON []byte

	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &run.Mode, &query_, &seedURI, &run.CreatedAt, &paramsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, runs.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Query = query_.String
	run.SeedURI = seedURI.String
	if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run params: %w", err)
	}

	return &run, nil
}

// GetRunPosts fetches all posts linked to a run
func (r *postgresRunRepo) GetRunPosts(ctx context.Context, runID uuid.UUID) ([]ingestion.Post, error) {
	query := `
		SELECT p.uri, p.cid, p.author_did, p.author_handle, p.created_at, p.text,
		       p.like_count, p.repost_count, p.reply_count, p.quote_count
		FROM posts p
		JOIN run_posts rp ON p.uri = rp.uri
		WHERE rp.run_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run posts: %w", err)
	}
	defer rows.Close()

	var posts []ingestion.Post
	for rows.Next() {
		var p ingestion.Post
		var cid sql.NullString
		if err := rows.Scan(
			&p.URI, &cid, &p.AuthorDID, &p.AuthorHandle, &p.CreatedAt, &p.Text,
			&p.Metrics.LikeCount, &p.Metrics.RepostCount, &p.Metrics.ReplyCount, &p.Metrics.QuoteCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.CID = cid.String
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// GetRunEdges fetches all edges linked to a run
func (r *postgresRunRepo) GetRunEdges(ctx context.Context, runID uuid.UUID) ([]ingestion.Edge, error) {
	query := `
		SELECT src_uri, dst_uri, edge_type, created_at
		FROM run_edges
		WHERE run_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run edges: %w", err)
	}
	defer rows.Close()

	var edges []ingestion.Edge
	for rows.Next() {
		var e ingestion.Edge
		var edgeType string
		var createdAt sql.NullTime
		if err := rows.Scan(&e.SrcURI, &e.DstURI, &edgeType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Type = ingestion.EdgeType(edgeType)
		if createdAt.Valid {
			t := createdAt.Time
			e.CreatedAt = &t
		}
		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

// placeholders renders "($n+1, $n+2, ...)" for one batched VALUES row
func placeholders(base, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

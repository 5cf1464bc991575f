// Package sqlite implements the runs repository on SQLite. It mirrors the
// PostgreSQL repository's conflict semantics (posts overwrite, edges ignore)
// and backs the repository tests plus single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

// timeLayout is how timestamps are stored; SQLite has no native type for them.
const timeLayout = time.RFC3339Nano

type sqliteRunRepo struct {
	db *sql.DB
}

// NewRunRepository creates a new SQLite run repository
func NewRunRepository(db *sql.DB) runs.Repository {
	if db == nil {
		panic("sqlite: db cannot be nil")
	}
	return &sqliteRunRepo{db: db}
}

// Open opens a SQLite database at path (":memory:" for in-memory) and
// initializes the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the ingestion tables if they do not exist. The layout
// matches the PostgreSQL migrations.
func InitSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			query TEXT,
			seed_uri TEXT,
			created_at TEXT NOT NULL,
			params_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS posts (
			uri TEXT PRIMARY KEY,
			cid TEXT,
			author_did TEXT NOT NULL,
			author_handle TEXT NOT NULL,
			created_at TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			like_count INTEGER NOT NULL DEFAULT 0,
			repost_count INTEGER NOT NULL DEFAULT 0,
			reply_count INTEGER NOT NULL DEFAULT 0,
			quote_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			src_uri TEXT NOT NULL,
			dst_uri TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			created_at TEXT,
			UNIQUE (src_uri, dst_uri, edge_type)
		);

		CREATE TABLE IF NOT EXISTS run_posts (
			run_id TEXT NOT NULL,
			uri TEXT NOT NULL,
			PRIMARY KEY (run_id, uri)
		);

		CREATE TABLE IF NOT EXISTS run_edges (
			run_id TEXT NOT NULL,
			src_uri TEXT NOT NULL,
			dst_uri TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			created_at TEXT,
			PRIMARY KEY (run_id, src_uri, dst_uri, edge_type)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run record
func (r *sqliteRunRepo) CreateRun(ctx context.Context, run *runs.Run) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal run params: %w", err)
	}

	query := `
		INSERT INTO runs (run_id, mode, query, seed_uri, created_at, params_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID.String(), run.Mode, nullString(run.Query), nullString(run.SeedURI),
		run.CreatedAt.UTC().Format(timeLayout), string(paramsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// UpsertPosts inserts posts, updating all fields on URI conflict
func (r *sqliteRunRepo) UpsertPosts(ctx context.Context, posts []ingestion.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO posts (
			uri, cid, author_did, author_handle, created_at, text,
			like_count, repost_count, reply_count, quote_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET
			cid = excluded.cid,
			author_did = excluded.author_did,
			author_handle = excluded.author_handle,
			created_at = excluded.created_at,
			text = excluded.text,
			like_count = excluded.like_count,
			repost_count = excluded.repost_count,
			reply_count = excluded.reply_count,
			quote_count = excluded.quote_count
	`

	for _, p := range posts {
		_, err := r.db.ExecContext(ctx, query,
			p.URI, nullString(p.CID), p.AuthorDID, p.AuthorHandle,
			p.CreatedAt.UTC().Format(timeLayout), p.Text,
			p.Metrics.LikeCount, p.Metrics.RepostCount, p.Metrics.ReplyCount, p.Metrics.QuoteCount,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert post %s: %w", p.URI, err)
		}
	}
	return len(posts), nil
}

// InsertEdges inserts edges, ignoring duplicates of the identity triple
func (r *sqliteRunRepo) InsertEdges(ctx context.Context, edges []ingestion.Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO edges (src_uri, dst_uri, edge_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (src_uri, dst_uri, edge_type) DO NOTHING
	`

	for _, e := range edges {
		_, err := r.db.ExecContext(ctx, query,
			e.SrcURI, e.DstURI, string(e.Type), formatNullTime(e.CreatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert edge %s -> %s: %w", e.SrcURI, e.DstURI, err)
		}
	}
	return len(edges), nil
}

// LinkRunPosts associates post URIs with a run
func (r *sqliteRunRepo) LinkRunPosts(ctx context.Context, runID uuid.UUID, uris []string) (int, error) {
	if len(uris) == 0 {
		return 0, nil
	}

	query := `INSERT INTO run_posts (run_id, uri) VALUES (?, ?) ON CONFLICT DO NOTHING`

	for _, uri := range uris {
		if _, err := r.db.ExecContext(ctx, query, runID.String(), uri); err != nil {
			return 0, fmt.Errorf("failed to link run post %s: %w", uri, err)
		}
	}
	return len(uris), nil
}

// LinkRunEdges associates edges with a run
func (r *sqliteRunRepo) LinkRunEdges(ctx context.Context, runID uuid.UUID, edges []ingestion.Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO run_edges (run_id, src_uri, dst_uri, edge_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	for _, e := range edges {
		_, err := r.db.ExecContext(ctx, query,
			runID.String(), e.SrcURI, e.DstURI, string(e.Type), formatNullTime(e.CreatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to link run edge %s -> %s: %w", e.SrcURI, e.DstURI, err)
		}
	}
	return len(edges), nil
}

// GetRun fetches a run by ID
func (r *sqliteRunRepo) GetRun(ctx context.Context, runID uuid.UUID) (*runs.Run, error) {
	query := `
		SELECT run_id, mode, query, seed_uri, created_at, params_json
		FROM runs
		WHERE run_id = ?
	`

	var run runs.Run
	var id, createdAt, paramsJSON string
	var query_, seedURI sql.NullString

	err := r.db.QueryRowContext(ctx, query, runID.String()).Scan(
		&id, &run.Mode, &query_, &seedURI, &createdAt, &paramsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, runs.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.RunID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run id %q: %w", id, err)
	}
	run.Query = query_.String
	run.SeedURI = seedURI.String
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run params: %w", err)
	}

	return &run, nil
}

// GetRunPosts fetches all posts linked to a run
func (r *sqliteRunRepo) GetRunPosts(ctx context.Context, runID uuid.UUID) ([]ingestion.Post, error) {
	query := `
		SELECT p.uri, p.cid, p.author_did, p.author_handle, p.created_at, p.text,
		       p.like_count, p.repost_count, p.reply_count, p.quote_count
		FROM posts p
		JOIN run_posts rp ON p.uri = rp.uri
		WHERE rp.run_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query run posts: %w", err)
	}
	defer rows.Close()

	var posts []ingestion.Post
	for rows.Next() {
		var p ingestion.Post
		var cid sql.NullString
		var createdAt string
		if err := rows.Scan(
			&p.URI, &cid, &p.AuthorDID, &p.AuthorHandle, &createdAt, &p.Text,
			&p.Metrics.LikeCount, &p.Metrics.RepostCount, &p.Metrics.ReplyCount, &p.Metrics.QuoteCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.CID = cid.String
		if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse post timestamp %q: %w", createdAt, err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// GetRunEdges fetches all edges linked to a run
func (r *sqliteRunRepo) GetRunEdges(ctx context.Context, runID uuid.UUID) ([]ingestion.Edge, error) {
	query := `
		SELECT src_uri, dst_uri, edge_type, created_at
		FROM run_edges
		WHERE run_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query run edges: %w", err)
	}
	defer rows.Close()

	var edges []ingestion.Edge
	for rows.Next() {
		var e ingestion.Edge
		var edgeType string
		var createdAt sql.NullString
		if err := rows.Scan(&e.SrcURI, &e.DstURI, &edgeType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Type = ingestion.EdgeType(edgeType)
		if createdAt.Valid {
			t, err := time.Parse(timeLayout, createdAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse edge timestamp %q: %w", createdAt.String, err)
			}
			e.CreatedAt = &t
		}
		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

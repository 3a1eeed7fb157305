package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wikiexport/internal/model"
)

// DBFile is the history database file name inside the data directory.
const DBFile = "history.db"

// StatusRunning is the status of a run that has not finished.
const StatusRunning = "running"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores crawl runs and per-page outcomes in SQLite.
//
// History is write-only from the crawl's point of view: a crawl records
// into it but never reads it back, so every run starts from the seed.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed_url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		status TEXT NOT NULL,
		attempted INTEGER DEFAULT 0,
		written INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		discovered INTEGER DEFAULT 0,
		relinked INTEGER DEFAULT 0,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed_url);

	-- Outcome of every attempted URL
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		final_url TEXT,
		outcome TEXT NOT NULL,
		filename TEXT,
		title TEXT,
		sha256 TEXT,
		error_kind TEXT,
		error TEXT,
		at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_outcome ON pages(run_id, outcome);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored crawl run.
type RunRecord struct {
	ID         int64     `json:"id"`
	SeedURL    string    `json:"seed_url"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Status     string    `json:"status"`
	Attempted  int       `json:"attempted"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Discovered int       `json:"discovered"`
	Relinked   int       `json:"relinked"`

	// Summary is the full end-of-run summary, nil while the run is in
	// progress or when it never finished.
	Summary *model.RunSummary `json:"summary,omitempty"`
}

// BeginRun inserts a run in the running state and returns its ID.
func (h *HistoryDB) BeginRun(ctx context.Context, seedURL, outputDir string, startedAt time.Time) (int64, error) {
	query := `
	INSERT INTO runs (seed_url, output_dir, started_at, status)
	VALUES (?, ?, ?, ?)
	`

	result, err := h.db.ExecContext(ctx, query,
		seedURL,
		outputDir,
		formatTimestamp(startedAt),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to begin run: %w", err)
	}

	return result.LastInsertId()
}

// RecordPage stores the outcome of one attempted URL.
// Recording the same URL twice in a run keeps the latest outcome.
func (h *HistoryDB) RecordPage(ctx context.Context, runID int64, result model.PageResult) error {
	query := `
	INSERT INTO pages (run_id, url, final_url, outcome, filename, title, sha256, error_kind, error, at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		final_url = excluded.final_url,
		outcome = excluded.outcome,
		filename = excluded.filename,
		title = excluded.title,
		sha256 = excluded.sha256,
		error_kind = excluded.error_kind,
		error = excluded.error,
		at = excluded.at
	`

	_, err := h.db.ExecContext(ctx, query,
		runID,
		result.URL,
		result.FinalURL,
		string(result.Outcome),
		result.Filename,
		result.Title,
		result.Hash,
		result.ErrorKind,
		result.Error,
		formatTimestamp(result.At),
	)
	if err != nil {
		return fmt.Errorf("failed to record page %s: %w", result.URL, err)
	}

	return nil
}

// FinishRun stores the final summary of the run identified by summary.RunID.
func (h *HistoryDB) FinishRun(ctx context.Context, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	UPDATE runs SET
		seed_url = COALESCE(NULLIF(?, ''), seed_url),
		ended_at = ?,
		status = ?,
		attempted = ?,
		written = ?,
		skipped = ?,
		discovered = ?,
		relinked = ?,
		summary_json = ?
	WHERE id = ?
	`

	result, err := h.db.ExecContext(ctx, query,
		summary.SeedURL,
		formatTimestamp(summary.EndedAt),
		summary.Status(),
		summary.Attempted,
		summary.Written,
		summary.TotalSkipped(),
		summary.Discovered,
		summary.Relinked,
		string(summaryJSON),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", summary.RunID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d: %w", summary.RunID, ErrRunNotFound)
	}

	return nil
}

const runColumns = `id, seed_url, output_dir, started_at, ended_at, status,
	attempted, written, skipped, discovered, relinked, summary_json`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var run RunRecord
	var startedAt string
	var endedAt, summaryJSON sql.NullString

	err := row.Scan(
		&run.ID,
		&run.SeedURL,
		&run.OutputDir,
		&startedAt,
		&endedAt,
		&run.Status,
		&run.Attempted,
		&run.Written,
		&run.Skipped,
		&run.Discovered,
		&run.Relinked,
		&summaryJSON,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt = parseTimestamp(startedAt)
	if endedAt.Valid {
		run.EndedAt = parseTimestamp(endedAt.String)
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary model.RunSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
			run.Summary = &summary
		}
	}

	return &run, nil
}

// ListRuns returns the most recent runs first. A limit of 0 returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(h.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}

	return run, nil
}

// ListPages returns the page outcomes of a run in crawl order.
func (h *HistoryDB) ListPages(ctx context.Context, runID int64) ([]model.PageResult, error) {
	query := `
	SELECT url, final_url, outcome, filename, title, sha256, error_kind, error, at
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := h.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var results []model.PageResult
	for rows.Next() {
		var r model.PageResult
		var outcome, at string
		var finalURL, filename, title, hash, errorKind, errMsg sql.NullString

		if err := rows.Scan(&r.URL, &finalURL, &outcome, &filename, &title, &hash, &errorKind, &errMsg, &at); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		r.FinalURL = finalURL.String
		r.Outcome = model.Outcome(outcome)
		r.Filename = filename.String
		r.Title = title.String
		r.Hash = hash.String
		r.ErrorKind = errorKind.String
		r.Error = errMsg.String
		r.At = parseTimestamp(at)
		results = append(results, r)
	}

	return results, rows.Err()
}

// PageDiff describes one page across two runs, keyed by source URL.
type PageDiff struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	FileA     string `json:"file_a,omitempty"`
	FileB     string `json:"file_b,omitempty"`
	HashA     string `json:"sha256_a,omitempty"`
	HashB     string `json:"sha256_b,omitempty"`
}

// Comparison lists the written pages that differ between two runs.
type Comparison struct {
	RunA      int64      `json:"run_a"`
	RunB      int64      `json:"run_b"`
	Added     []PageDiff `json:"added"`
	Removed   []PageDiff `json:"removed"`
	Changed   []PageDiff `json:"changed"`
	Unchanged int        `json:"unchanged"`
}

// ComparePages compares the pages written by run a and run b.
// Pages are matched by the URL their content was served from; a page is
// changed when its Markdown hash differs.
func (h *HistoryDB) ComparePages(ctx context.Context, a, b int64) (*Comparison, error) {
	for _, id := range []int64{a, b} {
		if _, err := h.GetRun(ctx, id); err != nil {
			return nil, err
		}
	}

	pagesA, err := h.writtenPages(ctx, a)
	if err != nil {
		return nil, err
	}
	pagesB, err := h.writtenPages(ctx, b)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{RunA: a, RunB: b}
	for src, pa := range pagesA {
		pb, ok := pagesB[src]
		if !ok {
			cmp.Removed = append(cmp.Removed, PageDiff{SourceURL: src, Title: pa.Title, FileA: pa.Filename, HashA: pa.Hash})
			continue
		}
		if pa.Hash != pb.Hash {
			cmp.Changed = append(cmp.Changed, PageDiff{
				SourceURL: src,
				Title:     pb.Title,
				FileA:     pa.Filename,
				FileB:     pb.Filename,
				HashA:     pa.Hash,
				HashB:     pb.Hash,
			})
			continue
		}
		cmp.Unchanged++
	}
	for src, pb := range pagesB {
		if _, ok := pagesA[src]; !ok {
			cmp.Added = append(cmp.Added, PageDiff{SourceURL: src, Title: pb.Title, FileB: pb.Filename, HashB: pb.Hash})
		}
	}

	for _, list := range [][]PageDiff{cmp.Added, cmp.Removed, cmp.Changed} {
		sort.Slice(list, func(i, j int) bool { return list[i].SourceURL < list[j].SourceURL })
	}

	return cmp, nil
}

// writtenPages returns the written pages of a run keyed by source URL.
func (h *HistoryDB) writtenPages(ctx context.Context, runID int64) (map[string]model.PageResult, error) {
	results, err := h.ListPages(ctx, runID)
	if err != nil {
		return nil, err
	}

	pages := make(map[string]model.PageResult, len(results))
	for _, r := range results {
		if r.Outcome != model.OutcomeWritten {
			continue
		}
		src := r.URL
		if r.FinalURL != "" {
			src = r.FinalURL
		}
		pages[src] = r
	}
	return pages, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

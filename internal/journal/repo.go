package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/wikisync/internal/parser"
	"github.com/starford/wikisync/internal/pipeline"
)

// Change kinds stored in link_changes.kind.
const (
	KindRemoved = "removed"
	KindAdded   = "added"
)

// RunRow is a row in the runs table.
type RunRow struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	TargetDir     string
	IndexPath     string
	DryRun        bool
	Pages         int
	Replaced      int
	Skipped       int
	Failed        int
	Removed       int
	Added         int
	IndexChecksum string
}

// LinkChange is a row in the link_changes table.
type LinkChange struct {
	Kind   string
	Target string
	Line   string
}

// Record stores a completed run and its link changes within a transaction.
func (db *DB) Record(rep *pipeline.Report) (int64, error) {
	if rep.Scan == nil || rep.Prune == nil || rep.Append == nil {
		return 0, errors.New("journal: report is incomplete")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	o := rep.Options
	res, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, target_dir, index_path, find_string, replace_string,
			dry_run, pages, replaced, skipped, failed, removed, added, index_checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.StartedAt, rep.FinishedAt, o.TargetDirectory, o.IndexFilePath, o.FindString, o.ReplaceString,
		o.DryRun, rep.Scan.Pages.Len(), len(rep.Scan.Replaced), len(rep.Scan.Skipped), len(rep.Scan.Failed),
		len(rep.Prune.Removed), len(rep.Append.Added), rep.IndexChecksum)
	if err != nil {
		return 0, fmt.Errorf("journal: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: run id: %w", err)
	}

	if len(rep.Prune.Removed)+len(rep.Append.Added) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO link_changes (run_id, kind, target, line) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("journal: prepare change insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rep.Prune.Removed {
			if _, err := stmt.Exec(runID, KindRemoved, r.Link.Target, r.Line); err != nil {
				return 0, fmt.Errorf("journal: insert change: %w", err)
			}
		}
		pattern := parser.NewLinkPattern(o.ReplaceString)
		for _, line := range rep.Append.Added {
			link, _ := pattern.Match(line)
			if _, err := stmt.Exec(runID, KindAdded, link.Target, line); err != nil {
				return 0, fmt.Errorf("journal: insert change: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("journal: commit: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent run, or nil if none has been recorded.
func (db *DB) LastRun() (*RunRow, error) {
	var r RunRow
	err := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, target_dir, index_path, dry_run,
		       pages, replaced, skipped, failed, removed, added, index_checksum
		FROM runs ORDER BY id DESC LIMIT 1
	`).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.TargetDir, &r.IndexPath, &r.DryRun,
		&r.Pages, &r.Replaced, &r.Skipped, &r.Failed, &r.Removed, &r.Added, &r.IndexChecksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: last run: %w", err)
	}
	return &r, nil
}

// Changes returns the link changes recorded for a run, removals first.
func (db *DB) Changes(runID int64) ([]LinkChange, error) {
	rows, err := db.conn.Query(`
		SELECT kind, target, line FROM link_changes
		WHERE run_id = ?
		ORDER BY CASE kind WHEN 'removed' THEN 0 ELSE 1 END, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: changes: %w", err)
	}
	defer rows.Close()

	var out []LinkChange
	for rows.Next() {
		var c LinkChange
		if err := rows.Scan(&c.Kind, &c.Target, &c.Line); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// History returns every change of the given target across runs, oldest first.
func (db *DB) History(target string) ([]LinkChange, error) {
	rows, err := db.conn.Query(`
		SELECT kind, target, line FROM link_changes
		WHERE target = ?
		ORDER BY run_id, rowid
	`, target)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	var out []LinkChange
	for rows.Next() {
		var c LinkChange
		if err := rows.Scan(&c.Kind, &c.Target, &c.Line); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

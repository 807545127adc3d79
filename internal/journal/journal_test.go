package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/wikisync/internal/pipeline"
	"github.com/starford/wikisync/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func runPipeline(t *testing.T) *pipeline.Report {
	t.Helper()
	dir, _ := testutil.TestDocs(t, map[string]string{
		"alpha.md": "see /wiki/alpha",
		"beta.md":  "b",
	})
	indexPath := filepath.Join(t.TempDir(), "index.md")
	testutil.WriteFile(t, indexPath, "[alpha](/x/alpha)\n[gone](/x/gone)\n")

	rep, err := pipeline.Run(context.Background(), pipeline.Options{
		TargetDirectory: dir,
		IndexFilePath:   indexPath,
		FindString:      "/wiki/",
		ReplaceString:   "/x/",
	}, testutil.Logger())
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}
	return rep
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM link_changes`).Scan(&count); err != nil {
		t.Fatalf("link_changes table missing: %v", err)
	}
}

func TestOpen_DSNWithQuery(t *testing.T) {
	for name, dsn := range map[string]string{
		"plain path": filepath.Join(t.TempDir(), "plain.db"),
		"uri query":  "file:" + filepath.Join(t.TempDir(), "uri.db") + "?cache=private",
	} {
		t.Run(name, func(t *testing.T) {
			db, err := Open(dsn)
			if err != nil {
				t.Fatalf("Open(%q): %v", dsn, err)
			}
			defer db.Close()

			var mode string
			if err := db.conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
				t.Fatalf("journal_mode: %v", err)
			}
			if mode != "wal" {
				t.Errorf("journal_mode = %q, want wal", mode)
			}
			var fk int
			if err := db.conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
				t.Fatalf("foreign_keys: %v", err)
			}
			if fk != 1 {
				t.Errorf("foreign_keys = %d, want 1", fk)
			}
		})
	}
}

func TestLastRun_Empty(t *testing.T) {
	db := testDB(t)
	r, err := db.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if r != nil {
		t.Errorf("expected no run, got %+v", r)
	}
}

func TestRecordAndRead(t *testing.T) {
	db := testDB(t)
	rep := runPipeline(t)

	id, err := db.Record(rep)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	last, err := db.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last == nil || last.ID != id {
		t.Fatalf("last run = %+v, want id %d", last, id)
	}
	if last.Pages != 2 || last.Replaced != 1 || last.Removed != 1 || last.Added != 1 {
		t.Errorf("counts = %+v", last)
	}
	if last.IndexChecksum != rep.IndexChecksum {
		t.Errorf("checksum = %q, want %q", last.IndexChecksum, rep.IndexChecksum)
	}

	changes, err := db.Changes(id)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %+v, want 2", changes)
	}
	if changes[0].Kind != KindRemoved || changes[0].Target != "gone" {
		t.Errorf("changes[0] = %+v", changes[0])
	}
	if changes[1].Kind != KindAdded || changes[1].Target != "beta" || changes[1].Line != "[beta](/x/beta)" {
		t.Errorf("changes[1] = %+v", changes[1])
	}

	hist, err := db.History("gone")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].Kind != KindRemoved {
		t.Errorf("history = %+v", hist)
	}
}

func TestRecord_IncompleteReport(t *testing.T) {
	db := testDB(t)
	if _, err := db.Record(&pipeline.Report{}); err == nil {
		t.Error("expected error for incomplete report")
	}
}

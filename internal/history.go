package internal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/journal"
)

// History prints the journal to w. With an empty target it shows the latest
// run and its link changes; otherwise every recorded change of that page.
func History(_ context.Context, w io.Writer, cfg *Config, target string) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if !cfg.Journal.Enabled() {
		return fmt.Errorf("history: %w: set journal.path in the config", apperr.ErrJournalDisabled)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()

	if target != "" {
		changes, err := db.History(target)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Fprintf(w, "no recorded changes for %q\n", target)
			return nil
		}
		for _, c := range changes {
			fmt.Fprintf(w, "%-7s  %s\n", c.Kind, c.Line)
		}
		return nil
	}

	run, err := db.LastRun()
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	fmt.Fprintf(w, "run %d at %s (dry run: %t)\n", run.ID, run.StartedAt.Format(time.RFC3339), run.DryRun)
	fmt.Fprintf(w, "  %s -> %s\n", run.TargetDir, run.IndexPath)
	fmt.Fprintf(w, "  pages %d, replaced %d, skipped %d, failed %d\n", run.Pages, run.Replaced, run.Skipped, run.Failed)
	fmt.Fprintf(w, "  links removed %d, added %d\n", run.Removed, run.Added)

	changes, err := db.Changes(run.ID)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Fprintf(w, "  %-7s  %s\n", c.Kind, c.Line)
	}
	return nil
}

// Package pipeline runs the three reconciliation phases in order:
// scan and replace, prune stale index links, append missing index links.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/wikisync/internal/indexfile"
	"github.com/starford/wikisync/internal/parser"
	"github.com/starford/wikisync/internal/rewrite"
	"github.com/starford/wikisync/internal/storage"
)

// Options is the explicit configuration of a run.
type Options struct {
	TargetDirectory string
	IndexFilePath   string
	FindString      string
	ReplaceString   string
	DryRun          bool
}

// Report aggregates the outcome of every phase that ran.
type Report struct {
	Options       Options
	TargetRoot    string // absolute document directory
	IndexPath     string // absolute index file path
	StartedAt     time.Time
	FinishedAt    time.Time
	Scan          *rewrite.Result
	Prune         *indexfile.PruneResult
	Append        *indexfile.AppendResult
	IndexChecksum string
}

// Changed reports whether the run modified the index file.
func (r *Report) Changed() bool {
	return (r.Prune != nil && len(r.Prune.Removed) > 0) ||
		(r.Append != nil && len(r.Append.Added) > 0)
}

// Written maps the absolute path of every file the run wrote to the checksum
// of the content it left there. Dry runs write nothing.
func (r *Report) Written() map[string]string {
	out := make(map[string]string)
	if r.Options.DryRun {
		return out
	}
	if r.Scan != nil {
		for _, c := range r.Scan.Replaced {
			out[filepath.Join(r.TargetRoot, c.Name)] = c.NewChecksum
		}
	}
	if r.Changed() && r.IndexPath != "" {
		out[r.IndexPath] = r.IndexChecksum
	}
	return out
}

// Run executes the pipeline. A missing target directory or index file stops
// the run with an error wrapping apperr.ErrTargetDirMissing or
// apperr.ErrIndexMissing; documents already rewritten by the scan phase stay
// rewritten. The partial report is returned alongside any error.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (*Report, error) {
	rep := &Report{Options: opts, StartedAt: time.Now()}

	if opts.ReplaceString != opts.FindString && strings.Contains(opts.ReplaceString, opts.FindString) {
		logger.Warn("replace string contains find string; documents are rewritten again on every run",
			slog.String("find", opts.FindString),
			slog.String("replace", opts.ReplaceString))
	}

	// Phase 1: scan and replace.
	store, err := storage.NewFS(opts.TargetDirectory)
	if err != nil {
		return rep, err
	}
	rep.TargetRoot = store.Root()
	rep.Scan, err = rewrite.Scan(store, rewrite.Options{
		Find:    opts.FindString,
		Replace: opts.ReplaceString,
		DryRun:  opts.DryRun,
	}, logger)
	if err != nil {
		return rep, fmt.Errorf("scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Phase 2: prune stale links.
	idx, err := indexfile.Open(opts.IndexFilePath)
	if err != nil {
		return rep, err
	}
	idx.SetDryRun(opts.DryRun)
	if rep.IndexPath, err = filepath.Abs(idx.Path()); err != nil {
		return rep, fmt.Errorf("resolve index path: %w", err)
	}

	rep.Prune, err = idx.Prune(rep.Scan.Pages, parser.NewLinkPattern(opts.ReplaceString))
	if err != nil {
		return rep, fmt.Errorf("prune: %w", err)
	}
	for _, r := range rep.Prune.Removed {
		logger.Info("prune: removed stale link",
			slog.String("target", r.Link.Target),
			slog.Int("line", r.LineNo),
			slog.String("text", r.Line))
	}
	logger.Info("prune: done",
		slog.String("index", idx.Path()),
		slog.Int("removed", len(rep.Prune.Removed)),
		slog.Int("kept", rep.Prune.Kept))
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Phase 3: append missing links.
	rep.Append, err = idx.AppendMissing(rep.Scan.Pages, opts.ReplaceString)
	if err != nil {
		return rep, fmt.Errorf("append: %w", err)
	}
	for _, link := range rep.Append.Added {
		logger.Info("append: added link", slog.String("link", link))
	}
	logger.Info("append: done",
		slog.String("index", idx.Path()),
		slog.Int("added", len(rep.Append.Added)))

	rep.IndexChecksum = idx.Checksum()
	rep.FinishedAt = time.Now()

	logger.Info("Reconciliation complete",
		slog.Int("pages", rep.Scan.Pages.Len()),
		slog.Int("replaced", len(rep.Scan.Replaced)),
		slog.Int("failed", len(rep.Scan.Failed)),
		slog.Int("links_removed", len(rep.Prune.Removed)),
		slog.Int("links_added", len(rep.Append.Added)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

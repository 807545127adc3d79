// Package rewrite performs the bulk substring replacement over the document
// directory and collects the authoritative page set along the way.
package rewrite

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/checksum"
	"github.com/starford/wikisync/internal/pageset"
	"github.com/starford/wikisync/internal/storage"
)

// FileChange describes a document that was rewritten.
type FileChange struct {
	Name        string
	Occurrences int
	OldChecksum string
	NewChecksum string
}

// FileError records a per-document failure. Processing continues past it.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return e.Name + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Result is the outcome of a scan.
type Result struct {
	Pages    pageset.Set[string]
	Replaced []FileChange
	Skipped  []string
	Failed   []FileError
}

// Options controls a scan.
type Options struct {
	Find    string
	Replace string
	// DryRun reports what would change without writing anything.
	DryRun bool
}

// Scan visits every document in store. Documents containing opts.Find have
// every occurrence replaced and are written back; others are left untouched.
// Every document stem lands in Result.Pages, including ones that failed.
// An error is returned only when the directory itself cannot be listed.
func Scan(store storage.Provider, opts Options, logger *slog.Logger) (*Result, error) {
	docs, err := store.List()
	if err != nil {
		return nil, err
	}

	logger.Info("scan: processing documents",
		slog.String("dir", store.Root()),
		slog.Int("count", len(docs)))

	res := &Result{Pages: pageset.New[string]()}
	for _, d := range docs {
		res.Pages.Add(d.Stem())

		change, err := rewriteOne(store, d.Name, opts)
		if err != nil {
			logger.Error("scan: failed", slog.String("file", d.Name), slog.String("error", err.Error()))
			res.Failed = append(res.Failed, FileError{Name: d.Name, Err: err})
			continue
		}
		if change == nil {
			logger.Info("scan: skipped, nothing to replace",
				slog.String("file", d.Name),
				slog.Time("modified", d.UpdatedAt))
			res.Skipped = append(res.Skipped, d.Name)
			continue
		}
		logger.Info("scan: replaced",
			slog.String("file", d.Name),
			slog.Time("modified", d.UpdatedAt),
			slog.Int("occurrences", change.Occurrences),
			slog.String("checksum", checksum.Short(change.NewChecksum)),
			slog.Bool("dry_run", opts.DryRun))
		res.Replaced = append(res.Replaced, *change)
	}

	logger.Info("scan: done",
		slog.Int("pages", res.Pages.Len()),
		slog.Int("replaced", len(res.Replaced)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}

// rewriteOne returns nil when the document does not contain opts.Find.
func rewriteOne(store storage.Provider, name string, opts Options) (*FileChange, error) {
	data, err := store.Read(name)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("decode %s: %w", name, apperr.ErrInvalidUTF8)
	}

	content := string(data)
	n := strings.Count(content, opts.Find)
	if n == 0 {
		return nil, nil
	}

	updated := []byte(strings.ReplaceAll(content, opts.Find, opts.Replace))
	if !opts.DryRun {
		if err := store.Write(name, updated); err != nil {
			return nil, err
		}
	}
	return &FileChange{
		Name:        name,
		Occurrences: n,
		OldChecksum: checksum.Sum(data),
		NewChecksum: checksum.Sum(updated),
	}, nil
}

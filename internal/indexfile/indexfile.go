// Package indexfile reconciles the links in a single index file against the
// authoritative page set: stale link lines are pruned and missing canonical
// links are appended.
package indexfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/checksum"
	"github.com/starford/wikisync/internal/models"
	"github.com/starford/wikisync/internal/pageset"
	"github.com/starford/wikisync/internal/parser"
	"github.com/starford/wikisync/internal/storage"
)

// File is an index file held in memory between phases.
type File struct {
	path    string
	content string
	dryRun  bool
}

// Open reads the index file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("indexfile: %w: %s", apperr.ErrIndexMissing, path)
		}
		return nil, fmt.Errorf("indexfile: read %s: %w", path, err)
	}
	return &File{path: path, content: string(data)}, nil
}

// SetDryRun makes subsequent mutations update only the in-memory content.
func (f *File) SetDryRun(v bool) { f.dryRun = v }

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Content returns the current in-memory content.
func (f *File) Content() string { return f.content }

// Checksum returns the digest of the current in-memory content.
func (f *File) Checksum() string { return checksum.Sum([]byte(f.content)) }

// RemovedLine is a line dropped because its link target is not a known page.
type RemovedLine struct {
	LineNo int // 1-based, in the pre-prune file
	Line   string
	Link   models.Link
}

// PruneResult is the outcome of Prune.
type PruneResult struct {
	Removed []RemovedLine
	Kept    int
}

// Prune drops every line whose first recognised link points outside pages.
// The whole line goes, whatever else it holds. The file is only rewritten
// when at least one line was dropped; kept lines are preserved byte for byte.
func (f *File) Prune(pages pageset.Set[string], pattern *parser.LinkPattern) (*PruneResult, error) {
	res := &PruneResult{}
	lines := splitLines(f.content)

	var b strings.Builder
	b.Grow(len(f.content))
	for i, raw := range lines {
		link, ok := pattern.Match(raw)
		if ok && !pages.Has(link.Target) {
			res.Removed = append(res.Removed, RemovedLine{
				LineNo: i + 1,
				Line:   strings.TrimRight(raw, "\r\n"),
				Link:   link,
			})
			continue
		}
		res.Kept++
		b.WriteString(raw)
	}

	if len(res.Removed) == 0 {
		return res, nil
	}
	if err := f.replace(b.String()); err != nil {
		return nil, err
	}
	return res, nil
}

// AppendResult is the outcome of AppendMissing.
type AppendResult struct {
	Added []string // canonical link texts, in the order appended
}

// AppendMissing adds a canonical link line for every page whose canonical
// link text does not already appear anywhere in the file. Pages are visited
// in ascending order. Presence is checked against the content as it was
// before this call.
func (f *File) AppendMissing(pages pageset.Set[string], prefix string) (*AppendResult, error) {
	snapshot := f.content
	res := &AppendResult{}
	for _, stem := range pageset.Sorted(pages) {
		link := parser.CanonicalLink(stem, prefix)
		if !strings.Contains(snapshot, link) {
			res.Added = append(res.Added, link)
		}
	}
	if len(res.Added) == 0 {
		return res, nil
	}

	var b strings.Builder
	b.WriteString(snapshot)
	b.WriteString(separator(snapshot))
	for _, link := range res.Added {
		b.WriteString(link)
		b.WriteString("\n")
	}
	if err := f.replace(b.String()); err != nil {
		return nil, err
	}
	return res, nil
}

// separator returns what must go between existing content and the first
// appended link: a terminating newline if missing, plus one blank line,
// unless the content is empty or already ends in a blank line.
func separator(content string) string {
	switch {
	case content == "", strings.HasSuffix(content, "\n\n"):
		return ""
	case strings.HasSuffix(content, "\n"):
		return "\n"
	default:
		return "\n\n"
	}
}

func (f *File) replace(content string) error {
	if !f.dryRun {
		if err := storage.WriteFileAtomic(f.path, []byte(content)); err != nil {
			return fmt.Errorf("indexfile: write %s: %w", f.path, err)
		}
	}
	f.content = content
	return nil
}

// splitLines splits s after each "\n", keeping the terminators so lines can
// be re-joined without altering bytes.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

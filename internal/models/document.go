// Package models defines the domain types for wikisync.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentExt is the extension that marks a file as a document.
const DocumentExt = ".md"

// Document is a Markdown file in the target directory.
type Document struct {
	Name      string // file name, e.g. "foo.md"
	UpdatedAt time.Time
}

// Stem returns the file name without its extension.
func (d Document) Stem() string {
	return Stem(d.Name)
}

// Stem strips the extension from a file name.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsDocument reports whether name carries the document extension.
func IsDocument(name string) bool {
	return strings.HasSuffix(name, DocumentExt)
}

// Link is a Markdown link found in the index file.
type Link struct {
	Label  string
	Target string // page stem the link points to
}

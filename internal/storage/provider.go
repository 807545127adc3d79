// Package storage defines the document directory abstraction.
package storage

import "github.com/starford/wikisync/internal/models"

// Provider is the interface for document file operations.
type Provider interface {
	// Root returns the absolute path of the document directory.
	Root() string
	// List returns every .md entry directly inside the root, sorted by name.
	List() ([]models.Document, error)
	// Read returns the raw bytes of the document called name.
	Read(name string) ([]byte, error)
	// Write atomically replaces the document called name.
	Write(name string, content []byte) error
}

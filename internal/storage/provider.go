// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileInfo is lightweight metadata for a vault file.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for vault file operations. The exporter only
// reads documents and image binaries, and overwrites documents after link
// rewriting; it never creates or deletes vault files.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}

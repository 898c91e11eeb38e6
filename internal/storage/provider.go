// Package storage defines the image directory file-system abstraction.
package storage

import "github.com/starford/randpic/internal/models"

// Provider is the interface for image file operations. All paths are
// relative to the store root.
type Provider interface {
	// Dirs returns the names of the top-level directories (keyword partitions).
	Dirs() ([]string, error)
	// List returns every regular image file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Mkdir creates dir if it does not exist and reports whether it did.
	Mkdir(dir string) (bool, error)
	// Rmdir removes dir if it is empty.
	Rmdir(dir string) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Abs returns the absolute path for a relative path inside the root.
	Abs(path string) (string, error)
	// Root returns the absolute store root.
	Root() string
}

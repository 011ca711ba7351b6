// Package treefs contains the core domain types and interfaces for TreeFS, an
// in-memory hierarchical filesystem served over FUSE.
package treefs

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Operator is the set of path-addressed operations the FUSE adapter calls on
// every filesystem request. Paths are absolute and slash-delimited.
//
// Implementations: filesystem.FileSystem (the engine) and trace.Interceptor
// (a counting and logging wrapper around another Operator).
type Operator interface {
	// GetAttr returns a snapshot of the node's stat attributes
	GetAttr(path string) (fuse.Attr, error)

	// ReadDir returns the names of a directory's immediate children in no
	// particular order, without "." and ".."
	ReadDir(path string) ([]string, error)

	// Mkdir creates a directory under an existing parent
	Mkdir(path string, mode uint32) error

	// Create creates an empty regular file and returns a new handle value
	Create(path string, mode uint32) (uint64, error)

	// Open checks the node exists and returns a new handle value
	Open(path string) (uint64, error)

	// Read returns up to size bytes starting at offset. Offsets past the end
	// yield an empty result.
	Read(path string, offset int64, size int) ([]byte, error)

	// Readlink returns a symlink's target
	Readlink(path string) (string, error)

	// Write replaces everything from offset onward with data and returns the
	// number of bytes written. Bytes previously stored past
	// offset+len(data) are discarded.
	Write(path string, data []byte, offset int64) (int, error)

	// Truncate cuts or zero-extends the content to size bytes
	Truncate(path string, size int64) error

	// Rename moves a node to newPath, replacing a compatible destination
	Rename(oldPath, newPath string) error

	// Rmdir removes an empty directory
	Rmdir(path string) error

	// Unlink removes a file or symlink
	Unlink(path string) error

	// Symlink creates a symlink at path pointing to target
	Symlink(path, target string) error

	// Chmod replaces the permission bits, keeping the file type
	Chmod(path string, mode uint32) error

	// Chown sets the owner and group
	Chown(path string, uid, gid uint32) error

	// Utimens sets access and modify times; nil for both means now
	Utimens(path string, atime, mtime *time.Time) error
}

package fusefs

import (
	"errors"

	"github.com/brettbedarf/treefs/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// ToStatus translates an engine error into the errno reported to the kernel.
// Errors it does not recognize become EIO.
func ToStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, filesystem.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, filesystem.ErrAlreadyExists):
		return fuse.Status(unix.EEXIST)
	case errors.Is(err, filesystem.ErrNotEmpty):
		return fuse.Status(unix.ENOTEMPTY)
	case errors.Is(err, filesystem.ErrNotADirectory):
		return fuse.ENOTDIR
	case errors.Is(err, filesystem.ErrIsADirectory):
		return fuse.Status(unix.EISDIR)
	case errors.Is(err, filesystem.ErrFileTooLarge):
		return fuse.Status(unix.EFBIG)
	case errors.Is(err, filesystem.ErrInvalidArgument):
		return fuse.EINVAL
	default:
		return fuse.EIO
	}
}

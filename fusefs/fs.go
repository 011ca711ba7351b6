// Package fusefs adapts a treefs.Operator to go-fuse's path based
// filesystem API. Every hook converts the mount-relative name into an
// absolute engine path and translates engine errors into errno values.
package fusefs

import (
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	"github.com/rs/zerolog"
)

const (
	statfsBlockSize = 4096
	maxNameLen      = 255
)

// FS implements pathfs.FileSystem on top of a treefs.Operator. Hooks it does
// not override (xattrs, links, mknod) fall through to the default
// implementation and report ENOSYS.
type FS struct {
	pathfs.FileSystem
	op     treefs.Operator
	logger zerolog.Logger
}

var _ pathfs.FileSystem = (*FS)(nil)

func New(op treefs.Operator) *FS {
	return &FS{
		FileSystem: pathfs.NewDefaultFileSystem(),
		op:         op,
		logger:     util.GetLogger("FUSE"),
	}
}

func (fs *FS) String() string {
	return "treefs"
}

// enginePath converts a mount-relative name ("" is the root) to an
// absolute path
func enginePath(name string) string {
	return "/" + name
}

// status converts err for the kernel, logging anything that is not a known
// engine error
func (fs *FS) status(hook, path string, err error) fuse.Status {
	code := ToStatus(err)
	if code == fuse.EIO {
		fs.logger.Error().Err(err).Str("hook", hook).Str("path", path).Msg("Unexpected engine error")
	}
	return code
}

// chownToCaller gives a freshly created node to the requesting user. The
// node exists at this point, so a failure is logged instead of reported.
func (fs *FS) chownToCaller(path string, ctx *fuse.Context) {
	if ctx == nil {
		return
	}
	if err := fs.op.Chown(path, ctx.Uid, ctx.Gid); err != nil {
		fs.logger.Warn().Err(err).Str("path", path).Msg("Failed to give new node to caller")
	}
}

func (fs *FS) GetAttr(name string, _ *fuse.Context) (*fuse.Attr, fuse.Status) {
	path := enginePath(name)
	attr, err := fs.op.GetAttr(path)
	if err != nil {
		return nil, fs.status("getattr", path, err)
	}
	return &attr, fuse.OK
}

func (fs *FS) OpenDir(name string, _ *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	path := enginePath(name)
	names, err := fs.op.ReadDir(path)
	if err != nil {
		return nil, fs.status("readdir", path, err)
	}

	entries := make([]fuse.DirEntry, 0, len(names)+2)
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: fuse.S_IFDIR},
		fuse.DirEntry{Name: "..", Mode: fuse.S_IFDIR},
	)
	for _, child := range names {
		entry := fuse.DirEntry{Name: child}
		childPath := path + "/" + child
		if name == "" {
			childPath = "/" + child
		}
		if attr, err := fs.op.GetAttr(childPath); err == nil {
			entry.Mode = attr.Mode
			entry.Ino = attr.Ino
		}
		entries = append(entries, entry)
	}
	return entries, fuse.OK
}

func (fs *FS) Mkdir(name string, mode uint32, ctx *fuse.Context) fuse.Status {
	path := enginePath(name)
	if err := fs.op.Mkdir(path, mode); err != nil {
		return fs.status("mkdir", path, err)
	}
	fs.chownToCaller(path, ctx)
	return fuse.OK
}

func (fs *FS) Create(name string, _ uint32, mode uint32, ctx *fuse.Context) (nodefs.File, fuse.Status) {
	path := enginePath(name)
	fh, err := fs.op.Create(path, mode)
	if err != nil {
		return nil, fs.status("create", path, err)
	}
	fs.chownToCaller(path, ctx)
	return newFile(fs, path, fh), fuse.OK
}

func (fs *FS) Open(name string, _ uint32, _ *fuse.Context) (nodefs.File, fuse.Status) {
	path := enginePath(name)
	fh, err := fs.op.Open(path)
	if err != nil {
		return nil, fs.status("open", path, err)
	}
	return newFile(fs, path, fh), fuse.OK
}

func (fs *FS) Rename(oldName string, newName string, _ *fuse.Context) fuse.Status {
	oldPath, newPath := enginePath(oldName), enginePath(newName)
	return fs.status("rename", oldPath, fs.op.Rename(oldPath, newPath))
}

func (fs *FS) Rmdir(name string, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("rmdir", path, fs.op.Rmdir(path))
}

func (fs *FS) Unlink(name string, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("unlink", path, fs.op.Unlink(path))
}

// Symlink creates linkName pointing at value
func (fs *FS) Symlink(value string, linkName string, ctx *fuse.Context) fuse.Status {
	path := enginePath(linkName)
	if err := fs.op.Symlink(path, value); err != nil {
		return fs.status("symlink", path, err)
	}
	fs.chownToCaller(path, ctx)
	return fuse.OK
}

func (fs *FS) Readlink(name string, _ *fuse.Context) (string, fuse.Status) {
	path := enginePath(name)
	target, err := fs.op.Readlink(path)
	if err != nil {
		return "", fs.status("readlink", path, err)
	}
	return target, fuse.OK
}

func (fs *FS) Truncate(name string, size uint64, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("truncate", path, fs.op.Truncate(path, int64(size)))
}

func (fs *FS) Chmod(name string, mode uint32, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("chmod", path, fs.op.Chmod(path, mode))
}

func (fs *FS) Chown(name string, uid uint32, gid uint32, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("chown", path, fs.op.Chown(path, uid, gid))
}

func (fs *FS) Utimens(name string, atime *time.Time, mtime *time.Time, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	return fs.status("utimens", path, fs.op.Utimens(path, atime, mtime))
}

// Access grants everything; permission bits are stored but not enforced
func (fs *FS) Access(name string, _ uint32, _ *fuse.Context) fuse.Status {
	path := enginePath(name)
	if _, err := fs.op.GetAttr(path); err != nil {
		return fs.status("access", path, err)
	}
	return fuse.OK
}

// StatFs reports a filesystem with no fixed capacity
func (fs *FS) StatFs(_ string) *fuse.StatfsOut {
	return &fuse.StatfsOut{
		Bsize:   statfsBlockSize,
		Frsize:  statfsBlockSize,
		NameLen: maxNameLen,
	}
}

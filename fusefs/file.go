package fusefs

import (
	"fmt"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
)

// File is the open file returned from Open and Create. It holds the engine
// handle and the path the file was opened at; every call re-resolves that
// path, so the engine keeps no per-handle state.
type File struct {
	nodefs.File
	fs     *FS
	path   string
	handle uint64
}

var _ nodefs.File = (*File)(nil)

func newFile(fs *FS, path string, handle uint64) *File {
	return &File{
		File:   nodefs.NewDefaultFile(),
		fs:     fs,
		path:   path,
		handle: handle,
	}
}

// Handle returns the engine handle value issued at open
func (f *File) Handle() uint64 {
	return f.handle
}

func (f *File) String() string {
	return fmt.Sprintf("treefs.File(%s, fh=%d)", f.path, f.handle)
}

func (f *File) InnerFile() nodefs.File {
	return nil
}

func (f *File) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	data, err := f.fs.op.Read(f.path, off, len(dest))
	if err != nil {
		return nil, f.fs.status("read", f.path, err)
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (f *File) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.fs.op.Write(f.path, data, off)
	if err != nil {
		return 0, f.fs.status("write", f.path, err)
	}
	return uint32(n), fuse.OK
}

func (f *File) Flush() fuse.Status {
	return fuse.OK
}

func (f *File) Fsync(int) fuse.Status {
	return fuse.OK
}

func (f *File) Truncate(size uint64) fuse.Status {
	return f.fs.status("truncate", f.path, f.fs.op.Truncate(f.path, int64(size)))
}

func (f *File) GetAttr(out *fuse.Attr) fuse.Status {
	attr, err := f.fs.op.GetAttr(f.path)
	if err != nil {
		return f.fs.status("getattr", f.path, err)
	}
	*out = attr
	return fuse.OK
}

func (f *File) Chmod(perms uint32) fuse.Status {
	return f.fs.status("chmod", f.path, f.fs.op.Chmod(f.path, perms))
}

func (f *File) Chown(uid uint32, gid uint32) fuse.Status {
	return f.fs.status("chown", f.path, f.fs.op.Chown(f.path, uid, gid))
}

func (f *File) Utimens(atime *time.Time, mtime *time.Time) fuse.Status {
	return f.fs.status("utimens", f.path, f.fs.op.Utimens(f.path, atime, mtime))
}

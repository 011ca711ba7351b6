package filesystem

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FileSystem is the in-memory tree engine. Every operation takes an absolute
// path, parses it once and walks from the root.
//
// One RWMutex guards the whole tree: queries hold the read lock and
// mutations the write lock, so concurrent FUSE requests are serialized
// without per-node locks. Operations never log and never mutate before all
// of their preconditions have been checked.
type FileSystem struct {
	root    *Dir          // Root of node tree
	lastIno atomic.Uint64 // Last fuse Attr.Ino assigned; incremented when new nodes are created
	handles HandleAllocator
	maxSize int64 // Largest content length Write and Truncate may produce
	now     func() time.Time
	mu      sync.RWMutex
}

var _ treefs.Operator = (*FileSystem)(nil)

// Entry is a snapshot of a resolved node
type Entry struct {
	Name string
	Kind Kind
	Attr fuse.Attr
}

// NewFS creates an engine holding only the root directory. A nil cfg uses
// the defaults.
func NewFS(cfg *config.Config) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fs := &FileSystem{maxSize: cfg.MaxFileSize, now: time.Now}
	fs.lastIno.Store(fuse.FUSE_ROOT_ID)

	rootAttr := newDefaultAttr(fuse.FUSE_ROOT_ID, fs.now())
	rootAttr.Mode = DirAttr | (cfg.RootPerms & permMask)
	rootAttr.Nlink = 2
	fs.root = newDir(rootName, NewInode(rootAttr))
	return fs
}

// LastHandle returns the most recently issued handle value, or 0
func (fs *FileSystem) LastHandle() uint64 {
	return fs.handles.Last()
}

// Resolve walks the tree to path and returns a snapshot of the node found
func (fs *FileSystem) Resolve(path string) (Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookup("resolve", path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: n.Name(), Kind: n.Kind(), Attr: n.Attr()}, nil
}

// GetAttr returns a snapshot of the node's attributes
func (fs *FileSystem) GetAttr(path string) (fuse.Attr, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookup("getattr", path)
	if err != nil {
		return fuse.Attr{}, err
	}
	return n.Attr(), nil
}

// ReadDir lists the immediate children of a directory
func (fs *FileSystem) ReadDir(path string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookup("readdir", path)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil, opErr("readdir", path, ErrNotADirectory)
	}
	return dir.Children(), nil
}

// Mkdir creates a directory with link count 2 and bumps the parent's link
// count by one.
func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, err := fs.prepareCreate("mkdir", path)
	if err != nil {
		return err
	}

	now := fs.now()
	attr := newDefaultAttr(fs.lastIno.Add(1), now)
	attr.Mode = DirAttr | (mode & permMask)
	attr.Nlink = 2

	parent.addChild(newDir(name, NewInode(attr)))
	parent.touchModified(now)
	return nil
}

// Create makes an empty regular file and returns a new handle value
func (fs *FileSystem) Create(path string, mode uint32) (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, err := fs.prepareCreate("create", path)
	if err != nil {
		return 0, err
	}

	now := fs.now()
	attr := newDefaultAttr(fs.lastIno.Add(1), now)
	attr.Mode = FileAttr | (mode & permMask)

	parent.addChild(newFile(name, NewInode(attr)))
	parent.touchModified(now)
	return fs.handles.Next(), nil
}

// Symlink creates a symlink at path whose content is target
func (fs *FileSystem) Symlink(path, target string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, err := fs.prepareCreate("symlink", path)
	if err != nil {
		return err
	}

	now := fs.now()
	attr := newDefaultAttr(fs.lastIno.Add(1), now)
	attr.Mode = SymlinkAttr | 0o777

	parent.addChild(newSymlink(name, NewInode(attr), target))
	parent.touchModified(now)
	return nil
}

// Open checks the node exists and returns a new handle value
func (fs *FileSystem) Open(path string) (uint64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := fs.lookup("open", path); err != nil {
		return 0, err
	}
	return fs.handles.Next(), nil
}

// Read returns a copy of content[offset:offset+size], clamped to the
// available length
func (fs *FileSystem) Read(path string, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, opErr("read", path, ErrInvalidArgument)
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	c, err := fs.lookupContent("read", path)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(c.data)) {
		return []byte{}, nil
	}
	end := min(offset+int64(size), int64(len(c.data)))
	return append([]byte(nil), c.data[offset:end]...), nil
}

// ReadAll returns a copy of the whole content of a file or symlink
func (fs *FileSystem) ReadAll(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	c, err := fs.lookupContent("read", path)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, c.data...), nil
}

// Readlink returns the target of the symlink at path
func (fs *FileSystem) Readlink(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookup("readlink", path)
	if err != nil {
		return "", err
	}
	link, ok := n.(*Symlink)
	if !ok {
		return "", opErr("readlink", path, ErrInvalidArgument)
	}
	return link.Target(), nil
}

// Write sets the content to content[:offset] + data. Anything previously
// stored past offset+len(data) is dropped rather than preserved; callers
// depend on this. Writing past the end zero-fills the gap. The result may
// not exceed the configured MaxFileSize.
func (fs *FileSystem) Write(path string, data []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, opErr("write", path, ErrInvalidArgument)
	}
	if offset > fs.maxSize-int64(len(data)) {
		return 0, opErr("write", path, ErrFileTooLarge)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup("write", path)
	if err != nil {
		return 0, err
	}
	c, ok := contentOf(n)
	if !ok {
		return 0, opErr("write", path, ErrIsADirectory)
	}

	c.data = append(resize(c.data, offset), data...)
	ino := n.base().Inode
	ino.setSize(len(c.data))
	ino.touchModified(fs.now())
	return len(data), nil
}

// Truncate sets the content length to size, cutting or zero-extending it
func (fs *FileSystem) Truncate(path string, size int64) error {
	if size < 0 {
		return opErr("truncate", path, ErrInvalidArgument)
	}
	if size > fs.maxSize {
		return opErr("truncate", path, ErrFileTooLarge)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup("truncate", path)
	if err != nil {
		return err
	}
	c, ok := contentOf(n)
	if !ok {
		return opErr("truncate", path, ErrIsADirectory)
	}

	c.data = resize(c.data, size)
	ino := n.base().Inode
	ino.setSize(len(c.data))
	ino.touchModified(fs.now())
	return nil
}

// Rename moves the node at oldPath to newPath. All checks run before the
// tree is touched, so a failed rename leaves the source in place.
//
// An existing destination is replaced if compatible: a file may replace a
// file and a directory may replace an empty directory.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	const op = "rename"

	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, err := parse(op, oldPath)
	if err != nil {
		return err
	}
	dst, err := parse(op, newPath)
	if err != nil {
		return err
	}
	if src.IsRoot() || dst.IsRoot() {
		return opErr(op, oldPath, ErrInvalidArgument)
	}

	dstDirPath, dstName := dst.Split()
	if !validName(dstName) {
		return opErr(op, newPath, ErrInvalidArgument)
	}
	newParent, err := fs.resolveDir(dstDirPath)
	if err != nil {
		return opErr(op, newPath, err)
	}

	srcDirPath, srcName := src.Split()
	oldParent, err := fs.resolveDir(srcDirPath)
	if err != nil {
		return opErr(op, oldPath, err)
	}
	n, ok := oldParent.Child(srcName)
	if !ok {
		return opErr(op, oldPath, ErrNotFound)
	}

	if src.Equal(dst) {
		return nil
	}
	if n.Kind() == KindDir && dst.HasPrefix(src) {
		// destination lies beneath the directory being moved
		return opErr(op, newPath, ErrInvalidArgument)
	}
	existing, replace := newParent.Child(dstName)
	if replace {
		if err := checkReplace(n, existing); err != nil {
			return opErr(op, newPath, err)
		}
	}

	if replace {
		newParent.removeChild(dstName)
	}
	oldParent.removeChild(srcName)
	n.base().name = dstName
	newParent.addChild(n)

	now := fs.now()
	oldParent.touchModified(now)
	newParent.touchModified(now)
	n.base().setCtime(now)
	return nil
}

// Delete detaches the node at path from its parent. Directories must be
// empty.
func (fs *FileSystem) Delete(path string) error {
	return fs.remove("delete", path, nil)
}

// Rmdir deletes an empty directory
func (fs *FileSystem) Rmdir(path string) error {
	return fs.remove("rmdir", path, func(n Node) error {
		if n.Kind() != KindDir {
			return ErrNotADirectory
		}
		return nil
	})
}

// Unlink deletes a file or symlink
func (fs *FileSystem) Unlink(path string) error {
	return fs.remove("unlink", path, func(n Node) error {
		if n.Kind() == KindDir {
			return ErrIsADirectory
		}
		return nil
	})
}

// Chmod keeps the file-type bits of the mode and replaces the permission
// bits with mode
func (fs *FileSystem) Chmod(path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup("chmod", path)
	if err != nil {
		return err
	}
	ino := n.base().Inode
	ino.setPerms(mode)
	ino.setCtime(fs.now())
	return nil
}

// Chown sets the owner and group
func (fs *FileSystem) Chown(path string, uid, gid uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup("chown", path)
	if err != nil {
		return err
	}
	ino := n.base().Inode
	ino.setOwner(uid, gid)
	ino.setCtime(fs.now())
	return nil
}

// Utimens updates the access and modify times. When both are nil the
// current time is used for both; a single nil leaves that time unchanged.
func (fs *FileSystem) Utimens(path string, atime, mtime *time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup("utimens", path)
	if err != nil {
		return err
	}
	now := fs.now()
	if atime == nil && mtime == nil {
		atime, mtime = &now, &now
	}
	ino := n.base().Inode
	if atime != nil {
		ino.setAtime(*atime)
	}
	if mtime != nil {
		ino.setMtime(*mtime)
	}
	ino.setCtime(now)
	return nil
}

// remove implements Delete, Rmdir and Unlink. check may reject the node
// based on its kind.
func (fs *FileSystem) remove(op, path string, check func(Node) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := parse(op, path)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return opErr(op, path, ErrInvalidArgument)
	}

	dirPath, name := p.Split()
	parent, err := fs.resolveDir(dirPath)
	if err != nil {
		return opErr(op, path, err)
	}
	n, ok := parent.Child(name)
	if !ok {
		return opErr(op, path, ErrNotFound)
	}
	if check != nil {
		if err := check(n); err != nil {
			return opErr(op, path, err)
		}
	}
	if dir, ok := n.(*Dir); ok && dir.Len() > 0 {
		return opErr(op, path, ErrNotEmpty)
	}

	parent.removeChild(name)
	parent.touchModified(fs.now())
	return nil
}

// prepareCreate resolves the parent directory of a node about to be created
// and returns it with the new leaf name. Caller must hold fs.mu.Lock().
func (fs *FileSystem) prepareCreate(op, path string) (*Dir, string, error) {
	p, err := parse(op, path)
	if err != nil {
		return nil, "", err
	}
	if p.IsRoot() {
		return nil, "", opErr(op, path, ErrAlreadyExists)
	}

	dirPath, name := p.Split()
	if !validName(name) {
		return nil, "", opErr(op, path, ErrInvalidArgument)
	}
	parent, err := fs.resolveDir(dirPath)
	if err != nil {
		return nil, "", opErr(op, path, err)
	}
	if _, exists := parent.Child(name); exists {
		return nil, "", opErr(op, path, ErrAlreadyExists)
	}
	return parent, name, nil
}

// lookup parses and resolves path, wrapping failures in an *OpError
func (fs *FileSystem) lookup(op, path string) (Node, error) {
	p, err := parse(op, path)
	if err != nil {
		return nil, err
	}
	n, err := fs.resolve(p)
	if err != nil {
		return nil, opErr(op, path, err)
	}
	return n, nil
}

// lookupContent resolves path to the payload of a file or symlink
func (fs *FileSystem) lookupContent(op, path string) (*content, error) {
	n, err := fs.lookup(op, path)
	if err != nil {
		return nil, err
	}
	c, ok := contentOf(n)
	if !ok {
		return nil, opErr(op, path, ErrIsADirectory)
	}
	return c, nil
}

// resolve walks from the root through each segment's child mapping
func (fs *FileSystem) resolve(p Path) (Node, error) {
	var cur Node = fs.root
	for _, name := range p {
		dir, ok := cur.(*Dir)
		if !ok {
			return nil, ErrNotADirectory
		}
		child, ok := dir.Child(name)
		if !ok {
			return nil, ErrNotFound
		}
		cur = child
	}
	return cur, nil
}

func (fs *FileSystem) resolveDir(p Path) (*Dir, error) {
	n, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil, ErrNotADirectory
	}
	return dir, nil
}

// parse rejects relative paths and splits the rest into segments
func parse(op, path string) (Path, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, opErr(op, path, ErrInvalidArgument)
	}
	return ParsePath(path), nil
}

// checkReplace reports whether src may take the place of dst in a rename
func checkReplace(src, dst Node) error {
	if dir, ok := dst.(*Dir); ok {
		if src.Kind() != KindDir {
			return ErrIsADirectory
		}
		if dir.Len() > 0 {
			return ErrNotEmpty
		}
		return nil
	}
	if src.Kind() == KindDir {
		return ErrNotADirectory
	}
	return nil
}

// resize returns buf cut or zero-extended to size bytes
func resize(buf []byte, size int64) []byte {
	if size <= int64(len(buf)) {
		return buf[:size]
	}
	return append(buf, make([]byte, size-int64(len(buf)))...)
}

package filesystem

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Mode type bits
const (
	DirAttr     uint32 = syscall.S_IFDIR
	FileAttr    uint32 = syscall.S_IFREG
	SymlinkAttr uint32 = syscall.S_IFLNK

	typeMask = syscall.S_IFMT
	permMask = 0o7777
)

// blockSize is the unit of fuse.Attr.Blocks
const blockSize = 512

// Inode holds the stat-like metadata of a node in low-level fuse wire
// protocol form. It is only ever accessed under the FileSystem lock.
type Inode struct {
	attr fuse.Attr
}

func NewInode(attr fuse.Attr) *Inode {
	return &Inode{attr: attr}
}

// CopyAttr returns a snapshot copy of the inode's attributes
func (n *Inode) CopyAttr() fuse.Attr {
	return n.attr
}

// Mode returns the full mode (type and permission bits)
func (n *Inode) Mode() uint32 {
	return n.attr.Mode
}

// Nlink returns the link count
func (n *Inode) Nlink() uint32 {
	return n.attr.Nlink
}

func (n *Inode) setSize(size int) {
	n.attr.Size = uint64(size)
	n.attr.Blocks = (uint64(size) + blockSize - 1) / blockSize
}

// setPerms keeps the file-type bits and replaces the permission bits
func (n *Inode) setPerms(perms uint32) {
	n.attr.Mode = (n.attr.Mode & typeMask) | (perms & permMask)
}

func (n *Inode) setOwner(uid, gid uint32) {
	n.attr.Owner = fuse.Owner{Uid: uid, Gid: gid}
}

func (n *Inode) setAtime(t time.Time) {
	n.attr.Atime = uint64(t.Unix())
	n.attr.Atimensec = uint32(t.Nanosecond())
}

func (n *Inode) setMtime(t time.Time) {
	n.attr.Mtime = uint64(t.Unix())
	n.attr.Mtimensec = uint32(t.Nanosecond())
}

func (n *Inode) setCtime(t time.Time) {
	n.attr.Ctime = uint64(t.Unix())
	n.attr.Ctimensec = uint32(t.Nanosecond())
}

// touchModified marks a content change
func (n *Inode) touchModified(now time.Time) {
	n.setMtime(now)
	n.setCtime(now)
}

func (n *Inode) incLink() {
	n.attr.Nlink++
}

func (n *Inode) decLink() {
	if n.attr.Nlink > 0 {
		n.attr.Nlink--
	}
}

// newDefaultAttr returns the default attributes for a new node owned by the
// current process.
// NOTE: Make sure to set the Mode and Nlink fields appropriately
func newDefaultAttr(ino uint64, now time.Time) fuse.Attr {
	return fuse.Attr{
		Ino:   ino,
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(now.Unix()),
		Mtime:     uint64(now.Unix()),
		Ctime:     uint64(now.Unix()),
		Atimensec: uint32(now.Nanosecond()),
		Mtimensec: uint32(now.Nanosecond()),
		Ctimensec: uint32(now.Nanosecond()),
		Blksize:   4096, // preferred size for fs ops
	}
}

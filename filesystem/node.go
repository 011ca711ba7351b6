package filesystem

import (
	"github.com/hanwen/go-fuse/v2/fuse"
)

const rootName = "/"

// Kind tags the concrete type behind a Node
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Node is one entry of the tree: a *Dir, *File or *Symlink.
// Only *Dir carries children, so directory operations on a file do not
// type-check rather than returning empty results.
type Node interface {
	Name() string
	Kind() Kind
	// Attr returns a snapshot of the node's attributes
	Attr() fuse.Attr

	base() *node
}

// node is the state shared by every kind
type node struct {
	name string // Name of the node (last part of the path)
	*Inode
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Attr() fuse.Attr {
	return n.CopyAttr()
}

func (n *node) base() *node {
	return n
}

// Dir is a directory node. It exclusively owns its children.
type Dir struct {
	node
	children map[string]Node // map of child nodes by name
}

func newDir(name string, inode *Inode) *Dir {
	return &Dir{
		node:     node{name: name, Inode: inode},
		children: make(map[string]Node),
	}
}

func (d *Dir) Kind() Kind {
	return KindDir
}

// Child returns the named child
func (d *Dir) Child(name string) (child Node, ok bool) {
	child, ok = d.children[name]
	return
}

// Children returns the child names in no particular order
func (d *Dir) Children() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	return names
}

// Len returns the number of children
func (d *Dir) Len() int {
	return len(d.children)
}

// addChild attaches child under its current name. Only a child directory
// bumps this directory's link count, for its ".." entry; files and symlinks
// leave it unchanged so a directory always has 2 + subdirectories links.
func (d *Dir) addChild(child Node) {
	d.children[child.Name()] = child
	if child.Kind() == KindDir {
		d.incLink()
	}
}

// removeChild detaches the named child and returns it
func (d *Dir) removeChild(name string) (Node, bool) {
	child, ok := d.children[name]
	if !ok {
		return nil, false
	}
	delete(d.children, name)
	if child.Kind() == KindDir {
		d.decLink()
	}
	return child, true
}

// content is the byte payload shared by files and symlinks
type content struct {
	data []byte
}

// File is a regular file holding its data in memory
type File struct {
	node
	content
}

func newFile(name string, inode *Inode) *File {
	return &File{node: node{name: name, Inode: inode}}
}

func (f *File) Kind() Kind {
	return KindFile
}

// Symlink stores its target path as content
type Symlink struct {
	node
	content
}

func newSymlink(name string, inode *Inode, target string) *Symlink {
	s := &Symlink{node: node{name: name, Inode: inode}}
	s.data = []byte(target)
	s.setSize(len(s.data))
	return s
}

func (s *Symlink) Kind() Kind {
	return KindSymlink
}

// Target returns the link target
func (s *Symlink) Target() string {
	return string(s.data)
}

// contentOf returns the payload of a file or symlink
func contentOf(n Node) (*content, bool) {
	switch v := n.(type) {
	case *File:
		return &v.content, true
	case *Symlink:
		return &v.content, true
	default:
		return nil, false
	}
}

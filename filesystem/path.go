package filesystem

import "strings"

// Path is an absolute path parsed into its ordered segments. The root path
// is the empty Path.
//
// A Path is parsed once per operation and passed down the tree walk instead
// of re-splitting the string at every level.
type Path []string

// ParsePath splits an absolute slash-delimited path into segments.
// Empty segments (leading, trailing or doubled slashes) are dropped, so "/"
// and "" both parse to the root.
func ParsePath(p string) Path {
	parts := strings.Split(p, "/")
	segs := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

// IsRoot reports whether p addresses the root directory
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Split returns the parent path and the leaf name. The root has no leaf and
// splits into (root, "").
func (p Path) Split() (Path, string) {
	if p.IsRoot() {
		return p, ""
	}
	return p[:len(p)-1], p[len(p)-1]
}

// Leaf returns the last segment, or "/" for the root
func (p Path) Leaf() string {
	if p.IsRoot() {
		return rootName
	}
	return p[len(p)-1]
}

// HasPrefix reports whether prefix is p itself or one of its ancestors
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether both paths address the same node
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// SplitParent is the string form of [Path.Split]: the parent is "/" joined
// with all but the last segment.
func SplitParent(p string) (parent string, leaf string) {
	dir, name := ParsePath(p).Split()
	return dir.String(), name
}

// validName rejects leaf names that cannot be stored as a directory entry
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

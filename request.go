package treefs

import (
	"context"
	"time"
)

// NodeType is the "type" field of a node definition
type NodeType string

const (
	FileNodeType    NodeType = "file"
	DirNodeType     NodeType = "dir"
	SymlinkNodeType NodeType = "symlink"
)

// NodeRequest has common fields embedded in concrete request types.
// Nil attribute fields keep the engine's defaults.
type NodeRequest struct {
	Path     string
	Type     NodeType
	Perms    *uint32 // i.e. 0755
	OwnerUID *uint32
	OwnerGID *uint32
	Atime    *time.Time // Last Accessed at
	Mtime    *time.Time // Last Modified at
}

// NodeRequestor is implemented by every concrete request type
type NodeRequestor interface {
	GetNodeRequest() *NodeRequest
}

func (r *NodeRequest) GetNodeRequest() *NodeRequest {
	return r
}

type FileCreateRequest struct {
	NodeRequest
	Sources []FileSource // Content sources tried in Priority order
}

type DirCreateRequest struct {
	NodeRequest
}

type SymlinkCreateRequest struct {
	NodeRequest
	Target string
}

// Source produces the initial content of a preloaded file
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceProvider builds Sources of a single type from their raw JSON config
type SourceProvider interface {
	NewSource(raw []byte) (Source, error)
}

// FileSource pairs a Source with its priority; lower values are tried first
type FileSource struct {
	Source   Source
	Priority int
}

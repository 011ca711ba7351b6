package requests

import (
	"encoding/json"
	"time"

	"github.com/brettbedarf/treefs"
)

// NodeRequestDTO is the JSON representation of [treefs.NodeRequest]
type NodeRequestDTO struct {
	Path     string          `json:"path" validate:"required,startswith=/"`
	Type     treefs.NodeType `json:"type" validate:"required,oneof=file dir symlink"`
	Perms    *uint32         `json:"perms,omitempty" validate:"omitempty,lte=4095"` // i.e. 0755 (decimal 493 in JSON)
	OwnerUID *uint32         `json:"owner_uid,omitempty"`
	OwnerGID *uint32         `json:"owner_gid,omitempty"`
	Atime    *time.Time      `json:"atime,omitempty"` // Last Accessed at
	Mtime    *time.Time      `json:"mtime,omitempty"` // Last Modified at
}

// FileRequestDTO is the JSON representation of [treefs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	Sources []json.RawMessage `json:"sources,omitempty"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}

// SymlinkRequestDTO is the JSON representation of [treefs.SymlinkCreateRequest]
type SymlinkRequestDTO struct {
	NodeRequestDTO
	Target string `json:"target" validate:"required"`
}

// SourceConfigDTO is the JSON representation of the static source fields.
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [sources.HTTPSource]):
//
//	URL     string            `json:"url"`
//	Method  *string           `json:"method,omitempty"`
//	Headers map\[string\]string `json:"headers,omitempty"`
//
// See the sources package for the fields each built-in source accepts.
type SourceConfigDTO struct {
	Type     string `json:"type"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}

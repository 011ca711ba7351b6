package requests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/treefs"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// SourceFactory builds a content source from its raw JSON config.
// *sources.Registry satisfies it.
type SourceFactory interface {
	NewSource(raw []byte) (treefs.Source, error)
}

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (treefs.NodeType, error) {
	var meta struct {
		Type treefs.NodeType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalRequest decodes a single node definition of any type
func UnmarshalRequest(data []byte, factory SourceFactory) (treefs.NodeRequestor, error) {
	nodeType, err := GetNodeType(data)
	if err != nil {
		return nil, err
	}
	switch nodeType {
	case treefs.FileNodeType:
		return UnmarshalFileRequest(data, factory)
	case treefs.DirNodeType:
		return UnmarshalDirRequest(data)
	case treefs.SymlinkNodeType:
		return UnmarshalSymlinkRequest(data)
	default:
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
}

// UnmarshalRequests decodes a JSON array of node definitions
func UnmarshalRequests(data []byte, factory SourceFactory) ([]treefs.NodeRequestor, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node definitions: %w", err)
	}

	reqs := make([]treefs.NodeRequestor, 0, len(raws))
	for i, raw := range raws {
		req, err := UnmarshalRequest(raw, factory)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// LoadFile reads node definitions from a JSON (.json) or YAML (.yaml, .yml)
// file
func LoadFile(path string, factory SourceFactory) ([]treefs.NodeRequestor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown node file extension: %s", path)
	}
	return UnmarshalRequests(data, factory)
}

// yamlToJSON re-encodes a YAML document as JSON so that sources keep
// receiving raw JSON configs
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node file: %w", err)
	}
	return json.Marshal(doc)
}

// UnmarshalFileRequest handles file-specific unmarshaling with sources
func UnmarshalFileRequest(data []byte, factory SourceFactory) (*treefs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if err := validateDTO(&dto); err != nil {
		return nil, err
	}

	sources, err := unmarshalSources(dto.Sources, factory)
	if err != nil {
		return nil, err
	}

	return &treefs.FileCreateRequest{
		NodeRequest: convertNodeDTO(dto.NodeRequestDTO),
		Sources:     sources,
	}, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no sources)
func UnmarshalDirRequest(data []byte) (*treefs.DirCreateRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if err := validateDTO(&dto); err != nil {
		return nil, err
	}

	return &treefs.DirCreateRequest{
		NodeRequest: convertNodeDTO(dto.NodeRequestDTO),
	}, nil
}

func UnmarshalSymlinkRequest(data []byte) (*treefs.SymlinkCreateRequest, error) {
	var dto SymlinkRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if err := validateDTO(&dto); err != nil {
		return nil, err
	}

	return &treefs.SymlinkCreateRequest{
		NodeRequest: convertNodeDTO(dto.NodeRequestDTO),
		Target:      dto.Target,
	}, nil
}

// unmarshalSources builds every source through factory, defaulting each
// priority to its array index
func unmarshalSources(raws []json.RawMessage, factory SourceFactory) ([]treefs.FileSource, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("file sources given but no source factory configured")
	}

	sources := make([]treefs.FileSource, 0, len(raws))
	for i, raw := range raws {
		var meta SourceConfigDTO
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		src, err := factory.NewSource(raw)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}

		sources = append(sources, treefs.FileSource{
			Source:   src,
			Priority: valueOrDefault(meta.Priority, i),
		})
	}
	return sources, nil
}

func validateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}
	return nil
}

func convertNodeDTO(dto NodeRequestDTO) treefs.NodeRequest {
	return treefs.NodeRequest{
		Path:     dto.Path,
		Type:     dto.Type,
		Perms:    dto.Perms,
		OwnerUID: dto.OwnerUID,
		OwnerGID: dto.OwnerGID,
		Atime:    dto.Atime,
		Mtime:    dto.Mtime,
	}
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/brettbedarf/treefs"
)

// FileSource copies the content of a file on the host
type FileSource struct {
	Path string `json:"path"`
}

// FileProvider builds FileSources
type FileProvider struct{}

func (p *FileProvider) NewSource(raw []byte) (treefs.Source, error) {
	var src FileSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	if src.Path == "" {
		return nil, errors.New("file source requires a path")
	}
	return &src, nil
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

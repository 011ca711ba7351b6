package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/brettbedarf/treefs"
)

// InlineSource holds the content directly in the definition
type InlineSource struct {
	Content string `json:"content"`
	// Encoding is "" for plain text or "base64"
	Encoding string `json:"encoding,omitempty"`
}

// InlineProvider builds InlineSources
type InlineProvider struct{}

func (p *InlineProvider) NewSource(raw []byte) (treefs.Source, error) {
	var src InlineSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	switch src.Encoding {
	case "", "base64":
	default:
		return nil, fmt.Errorf("unknown inline encoding %q", src.Encoding)
	}
	return &src, nil
}

func (s *InlineSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(s.Content)
	}
	return []byte(s.Content), nil
}

// Package sources provides the content sources used to fill preloaded files.
// A source is described by a JSON object whose "type" field selects the
// provider that builds it.
package sources

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brettbedarf/treefs"
	"github.com/puzpuzpuz/xsync/v4"
)

// Built-in source types
const (
	InlineSourceType = "inline"
	FileSourceType   = "file"
	HTTPSourceType   = "http"
)

// Registry maps source types to their providers. Safe for concurrent use.
type Registry struct {
	providers *xsync.Map[string, treefs.SourceProvider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, treefs.SourceProvider]()}
}

// NewDefaultRegistry returns a registry with every built-in provider. A nil
// client uses http.DefaultClient.
func NewDefaultRegistry(client HTTPClient) *Registry {
	if client == nil {
		client = http.DefaultClient
	}
	r := NewRegistry()
	r.Register(InlineSourceType, &InlineProvider{})
	r.Register(FileSourceType, &FileProvider{})
	r.Register(HTTPSourceType, &HTTPProvider{Client: client})
	return r
}

// Register ties a provider to a "type" key, replacing any previous one
func (r *Registry) Register(sourceType string, provider treefs.SourceProvider) {
	r.providers.Store(sourceType, provider)
}

func (r *Registry) GetProvider(sourceType string) (treefs.SourceProvider, error) {
	provider, ok := r.providers.Load(sourceType)
	if !ok {
		return nil, fmt.Errorf("no provider for source type %q", sourceType)
	}
	return provider, nil
}

// NewSource picks the provider from the "type" field of raw and builds the
// source from the rest of the object
func (r *Registry) NewSource(raw []byte) (treefs.Source, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	provider, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return provider.NewSource(raw)
}

// Package project supplies per-project display configuration: collection
// naming and the descriptive metadata attached to issued units. The data
// itself is owned by an external system; this package defines the narrow
// interface the mint path consumes, a file-backed provider, and an
// explicit cache with invalidation.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Config is the display configuration of one project on one network.
type Config struct {
	CollectionName string `json:"collection_name"` // asset-name prefix
	DisplayName    string `json:"display_name"`    // human-readable unit name prefix
	ImageBase      string `json:"image_base"`      // image URI prefix, index appended
	Description    string `json:"description"`
}

// Metadata is the descriptive payload attached to one issued unit.
type Metadata struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Validate checks that the required display fields are present. Name and
// image are mandatory for a unit to render anywhere; description is not.
func (m *Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidMetadata)
	}
	if m.Image == "" {
		return fmt.Errorf("%w: missing image", ErrInvalidMetadata)
	}
	return nil
}

// MetadataFor derives the metadata of the unit at the given sequence index.
func (c *Config) MetadataFor(index uint64) *Metadata {
	return &Metadata{
		Name:        fmt.Sprintf("%s #%d", c.DisplayName, index),
		Image:       fmt.Sprintf("%s%d", c.ImageBase, index),
		Description: c.Description,
	}
}

// Provider resolves project configuration by network and protocol
// identity.
type Provider interface {
	Project(ctx context.Context, network, protocolID string) (*Config, error)
}

// FileProvider reads project configuration from a JSON file keyed by
// network, then protocol identity.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading from the given path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Project loads the configuration for the protocol on the network.
func (p *FileProvider) Project(_ context.Context, network, protocolID string) (*Config, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	var file map[string]map[string]*Config
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrProviderUnavailable, p.path, err)
	}
	byProtocol, ok := file[network]
	if !ok {
		return nil, fmt.Errorf("%w: network %q", ErrProjectNotFound, network)
	}
	cfg, ok := byProtocol[protocolID]
	if !ok {
		return nil, fmt.Errorf("%w: protocol %q on %q", ErrProjectNotFound, protocolID, network)
	}
	return cfg, nil
}

// cacheEntry is one cached configuration with its fetch timestamp.
type cacheEntry struct {
	cfg       *Config
	fetchedAt time.Time
}

// CachedProvider wraps a Provider with a TTL cache keyed by
// network/protocol. The cache is an explicit value owned by its consumers
// and invalidated by an explicit signal, never ambient global state.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time // injected in tests
}

// NewCachedProvider wraps inner with a cache whose entries expire after
// ttl.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Project returns the cached configuration when fresh, refreshing from the
// inner provider otherwise.
func (p *CachedProvider) Project(ctx context.Context, network, protocolID string) (*Config, error) {
	key := network + "/" + protocolID

	p.mu.Lock()
	entry, ok := p.entries[key]
	p.mu.Unlock()
	if ok && p.now().Sub(entry.fetchedAt) < p.ttl {
		return entry.cfg, nil
	}

	cfg, err := p.inner.Project(ctx, network, protocolID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[key] = cacheEntry{cfg: cfg, fetchedAt: p.now()}
	p.mu.Unlock()
	return cfg, nil
}

// Invalidate drops every cached entry. Called when the configuration
// source signals a change.
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	p.entries = make(map[string]cacheEntry)
	p.mu.Unlock()
}

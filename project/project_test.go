package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjects(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sampleProjects = `{
	"preprod": {
		"pid1": {
			"collection_name": "HARVEST",
			"display_name": "Harvest Tractor",
			"image_base": "ipfs://QmTractor/",
			"description": "One tractor financing share."
		}
	}
}`

func TestFileProvider(t *testing.T) {
	p := NewFileProvider(writeProjects(t, sampleProjects))

	cfg, err := p.Project(context.Background(), "preprod", "pid1")
	require.NoError(t, err)
	assert.Equal(t, "HARVEST", cfg.CollectionName)

	_, err = p.Project(context.Background(), "preprod", "other")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = p.Project(context.Background(), "mainnet", "pid1")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestFileProvider_MissingFile(t *testing.T) {
	p := NewFileProvider("/nonexistent/projects.json")
	_, err := p.Project(context.Background(), "preprod", "pid1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestMetadataFor(t *testing.T) {
	cfg := &Config{
		CollectionName: "HARVEST",
		DisplayName:    "Harvest Tractor",
		ImageBase:      "ipfs://QmTractor/",
		Description:    "One tractor financing share.",
	}

	m := cfg.MetadataFor(7)
	assert.Equal(t, "Harvest Tractor #7", m.Name)
	assert.Equal(t, "ipfs://QmTractor/7", m.Image)
	require.NoError(t, m.Validate())
}

func TestMetadataValidate(t *testing.T) {
	assert.ErrorIs(t, (&Metadata{Image: "x"}).Validate(), ErrInvalidMetadata)
	assert.ErrorIs(t, (&Metadata{Name: "x"}).Validate(), ErrInvalidMetadata)
	assert.NoError(t, (&Metadata{Name: "x", Image: "y"}).Validate())
}

// countingProvider counts inner fetches to observe cache behavior.
type countingProvider struct {
	calls int
	cfg   *Config
}

func (p *countingProvider) Project(context.Context, string, string) (*Config, error) {
	p.calls++
	return p.cfg, nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{cfg: &Config{CollectionName: "HARVEST"}}
	cached := NewCachedProvider(inner, time.Minute)

	clock := time.Unix(1000, 0)
	cached.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		_, err := cached.Project(context.Background(), "preprod", "pid1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.calls, "fresh entries are served from cache")

	// Expiry forces a refresh.
	clock = clock.Add(2 * time.Minute)
	_, err := cached.Project(context.Background(), "preprod", "pid1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	// Explicit invalidation forces a refresh regardless of age.
	cached.Invalidate()
	_, err = cached.Project(context.Background(), "preprod", "pid1")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

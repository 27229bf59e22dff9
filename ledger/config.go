package ledger

import "fmt"

// IndexerConfig holds the connection parameters for a chain indexer.
type IndexerConfig struct {
	URL        string `json:"url"`
	ProjectKey string `json:"project_key"`
	Network    string `json:"network"`
}

// NetworkPresets contains default indexer endpoints for known networks.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]IndexerConfig{
	"preprod": {URL: "https://indexer-preprod.harvestflow.io/api/v0"},
	"preview": {URL: "https://indexer-preview.harvestflow.io/api/v0"},
}

// ResolveConfig merges indexer configuration from three sources with
// decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (HARVEST_INDEXER_URL, HARVEST_INDEXER_KEY)
//  3. Network presets (lowest priority, test networks only)
//
// For mainnet, explicit configuration is required -- there is no preset.
// A missing URL or credential is a configuration error and aborts before
// any ledger interaction.
func ResolveConfig(flags *IndexerConfig, env map[string]string, network string) (*IndexerConfig, error) {
	result := IndexerConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env["HARVEST_INDEXER_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["HARVEST_INDEXER_KEY"]; ok && v != "" {
			result.ProjectKey = v
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.ProjectKey != "" {
			result.ProjectKey = flags.ProjectKey
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("%w: network %q needs --indexer-url, HARVEST_INDEXER_URL, or a config file entry",
			ErrMissingConfig, network)
	}

	return &result, nil
}

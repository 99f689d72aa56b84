package token

import "fmt"

// RPCConfig holds the connection parameters for a token gateway.
type RPCConfig struct {
	URL        string `json:"url"`
	User       string `json:"user"`
	Password   string `json:"password"`
	ViewingKey string `json:"viewing_key"`
	Network    string `json:"network"`

	// RateLimit caps queries per second. Zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty"`
}

// NetworkPresets contains default gateway configurations for local networks.
// Mainnet has no preset and must be configured explicitly.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18545", User: "farm", Password: "farm"},
	"testnet": {URL: "http://localhost:18545", User: "farm", Password: "farm"},
}

// ResolveConfig merges gateway configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (FARM_RPC_URL, FARM_RPC_USER, FARM_RPC_PASS, FARM_VIEWING_KEY)
//  3. Network presets (lowest priority, regtest/testnet only)
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env["FARM_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["FARM_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["FARM_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
		if v, ok := env["FARM_VIEWING_KEY"]; ok && v != "" {
			result.ViewingKey = v
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
		if flags.ViewingKey != "" {
			result.ViewingKey = flags.ViewingKey
		}
		if flags.RateLimit > 0 {
			result.RateLimit = flags.RateLimit
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("token: %s requires explicit gateway configuration (set --rpc-url, FARM_RPC_URL, or token_domain)", network)
	}
	return &result, nil
}

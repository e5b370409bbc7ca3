// Package config handles configuration for the gophtasks terminal client:
// defaults, a JSON or YAML file overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - AppID / Collection: tasks live under the path "<AppID>/<Collection>".
//   - SessionToken: access token to resume; empty means use the cached
//     session or sign in anonymously.
//   - LoginDelay: simulated sign-in delay of the login view.
//   - APITimeout: per-call timeout for store operations.
//   - LocalDBFile: SQLite file caching the session between runs.
type Config struct {
	ServerEndpointAddr string
	AppID              string
	Collection         string
	SessionToken       string
	LoginDelay         time.Duration
	APITimeout         time.Duration
	LocalDBFile        string
	LogLevel           string
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AppID = "default-app-id"
	c.Collection = "tasks"
	c.SessionToken = ""
	c.LoginDelay = 800 * time.Millisecond
	c.APITimeout = 5 * time.Second
	c.LocalDBFile = "gophtasks.db"
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if given) and command-line flags. Later sources take
// precedence over earlier ones. args exclude the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

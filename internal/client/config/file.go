package config

import (
	"github.com/dmitrijs2005/gophtasks/internal/flagx"
	"github.com/dmitrijs2005/gophtasks/internal/timex"
)

// FileConfig is the on-disk shape of the client configuration.
type FileConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	AppID              string         `json:"app_id" yaml:"app_id"`
	Collection         string         `json:"collection" yaml:"collection"`
	SessionToken       string         `json:"session_token" yaml:"session_token"`
	LoginDelay         timex.Duration `json:"login_delay" yaml:"login_delay"`
	APITimeout         timex.Duration `json:"api_timeout" yaml:"api_timeout"`
	LocalDBFile        string         `json:"local_db_file" yaml:"local_db_file"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays cfg with the fields present in the -c/-config file.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	var fc FileConfig
	if err := flagx.DecodeFile(path, &fc); err != nil {
		return err
	}

	for dst, v := range map[*string]string{
		&cfg.ServerEndpointAddr: fc.ServerEndpointAddr,
		&cfg.AppID:              fc.AppID,
		&cfg.Collection:         fc.Collection,
		&cfg.SessionToken:       fc.SessionToken,
		&cfg.LocalDBFile:        fc.LocalDBFile,
		&cfg.LogLevel:           fc.LogLevel,
	} {
		if v != "" {
			*dst = v
		}
	}
	if fc.LoginDelay.Duration > 0 {
		cfg.LoginDelay = fc.LoginDelay.Duration
	}
	if fc.APITimeout.Duration > 0 {
		cfg.APITimeout = fc.APITimeout.Duration
	}
	return nil
}

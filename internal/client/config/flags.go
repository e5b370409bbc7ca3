package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-i string   application ID (first path segment)
//	-l int      login delay in milliseconds
//	-f string   local SQLite file
//	-t string   session access token to resume
//	-v string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-l", "-f", "-t", "-v"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AppID, "i", cfg.AppID, "application ID")
	loginDelay := fs.Int("l", int(cfg.LoginDelay.Milliseconds()), "login delay (in milliseconds)")
	fs.StringVar(&cfg.LocalDBFile, "f", cfg.LocalDBFile, "local database file")
	fs.StringVar(&cfg.SessionToken, "t", cfg.SessionToken, "session access token")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.LoginDelay = time.Duration(*loginDelay) * time.Millisecond
	return nil
}

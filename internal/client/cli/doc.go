// Package cli provides the interactive gophtasks terminal client.
//
// It wires configuration, the local session cache, the gRPC transport, the
// task data hook and the views into a REPL. On start the client resolves a
// session identity (resuming the configured or cached token, otherwise
// signing in anonymously), subscribes to the task collection and then reads
// commands until the user exits.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli

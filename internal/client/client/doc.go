// Package client contains the client-side transport and local storage
// bootstrap for gophtasks.
//
// # Overview
//
// GRPCClient talks to the store service. It keeps the session token pair,
// injects the access token into every call through interceptors, refreshes
// an expired access token once and retries, and maps gRPC status codes to
// the sentinel errors of this package.
//
// InitDatabase and RunMigrations open the local SQLite cache and apply the
// embedded goose migrations.
//
// # Error Handling
//
// Match errors with errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound,
// ErrInvalidArgument.
//
// GRPCClient is safe for concurrent use. Every operation honors the
// cancellation and deadline of its context.
package client

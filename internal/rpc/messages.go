// Package rpc is the wire contract between the gophtasks server and client:
// message types, the hand-declared gRPC service descriptor, the client stub
// and the JSON codec the service is spoken with.
package rpc

import "time"

// Empty is used where a request or response carries no data.
type Empty struct{}

// SessionResponse is returned by sign-in and token refresh.
type SessionResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Anonymous    bool   `json:"anonymous"`
}

type ResumeRequest struct {
	AccessToken string `json:"access_token"`
}

type ResumeResponse struct {
	UserID    string `json:"user_id"`
	Anonymous bool   `json:"anonymous"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type PingResponse struct {
	Status string `json:"status"`
}

// Document is one record of a collection as seen on the wire.
type Document struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CreateDocumentRequest struct {
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
}

type CreateDocumentResponse struct {
	ID string `json:"id"`
}

// UpdateDocumentRequest carries a partial field set merged into the stored one.
type UpdateDocumentRequest struct {
	Path   string         `json:"path"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type DeleteDocumentRequest struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

type WatchRequest struct {
	Path string `json:"path"`
}

// Snapshot is the full, unordered set of documents in a collection at the
// time of a change.
type Snapshot struct {
	Path      string     `json:"path"`
	Documents []Document `json:"documents"`
}

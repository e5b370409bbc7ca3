// Package models contains the server-side persistence types.
package models

import "time"

// User is a session identity. Anonymous users are created by sign-in
// without credentials.
type User struct {
	ID        string
	Anonymous bool
	CreatedAt time.Time
}

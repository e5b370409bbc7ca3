// Package session holds the client's session identity and its local
// persistence.
package session

// Identity is the resolved session. It is created once at startup and is
// read-only afterwards.
type Identity struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Anonymous    bool
}

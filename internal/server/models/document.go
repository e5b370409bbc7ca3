package models

import "time"

// Document is one stored record of a collection. Fields holds the free-form
// payload; for tasks that is {"title": string, "completed": bool}.
type Document struct {
	ID        string
	Path      string
	OwnerID   string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

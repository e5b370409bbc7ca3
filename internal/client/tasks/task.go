package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtasks/internal/rpc"
)

const (
	fieldTitle     = "title"
	fieldCompleted = "completed"
)

// Task is one entry of the task list as last notified by the store.
type Task struct {
	ID        string
	Title     string
	Completed bool
	CreatedAt time.Time
}

func fromDocument(d rpc.Document) Task {
	t := Task{ID: d.ID, CreatedAt: d.CreatedAt}
	if v, ok := d.Fields[fieldTitle].(string); ok {
		t.Title = v
	}
	if v, ok := d.Fields[fieldCompleted].(bool); ok {
		t.Completed = v
	}
	return t
}

// fromSnapshot converts an unordered snapshot into the local order:
// oldest first, ID breaking ties.
func fromSnapshot(docs []rpc.Document) []Task {
	out := make([]Task, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	slices.SortFunc(out, func(a, b Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

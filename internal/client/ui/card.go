package ui

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophtasks/internal/client/tasks"
)

const (
	styleDone  = "\x1b[2;9m"
	styleReset = "\x1b[0m"
)

// RenderCard prints one numbered task. Completed tasks are dimmed, struck
// through and suffixed with "(done)".
func RenderCard(w io.Writer, n int, t tasks.Task) {
	if t.Completed {
		fmt.Fprintf(w, "%3d. [x] %s%s%s (done)  %s\n", n, styleDone, t.Title, styleReset, t.ID)
		return
	}
	fmt.Fprintf(w, "%3d. [ ] %s  %s\n", n, t.Title, t.ID)
}

// Card binds a task to the completion callback of its parent. It keeps no
// state of its own.
type Card struct {
	Task       tasks.Task
	OnComplete func(id string) error
}

func (c Card) Render(w io.Writer, n int) {
	RenderCard(w, n, c.Task)
}

// MarkDone hands the task ID to the parent.
func (c Card) MarkDone() error {
	if c.OnComplete == nil {
		return nil
	}
	return c.OnComplete(c.Task.ID)
}

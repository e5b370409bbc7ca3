package ui

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/gophtasks/internal/client/tasks"
)

var ErrUnknownTask = errors.New("no such task")

// Dashboard owns the in-memory task list shown to the user.
type Dashboard struct {
	greeting string
	toggle   func(id string, current bool) error

	mu     sync.RWMutex
	userID string
	tasks  []tasks.Task
}

// NewDashboard returns a dashboard whose cards report completion to toggle.
func NewDashboard(greeting string, toggle func(id string, current bool) error) *Dashboard {
	return &Dashboard{greeting: greeting, toggle: toggle}
}

func (d *Dashboard) SetUserID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userID = id
}

// ControlsEnabled is true once a session identifier is known.
func (d *Dashboard) ControlsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.userID != ""
}

// Replace swaps the whole list. It is the subscription callback.
func (d *Dashboard) Replace(list []tasks.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = slices.Clone(list)
}

func (d *Dashboard) Tasks() []tasks.Task {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.tasks)
}

// Lookup resolves ref as a 1-based card number or a task ID.
func (d *Dashboard) Lookup(ref string) (tasks.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(d.tasks) {
			return tasks.Task{}, ErrUnknownTask
		}
		return d.tasks[n-1], nil
	}
	return d.find(ref)
}

func (d *Dashboard) find(id string) (tasks.Task, error) {
	for _, t := range d.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return tasks.Task{}, ErrUnknownTask
}

// OnComplete is the callback handed to every card. id is always a task ID,
// never a card number.
func (d *Dashboard) OnComplete(id string) error {
	d.mu.RLock()
	t, err := d.find(id)
	d.mu.RUnlock()
	if err != nil {
		return err
	}
	return d.toggle(t.ID, t.Completed)
}

func (d *Dashboard) Cards() []Card {
	list := d.Tasks()
	cards := make([]Card, 0, len(list))
	for _, t := range list {
		cards = append(cards, Card{Task: t, OnComplete: d.OnComplete})
	}
	return cards
}

func (d *Dashboard) Render(w io.Writer) {
	d.mu.RLock()
	userID := d.userID
	d.mu.RUnlock()

	fmt.Fprintln(w, d.greeting)
	if userID == "" {
		fmt.Fprintln(w, "Session: (connecting)")
		fmt.Fprintln(w, "Task controls are disabled until the session is ready.")
	} else {
		fmt.Fprintf(w, "Session: %s\n", userID)
	}

	cards := d.Cards()
	if len(cards) == 0 {
		fmt.Fprintln(w, "No tasks yet.")
		return
	}
	for i, c := range cards {
		c.Render(w, i+1)
	}
}

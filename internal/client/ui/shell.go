package ui

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	RouteTasks = "/tasks"
	RouteAbout = "/about"
)

var ErrUnknownRoute = errors.New("unknown route")

// View is anything the shell can mount.
type View interface {
	Render(w io.Writer)
}

type route struct {
	path  string
	label string
	view  View
}

// Shell maps the two top-level routes to their views.
type Shell struct {
	routes []route

	mu      sync.RWMutex
	current string
}

func NewShell(dashboard, about View) *Shell {
	return &Shell{
		routes: []route{
			{path: RouteTasks, label: "Tasks", view: dashboard},
			{path: RouteAbout, label: "About", view: about},
		},
		current: RouteTasks,
	}
}

func (s *Shell) find(path string) (route, bool) {
	for _, r := range s.routes {
		if r.path == path {
			return r, true
		}
	}
	return route{}, false
}

func (s *Shell) Navigate(path string) error {
	if _, ok := s.find(path); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = path
	return nil
}

func (s *Shell) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// RenderLinks prints the link list with the current route marked.
func (s *Shell) RenderLinks(w io.Writer) {
	current := s.Current()
	for _, r := range s.routes {
		marker := " "
		if r.path == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", marker, r.label, r.path)
	}
}

// Render prints the links followed by the mounted view.
func (s *Shell) Render(w io.Writer) {
	s.RenderLinks(w)
	fmt.Fprintln(w)
	r, _ := s.find(s.Current())
	r.view.Render(w)
}

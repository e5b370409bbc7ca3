package ui

import (
	"fmt"
	"io"
)

type About struct {
	Version string
}

func (a About) Render(w io.Writer) {
	fmt.Fprintln(w, "gophtasks: a shared task list kept in sync with the server.")
	if a.Version != "" {
		fmt.Fprintf(w, "Version %s\n", a.Version)
	}
	fmt.Fprintln(w, "Changes you make appear once the server confirms them.")
}

// Package ui holds the terminal views of the client: the login form, the
// task dashboard with its cards, the about page and the navigation shell
// switching between them. Views render into an io.Writer and keep their
// state behind a mutex, since the REPL and background callbacks both touch
// it.
package ui

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ShowTasks(ctx context.Context) error
	ShowAbout(ctx context.Context) error
	Add(ctx context.Context, title string) error
	Done(ctx context.Context, ref string) error
	Toggle(ctx context.Context, ref string) error
	Remove(ctx context.Context, ref string) error
	WhoAmI(ctx context.Context) error
}

const helpText = `Available commands:
  tasks            show the dashboard
  about            show the about page
  add <title>      add a task
  done <n|id>      mark a task done
  toggle <n|id>    flip a task's completed flag
  rm <n|id>        delete a task
  login            sign in
  whoami           show the session
  logout           sign out
  exit | quit      leave the program`

// runREPL starts a simple read–eval–print loop for the gophtasks client.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Commands that prompt for more input read from
// the same reader, so nothing is buffered ahead of them. Unknown commands are
// reported back to the user. The loop exits on EOF, when ctx is cancelled or
// when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed as one line of text and
// the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gophtasks%s> ", statusFn()))
		line, rerr := reader.ReadString('\n')
		if rerr != nil && !(errors.Is(rerr, io.EOF) && len(line) > 0) {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "tasks", "l", "list":
			err = a.ShowTasks(ctx)

		case "about":
			err = a.ShowAbout(ctx)

		case "whoami":
			err = a.WhoAmI(ctx)

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <title>")
				continue
			}
			err = a.Add(ctx, strings.Join(args, " "))

		case "done", "toggle", "rm":
			if len(args) != 1 {
				printlnFn(fmt.Sprintf("Usage: %s <n|id>", cmd))
				continue
			}
			switch cmd {
			case "done":
				err = a.Done(ctx, args[0])
			case "toggle":
				err = a.Toggle(ctx, args[0])
			default:
				err = a.Remove(ctx, args[0])
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}

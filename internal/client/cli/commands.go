package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophtasks/internal/client/ui"
)

var ErrAlreadyDone = errors.New("task is already done")

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login runs the simulated sign-in form and switches to the dashboard once
// it completes.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}

	a.login.SetEmail(email)
	a.login.SetPassword(password)
	if err := a.login.Submit(); err != nil {
		return err
	}
	a.login.Render(a.out)

	select {
	case <-a.signedIn:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	a.email = email
	a.mu.Unlock()

	fmt.Fprintln(a.out, "Signed in as", email)
	return a.ShowTasks(ctx)
}

// Logout forgets the signed-in email and the cached session. The running
// session keeps working until exit.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.email = ""
	a.mu.Unlock()

	if err := a.sessions.Forget(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out. The next start creates a new session.")
	return nil
}

// ShowTasks switches to the dashboard and subscribes to the task list.
func (a *App) ShowTasks(ctx context.Context) error {
	if err := a.shell.Navigate(ui.RouteTasks); err != nil {
		return err
	}
	if err := a.mountDashboard(ctx); err != nil {
		return err
	}
	a.shell.Render(a.out)
	return nil
}

// ShowAbout switches to the about page. The dashboard's subscription is
// released until the dashboard is shown again.
func (a *App) ShowAbout(ctx context.Context) error {
	if err := a.shell.Navigate(ui.RouteAbout); err != nil {
		return err
	}
	a.unmountDashboard()
	a.shell.Render(a.out)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	userID := "(connecting)"
	if a.hook != nil && a.hook.UserID() != "" {
		userID = a.hook.UserID()
	}
	fmt.Fprintln(a.out, "Session:", userID)

	a.mu.Lock()
	email := a.email
	a.mu.Unlock()
	if email != "" {
		fmt.Fprintln(a.out, "Signed in as", email)
	}
	return nil
}

func (a *App) ready() error {
	if a.hook == nil || !a.dashboard.ControlsEnabled() {
		return errors.New("session is not ready yet")
	}
	return nil
}

// Add submits a task. It appears on the dashboard once the server notifies it.
func (a *App) Add(ctx context.Context, title string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.hook.AddTask(title); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Submitted.")
	return nil
}

// Done marks an open task as completed through its card.
func (a *App) Done(ctx context.Context, ref string) error {
	if err := a.ready(); err != nil {
		return err
	}
	t, err := a.dashboard.Lookup(ref)
	if err != nil {
		return err
	}
	if t.Completed {
		return ErrAlreadyDone
	}
	card := ui.Card{Task: t, OnComplete: a.dashboard.OnComplete}
	if err := card.MarkDone(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Submitted.")
	return nil
}

func (a *App) Toggle(ctx context.Context, ref string) error {
	if err := a.ready(); err != nil {
		return err
	}
	t, err := a.dashboard.Lookup(ref)
	if err != nil {
		return err
	}
	if err := a.dashboard.OnComplete(t.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Submitted.")
	return nil
}

func (a *App) Remove(ctx context.Context, ref string) error {
	if err := a.ready(); err != nil {
		return err
	}
	t, err := a.dashboard.Lookup(ref)
	if err != nil {
		return err
	}
	if err := a.hook.DeleteTask(t.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Submitted.")
	return nil
}

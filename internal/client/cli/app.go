package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophtasks/internal/buildinfo"
	"github.com/dmitrijs2005/gophtasks/internal/client/client"
	"github.com/dmitrijs2005/gophtasks/internal/client/config"
	"github.com/dmitrijs2005/gophtasks/internal/client/services"
	"github.com/dmitrijs2005/gophtasks/internal/client/session"
	"github.com/dmitrijs2005/gophtasks/internal/client/tasks"
	"github.com/dmitrijs2005/gophtasks/internal/client/ui"
	"github.com/dmitrijs2005/gophtasks/internal/filex"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
)

// taskHook is the part of tasks.Hook the app drives.
type taskHook interface {
	Initialize(ctx context.Context) error
	UserID() string
	Subscribe(ctx context.Context, onChange func([]tasks.Task)) (subscription, error)
	AddTask(title string) error
	ToggleCompletion(id string, current bool) error
	DeleteTask(id string) error
	Wait()
}

type subscription interface {
	Cancel()
}

// liveHook adapts tasks.Hook to taskHook.
type liveHook struct {
	*tasks.Hook
}

func (h liveHook) Subscribe(ctx context.Context, onChange func([]tasks.Task)) (subscription, error) {
	sub, err := h.Hook.Subscribe(ctx, onChange)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type sessionManager interface {
	CachedToken(ctx context.Context) (string, error)
	Forget(ctx context.Context) error
	WaitForServer(ctx context.Context) error
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	sessions sessionManager
	newHook  func(token string) taskHook

	hook      taskHook
	sub       subscription
	fromCache bool

	dashboard *ui.Dashboard
	shell     *ui.Shell
	login     *ui.LoginView
	signedIn  chan struct{}

	mu    sync.Mutex
	email string

	reader *bufio.Reader
	out    io.Writer

	closers []func() error
}

// NewApp opens the local cache, connects the transport and builds the views.
// Nothing talks to the server until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, logging.ParseLevel(c.LogLevel))

	if _, err := filex.EnsureParentDir(c.LocalDBFile); err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.LocalDBFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sessions := services.NewSessionService(apiClient, session.NewStore(db), logger)
	apiClient.OnTokensChanged(sessions.TokensRefreshed)

	newHook := func(token string) taskHook {
		return liveHook{tasks.NewHook(tasks.Config{
			AppID:      c.AppID,
			Collection: c.Collection,
			Token:      token,
			APITimeout: c.APITimeout,
		}, sessions, apiClient, logger)}
	}

	a := newApp(c, logger, sessions, newHook, os.Stdin, os.Stdout)
	a.closers = append(a.closers, apiClient.Close, db.Close)
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, sessions sessionManager, newHook func(string) taskHook, in io.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		logger:   logger.With("module", "cli"),
		sessions: sessions,
		newHook:  newHook,
		signedIn: make(chan struct{}, 1),
		reader:   bufio.NewReader(in),
		out:      out,
	}

	a.dashboard = ui.NewDashboard("Welcome to your tasks!", a.toggle)
	a.shell = ui.NewShell(a.dashboard, ui.About{Version: buildinfo.Version})
	a.login = ui.NewLoginView(c.LoginDelay, func() {
		select {
		case a.signedIn <- struct{}{}:
		default:
		}
	})
	return a
}

func (a *App) toggle(id string, current bool) error {
	return a.hook.ToggleCompletion(id, current)
}

// start resolves the session and opens the subscription. A cached token the
// server no longer accepts is dropped in favour of a new anonymous session.
func (a *App) start(ctx context.Context) error {
	if err := a.sessions.WaitForServer(ctx); err != nil {
		a.logger.Warn(ctx, "server not reachable", "addr", a.config.ServerEndpointAddr, "error", err)
	}

	token := a.config.SessionToken
	if token == "" {
		cached, err := a.sessions.CachedToken(ctx)
		if err != nil {
			a.logger.Warn(ctx, "failed to read cached session", "error", err)
		}
		token, a.fromCache = cached, cached != ""
	}

	a.hook = a.newHook(token)
	err := a.hook.Initialize(ctx)
	if err != nil && a.fromCache && errors.Is(err, client.ErrUnauthorized) {
		a.logger.Info(ctx, "cached session rejected, starting a new one")
		if ferr := a.sessions.Forget(ctx); ferr != nil {
			a.logger.Warn(ctx, "failed to drop cached session", "error", ferr)
		}
		a.hook = a.newHook("")
		err = a.hook.Initialize(ctx)
	}
	if err != nil {
		return err
	}

	a.dashboard.SetUserID(a.hook.UserID())

	if a.shell.Current() == ui.RouteTasks {
		return a.mountDashboard(ctx)
	}
	return nil
}

// mountDashboard opens the task subscription that feeds the dashboard. It is
// a no-op while a subscription is open or before the hook is ready.
func (a *App) mountDashboard(ctx context.Context) error {
	if a.hook == nil || a.sub != nil {
		return nil
	}
	sub, err := a.hook.Subscribe(ctx, a.dashboard.Replace)
	if errors.Is(err, tasks.ErrNotReady) {
		return nil
	}
	if err != nil {
		return err
	}
	a.sub = sub
	return nil
}

// unmountDashboard releases the task subscription. Submitted mutations keep
// running.
func (a *App) unmountDashboard() {
	if a.sub != nil {
		a.sub.Cancel()
		a.sub = nil
	}
}

func (a *App) status() string {
	a.mu.Lock()
	email := a.email
	a.mu.Unlock()

	if email == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", email)
}

// Run starts the session and blocks in the REPL until the user exits or ctx
// is cancelled. Submitted mutations are awaited before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	fmt.Fprintln(a.out, "Welcome to gophtasks (type 'help' for commands)")

	if err := a.start(ctx); err != nil {
		fmt.Fprintln(a.out, "Could not start a session:", err)
		fmt.Fprintln(a.out, "Task controls stay disabled.")
	}

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) close() {
	a.unmountDashboard()
	if a.hook != nil {
		a.hook.Wait()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

// Package cli is the sharebin command line client.
//
// Every command runs against one App: the HTTP client, the local store,
// the session, the navigator and the snippet controller attached to it.
// The navigator plays the browser's address bar. Opening a link is a
// navigation event, and the controller loads whatever snippet the route
// names, exactly as it would behind an editor page.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/clipboard"
	"github.com/sakif/sharebin/internal/config"
	"github.com/sakif/sharebin/internal/localstore"
	"github.com/sakif/sharebin/internal/route"
	"github.com/sakif/sharebin/internal/session"
	"github.com/sakif/sharebin/internal/snippet"
)

// App holds the collaborators one command invocation works with.
type App struct {
	Config     *config.Client
	Logger     *slog.Logger
	Client     *api.Client
	Store      *localstore.Store
	Session    session.Service
	Navigator  *route.Navigator
	Buffers    *buffer.Set
	Controller *snippet.Controller

	detach func()
}

// Factory builds the App for a command. stderr receives prompts the user
// must act on, such as the Google device code.
type Factory func(ctx context.Context, stderr io.Writer) (*App, error)

// NewApp wires an App from cfg. clip may be nil.
func NewApp(ctx context.Context, cfg *config.Client, clip clipboard.Writer, stderr io.Writer, logger *slog.Logger) (*App, error) {
	store, err := localstore.Open(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.ServerURL, &http.Client{Timeout: cfg.RequestTimeout}, logger)

	var google session.AccessTokenSource
	if cfg.GoogleEnabled() {
		google = session.NewGoogleDeviceFlow(cfg.GoogleClientID, cfg.GoogleClientSecret.Value(),
			func(verificationURL, userCode string) {
				fmt.Fprintf(stderr, "Open %s and enter the code %s\n", verificationURL, userCode)
			})
	}
	sess := session.NewRemote(ctx, client, store, google, logger)

	nav := route.NewNavigator(cfg.ServerURL+"/", logger)
	buffers := buffer.NewSet()
	ctl := snippet.New(snippet.Deps{
		API:       client,
		Session:   sess,
		Clipboard: clip,
		Buffers:   buffers,
		Navigator: nav,
		Logger:    logger,
		Options: snippet.Options{
			DebounceDelay:   cfg.DebounceDelay,
			StatusTTL:       cfg.StatusTTL,
			DefaultLanguage: cfg.DefaultLanguage,
		},
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		Client:     client,
		Store:      store,
		Session:    sess,
		Navigator:  nav,
		Buffers:    buffers,
		Controller: ctl,
		detach:     ctl.Attach(nav),
	}, nil
}

// DefaultFactory reads the environment (and .env) and uses the system
// clipboard. Logs go to stderr.
func DefaultFactory(ctx context.Context, stderr io.Writer) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ensureDataDir(cfg.DataPath); err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, clipboard.System{}, stderr, cfg.NewLogger(stderr))
}

// Close stops the controller and releases the local store.
func (a *App) Close() error {
	a.detach()
	a.Controller.Close()
	return a.Store.Close()
}

// Open navigates to target and waits for the controller to bind. A bare
// id opens that snippet; anything else is treated as a link. It fails
// when the route names a snippet that could not be loaded.
func (a *App) Open(target string) (route.Route, error) {
	var r route.Route
	if isBareID(target) {
		r = a.Navigator.OpenSnippet(target)
	} else {
		r = a.Navigator.HandleURL(target)
	}
	if !r.IsSnippet() {
		return r, nil
	}
	if st := a.Controller.State(); !st.Loaded || st.SnippetID != r.SnippetID {
		msg := a.Controller.Status()
		if msg == "" {
			msg = snippet.MsgLoadFailed
		}
		return r, errors.New(msg)
	}
	return r, nil
}

// isBareID reports whether s looks like a snippet id rather than a link.
func isBareID(s string) bool {
	if s == "" || route.IsReserved(s) {
		return false
	}
	for _, c := range s {
		if c == '/' || c == '#' || c == ':' || c == '?' {
			return false
		}
	}
	return true
}

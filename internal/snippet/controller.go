// Package snippet is the snippet lifecycle controller.
//
// The Controller reconciles three things: the route (which snippet, if any,
// the session is bound to), the remote snippet (load, save, update, toggle
// editing) and the local buffer set that holds what the user is editing.
//
// FAILURE POLICY:
// Every operation catches its own failures, turns them into a short-lived
// status message (Status) and logs them. The error is still returned so the
// CLI can pick an exit code, but nothing is retried and nothing escalates.
//
// CANCELLATION:
// Each Bind starts a new generation. Requests issued under an older
// generation have their context cancelled, and any response that still
// arrives is discarded with ErrStale instead of touching state. A stale
// load can therefore never overwrite the buffers of the snippet the user
// navigated to.
//
// AUTO-UPDATE:
// While a loaded snippet has editing enabled, Edit schedules an Update per
// buffer after DebounceDelay of quiet. Rapid edits reset the timer, so
// typing "a" then "ab" sends one PUT carrying "ab". Auto-updates are not
// ordered against explicit ones; the server keeps the last write.
package snippet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/clipboard"
	"github.com/sakif/sharebin/internal/route"
	"github.com/sakif/sharebin/internal/session"
)

// User-visible status messages.
const (
	MsgNotFound        = "Snippet not found"
	MsgExpired         = "This snippet has expired"
	MsgLoadFailed      = "Failed to load snippet"
	MsgLoginToSave     = "Please log in to save snippets"
	MsgLinkCopied      = "Link copied to clipboard!"
	MsgNoSnippet       = "No snippet to update"
	MsgNoSnippetToggle = "No snippet to change editing on"
	MsgSaved           = "Saved"
	MsgEditingEnabled  = "Editing enabled"
	MsgEditingDisabled = "Editing disabled"
	MsgLoginToToggle   = "Please log in to change editing"
)

// ErrStale is returned for a response that arrived after the route moved on.
var ErrStale = errors.New("snippet: response discarded after navigation")

// API is the slice of the HTTP contract the controller consumes.
// *api.Client satisfies it.
type API interface {
	GetSnippet(ctx context.Context, id string) (*api.SnippetResponse, error)
	CreateSnippet(ctx context.Context, token string, req api.CreateSnippetRequest) (*api.CreateSnippetResponse, error)
	UpdateSnippet(ctx context.Context, id string, req api.UpdateSnippetRequest) (*api.SnippetResponse, error)
	SetEditing(ctx context.Context, token, id string, editing bool) (bool, error)
}

// Navigator is told about the id of a freshly saved snippet so the address
// reflects it. *route.Navigator satisfies it.
type Navigator interface {
	OpenSnippet(id string) route.Route
}

// Options tunes timing and defaults.
type Options struct {
	DebounceDelay   time.Duration
	StatusTTL       time.Duration
	DefaultLanguage string
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		DebounceDelay:   2 * time.Second,
		StatusTTL:       3 * time.Second,
		DefaultLanguage: "javascript",
	}
}

// Deps wires the controller to its collaborators. Navigator and Clipboard
// may be nil.
type Deps struct {
	API       API
	Session   session.Service
	Clipboard clipboard.Writer
	Buffers   *buffer.Set
	Navigator Navigator
	Logger    *slog.Logger
	Options   Options
}

// State is a snapshot of what the controller is bound to.
type State struct {
	SnippetID string
	// Loaded is true only when the buffers hold server-backed content.
	Loaded   bool
	Editing  bool
	Name     string
	Language string
	OwnerID  string
}

// Controller is safe for concurrent use.
type Controller struct {
	api       API
	session   session.Service
	clip      clipboard.Writer
	buffers   *buffer.Set
	nav       Navigator
	logger    *slog.Logger
	opts      Options
	baseCtx   context.Context
	baseClose context.CancelFunc

	mu         sync.Mutex
	state      State
	gen        uint64
	genCtx     context.Context
	genCancel  context.CancelFunc
	debounce   map[string]*time.Timer
	status     string
	statusSeq  uint64
	statusStop *time.Timer
	closed     bool
	inflight   sync.WaitGroup
}

// New builds a Controller. Zero Options fields fall back to DefaultOptions.
func New(d Deps) *Controller {
	opts := d.Options
	def := DefaultOptions()
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = def.DebounceDelay
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = def.StatusTTL
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = def.DefaultLanguage
	}

	sess := d.Session
	if sess == nil {
		sess = session.Noop{}
	}

	baseCtx, baseClose := context.WithCancel(context.Background())
	genCtx, genCancel := context.WithCancel(baseCtx)
	return &Controller{
		api:       d.API,
		session:   sess,
		clip:      d.Clipboard,
		buffers:   d.Buffers,
		nav:       d.Navigator,
		logger:    d.Logger,
		opts:      opts,
		baseCtx:   baseCtx,
		baseClose: baseClose,
		genCtx:    genCtx,
		genCancel: genCancel,
		debounce:  make(map[string]*time.Timer),
	}
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// Attach binds the controller to every route nav publishes and to its
// current route. The returned func detaches.
func (c *Controller) Attach(nav *route.Navigator) (detach func()) {
	detach = nav.Subscribe(func(r route.Route) {
		_ = c.Bind(c.baseCtx, r)
	})
	_ = c.Bind(c.baseCtx, nav.Current())
	return detach
}

// Bind points the controller at r. Work started for the previous route is
// cancelled. When r names a snippet it is loaded. Binding to the snippet
// that is already loaded does nothing.
func (c *Controller) Bind(ctx context.Context, r route.Route) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if r.IsSnippet() && r.SnippetID == c.state.SnippetID && c.state.Loaded {
		c.mu.Unlock()
		return nil
	}

	c.genCancel()
	c.gen++
	c.genCtx, c.genCancel = context.WithCancel(c.baseCtx)
	c.stopDebounceLocked()
	c.state = State{SnippetID: r.SnippetID}
	gen, genCtx := c.gen, c.genCtx
	c.mu.Unlock()

	c.logger.Debug("route bound", slog.String("route", r.String()))
	if !r.IsSnippet() {
		return nil
	}
	return c.load(ctx, r.SnippetID, gen, genCtx)
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ---------------------------------------------------------------------------
// Lifecycle operations
// ---------------------------------------------------------------------------

// Load fetches snippet id and installs it as the only buffer.
//
// Not found and expired snippets replace the buffers with a message buffer
// and leave Loaded false so Update refuses to run against them.
func (c *Controller) Load(ctx context.Context, id string) error {
	c.mu.Lock()
	gen, genCtx := c.gen, c.genCtx
	c.mu.Unlock()
	return c.load(ctx, id, gen, genCtx)
}

func (c *Controller) load(ctx context.Context, id string, gen uint64, genCtx context.Context) error {
	ctx, done := scoped(ctx, genCtx)
	defer done()

	c.logger.Info("loading snippet", slog.String("snippet_id", id))
	res, err := c.api.GetSnippet(ctx, id)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale load", slog.String("snippet_id", id))
		return ErrStale
	}
	c.stopDebounceLocked()

	if err != nil {
		var msg string
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			msg = MsgNotFound
			c.buffers.Replace(buffer.Buffer{Name: id, Content: msg})
		case errors.Is(err, apperror.ErrExpired):
			msg = MsgExpired
			c.buffers.Replace(buffer.Buffer{Name: id, Content: msg})
		default:
			msg = MsgLoadFailed + ": " + apperror.MessageOf(err)
		}
		c.state = State{SnippetID: id}
		c.setStatusLocked(msg)
		c.mu.Unlock()

		c.logger.Warn("snippet load failed",
			slog.String("snippet_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}

	lang := res.Language
	if lang == "" {
		lang = c.opts.DefaultLanguage
	}
	c.buffers.Replace(buffer.Buffer{Name: res.Name, Content: res.Content, Language: lang})
	c.state = State{
		SnippetID: id,
		Loaded:    true,
		Editing:   res.Editing,
		Name:      res.Name,
		Language:  lang,
		OwnerID:   res.OwnerID,
	}
	c.mu.Unlock()

	c.logger.Info("snippet loaded",
		slog.String("snippet_id", id),
		slog.Bool("editing", res.Editing),
	)
	return nil
}

// SaveInput is what Save sends. An empty Language uses the default.
type SaveInput struct {
	Content  string
	Name     string
	Language string
	CustomID string
	Editing  bool
}

// Save creates a new snippet. Without a credential it fails at once and
// makes no request. On success the controller binds to the new id, tells
// the navigator, and copies the share URL to the clipboard.
func (c *Controller) Save(ctx context.Context, in SaveInput) (*api.CreateSnippetResponse, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		c.setStatus(MsgLoginToSave)
		return nil, apperror.Unauthenticated(MsgLoginToSave)
	}

	lang := in.Language
	if lang == "" {
		lang = c.opts.DefaultLanguage
	}

	ctx, done, gen := c.begin(ctx)
	defer done()

	res, err := c.api.CreateSnippet(ctx, token, api.CreateSnippetRequest{
		Content:  in.Content,
		Name:     in.Name,
		Language: lang,
		CustomID: in.CustomID,
		Editing:  in.Editing,
	})

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, ErrStale
	}
	if err != nil {
		c.setStatusLocked(failureMessage("save", err))
		c.mu.Unlock()
		c.logger.Warn("snippet save failed", slog.String("error", err.Error()))
		return nil, err
	}
	c.stopDebounceLocked()
	c.state = State{
		SnippetID: res.SnippetID,
		Loaded:    true,
		Editing:   in.Editing,
		Name:      in.Name,
		Language:  lang,
	}
	if u := c.session.CurrentUser(); u != nil {
		c.state.OwnerID = u.ID
	}
	c.mu.Unlock()

	c.logger.Info("snippet saved", slog.String("snippet_id", res.SnippetID))

	if c.nav != nil {
		// The navigator calls back into Bind, which sees the id is already
		// loaded and keeps the buffers.
		c.nav.OpenSnippet(res.SnippetID)
	}

	msg := MsgLinkCopied
	if err := c.copy(res.URL); err != nil {
		c.logger.Warn("clipboard write failed", slog.String("error", err.Error()))
		msg = "Saved: " + res.URL
	}
	c.setStatus(msg)
	return res, nil
}

// SaveActive saves the active buffer.
func (c *Controller) SaveActive(ctx context.Context, customID string, editing bool) (*api.CreateSnippetResponse, error) {
	b := c.buffers.Active()
	return c.Save(ctx, SaveInput{
		Content:  b.Content,
		Name:     b.Name,
		Language: b.Language,
		CustomID: customID,
		Editing:  editing,
	})
}

// Update pushes new content to the bound snippet. No credential is sent.
func (c *Controller) Update(ctx context.Context, content, name, language string) error {
	c.mu.Lock()
	id, loaded := c.state.SnippetID, c.state.Loaded
	if id == "" || !loaded {
		c.setStatusLocked(MsgNoSnippet)
		c.mu.Unlock()
		return apperror.ValidationFailed("snippet", MsgNoSnippet)
	}
	c.mu.Unlock()

	if language == "" {
		language = c.opts.DefaultLanguage
	}

	ctx, done, gen := c.begin(ctx)
	defer done()

	res, err := c.api.UpdateSnippet(ctx, id, api.UpdateSnippetRequest{
		Content:  content,
		Name:     name,
		Language: language,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state.SnippetID != id {
		return ErrStale
	}
	if err != nil {
		c.setStatusLocked(failureMessage("update", err))
		c.logger.Warn("snippet update failed",
			slog.String("snippet_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.state.Name = res.Name
	if res.Language != "" {
		c.state.Language = res.Language
	}
	c.state.Editing = res.Editing
	c.setStatusLocked(MsgSaved)
	c.logger.Debug("snippet updated", slog.String("snippet_id", id))
	return nil
}

// UpdateActive pushes the active buffer to the bound snippet.
func (c *Controller) UpdateActive(ctx context.Context) error {
	b := c.buffers.Active()
	st := c.State()
	lang := b.Language
	if lang == "" {
		lang = st.Language
	}
	return c.Update(ctx, b.Content, b.Name, lang)
}

// ToggleEditing asks the server to flip the editing flag and adopts
// whatever value the server answers with.
func (c *Controller) ToggleEditing(ctx context.Context) (bool, error) {
	c.mu.Lock()
	id, loaded, current := c.state.SnippetID, c.state.Loaded, c.state.Editing
	if id == "" || !loaded {
		c.setStatusLocked(MsgNoSnippetToggle)
		c.mu.Unlock()
		return current, apperror.ValidationFailed("snippet", MsgNoSnippetToggle)
	}
	c.mu.Unlock()

	token, err := c.session.Token(ctx)
	if err != nil {
		c.setStatus(MsgLoginToToggle)
		return current, apperror.Unauthenticated(MsgLoginToToggle)
	}

	ctx, done, gen := c.begin(ctx)
	defer done()

	editing, err := c.api.SetEditing(ctx, token, id, !current)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state.SnippetID != id {
		return current, ErrStale
	}
	if err != nil {
		c.setStatusLocked(failureMessage("toggle editing on", err))
		c.logger.Warn("toggle editing failed",
			slog.String("snippet_id", id),
			slog.String("error", err.Error()),
		)
		return current, err
	}

	c.state.Editing = editing
	if !editing {
		c.stopDebounceLocked()
	}
	if editing {
		c.setStatusLocked(MsgEditingEnabled)
	} else {
		c.setStatusLocked(MsgEditingDisabled)
	}
	c.logger.Info("editing changed",
		slog.String("snippet_id", id),
		slog.Bool("requested", !current),
		slog.Bool("editing", editing),
	)
	return editing, nil
}

// Edit replaces the active buffer's content. While a loaded snippet accepts
// edits, a debounced Update is scheduled for that buffer.
func (c *Controller) Edit(content string) {
	id := c.buffers.ActiveID()
	c.buffers.Update(id, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.state.Loaded || !c.state.Editing {
		return
	}
	c.scheduleLocked(id)
}

// ---------------------------------------------------------------------------
// Debounce
// ---------------------------------------------------------------------------

func (c *Controller) scheduleLocked(bufferID string) {
	if t, ok := c.debounce[bufferID]; ok {
		t.Stop()
	}
	gen := c.gen
	var t *time.Timer
	t = time.AfterFunc(c.opts.DebounceDelay, func() {
		c.mu.Lock()
		if c.closed || c.gen != gen || c.debounce[bufferID] != t {
			c.mu.Unlock()
			return
		}
		delete(c.debounce, bufferID)
		c.inflight.Add(1)
		c.mu.Unlock()

		defer c.inflight.Done()
		if err := c.flush(c.baseCtx, bufferID); err != nil && !errors.Is(err, ErrStale) {
			c.logger.Debug("auto-update failed",
				slog.String("buffer_id", bufferID),
				slog.String("error", err.Error()),
			)
		}
	})
	c.debounce[bufferID] = t
}

// Flush sends every pending debounced update now instead of waiting out the
// delay, and waits for auto-updates already running.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	// A timer that already fired but has not taken the lock yet sees its
	// entry gone and backs off, so every id here is flushed exactly once.
	pending := make([]string, 0, len(c.debounce))
	for id, t := range c.debounce {
		t.Stop()
		pending = append(pending, id)
		delete(c.debounce, id)
	}
	c.mu.Unlock()

	c.inflight.Wait()

	var errs []error
	for _, id := range pending {
		if err := c.flush(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flush sends the current content of bufferID.
func (c *Controller) flush(ctx context.Context, bufferID string) error {
	b, ok := c.buffers.Get(bufferID)
	if !ok {
		return nil
	}
	st := c.State()
	if !st.Editing {
		return nil
	}
	lang := b.Language
	if lang == "" {
		lang = st.Language
	}
	return c.Update(ctx, b.Content, b.Name, lang)
}

func (c *Controller) stopDebounceLocked() {
	for id, t := range c.debounce {
		t.Stop()
		delete(c.debounce, id)
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status returns the current message, or "" once it has been dismissed.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) setStatus(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStatusLocked(msg)
}

func (c *Controller) setStatusLocked(msg string) {
	if c.closed {
		return
	}
	c.status = msg
	c.statusSeq++
	seq := c.statusSeq
	if c.statusStop != nil {
		c.statusStop.Stop()
	}
	c.statusStop = time.AfterFunc(c.opts.StatusTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.statusSeq == seq {
			c.status = ""
		}
	})
}

// Close cancels in-flight work, stops every timer and waits for running
// auto-updates to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDebounceLocked()
	if c.statusStop != nil {
		c.statusStop.Stop()
	}
	c.genCancel()
	c.mu.Unlock()

	c.baseClose()
	c.inflight.Wait()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// begin derives a request context that is cancelled by ctx, by the next
// Bind, or by Close.
func (c *Controller) begin(ctx context.Context) (context.Context, func(), uint64) {
	c.mu.Lock()
	gen, genCtx := c.gen, c.genCtx
	c.mu.Unlock()

	ctx, done := scoped(ctx, genCtx)
	return ctx, done, gen
}

// scoped returns a child of ctx that is also cancelled when genCtx ends.
func scoped(ctx, genCtx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(genCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) copy(url string) error {
	if c.clip == nil {
		return errors.New("no clipboard")
	}
	return c.clip.WriteText(url)
}

// failureMessage prefers the server's own words.
func failureMessage(op string, err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fmt.Sprintf("Failed to %s snippet", op)
}

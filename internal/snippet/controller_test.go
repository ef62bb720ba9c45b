package snippet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/clipboard"
	"github.com/sakif/sharebin/internal/route"
	"github.com/sakif/sharebin/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeAPI records every call. Each hook may be nil.
type fakeAPI struct {
	mu      sync.Mutex
	get     func(ctx context.Context, id string) (*api.SnippetResponse, error)
	create  func(token string, req api.CreateSnippetRequest) (*api.CreateSnippetResponse, error)
	edit    func(id string, editing bool) (bool, error)
	updErr  error
	gets    []string
	creates []api.CreateSnippetRequest
	updates []api.UpdateSnippetRequest
	toggles []bool
}

func (f *fakeAPI) GetSnippet(ctx context.Context, id string) (*api.SnippetResponse, error) {
	f.mu.Lock()
	f.gets = append(f.gets, id)
	get := f.get
	f.mu.Unlock()
	if get == nil {
		return nil, apperror.NotFound("snippet", id)
	}
	return get(ctx, id)
}

func (f *fakeAPI) CreateSnippet(_ context.Context, token string, req api.CreateSnippetRequest) (*api.CreateSnippetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.create == nil {
		return &api.CreateSnippetResponse{SnippetID: "new1", URL: "https://share.test/#/s/new1"}, nil
	}
	return f.create(token, req)
}

func (f *fakeAPI) UpdateSnippet(_ context.Context, id string, req api.UpdateSnippetRequest) (*api.SnippetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	if f.updErr != nil {
		return nil, f.updErr
	}
	return &api.SnippetResponse{ID: id, Content: req.Content, Name: req.Name, Language: req.Language, Editing: true}, nil
}

func (f *fakeAPI) SetEditing(_ context.Context, _ string, id string, editing bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, editing)
	if f.edit == nil {
		return editing, nil
	}
	return f.edit(id, editing)
}

func (f *fakeAPI) counts() (gets, creates, updates, toggles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gets), len(f.creates), len(f.updates), len(f.toggles)
}

func (f *fakeAPI) updateBodies() []api.UpdateSnippetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.UpdateSnippetRequest(nil), f.updates...)
}

func serve(snippets map[string]api.SnippetResponse) func(context.Context, string) (*api.SnippetResponse, error) {
	return func(_ context.Context, id string) (*api.SnippetResponse, error) {
		s, ok := snippets[id]
		if !ok {
			return nil, apperror.NotFound("snippet", id)
		}
		s.ID = id
		return &s, nil
	}
}

// signedIn is a session.Service with a fixed credential.
type signedIn struct {
	session.Noop
	token string
}

func (s signedIn) Token(context.Context) (string, error) { return s.token, nil }
func (s signedIn) IsAuthenticated() bool                 { return true }
func (s signedIn) CurrentUser() *session.User            { return &session.User{ID: "u1"} }

type recordingNav struct {
	mu     sync.Mutex
	opened []string
}

func (n *recordingNav) OpenSnippet(id string) route.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, id)
	return route.Route{Page: route.Editor, SnippetID: id}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ctl     *Controller
	api     *fakeAPI
	buffers *buffer.Set
	clip    *clipboard.Memory
	nav     *recordingNav
}

func newFixture(t *testing.T, sess session.Service, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		api:     &fakeAPI{},
		buffers: buffer.NewSet(),
		clip:    &clipboard.Memory{},
		nav:     &recordingNav{},
	}
	f.ctl = New(Deps{
		API:       f.api,
		Session:   sess,
		Clipboard: f.clip,
		Buffers:   f.buffers,
		Navigator: f.nav,
		Logger:    discardLogger(),
		Options:   opts,
	})
	t.Cleanup(f.ctl.Close)
	return f
}

func fastOptions() Options {
	return Options{DebounceDelay: 50 * time.Millisecond, StatusTTL: time.Minute}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_ReplacesBuffers(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	f.buffers.Create()
	f.api.get = serve(map[string]api.SnippetResponse{
		"abc": {Content: "x", Name: "main.go", Language: "go", Editing: true, OwnerID: "u9"},
	})

	require.NoError(t, f.ctl.Load(context.Background(), "abc"))

	all := f.buffers.All()
	require.Len(t, all, 1)
	assert.Equal(t, "x", all[0].Content)
	assert.Equal(t, "main.go", all[0].Name)
	assert.Equal(t, "go", all[0].Language)
	assert.Equal(t, State{
		SnippetID: "abc", Loaded: true, Editing: true, Name: "main.go", Language: "go", OwnerID: "u9",
	}, f.ctl.State())
}

func TestLoad_EmptyLanguageUsesDefault(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	f.api.get = serve(map[string]api.SnippetResponse{"abc": {Content: "x"}})

	require.NoError(t, f.ctl.Load(context.Background(), "abc"))
	assert.Equal(t, "javascript", f.ctl.State().Language)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  string
		wantContent string
	}{
		{"not found", apperror.NotFound("snippet", "abc"), MsgNotFound, MsgNotFound},
		{"expired", apperror.Expired("snippet", "abc"), MsgExpired, MsgExpired},
		{"server", apperror.Server("db down", nil), "Failed to load snippet: db down", "kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, fastOptions())
			f.buffers.Update(f.buffers.ActiveID(), "kept")
			f.api.get = func(context.Context, string) (*api.SnippetResponse, error) { return nil, tt.err }

			err := f.ctl.Load(context.Background(), "abc")

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantStatus, f.ctl.Status())
			assert.Equal(t, tt.wantContent, f.buffers.Active().Content)
			assert.False(t, f.ctl.State().Loaded)
		})
	}
}

func TestLoad_NotFoundBlocksUpdate(t *testing.T) {
	f := newFixture(t, nil, fastOptions())

	require.Error(t, f.ctl.Load(context.Background(), "missing"))
	err := f.ctl.UpdateActive(context.Background())

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, MsgNoSnippet, f.ctl.Status())
	_, _, updates, _ := f.api.counts()
	assert.Zero(t, updates)
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestSave_WithoutCredentialMakesNoRequest(t *testing.T) {
	f := newFixture(t, session.Noop{}, fastOptions())

	_, err := f.ctl.Save(context.Background(), SaveInput{Content: "x", Name: "n"})

	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	assert.Equal(t, MsgLoginToSave, f.ctl.Status())
	_, creates, _, _ := f.api.counts()
	assert.Zero(t, creates)
}

func TestSave_Success(t *testing.T) {
	f := newFixture(t, signedIn{token: "tok"}, fastOptions())
	var gotToken string
	f.api.create = func(token string, req api.CreateSnippetRequest) (*api.CreateSnippetResponse, error) {
		gotToken = token
		return &api.CreateSnippetResponse{SnippetID: req.CustomID, URL: "https://share.test/#/s/" + req.CustomID}, nil
	}

	res, err := f.ctl.Save(context.Background(), SaveInput{Content: "x", Name: "n", CustomID: "mine", Editing: true})

	require.NoError(t, err)
	assert.Equal(t, "mine", res.SnippetID)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "javascript", f.api.creates[0].Language)
	assert.Equal(t, "https://share.test/#/s/mine", f.clip.Text())
	assert.Equal(t, MsgLinkCopied, f.ctl.Status())
	assert.Equal(t, []string{"mine"}, f.nav.opened)
	assert.Equal(t, State{
		SnippetID: "mine", Loaded: true, Editing: true, Name: "n", Language: "javascript", OwnerID: "u1",
	}, f.ctl.State())
}

func TestSave_ClipboardFailureStillReportsURL(t *testing.T) {
	f := newFixture(t, signedIn{token: "tok"}, fastOptions())
	f.clip.Err = errors.New("no display")

	_, err := f.ctl.Save(context.Background(), SaveInput{Content: "x"})

	require.NoError(t, err)
	assert.Equal(t, "Saved: https://share.test/#/s/new1", f.ctl.Status())
}

func TestSave_ServerFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &apperror.AppError{Err: apperror.ErrConflict, Message: "id mine is taken"}, "id mine is taken"},
		{"no message", errors.New("boom"), "Failed to save snippet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, signedIn{token: "tok"}, fastOptions())
			f.api.create = func(string, api.CreateSnippetRequest) (*api.CreateSnippetResponse, error) {
				return nil, tt.err
			}

			_, err := f.ctl.Save(context.Background(), SaveInput{Content: "x"})

			assert.Error(t, err)
			assert.Equal(t, tt.want, f.ctl.Status())
			assert.False(t, f.ctl.State().Loaded)
			assert.Empty(t, f.nav.opened)
		})
	}
}

// ---------------------------------------------------------------------------
// Update and debounce
// ---------------------------------------------------------------------------

func loadEditable(t *testing.T, f *fixture, editing bool) {
	t.Helper()
	f.api.get = serve(map[string]api.SnippetResponse{
		"abc": {Content: "", Name: "n", Language: "go", Editing: editing},
	})
	require.NoError(t, f.ctl.Load(context.Background(), "abc"))
}

func TestUpdate_Explicit(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)

	require.NoError(t, f.ctl.Update(context.Background(), "body", "renamed", ""))

	assert.Equal(t, []api.UpdateSnippetRequest{{Content: "body", Name: "renamed", Language: "javascript"}}, f.api.updateBodies())
	assert.Equal(t, MsgSaved, f.ctl.Status())
	assert.Equal(t, "renamed", f.ctl.State().Name)
}

func TestUpdate_Failure(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)
	f.api.updErr = apperror.Forbidden("editing is disabled for this snippet")

	err := f.ctl.UpdateActive(context.Background())

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, "editing is disabled for this snippet", f.ctl.Status())
}

func TestEdit_DebounceCoalesces(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)

	f.ctl.Edit("a")
	time.Sleep(10 * time.Millisecond)
	f.ctl.Edit("ab")

	assert.Eventually(t, func() bool {
		_, _, updates, _ := f.api.counts()
		return updates == 1
	}, time.Second, 5*time.Millisecond)

	// Give a second timer the chance to fire if one were pending.
	time.Sleep(150 * time.Millisecond)
	bodies := f.api.updateBodies()
	require.Len(t, bodies, 1)
	assert.Equal(t, "ab", bodies[0].Content)
	assert.Equal(t, "go", bodies[0].Language)
}

func TestEdit_AutoUpdateFailureSetsStatus(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)
	f.api.mu.Lock()
	f.api.updErr = apperror.ValidationFailed("content", "content must be 10 bytes or less")
	f.api.mu.Unlock()

	f.ctl.Edit("far too long for the limit")

	assert.Eventually(t, func() bool {
		return f.ctl.Status() == "content must be 10 bytes or less"
	}, time.Second, 5*time.Millisecond)
}

func TestEdit_NoAutoUpdateWhenEditingDisabled(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, false)

	f.ctl.Edit("a")
	time.Sleep(150 * time.Millisecond)

	_, _, updates, _ := f.api.counts()
	assert.Zero(t, updates)
	assert.Equal(t, "a", f.buffers.Active().Content)
}

func TestEdit_NoAutoUpdateWithoutSnippet(t *testing.T) {
	f := newFixture(t, nil, fastOptions())

	f.ctl.Edit("a")
	time.Sleep(150 * time.Millisecond)

	_, _, updates, _ := f.api.counts()
	assert.Zero(t, updates)
}

func TestEdit_BindCancelsPendingUpdate(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)

	f.ctl.Edit("a")
	require.NoError(t, f.ctl.Bind(context.Background(), route.Route{Page: route.Home}))
	time.Sleep(150 * time.Millisecond)

	_, _, updates, _ := f.api.counts()
	assert.Zero(t, updates)
}

func TestClose_StopsPendingUpdate(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)

	f.ctl.Edit("a")
	f.ctl.Close()
	time.Sleep(150 * time.Millisecond)

	_, _, updates, _ := f.api.counts()
	assert.Zero(t, updates)
}

func TestFlush_SendsPendingUpdateAtOnce(t *testing.T) {
	opts := fastOptions()
	opts.DebounceDelay = time.Hour
	f := newFixture(t, nil, opts)
	loadEditable(t, f, true)

	f.ctl.Edit("final")
	require.NoError(t, f.ctl.Flush(context.Background()))

	bodies := f.api.updateBodies()
	require.Len(t, bodies, 1)
	assert.Equal(t, "final", bodies[0].Content)

	// Nothing left to send.
	require.NoError(t, f.ctl.Flush(context.Background()))
	assert.Len(t, f.api.updateBodies(), 1)
}

func TestFlush_ReportsFailure(t *testing.T) {
	opts := fastOptions()
	opts.DebounceDelay = time.Hour
	f := newFixture(t, nil, opts)
	loadEditable(t, f, true)
	f.api.updErr = apperror.Server("db down", nil)

	f.ctl.Edit("x")

	assert.ErrorIs(t, f.ctl.Flush(context.Background()), apperror.ErrServer)
}

// ---------------------------------------------------------------------------
// ToggleEditing
// ---------------------------------------------------------------------------

func TestToggleEditing_AdoptsServerValue(t *testing.T) {
	f := newFixture(t, signedIn{token: "tok"}, fastOptions())
	loadEditable(t, f, false)
	f.api.edit = func(string, bool) (bool, error) { return false, nil }

	got, err := f.ctl.ToggleEditing(context.Background())

	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, []bool{true}, f.api.toggles)
	assert.False(t, f.ctl.State().Editing)
	assert.Equal(t, MsgEditingDisabled, f.ctl.Status())
}

func TestToggleEditing_Enables(t *testing.T) {
	f := newFixture(t, signedIn{token: "tok"}, fastOptions())
	loadEditable(t, f, false)

	got, err := f.ctl.ToggleEditing(context.Background())

	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, f.ctl.State().Editing)
	assert.Equal(t, MsgEditingEnabled, f.ctl.Status())
}

func TestToggleEditing_NoSnippet(t *testing.T) {
	f := newFixture(t, nil, fastOptions())

	_, err := f.ctl.ToggleEditing(context.Background())

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, MsgNoSnippetToggle, f.ctl.Status())
	_, _, _, toggles := f.api.counts()
	assert.Zero(t, toggles)
}

func TestToggleEditing_WithoutCredential(t *testing.T) {
	f := newFixture(t, session.Noop{}, fastOptions())
	loadEditable(t, f, true)

	got, err := f.ctl.ToggleEditing(context.Background())

	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	assert.True(t, got)
	assert.True(t, f.ctl.State().Editing)
	assert.Equal(t, MsgLoginToToggle, f.ctl.Status())
	_, _, _, toggles := f.api.counts()
	assert.Zero(t, toggles)
}

func TestToggleEditing_FailureLeavesState(t *testing.T) {
	f := newFixture(t, signedIn{token: "tok"}, fastOptions())
	loadEditable(t, f, true)
	f.api.edit = func(string, bool) (bool, error) {
		return false, apperror.Forbidden("only the owner can change editing")
	}

	_, err := f.ctl.ToggleEditing(context.Background())

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.True(t, f.ctl.State().Editing)
	assert.Equal(t, "only the owner can change editing", f.ctl.Status())
}

// ---------------------------------------------------------------------------
// Routing and cancellation
// ---------------------------------------------------------------------------

func TestBind_StaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	started := make(chan struct{})
	f.api.get = func(ctx context.Context, id string) (*api.SnippetResponse, error) {
		if id == "slow" {
			close(started)
			<-ctx.Done()
			// Simulate a response that still arrives after cancellation.
			return &api.SnippetResponse{ID: id, Content: "slow content"}, nil
		}
		return &api.SnippetResponse{ID: id, Content: "fast content"}, nil
	}

	errc := make(chan error, 1)
	go func() {
		errc <- f.ctl.Bind(context.Background(), route.Route{Page: route.Editor, SnippetID: "slow"})
	}()
	<-started

	require.NoError(t, f.ctl.Bind(context.Background(), route.Route{Page: route.Editor, SnippetID: "fast"}))

	assert.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, "fast content", f.buffers.Active().Content)
	assert.Equal(t, "fast", f.ctl.State().SnippetID)
}

func TestBind_SameLoadedSnippetIsNoop(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)
	f.ctl.Edit("local change")

	require.NoError(t, f.ctl.Bind(context.Background(), route.Route{Page: route.Editor, SnippetID: "abc"}))

	gets, _, _, _ := f.api.counts()
	assert.Equal(t, 1, gets)
	assert.Equal(t, "local change", f.buffers.Active().Content)
}

func TestBind_NonSnippetRouteResetsState(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	loadEditable(t, f, true)

	require.NoError(t, f.ctl.Bind(context.Background(), route.Route{Page: route.Editor, SessionID: "s1"}))

	assert.Equal(t, State{}, f.ctl.State())
}

func TestAttach_FollowsNavigator(t *testing.T) {
	f := newFixture(t, nil, fastOptions())
	f.api.get = serve(map[string]api.SnippetResponse{
		"abc": {Content: "from link", Name: "n"},
		"xyz": {Content: "second", Name: "m"},
	})

	nav := route.NewNavigator("https://share.test/abc", discardLogger())
	detach := f.ctl.Attach(nav)
	defer detach()

	assert.Equal(t, "from link", f.buffers.Active().Content)

	nav.HandleURL("https://share.test/#/s/xyz")
	assert.Equal(t, "second", f.buffers.Active().Content)
	assert.Equal(t, "xyz", f.ctl.State().SnippetID)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestStatus_AutoDismisses(t *testing.T) {
	f := newFixture(t, session.Noop{}, Options{StatusTTL: 30 * time.Millisecond})

	_, _ = f.ctl.Save(context.Background(), SaveInput{Content: "x"})
	assert.Equal(t, MsgLoginToSave, f.ctl.Status())

	assert.Eventually(t, func() bool { return f.ctl.Status() == "" }, time.Second, 5*time.Millisecond)
}

func TestStatus_NewerMessageSurvivesOlderTimer(t *testing.T) {
	f := newFixture(t, session.Noop{}, Options{StatusTTL: 80 * time.Millisecond})

	_, _ = f.ctl.Save(context.Background(), SaveInput{Content: "x"})
	time.Sleep(50 * time.Millisecond)
	_, _ = f.ctl.ToggleEditing(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, MsgNoSnippetToggle, f.ctl.Status())
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/clipboard"
	"github.com/sakif/sharebin/internal/config"
	"github.com/sakif/sharebin/internal/localstore"
	"github.com/sakif/sharebin/internal/server"
)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// env runs commands against a real server on an httptest listener. The
// local store is a file so the credential survives between commands, as it
// does between real invocations.
type env struct {
	t    *testing.T
	cfg  *config.Client
	clip *clipboard.Memory
}

func newEnv(t *testing.T) *env {
	t.Helper()

	var h http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	tmpl := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "base.html"),
		[]byte(`{{define "base"}}<title>{{.Title}}</title>{{template "content" .}}{{end}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpl, "shell.html"),
		[]byte(`{{define "content"}}shell{{end}}`), 0o644))

	srv, err := server.New(&config.Server{
		Port:           8080,
		BaseURL:        ts.URL,
		TemplateDir:    tmpl,
		StaticDir:      tmpl,
		DBPath:         ":memory:",
		JWTSecret:      config.NewSecret("cli-test-secret-0123456789"),
		JWTTTL:         time.Hour,
		SnippetTTL:     time.Hour,
		CacheSize:      16,
		RateLimitRPM:   600,
		RateLimitBurst: 100,
		MaxSnippetSize: 10_000,
		MaxUploadSize:  1 << 20,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	h = srv.Handler()

	return &env{
		t: t,
		cfg: &config.Client{
			ServerURL:        ts.URL,
			DataPath:         filepath.Join(t.TempDir(), "local.db"),
			RequestTimeout:   5 * time.Second,
			DebounceDelay:    time.Hour,
			StatusTTL:        time.Minute,
			AutoSaveInterval: time.Hour,
			DefaultLanguage:  "javascript",
		},
		clip: &clipboard.Memory{},
	}
}

func (e *env) factory(ctx context.Context, stderr io.Writer) (*App, error) {
	return NewApp(ctx, e.cfg, e.clip, stderr, discardLogger())
}

type result struct {
	out string
	err string
}

func (e *env) run(stdin string, args ...string) (result, error) {
	e.t.Helper()
	root := NewRootCommand(e.factory)
	var out, errb bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errb)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{out: out.String(), err: errb.String()}, err
}

func (e *env) mustRun(stdin string, args ...string) result {
	e.t.Helper()
	res, err := e.run(stdin, args...)
	require.NoError(e.t, err, "sharebin %s\nstderr: %s", strings.Join(args, " "), res.err)
	return res
}

func (e *env) register() {
	e.t.Helper()
	e.mustRun("", "register", "-u", "dana", "-e", "dana@example.com", "-p", "longenough")
}

func failingFactory(context.Context, io.Writer) (*App, error) {
	return nil, errors.New("no app for this command")
}

// ---------------------------------------------------------------------------
// Offline commands
// ---------------------------------------------------------------------------

func TestRoute_NeedsNoApp(t *testing.T) {
	root := NewRootCommand(failingFactory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"route", "https://share.test/#/s/abc123"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "page:     editor\nsnippet:  abc123\nfragment: #/s/abc123\n", out.String())
}

func TestRoute_Page(t *testing.T) {
	root := NewRootCommand(failingFactory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"route", "/LOGIN"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "page:     login")
}

func TestFactoryErrorIsReturned(t *testing.T) {
	root := NewRootCommand(failingFactory)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"open", "abc"})

	assert.EqualError(t, root.Execute(), "no app for this command")
}

func TestIsBareID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abc123", true},
		{"my-notes_1", true},
		{"", false},
		{"login", false},
		{"https://share.test/abc", false},
		{"#/s/abc", false},
		{"/abc", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isBareID(tt.in), tt.in)
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestAccount_RegisterWhoamiLogout(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "whoami")
	assert.EqualError(t, err, "not signed in")

	res := e.mustRun("", "register", "-u", "dana", "-e", "dana@example.com", "-p", "longenough")
	assert.Contains(t, res.err, "Signed in as dana")

	res = e.mustRun("", "whoami")
	assert.Equal(t, "dana <dana@example.com> via password\n", res.out)

	e.mustRun("", "logout")
	_, err = e.run("", "whoami")
	assert.EqualError(t, err, "not signed in")

	// Password from stdin.
	res = e.mustRun("longenough\n", "login", "-e", "dana@example.com")
	assert.Contains(t, res.err, "Signed in as dana")
}

func TestAccount_BadPassword(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("", "logout")

	_, err := e.run("", "login", "-e", "dana@example.com", "-p", "wrong-password")
	assert.Error(t, err)

	_, err = e.run("", "whoami")
	assert.Error(t, err)
}

func TestAccount_GoogleNotConfigured(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "google-login")
	assert.ErrorContains(t, err, "not configured")
}

// ---------------------------------------------------------------------------
// Snippets
// ---------------------------------------------------------------------------

func TestSave_RequiresLogin(t *testing.T) {
	e := newEnv(t)

	res, err := e.run("body", "save")
	assert.EqualError(t, err, "Please log in to save snippets")
	assert.Contains(t, res.err, "Please log in to save snippets")
	assert.Zero(t, e.clip.Writes())
}

func TestSnippetLifecycle(t *testing.T) {
	e := newEnv(t)
	e.register()

	res := e.mustRun("package main\n", "save", "-", "--name", "main.go", "--language", "go", "--id", "my-main", "--editing")
	assert.Equal(t, e.cfg.ServerURL+"/#/s/my-main\n", res.out)
	assert.Contains(t, res.err, "Link copied to clipboard!")
	assert.Equal(t, e.cfg.ServerURL+"/#/s/my-main", e.clip.Text())

	// Every link form reaches the same snippet.
	for _, target := range []string{"my-main", e.cfg.ServerURL + "/#/s/my-main", e.cfg.ServerURL + "/my-main"} {
		res = e.mustRun("", "open", target)
		assert.Equal(t, "package main\n", res.out, target)
		assert.Contains(t, res.err, "# main.go (go) editing=on", target)
	}

	res = e.mustRun("package lib\n", "update", "my-main")
	assert.Contains(t, res.err, "Saved")
	res = e.mustRun("", "open", "my-main")
	assert.Equal(t, "package lib\n", res.out)
	assert.Contains(t, res.err, "# main.go (go)")

	res = e.mustRun("", "toggle-editing", "my-main")
	assert.Equal(t, "editing: off\n", res.out)

	res, err := e.run("package again\n", "update", "my-main")
	assert.EqualError(t, err, "editing is disabled for this snippet")
	assert.Contains(t, res.err, "editing is disabled for this snippet")

	res = e.mustRun("", "mine")
	assert.Contains(t, res.out, "ID")
	assert.Contains(t, res.out, "my-main")
	assert.Contains(t, res.out, "off")
}

func TestSave_FromFileUsesFileName(t *testing.T) {
	e := newEnv(t)
	e.register()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("remember"), 0o644))

	e.mustRun("", "save", path, "--id", "notes-1")

	res := e.mustRun("", "open", "notes-1")
	assert.Equal(t, "remember", res.out)
	assert.Contains(t, res.err, "# notes.txt (javascript)")
}

func TestSave_DuplicateID(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("one", "save", "--id", "taken")

	_, err := e.run("two", "save", "--id", "taken")
	assert.EqualError(t, err, "id taken is already taken")
}

func TestOpen_Missing(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "open", "nope-123")
	assert.EqualError(t, err, "Snippet not found")
}

func TestOpen_NotASnippetLink(t *testing.T) {
	e := newEnv(t)

	res := e.mustRun("", "open", e.cfg.ServerURL+"/#/login")
	assert.Empty(t, res.out)
	assert.Contains(t, res.err, "is not a snippet link (page login)")
}

func TestToggle_RequiresLogin(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("x", "save", "--id", "t-1")
	e.mustRun("", "logout")

	_, err := e.run("", "toggle-editing", "t-1")
	assert.EqualError(t, err, "Please log in to change editing")
}

func TestMine_RequiresLogin(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "mine")
	assert.ErrorContains(t, err, "log in")
}

// ---------------------------------------------------------------------------
// Edit
// ---------------------------------------------------------------------------

func TestEdit_StreamsIntoEditableSnippet(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("", "save", "--id", "live-log", "--editing")

	// The debounce delay is an hour, so only the end-of-input flush can
	// have delivered the content.
	e.mustRun("one\ntwo\n", "edit", "live-log")

	res := e.mustRun("", "open", "live-log")
	assert.Equal(t, "one\ntwo\n", res.out)
}

func TestEdit_ReadOnlySnippetKeepsChangesLocal(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("fixed", "save", "--id", "frozen")

	res := e.mustRun("changed\n", "edit", "frozen")
	assert.Contains(t, res.err, "Editing is disabled")

	res = e.mustRun("", "open", "frozen")
	assert.Equal(t, "fixed", res.out)
}

func TestEdit_Resume(t *testing.T) {
	e := newEnv(t)

	e.mustRun("first\n", "edit")
	res := e.mustRun("second\n", "edit", "--resume")
	assert.NotContains(t, res.err, "Nothing to resume")

	store, err := localstore.Open(e.cfg.DataPath)
	require.NoError(t, err)
	defer store.Close()

	set := buffer.NewSet()
	ok, err := buffer.Restore(context.Background(), set, store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first\nsecond\n", set.Active().Content)
}

func TestEdit_ResumeRefusedWithSnippet(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("remote", "save", "--id", "kept-1", "--editing")
	e.mustRun("local\n", "edit")

	_, err := e.run("more\n", "edit", "kept-1", "--resume")
	assert.ErrorContains(t, err, "--resume")

	res := e.mustRun("", "open", "kept-1")
	assert.Equal(t, "remote", res.out)
}

func TestEdit_ReportsRejectedUpdate(t *testing.T) {
	e := newEnv(t)
	e.register()
	e.mustRun("", "save", "--id", "big-log", "--editing")

	res, err := e.run(strings.Repeat("x", 10_001), "edit", "big-log")
	assert.EqualError(t, err, "content must be 10000 bytes or less")
	assert.Contains(t, res.err, "content must be 10000 bytes or less")
}

func TestEdit_ResumeWithoutSnapshot(t *testing.T) {
	e := newEnv(t)

	res := e.mustRun("x\n", "edit", "--resume")
	assert.Contains(t, res.err, "Nothing to resume")
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestUpload(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bravo"), 0o644))

	res := e.mustRun("", "upload", a, b)

	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "a.txt\t"+e.cfg.ServerURL+"/files/"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "b.txt\t"+e.cfg.ServerURL+"/files/"), lines[1])

	link := strings.SplitN(lines[1], "\t", 2)[1]
	resp, err := http.Get(link)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(body))
}

func TestUpload_MissingFile(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "upload", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "missing.txt")
}

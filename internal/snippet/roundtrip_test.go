package snippet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/clipboard"
	"github.com/sakif/sharebin/internal/route"
)

// memBackend is a minimal in-memory server for the snippet contract.
type memBackend struct {
	mu       sync.Mutex
	snippets map[string]api.SnippetResponse
	next     int
	origin   string
}

func newMemBackend(t *testing.T) (*memBackend, *httptest.Server) {
	t.Helper()
	b := &memBackend{snippets: make(map[string]api.SnippetResponse)}

	r := chi.NewRouter()
	r.Get("/api/snippets/{id}", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		s, ok := b.snippets[chi.URLParam(req, "id")]
		b.mu.Unlock()
		if !ok {
			reply(w, http.StatusNotFound, api.ErrorResponse{Error: "not_found", Message: "snippet not found"})
			return
		}
		reply(w, http.StatusOK, s)
	})
	r.Post("/api/snippets", func(w http.ResponseWriter, req *http.Request) {
		if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
			reply(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Message: "login required"})
			return
		}
		var in api.CreateSnippetRequest
		json.NewDecoder(req.Body).Decode(&in)

		b.mu.Lock()
		id := in.CustomID
		if id == "" {
			b.next++
			id = "s" + string(rune('0'+b.next))
		}
		b.snippets[id] = api.SnippetResponse{ID: id, Content: in.Content, Name: in.Name, Language: in.Language, Editing: in.Editing}
		b.mu.Unlock()

		reply(w, http.StatusCreated, api.CreateSnippetResponse{SnippetID: id, URL: b.origin + "/#/s/" + id})
	})
	r.Put("/api/snippets/{id}", func(w http.ResponseWriter, req *http.Request) {
		var in api.UpdateSnippetRequest
		json.NewDecoder(req.Body).Decode(&in)

		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.snippets[chi.URLParam(req, "id")]
		if !ok {
			reply(w, http.StatusNotFound, api.ErrorResponse{Error: "not_found", Message: "snippet not found"})
			return
		}
		s.Content, s.Name, s.Language = in.Content, in.Name, in.Language
		b.snippets[s.ID] = s
		reply(w, http.StatusOK, s)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	b.origin = srv.URL
	return b, srv
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestRoundTrip_SaveThenLoad(t *testing.T) {
	_, srv := newMemBackend(t)
	client := api.NewClient(srv.URL, srv.Client(), discardLogger())

	nav := route.NewNavigator(srv.URL+"/#/editor", discardLogger())
	saver := New(Deps{
		API:       client,
		Session:   signedIn{token: "tok"},
		Clipboard: &clipboard.Memory{},
		Buffers:   buffer.NewSet(),
		Navigator: nav,
		Logger:    discardLogger(),
	})
	defer saver.Close()
	detach := saver.Attach(nav)
	defer detach()

	res, err := saver.Save(context.Background(), SaveInput{Content: "x", Name: "n", Language: "javascript", Editing: true})
	require.NoError(t, err)
	assert.Equal(t, route.Route{Page: route.Editor, SnippetID: res.SnippetID}, nav.Current())
	assert.Equal(t, srv.URL+"/#/s/"+res.SnippetID, nav.URL())

	loader := New(Deps{API: client, Buffers: buffer.NewSet(), Logger: discardLogger()})
	defer loader.Close()
	require.NoError(t, loader.Load(context.Background(), res.SnippetID))

	st := loader.State()
	active := loader.buffers.Active()
	assert.Equal(t, "x", active.Content)
	assert.Equal(t, "n", st.Name)
	assert.Equal(t, "javascript", st.Language)
}

func TestRoundTrip_LoadEditPersist(t *testing.T) {
	b, srv := newMemBackend(t)
	b.snippets["abc"] = api.SnippetResponse{ID: "abc", Content: "", Name: "n", Language: "go", Editing: true}
	client := api.NewClient(srv.URL, srv.Client(), discardLogger())

	ctl := New(Deps{API: client, Buffers: buffer.NewSet(), Logger: discardLogger(), Options: fastOptions()})
	defer ctl.Close()
	require.NoError(t, ctl.Load(context.Background(), "abc"))

	ctl.Edit("a")
	ctl.Edit("ab")

	assert.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.snippets["abc"].Content == "ab"
	}, 2*time.Second, 10*time.Millisecond)
}

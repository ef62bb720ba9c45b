package route

import (
	"log/slog"
	"net/url"
	"sync"
)

// Navigator owns the current route and the address bar URL.
//
// Both change on explicit navigation (Navigate, OpenSnippet) and on
// navigation events coming from outside (HandleURL: back/forward, a pasted
// link). Every change is pushed to subscribers after the lock is released,
// in subscription order.
type Navigator struct {
	mu        sync.Mutex
	origin    string
	current   Route
	url       string
	listeners []listener
	nextID    int
	newID     func() string
	logger    *slog.Logger
}

type listener struct {
	id int
	fn func(Route)
}

// NewNavigator derives the initial route synchronously from initialURL.
// The scheme and host of initialURL become the origin for URLs produced by
// in-app navigation.
func NewNavigator(initialURL string, logger *slog.Logger) *Navigator {
	return &Navigator{
		origin:  originOf(initialURL),
		current: Parse(initialURL),
		url:     initialURL,
		newID:   NewSessionID,
		logger:  logger,
	}
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Current returns the active route.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// URL returns what the address bar shows.
func (n *Navigator) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

// Navigate moves to page. Editor without an id gets a fresh session id.
func (n *Navigator) Navigate(p Page) Route {
	r := Route{Page: p}
	if p == Editor {
		r.SessionID = n.newID()
	}
	return n.push(r)
}

// OpenSnippet moves to the editor bound to a stored snippet.
func (n *Navigator) OpenSnippet(id string) Route {
	if id == "" {
		return n.Navigate(Editor)
	}
	return n.push(Route{Page: Editor, SnippetID: id})
}

// HandleURL applies a navigation event carrying a full URL.
func (n *Navigator) HandleURL(raw string) Route {
	r := Parse(raw)

	n.mu.Lock()
	n.current = r
	n.url = raw
	if o := originOf(raw); o != "" {
		n.origin = o
	}
	fns := n.snapshot()
	n.mu.Unlock()

	n.logger.Debug("navigation event", slog.String("url", raw), slog.String("route", r.String()))
	notify(fns, r)
	return r
}

// Subscribe registers fn for route changes. The returned func removes it.
func (n *Navigator) Subscribe(fn func(Route)) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listener{id: id, fn: fn})
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, l := range n.listeners {
			if l.id == id {
				n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

func (n *Navigator) push(r Route) Route {
	n.mu.Lock()
	n.current = r
	// The path is reset so a stale path segment cannot outvote the new
	// fragment on the next parse.
	n.url = n.origin + "/" + r.Fragment()
	fns := n.snapshot()
	n.mu.Unlock()

	n.logger.Debug("navigate", slog.String("route", r.String()))
	notify(fns, r)
	return r
}

func (n *Navigator) snapshot() []func(Route) {
	fns := make([]func(Route), len(n.listeners))
	for i, l := range n.listeners {
		fns[i] = l.fn
	}
	return fns
}

func notify(fns []func(Route), r Route) {
	for _, fn := range fns {
		fn(r)
	}
}

// Package route turns share URLs into logical pages.
//
// Two URL shapes are recognised at the same time, for backwards
// compatibility with links already in circulation:
//
//	hash form:  https://host/#/s/abc123   https://host/#/room/k3j2   https://host/#/login
//	path form:  https://host/abc123       https://host/login
//
// When a URL carries both, a recognised fragment wins. Parse is a pure
// function: everything stateful (current route, listeners, id allocation)
// lives on Navigator.
package route

import (
	"net/url"
	"strings"
)

// Page is the logical screen a URL resolves to.
type Page int

const (
	Home Page = iota
	Login
	Editor
	Profile
	Upload
)

var pageNames = [...]string{
	Home:    "home",
	Login:   "login",
	Editor:  "editor",
	Profile: "profile",
	Upload:  "upload",
}

func (p Page) String() string {
	if p < 0 || int(p) >= len(pageNames) {
		return "unknown"
	}
	return pageNames[p]
}

// reserved maps route keywords to their page. A path segment that matches
// one of these is never treated as a snippet id.
var reserved = map[string]Page{
	"home":    Home,
	"login":   Login,
	"editor":  Editor,
	"profile": Profile,
	"upload":  Upload,
}

// IsReserved reports whether s is a route keyword (case-insensitive).
func IsReserved(s string) bool {
	_, ok := reserved[strings.ToLower(s)]
	return ok
}

// ParsePage resolves a keyword to its page.
func ParsePage(s string) (Page, bool) {
	p, ok := reserved[strings.ToLower(s)]
	return p, ok
}

// Route is the current page plus the resource it is bound to. At most one
// of SessionID and SnippetID is set, and only when Page is Editor.
type Route struct {
	Page      Page
	SessionID string
	SnippetID string
}

// IsSnippet reports whether the route points at a stored snippet.
func (r Route) IsSnippet() bool {
	return r.Page == Editor && r.SnippetID != ""
}

// Fragment renders the route in hash form, the shape in-app navigation
// writes to the address bar.
func (r Route) Fragment() string {
	switch r.Page {
	case Editor:
		switch {
		case r.SnippetID != "":
			return "#/s/" + url.PathEscape(r.SnippetID)
		case r.SessionID != "":
			return "#/room/" + url.PathEscape(r.SessionID)
		}
		return "#/editor"
	case Home:
		return "#/"
	default:
		return "#/" + r.Page.String()
	}
}

func (r Route) String() string {
	switch {
	case r.SnippetID != "":
		return r.Page.String() + ":snippet:" + r.SnippetID
	case r.SessionID != "":
		return r.Page.String() + ":session:" + r.SessionID
	}
	return r.Page.String()
}

// Parse derives the route for raw, which may be an absolute URL, a path
// with an optional fragment, or a bare fragment ("#/login").
func Parse(raw string) Route {
	path, fragment := split(raw)
	if r, ok := parseFragment(fragment); ok {
		return r
	}
	return parsePath(path)
}

func split(raw string) (path, fragment string) {
	if u, err := url.Parse(raw); err == nil {
		return u.Path, u.Fragment
	}
	// Malformed escapes: fall back to a plain split so a bad link still
	// lands somewhere sensible.
	path, fragment, _ = strings.Cut(raw, "#")
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		} else {
			path = ""
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, fragment
}

func parseFragment(fragment string) (Route, bool) {
	f := strings.Trim(fragment, "/")
	if f == "" {
		return Route{}, false
	}

	parts := strings.Split(f, "/")
	switch len(parts) {
	case 1:
		if p, ok := ParsePage(parts[0]); ok {
			return Route{Page: p}, true
		}
	case 2:
		id := parts[1]
		if id == "" {
			return Route{}, false
		}
		switch strings.ToLower(parts[0]) {
		case "room":
			return Route{Page: Editor, SessionID: id}, true
		case "s":
			return Route{Page: Editor, SnippetID: id}, true
		}
	}
	return Route{}, false
}

func parsePath(path string) Route {
	seg := strings.Trim(path, "/")
	if seg == "" || strings.Contains(seg, "/") {
		return Route{Page: Home}
	}
	if p, ok := ParsePage(seg); ok {
		return Route{Page: p}
	}
	return Route{Page: Editor, SnippetID: seg}
}

package retrieval

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RenderTemplate marks a route served by the headless browser instead of HTTP.
const RenderTemplate = "render:{url}"

// postPrefix marks a configured mirror that also relays non-GET requests.
const postPrefix = "post:"

// Route is one candidate way of reaching a target URL. Template may contain
// {url} (the raw target) or {urlenc} (the query-escaped target).
type Route struct {
	Name     string
	Template string
	Render   bool
	// Post is set on mirrors that forward methods other than GET.
	Post bool
}

// Supports reports whether the route can carry a request with method.
// Mirrors relay GET unless marked Post; the render route only loads pages.
func (r Route) Supports(method string) bool {
	if method == "" || method == http.MethodGet {
		return true
	}
	if r.Render {
		return false
	}
	return r.Template == Direct.Template || r.Post
}

// Direct calls the target URL itself.
var Direct = Route{Name: "direct", Template: "{url}"}

// Expand substitutes target into the route template.
func (r Route) Expand(target string) string {
	t := strings.TrimPrefix(r.Template, "render:")
	t = strings.ReplaceAll(t, "{urlenc}", url.QueryEscape(target))
	return strings.ReplaceAll(t, "{url}", target)
}

// Candidates returns the direct route followed by mirrors, in order.
func Candidates(mirrors []Route) []Route {
	out := make([]Route, 0, len(mirrors)+1)
	out = append(out, Direct)
	return append(out, mirrors...)
}

// ParseRoutes turns configured templates into named mirror routes.
// Templates without a placeholder get "{urlenc}" appended, so
// "https://relay.example/?url=" works as written.
func ParseRoutes(templates []string) []Route {
	routes := make([]Route, 0, len(templates))
	for i, tpl := range templates {
		tpl = strings.TrimSpace(tpl)
		if tpl == "" {
			continue
		}
		if tpl == "render" || strings.HasPrefix(tpl, "render:") {
			routes = append(routes, Route{Name: "render", Template: RenderTemplate, Render: true})
			continue
		}
		post := strings.HasPrefix(tpl, postPrefix)
		tpl = strings.TrimPrefix(tpl, postPrefix)
		if !strings.Contains(tpl, "{url}") && !strings.Contains(tpl, "{urlenc}") {
			tpl += "{urlenc}"
		}
		routes = append(routes, Route{Name: fmt.Sprintf("mirror-%d", i+1), Template: tpl, Post: post})
	}
	return routes
}

// DefaultMirrors are public relays tried after the direct call. Entries
// prefixed with "post:" also relay POST requests.
var DefaultMirrors = []string{
	"post:https://corsproxy.io/?url={urlenc}",
	"https://api.allorigins.win/raw?url={urlenc}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

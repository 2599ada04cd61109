package retrieval

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sw33tLie/statscope/pkg/whttp"
)

// recorder is a test server that records the order of hits per route.
type recorder struct {
	mu   sync.Mutex
	hits []string
}

func (r *recorder) handler(name string, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.hits = append(r.hits, name)
		r.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hits...)
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetOrderedFallbackSucceedsOnThird(t *testing.T) {
	rec := &recorder{}
	a := newServer(t, rec.handler("a", http.StatusInternalServerError, ""))
	b := newServer(t, rec.handler("b", http.StatusTooManyRequests, ""))
	c := newServer(t, rec.handler("c", http.StatusOK, "payload"))
	d := newServer(t, rec.handler("d", http.StatusOK, "late"))

	routes := []Route{
		{Name: "a", Template: a.URL + "/?u={urlenc}"},
		{Name: "b", Template: b.URL + "/?u={urlenc}"},
		{Name: "c", Template: c.URL + "/?u={urlenc}"},
		{Name: "d", Template: d.URL + "/?u={urlenc}"},
	}

	res, err := New(Config{}).Get(context.Background(), Request{URL: "https://example.com/x"}, routes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BodyString != "payload" {
		t.Fatalf("expected third route's body, got %q", res.BodyString)
	}
	got := rec.order()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected attempts a,b,c in order, got %v", got)
	}
}

func TestGetAllFailReturnsPlatformUnavailable(t *testing.T) {
	rec := &recorder{}
	var routes []Route
	for _, name := range []string{"a", "b", "c"} {
		srv := newServer(t, rec.handler(name, http.StatusBadGateway, ""))
		routes = append(routes, Route{Name: name, Template: srv.URL + "/{urlenc}"})
	}

	_, err := New(Config{}).Get(context.Background(), Request{URL: "https://example.com"}, routes)
	var pu *PlatformUnavailableError
	if !errors.As(err, &pu) {
		t.Fatalf("expected PlatformUnavailableError, got %v", err)
	}
	if pu.Attempts != 3 || len(rec.order()) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d (hits %v)", pu.Attempts, rec.order())
	}
	var tf *TransientFetchError
	if !errors.As(err, &tf) || tf.Route != "c" || tf.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected last transient error from route c, got %v", err)
	}
}

func TestGetAbandonsSlowAttempt(t *testing.T) {
	release := make(chan struct{})
	slow := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)
	fast := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "fast")
	}))

	f := New(Config{AttemptTimeout: 50 * time.Millisecond})
	start := time.Now()
	res, err := f.Get(context.Background(), Request{URL: "https://example.com"}, []Route{
		{Name: "slow", Template: slow.URL + "/{urlenc}"},
		{Name: "fast", Template: fast.URL + "/{urlenc}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BodyString != "fast" {
		t.Fatalf("expected fast body, got %q", res.BodyString)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("slow attempt was not abandoned")
	}
}

func TestGetChallengePageIsFailure(t *testing.T) {
	challenge := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><head><title>Just a moment...</title></head></html>")
	}))
	ok := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true}`)
	}))

	res, err := New(Config{}).Get(context.Background(), Request{URL: "https://example.com"}, []Route{
		{Name: "cf", Template: challenge.URL + "/{urlenc}"},
		{Name: "ok", Template: ok.URL + "/{urlenc}"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.BodyString != `{"ok":true}` {
		t.Fatalf("unexpected body %q", res.BodyString)
	}
}

func TestGetValidateRejectsPayload(t *testing.T) {
	rec := &recorder{}
	bad := newServer(t, rec.handler("bad", http.StatusOK, `{"status":"error"}`))
	good := newServer(t, rec.handler("good", http.StatusOK, `{"status":"success"}`))

	req := Request{
		URL: "https://example.com",
		Validate: func(r *whttp.WHTTPRes) error {
			if r.BodyString != `{"status":"success"}` {
				return errors.New("error payload")
			}
			return nil
		},
	}
	if _, err := New(Config{}).Get(context.Background(), req, []Route{
		{Name: "bad", Template: bad.URL + "/{urlenc}"},
		{Name: "good", Template: good.URL + "/{urlenc}"},
	}); err != nil {
		t.Fatal(err)
	}
	if got := rec.order(); len(got) != 2 {
		t.Fatalf("expected two attempts, got %v", got)
	}
}

func TestGetStopsOnCancelledContext(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec.handler("a", http.StatusOK, ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Get(ctx, Request{URL: "https://example.com"}, []Route{{Name: "a", Template: srv.URL}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.order()) != 0 {
		t.Fatal("no attempt should run after cancellation")
	}
}

type fakeRenderer struct{ calls []string }

func (f *fakeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	f.calls = append(f.calls, pageURL)
	return "rendered", nil
}

func TestGetRenderRoute(t *testing.T) {
	r := &fakeRenderer{}
	routes := Candidates(ParseRoutes([]string{"render"}))
	// The direct route points at an unroutable address; the render route answers.
	res, err := New(Config{Renderer: r, AttemptTimeout: time.Second}).Get(context.Background(),
		Request{URL: "http://127.0.0.1:1/profile"}, routes)
	if err != nil {
		t.Fatal(err)
	}
	if res.BodyString != "rendered" || len(r.calls) != 1 || r.calls[0] != "http://127.0.0.1:1/profile" {
		t.Fatalf("unexpected render result %q, calls %v", res.BodyString, r.calls)
	}
}

func TestGetSkipsRenderRouteWithoutRenderer(t *testing.T) {
	_, err := New(Config{}).Get(context.Background(), Request{URL: "https://example.com"},
		[]Route{{Name: "render", Template: RenderTemplate, Render: true}})
	if !errors.Is(err, ErrNoRoutes) {
		t.Fatalf("expected ErrNoRoutes, got %v", err)
	}
}

func TestParseRoutesAndExpand(t *testing.T) {
	routes := ParseRoutes([]string{"https://relay.example/?url=", " ", "https://p.example/{url}"})
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if got := routes[0].Expand("https://a.b/c?d=1"); got != "https://relay.example/?url=https%3A%2F%2Fa.b%2Fc%3Fd%3D1" {
		t.Fatalf("unexpected expansion %q", got)
	}
	if got := routes[1].Expand("https://a.b/c"); got != "https://p.example/https://a.b/c" {
		t.Fatalf("unexpected expansion %q", got)
	}
	if routes[0].Name != "mirror-1" || routes[1].Name != "mirror-3" {
		t.Fatalf("unexpected names %q %q", routes[0].Name, routes[1].Name)
	}
	if c := Candidates(routes); c[0] != Direct || len(c) != 3 {
		t.Fatalf("expected direct first, got %+v", c)
	}
}

func TestDirectHeadersNeverReachMirrors(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	handler := func(name string, status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen[name] = r.Header.Get("Authorization")
			mu.Unlock()
			w.WriteHeader(status)
		}
	}
	direct := newServer(t, handler("direct", http.StatusServiceUnavailable))
	mirror := newServer(t, handler("mirror", http.StatusOK))

	req := Request{
		URL:           direct.URL + "/users/alice",
		DirectHeaders: []whttp.WHTTPHeader{{Name: "Authorization", Value: "Bearer secret"}},
	}
	routes := Candidates([]Route{{Name: "mirror-1", Template: mirror.URL + "/?u={urlenc}"}})
	if _, err := New(Config{}).Get(context.Background(), req, routes); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen["direct"] != "Bearer secret" {
		t.Fatalf("direct route should carry credentials, got %q", seen["direct"])
	}
	if seen["mirror"] != "" {
		t.Fatalf("mirror route must not carry credentials, got %q", seen["mirror"])
	}
}

func TestPostSkipsGetOnlyMirrors(t *testing.T) {
	rec := &recorder{}
	direct := newServer(t, rec.handler("direct", http.StatusBadGateway, ""))
	getOnly := newServer(t, rec.handler("get-only", http.StatusOK, "wrong"))
	relay := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.handler("relay", http.StatusOK, r.Method)(w, r)
	}))

	routes := Candidates(ParseRoutes([]string{
		getOnly.URL + "/?u={urlenc}",
		"render",
		"post:" + relay.URL + "/?u={urlenc}",
	}))
	res, err := New(Config{Renderer: &fakeRenderer{}}).Get(context.Background(),
		Request{Method: http.MethodPost, URL: direct.URL + "/graphql", Body: `{}`}, routes)
	if err != nil {
		t.Fatal(err)
	}
	if res.BodyString != http.MethodPost {
		t.Fatalf("expected the relay to see a POST, got %q", res.BodyString)
	}
	if got := rec.order(); len(got) != 2 || got[0] != "direct" || got[1] != "relay" {
		t.Fatalf("expected attempts direct,relay, got %v", got)
	}
}

func TestRouteSupports(t *testing.T) {
	routes := ParseRoutes([]string{"https://a.example/?u=", "post:https://b.example/?u=", "render"})
	tests := []struct {
		route  Route
		method string
		want   bool
	}{
		{Direct, http.MethodPost, true},
		{routes[0], "", true},
		{routes[0], http.MethodGet, true},
		{routes[0], http.MethodPost, false},
		{routes[1], http.MethodPost, true},
		{routes[2], http.MethodGet, true},
		{routes[2], http.MethodPost, false},
	}
	for _, tc := range tests {
		if got := tc.route.Supports(tc.method); got != tc.want {
			t.Fatalf("%s %q: got %v, want %v", tc.route.Name, tc.method, got, tc.want)
		}
	}
	if routes[1].Template != "https://b.example/?u={urlenc}" {
		t.Fatalf("post prefix not stripped: %q", routes[1].Template)
	}
}

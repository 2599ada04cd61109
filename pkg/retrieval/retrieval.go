// Package retrieval implements the generic "try these URLs until one works"
// primitive used by every platform adapter. Candidate routes are tried one at
// a time, each under its own timeout, and the first success wins.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/metrics"
	"github.com/sw33tLie/statscope/pkg/whttp"
)

const DefaultAttemptTimeout = 15 * time.Second

var ErrNoRoutes = errors.New("no candidate routes")

// challengeTitles are interstitial pages served with a 2xx status.
var challengeTitles = []string{"just a moment", "attention required", "access denied"}

// TransientFetchError describes one failed candidate attempt.
type TransientFetchError struct {
	Route      string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route %s (%s): %v", e.Route, e.URL, e.Err)
	}
	return fmt.Sprintf("route %s (%s): status %d", e.Route, e.URL, e.StatusCode)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PlatformUnavailableError is returned once every candidate has failed.
type PlatformUnavailableError struct {
	Target   string
	Attempts int
	Last     error
}

func (e *PlatformUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable after %d attempt(s): %v", e.Target, e.Attempts, e.Last)
}

func (e *PlatformUnavailableError) Unwrap() error { return e.Last }

// Request is one logical call. Validate, when set, can reject a 2xx
// response (an error payload, an empty body) so the next route is tried.
type Request struct {
	Method  string
	URL     string
	Headers []whttp.WHTTPHeader
	// DirectHeaders are sent only on the direct route, so credentials are
	// never handed to a relay.
	DirectHeaders []whttp.WHTTPHeader
	Body          string
	Validate      func(*whttp.WHTTPRes) error
}

// Renderer loads a page in a browser and returns its content.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

type Config struct {
	Client         *retryablehttp.Client
	AttemptTimeout time.Duration
	Renderer       Renderer
	Log            logrus.FieldLogger
	Metrics        *metrics.Metrics
}

type Fetcher struct {
	client   *retryablehttp.Client
	timeout  time.Duration
	renderer Renderer
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func New(cfg Config) *Fetcher {
	f := &Fetcher{
		client:   cfg.Client,
		timeout:  cfg.AttemptTimeout,
		renderer: cfg.Renderer,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultAttemptTimeout
	}
	if f.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		f.log = l
	}
	return f
}

// Get tries routes strictly in order and returns the first successful
// response. It never issues two attempts at the same time.
func (f *Fetcher) Get(ctx context.Context, req Request, routes []Route) (*whttp.WHTTPRes, error) {
	if len(routes) == 0 {
		return nil, &PlatformUnavailableError{Target: req.URL, Last: ErrNoRoutes}
	}

	var last error
	attempts := 0
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, &PlatformUnavailableError{Target: req.URL, Attempts: attempts, Last: err}
		}
		if !route.Supports(req.Method) || (route.Render && f.renderer == nil) {
			continue
		}

		attempts++
		res, err := f.attempt(ctx, req, route)
		if err == nil {
			f.metrics.Attempt(route.Name, "ok")
			f.log.WithFields(logrus.Fields{"route": route.Name, "target": req.URL}).Debug("retrieval succeeded")
			return res, nil
		}

		f.metrics.Attempt(route.Name, "failed")
		f.log.WithFields(logrus.Fields{"route": route.Name, "target": req.URL}).Debugf("retrieval attempt failed: %v", err)
		last = err
	}

	if attempts == 0 {
		last = ErrNoRoutes
	}
	return nil, &PlatformUnavailableError{Target: req.URL, Attempts: attempts, Last: last}
}

func (f *Fetcher) attempt(ctx context.Context, req Request, route Route) (*whttp.WHTTPRes, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := route.Expand(req.URL)
	fail := func(status int, err error) error {
		return &TransientFetchError{Route: route.Name, URL: target, StatusCode: status, Err: err}
	}

	var res *whttp.WHTTPRes
	if route.Render {
		body, err := f.renderer.Render(attemptCtx, target)
		if err != nil {
			return nil, fail(0, err)
		}
		res = &whttp.WHTTPRes{StatusCode: http.StatusOK, BodyString: body, ResponseLength: len(body)}
	} else {
		headers := req.Headers
		if route.Template == Direct.Template {
			headers = append(append([]whttp.WHTTPHeader(nil), req.Headers...), req.DirectHeaders...)
		}
		var err error
		res, err = whttp.SendHTTPRequest(attemptCtx, &whttp.WHTTPReq{
			Method:  req.Method,
			URL:     target,
			Headers: headers,
			Body:    req.Body,
		}, f.client)
		if err != nil {
			return nil, fail(0, err)
		}
	}

	if !res.IsSuccess() {
		return nil, fail(res.StatusCode, nil)
	}
	title := strings.ToLower(res.HTTPTitle)
	for _, c := range challengeTitles {
		if strings.Contains(title, c) {
			return nil, fail(res.StatusCode, fmt.Errorf("challenge page %q", res.HTTPTitle))
		}
	}
	if req.Validate != nil {
		if err := req.Validate(res); err != nil {
			return nil, fail(res.StatusCode, err)
		}
	}
	return res, nil
}

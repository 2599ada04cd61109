package browser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

const DefaultNavTimeout = 20 * time.Second

type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL  string
	NavTimeout time.Duration
	Log        logrus.FieldLogger
}

// session is a connected browser plus the launcher that started it, if any.
type session struct {
	*rod.Browser
	lnch *launcher.Launcher
}

func (s *session) Close() error {
	err := s.Browser.Close()
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return err
}

type Renderer struct {
	pool *Pool[*session]
	cfg  Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultNavTimeout
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}
	r := &Renderer{cfg: cfg}
	r.pool = NewPool(r.launch)
	return r
}

func (r *Renderer) launch(ctx context.Context) (*session, error) {
	s := &session{}
	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL, s.lnch = u, l
		r.cfg.Log.WithField("url", wsURL).Debug("launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if s.lnch != nil {
			s.lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.Browser = b
	return s, nil
}

// Render loads pageURL in a stealth tab and returns its content. JSON
// endpoints come back as the raw document rather than the viewer markup.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	var out string
	err := r.pool.With(ctx, func(s *session) error {
		page, err := stealth.Page(s.Browser)
		if err != nil {
			return fmt.Errorf("browser: create tab: %w", err)
		}
		defer page.Close()

		navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
		defer cancel()

		if err := page.Context(navCtx).Navigate(pageURL); err != nil {
			return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
		}
		if err := page.Context(navCtx).WaitLoad(); err != nil {
			r.cfg.Log.WithField("url", pageURL).Warnf("browser: wait load: %v", err)
		}
		html, err := page.Context(navCtx).HTML()
		if err != nil {
			return fmt.Errorf("browser: read page: %w", err)
		}
		out = Content(html)
		return nil
	})
	return out, err
}

// Content unwraps documents whose body is a single <pre>, which is how
// browsers display JSON and plain text. Anything else is returned as is.
func Content(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	body := doc.Find("body")
	if children := body.Children(); children.Length() == 1 && children.Is("pre") {
		return children.Text()
	}
	return html
}

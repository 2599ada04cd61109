package platforms

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/retrieval"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/synth"
)

// Adapter turns one platform's profile URL into normalized statistics,
// abstracting away the platform's endpoints and payload shapes.
type Adapter interface {
	Platform() stats.Platform
	// Username extracts the canonical username, or returns a *ConfigurationError.
	Username(profileURL string) (string, error)
	// Fetch never fails on network trouble: when every live attempt fails it
	// returns a synthesized record carrying the last error. A non-nil error
	// means the URL itself is unusable.
	Fetch(ctx context.Context, profileURL string) (stats.PlatformStats, error)
}

// Registry maps each platform to its adapter.
type Registry map[stats.Platform]Adapter

// Deps carries what every adapter needs to reach its platform.
type Deps struct {
	Fetcher *retrieval.Fetcher
	// Mirrors holds the ordered relay routes tried after the direct call.
	Mirrors     map[stats.Platform][]retrieval.Route
	GitHubToken string
	Log         logrus.FieldLogger
}

// Routes returns the candidate routes for p: direct first, then mirrors.
func (d Deps) Routes(p stats.Platform) []retrieval.Route {
	return retrieval.Candidates(d.Mirrors[p])
}

// Logger returns the configured logger or one that discards everything.
func (d Deps) Logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Live fills in the envelope of a record built from live data.
func Live(env *stats.Envelope, p stats.Platform, username string) {
	env.Platform = p
	env.Username = username
	env.LastUpdated = time.Now().UTC()
	env.Provenance = stats.Live
	env.Error = ""
}

// Fallback logs the failure and returns the synthesized record for username.
func Fallback(log logrus.FieldLogger, p stats.Platform, username string, cause error) stats.PlatformStats {
	log.WithFields(logrus.Fields{"platform": p, "username": username}).Warnf("using estimated data: %v", cause)
	if cause == nil {
		cause = fmt.Errorf("%s: no live data", p)
	}
	return synth.WithError(username, p, cause)
}

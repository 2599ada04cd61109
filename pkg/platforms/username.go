package platforms

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// ConfigurationError reports a missing or unrecognized profile URL.
type ConfigurationError struct {
	Platform stats.Platform
	URL      string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid profile URL %q: %s", e.Platform, e.URL, e.Reason)
}

type profilePattern struct {
	domain   string
	paths    []*regexp.Regexp
	reserved map[string]bool
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var patterns = map[stats.Platform]profilePattern{
	stats.LeetCode: {
		domain: "leetcode.com",
		paths: []*regexp.Regexp{
			regexp.MustCompile(`^/u/([A-Za-z0-9_.-]+)/?$`),
			regexp.MustCompile(`^/([A-Za-z0-9_.-]+)/?$`),
		},
		reserved: set("u", "problems", "problemset", "contest", "discuss", "explore", "studyplan", "accounts", "subscribe", "store"),
	},
	stats.Codeforces: {
		domain: "codeforces.com",
		paths:  []*regexp.Regexp{regexp.MustCompile(`^/profile/([A-Za-z0-9_.-]+)/?$`)},
	},
	stats.AtCoder: {
		domain: "atcoder.jp",
		paths:  []*regexp.Regexp{regexp.MustCompile(`^/users/([A-Za-z0-9_]+)(?:/.*)?$`)},
	},
	stats.GitHub: {
		domain:   "github.com",
		paths:    []*regexp.Regexp{regexp.MustCompile(`^/([A-Za-z0-9-]+)(?:/.*)?$`)},
		reserved: set("orgs", "settings", "features", "topics", "about", "explore", "marketplace", "pricing", "login", "sponsors"),
	},
	stats.HackerRank: {
		domain: "hackerrank.com",
		paths: []*regexp.Regexp{
			regexp.MustCompile(`^/profile/([A-Za-z0-9_.-]+)/?$`),
			regexp.MustCompile(`^/([A-Za-z0-9_.-]+)/?$`),
		},
		reserved: set("profile", "domains", "contests", "challenges", "dashboard", "certificates", "skills-verification", "auth"),
	},
}

// ExtractUsername validates profileURL against the platform's domain and
// returns the username segment.
func ExtractUsername(p stats.Platform, profileURL string) (string, error) {
	pat, ok := patterns[p]
	if !ok {
		return "", &ConfigurationError{Platform: p, URL: profileURL, Reason: "unsupported platform"}
	}

	raw := strings.TrimSpace(profileURL)
	if raw == "" {
		return "", &ConfigurationError{Platform: p, URL: profileURL, Reason: "no URL configured"}
	}
	// A scheme makes url.Parse put the domain in Host rather than Path.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", &ConfigurationError{Platform: p, URL: profileURL, Reason: "unparseable URL"}
	}

	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.Domain(host)
	if err != nil || domain != pat.domain {
		return "", &ConfigurationError{Platform: p, URL: profileURL, Reason: "expected a " + pat.domain + " address"}
	}

	for _, re := range pat.paths {
		m := re.FindStringSubmatch(u.Path)
		if m == nil {
			continue
		}
		if pat.reserved[strings.ToLower(m[1])] {
			continue
		}
		return m[1], nil
	}
	return "", &ConfigurationError{Platform: p, URL: profileURL, Reason: "no username in path"}
}

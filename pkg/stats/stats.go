// Package stats holds the normalized data model shared by the scraping engine:
// one concrete statistics type per platform behind the sealed PlatformStats
// interface, the per-(entity, platform) scrape status, and the derived
// cross-platform aggregate.
package stats

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Platform string

const (
	LeetCode   Platform = "leetcode"
	Codeforces Platform = "codeforces"
	AtCoder    Platform = "atcoder"
	GitHub     Platform = "github"
	HackerRank Platform = "hackerrank"
)

// AllPlatforms lists every supported platform in a stable order.
var AllPlatforms = []Platform{LeetCode, Codeforces, AtCoder, GitHub, HackerRank}

// ParsePlatform maps a case-insensitive name to a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}

// Provenance tells whether a record came from a live source or was synthesized.
type Provenance string

const (
	Live      Provenance = "live"
	Estimated Provenance = "estimated"
)

// ProfileURL is a platform profile address configured for an entity.
type ProfileURL struct {
	Platform Platform `json:"platform"`
	URL      string   `json:"url,omitempty"`
}

// Entity is a tracked subject and its configured profile URLs.
type Entity struct {
	ID       string              `json:"id"`
	Profiles map[Platform]string `json:"profiles"`
}

// ConfiguredPlatforms returns the platforms with a non-empty URL, sorted.
func (e Entity) ConfiguredPlatforms() []Platform {
	var out []Platform
	for p, u := range e.Profiles {
		if strings.TrimSpace(u) != "" {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Envelope is embedded by every platform record.
type Envelope struct {
	Platform    Platform   `json:"platform"`
	Username    string     `json:"username"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Provenance  Provenance `json:"provenance"`
	Error       string     `json:"error,omitempty"`
	Note        string     `json:"note,omitempty"`
}

func (e *Envelope) Meta() *Envelope { return e }

// PlatformStats is implemented only by the concrete per-platform types below.
type PlatformStats interface {
	Meta() *Envelope
	// SolvedCount is the count this platform contributes to AggregateStats.TotalSolved.
	SolvedCount() int
	// CurrentStreak reports a day streak when the platform has one.
	CurrentStreak() (int, bool)
	isPlatformStats()
}

type LeetCodeStats struct {
	Envelope
	TotalSolved     int     `json:"totalSolved"`
	EasySolved      int     `json:"easySolved"`
	MediumSolved    int     `json:"mediumSolved"`
	HardSolved      int     `json:"hardSolved"`
	Ranking         int     `json:"ranking"`
	AcceptanceRate  float64 `json:"acceptanceRate"`
	Reputation      int     `json:"reputation"`
	Streak          int     `json:"streak"`
	TotalActiveDays int     `json:"totalActiveDays"`
}

func (s *LeetCodeStats) SolvedCount() int           { return s.TotalSolved }
func (s *LeetCodeStats) CurrentStreak() (int, bool) { return s.Streak, true }
func (*LeetCodeStats) isPlatformStats()             {}

type CodeforcesStats struct {
	Envelope
	Rating           int    `json:"rating"`
	MaxRating        int    `json:"maxRating"`
	Rank             string `json:"rank"`
	MaxRank          string `json:"maxRank"`
	ProblemsSolved   int    `json:"problemsSolved"`
	ContestsAttended int    `json:"contestsAttended"`
	Contribution     int    `json:"contribution"`
	FriendOfCount    int    `json:"friendOfCount"`
}

func (s *CodeforcesStats) SolvedCount() int           { return s.ProblemsSolved }
func (s *CodeforcesStats) CurrentStreak() (int, bool) { return 0, false }
func (*CodeforcesStats) isPlatformStats()             {}

type AtCoderStats struct {
	Envelope
	Rating         int    `json:"rating"`
	HighestRating  int    `json:"highestRating"`
	Rank           string `json:"rank"`
	RatedMatches   int    `json:"ratedMatches"`
	ProblemsSolved int    `json:"problemsSolved"`
}

func (s *AtCoderStats) SolvedCount() int           { return s.ProblemsSolved }
func (s *AtCoderStats) CurrentStreak() (int, bool) { return 0, false }
func (*AtCoderStats) isPlatformStats()             {}

type GitHubStats struct {
	Envelope
	Repositories int       `json:"repositories"`
	Followers    int       `json:"followers"`
	Following    int       `json:"following"`
	TotalStars   int       `json:"totalStars"`
	TotalForks   int       `json:"totalForks"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

func (s *GitHubStats) SolvedCount() int           { return s.Repositories }
func (s *GitHubStats) CurrentStreak() (int, bool) { return 0, false }
func (*GitHubStats) isPlatformStats()             {}

type HackerRankStats struct {
	Envelope
	ProblemsSolved int    `json:"problemsSolved"`
	Badges         int    `json:"badges"`
	Stars          int    `json:"stars"`
	Country        string `json:"country,omitempty"`
}

func (s *HackerRankStats) SolvedCount() int           { return s.ProblemsSolved }
func (s *HackerRankStats) CurrentStreak() (int, bool) { return 0, false }
func (*HackerRankStats) isPlatformStats()             {}

// New returns an empty record of the concrete type for platform p.
func New(p Platform) (PlatformStats, error) {
	switch p {
	case LeetCode:
		return &LeetCodeStats{}, nil
	case Codeforces:
		return &CodeforcesStats{}, nil
	case AtCoder:
		return &AtCoderStats{}, nil
	case GitHub:
		return &GitHubStats{}, nil
	case HackerRank:
		return &HackerRankStats{}, nil
	}
	return nil, fmt.Errorf("unknown platform: %q", p)
}

// Decode unmarshals a persisted record into the concrete type for platform p.
func Decode(p Platform, raw []byte) (PlatformStats, error) {
	s, err := New(p)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("decode %s stats: %w", p, err)
	}
	return s, nil
}

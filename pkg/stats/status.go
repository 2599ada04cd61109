package stats

import "time"

type ScrapeState string

const (
	StatePending    ScrapeState = "pending"
	StateInProgress ScrapeState = "in_progress"
	StateCompleted  ScrapeState = "completed"
	StateFailed     ScrapeState = "failed"
)

// ScrapeStatus is the collection state for one (entity, platform) pair.
type ScrapeStatus struct {
	State       ScrapeState `json:"state"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Error       string      `json:"error,omitempty"`
}

// AggregateStats is the cross-platform summary for an entity.
type AggregateStats struct {
	TotalSolved        int `json:"totalSolved"`
	MaxStreak          int `json:"maxStreak"`
	LivePlatforms      int `json:"livePlatforms"`
	EstimatedPlatforms int `json:"estimatedPlatforms"`
}

// Aggregate derives the summary from the current set of platform records.
// Estimated records are counted like live ones; the provenance split is
// reported alongside so consumers can discount them.
func Aggregate(records map[Platform]PlatformStats) AggregateStats {
	var agg AggregateStats
	for _, s := range records {
		if s == nil {
			continue
		}
		agg.TotalSolved += s.SolvedCount()
		if streak, ok := s.CurrentStreak(); ok && streak > agg.MaxStreak {
			agg.MaxStreak = streak
		}
		if s.Meta().Provenance == Estimated {
			agg.EstimatedPlatforms++
		} else {
			agg.LivePlatforms++
		}
	}
	return agg
}

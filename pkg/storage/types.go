package storage

import (
	"encoding/json"
	"time"

	"github.com/sw33tLie/statscope/pkg/stats"
)

// EntityRecord is one entity document as last persisted.
type EntityRecord struct {
	ID        string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Profiles       map[stats.Platform]string             `json:"profiles"`
	PlatformData   map[stats.Platform]json.RawMessage    `json:"platformData"`
	ScrapingStatus map[stats.Platform]stats.ScrapeStatus `json:"scrapingStatus"`
	Aggregate      *stats.AggregateStats                 `json:"aggregate,omitempty"`
	LastUpdated    time.Time                             `json:"lastUpdated"`
}

// Stats decodes the stored platform records into their concrete types.
func (r *EntityRecord) Stats() (map[stats.Platform]stats.PlatformStats, error) {
	out := make(map[stats.Platform]stats.PlatformStats, len(r.PlatformData))
	for p, raw := range r.PlatformData {
		s, err := stats.Decode(p, raw)
		if err != nil {
			return nil, err
		}
		out[p] = s
	}
	return out, nil
}

// AggregateRow is the stored summary of one entity.
type AggregateRow struct {
	EntityID    string
	Aggregate   stats.AggregateStats
	LastUpdated time.Time
}

// RunOutcome is the result of one entity within a batch run.
type RunOutcome struct {
	EntityID string        `json:"entityId"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunRecord is a persisted batch run report.
type RunRecord struct {
	ID           string       `json:"id"`
	Trigger      string       `json:"trigger"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	SuccessCount int          `json:"successCount"`
	FailCount    int          `json:"failCount"`
	Outcomes     []RunOutcome `json:"outcomes"`
}

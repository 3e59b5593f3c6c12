// Package coverage summarizes how evenly reviews are spread over a floor.
package coverage

import (
	"sort"

	"github.com/okian/judgeflow/internal/domain/model"
)

// Default report configuration constants.
const (
	defaultLeastReviewedLimit = 10
)

// Option applies a configuration option to Build.
type Option func(*builder)

// WithLeastReviewedLimit caps how many least-reviewed teams are listed.
func WithLeastReviewedLimit(limit int) Option {
	return func(b *builder) {
		if limit >= 0 {
			b.limit = limit
		}
	}
}

type builder struct {
	limit int
}

// TeamCoverage is one team's review count.
type TeamCoverage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Number  int    `json:"number"`
	Reviews int    `json:"reviews"`
	Locked  bool   `json:"locked"`
}

// Report describes the review distribution of a floor's unpaused teams.
type Report struct {
	FloorID     string         `json:"floor_id"`
	Teams       int            `json:"teams"`
	Paused      int            `json:"paused"`
	Locked      int            `json:"locked"`
	MinReviews  int            `json:"min_reviews"`
	MaxReviews  int            `json:"max_reviews"`
	MeanReviews float64        `json:"mean_reviews"`
	Skew        int            `json:"skew"`
	Histogram   map[int]int    `json:"histogram"`
	Least       []TeamCoverage `json:"least_reviewed"`
}

// Build computes the coverage report of floorID in snap.
func Build(snap model.Snapshot, floorID string, opts ...Option) Report {
	b := &builder{limit: defaultLeastReviewedLimit}
	for _, opt := range opts {
		opt(b)
	}

	locked := snap.LockedTeamIDs()
	r := Report{FloorID: floorID, Histogram: make(map[int]int)}

	var rows []TeamCoverage
	total := 0
	for _, t := range snap.Teams {
		if t.FloorID != floorID {
			continue
		}
		if t.IsPaused {
			r.Paused++
			continue
		}
		_, isLocked := locked[t.ID]
		if isLocked {
			r.Locked++
		}
		n := t.ReviewCount()
		if len(rows) == 0 || n < r.MinReviews {
			r.MinReviews = n
		}
		if n > r.MaxReviews {
			r.MaxReviews = n
		}
		total += n
		r.Histogram[n]++
		rows = append(rows, TeamCoverage{ID: t.ID, Name: t.Name, Number: t.Number, Reviews: n, Locked: isLocked})
	}

	r.Teams = len(rows)
	if r.Teams > 0 {
		r.MeanReviews = float64(total) / float64(r.Teams)
		r.Skew = r.MaxReviews - r.MinReviews
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Reviews != rows[j].Reviews {
			return rows[i].Reviews < rows[j].Reviews
		}
		return rows[i].Number < rows[j].Number
	})
	if len(rows) > b.limit {
		rows = rows[:b.limit]
	}
	r.Least = rows

	return r
}

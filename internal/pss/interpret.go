package pss

import (
	"sort"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// DefaultTrendWindow is the number of recent scores shown on the home chart.
const DefaultTrendWindow = 7

// Interpretation is the user-facing reading of a band.
type Interpretation struct {
	Band    models.SeverityBand `json:"band"`
	Label   string              `json:"label"`
	Summary string              `json:"summary"`
	Color   string              `json:"color"`
}

var interpretations = map[models.SeverityBand]Interpretation{
	models.BandLow: {
		Band:    models.BandLow,
		Label:   "Low",
		Summary: "Low perceived stress. You are likely coping well with daily demands.",
		Color:   "#4CAF50",
	},
	models.BandModerate: {
		Band:    models.BandModerate,
		Label:   "Moderate",
		Summary: "Moderate perceived stress. You may be experiencing some stress, consider implementing stress-reducing techniques.",
		Color:   "#FFC107",
	},
	models.BandHigh: {
		Band:    models.BandHigh,
		Label:   "High",
		Summary: "High perceived stress. You are likely experiencing significant stress. It might be beneficial to seek professional support.",
		Color:   "#F44336",
	},
}

// Interpret returns the interpretation for band. Unknown bands get an empty
// Interpretation and false.
func Interpret(band models.SeverityBand) (Interpretation, bool) {
	in, ok := interpretations[band]
	return in, ok
}

// Direction describes how scores moved across a trend window.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionWorsening Direction = "worsening"
	DirectionStable    Direction = "stable"
)

// TrendPoint is one score on the trend chart.
type TrendPoint struct {
	Score     int                 `json:"score"`
	Band      models.SeverityBand `json:"band"`
	Timestamp string              `json:"timestamp"`
}

// TrendResult holds the chronological trend of the most recent scores.
type TrendResult struct {
	Points    []TrendPoint `json:"points"` // oldest first
	Direction Direction    `json:"direction"`
	Delta     int          `json:"delta"` // last minus first
}

// Trend picks the n most recent records (n <= 0 uses DefaultTrendWindow)
// and returns them oldest first. A lower score is an improvement.
func Trend(records []models.ScoreRecord, n int) TrendResult {
	if n <= 0 {
		n = DefaultTrendWindow
	}
	sorted := make([]models.ScoreRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	res := TrendResult{Points: make([]TrendPoint, 0, len(sorted)), Direction: DirectionStable}
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		res.Points = append(res.Points, TrendPoint{
			Score:     r.Score,
			Band:      r.Band,
			Timestamp: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if len(res.Points) < 2 {
		return res
	}
	res.Delta = res.Points[len(res.Points)-1].Score - res.Points[0].Score
	switch {
	case res.Delta < 0:
		res.Direction = DirectionImproving
	case res.Delta > 0:
		res.Direction = DirectionWorsening
	}
	return res
}

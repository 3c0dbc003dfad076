package model

import "time"

// Stats is the read-only rollup over automated action records, served by the
// statistics aggregator.
type Stats struct {
	TotalAutomated int             `json:"total_automated"`
	ByChannel      map[Channel]int `json:"by_channel"`

	// SuccessRate is completed / total among automated records; zero when
	// no records exist.
	SuccessRate float64 `json:"success_rate"`

	// MeanDaysToResolution averages due-date-to-resolution time over cases
	// resolved within the trailing window. Zero when none resolved.
	MeanDaysToResolution float64 `json:"mean_days_to_resolution"`

	// ComputedAt records when the rollup was built; snapshots are cached.
	ComputedAt time.Time `json:"computed_at"`
}

package tracker

import "time"

// RunReport holds the outcome of one completed revaluation cycle. Error
// counts sum market-level fetch failures and per-position write failures;
// Failed is set only when the cycle aborted before the position list could
// be loaded.
type RunReport struct {
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"-"`
	DurationMs     int64         `json:"durationMs"`
	TotalPositions int           `json:"totalPositions"`
	UniqueMarkets  int           `json:"uniqueMarkets"`
	UpdatedCount   int           `json:"updatedCount"`
	ErrorCount     int           `json:"errorCount"`
	Failed         bool          `json:"failed"`
}

// Status is the externally visible tracker state: the latest completed run
// plus the scheduling flags. Reading it never blocks on an in-flight cycle.
type Status struct {
	IsActive       bool      `json:"isActive"`
	LastRunAt      time.Time `json:"lastRunAt"`
	LastRunFailed  bool      `json:"lastRunFailed"`
	TotalPositions int       `json:"totalPositions"`
	UniqueMarkets  int       `json:"uniqueMarkets"`
	UpdatedCount   int       `json:"updatedCount"`
	ErrorCount     int       `json:"errorCount"`
	SkippedTicks   int       `json:"skippedTicks"`
	DurationMs     int64     `json:"durationMs"`
}

package weather

import (
	"time"
)

// BootstrapLookback is the window fetched when no watermark has been recorded yet.
const BootstrapLookback = 7 * 24 * time.Hour

// Outcome tells the caller whether to continue a branch of the pipeline.
type Outcome int

const (
	OutcomeProceed Outcome = iota
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Window is the result of resolving the next observation fetch.
// Start is only meaningful when Outcome is OutcomeProceed.
type Window struct {
	Outcome Outcome
	Start   time.Time
	Reason  string
}

// ResolveStart computes the inclusive start bound for the next observations
// fetch from the run's nominal start and the last ingested timestamp.
//
// A nil watermark bootstraps with BootstrapLookback. A run that starts before
// the watermark has already been covered and is skipped. Otherwise the start
// is advanced one second past the watermark: the API treats start as
// inclusive and a station never reports twice within the same second.
func ResolveStart(runStart time.Time, lastWatermark *time.Time) Window {
	if lastWatermark == nil {
		return Window{
			Outcome: OutcomeProceed,
			Start:   runStart.Add(-BootstrapLookback),
			Reason:  "no watermark recorded; processing last 7 days",
		}
	}
	if runStart.Before(*lastWatermark) {
		return Window{
			Outcome: OutcomeSkip,
			Reason:  "data of this run was already loaded",
		}
	}
	return Window{
		Outcome: OutcomeProceed,
		Start:   lastWatermark.Add(time.Second),
		Reason:  "advancing past watermark",
	}
}

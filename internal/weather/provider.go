package weather

import (
	"context"
	"time"

	"github.com/jean18/front/internal/snapshot"
)

// Client abstracts the weather REST API (api.weather.gov).
type Client interface {
	Station(ctx context.Context, stationID string) (StationFeature, error)
	Observations(ctx context.Context, stationID string, start time.Time) (ObservationCollection, error)
}

// SnapshotWriter persists extracted rows and returns the written path.
type SnapshotWriter interface {
	Write(ctx context.Context, table string, columns []snapshot.Column, rows []snapshot.Row, runTS time.Time) (string, error)
}

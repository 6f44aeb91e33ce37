package weather

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jean18/front/internal/common"
	"github.com/jean18/front/internal/snapshot"
)

// ErrMissingFeatures is returned when the observations payload has no
// features list at all. An empty list is not an error.
var ErrMissingFeatures = errors.New("observations payload has no features list")

// Extraction describes one extract step. When Outcome is OutcomeSkip nothing
// was written and Path is empty.
type Extraction struct {
	Outcome Outcome
	Reason  string
	Table   string
	Path    string
	Rows    int

	// Watermark is the newest observation timestamp in the batch. The caller
	// persists it once the batch has been loaded.
	Watermark *time.Time
}

// Service runs the stations and observations extraction flows for one station.
type Service struct {
	client    Client
	writer    SnapshotWriter
	stationID string
	logger    *zap.Logger
}

// NewService creates a new Service.
func NewService(client Client, writer SnapshotWriter, stationID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:    client,
		writer:    writer,
		stationID: stationID,
		logger:    logger,
	}
}

// StationID returns the station this service extracts.
func (s *Service) StationID() string {
	return s.stationID
}

// ExtractStations fetches the station metadata and writes a one-row snapshot.
func (s *Service) ExtractStations(ctx context.Context, runTS time.Time) (Extraction, error) {
	feature, err := s.client.Station(ctx, s.stationID)
	if err != nil {
		return Extraction{}, fmt.Errorf("fetch station %s: %w", s.stationID, err)
	}

	rec := ExtractStation(s.stationID, feature.Properties)
	path, err := s.writer.Write(ctx, Stations.Name, StationColumns, []snapshot.Row{rec}, runTS)
	if err != nil {
		return Extraction{}, fmt.Errorf("write %s snapshot: %w", Stations.Name, err)
	}

	return Extraction{
		Outcome: OutcomeProceed,
		Table:   Stations.Name,
		Path:    path,
		Rows:    1,
	}, nil
}

// ExtractObservations fetches observations from start onwards, sorts them by
// timestamp and writes them as a snapshot. An empty batch is a skip.
func (s *Service) ExtractObservations(ctx context.Context, runTS, start time.Time) (Extraction, error) {
	payload, err := s.client.Observations(ctx, s.stationID, start)
	if err != nil {
		return Extraction{}, fmt.Errorf("fetch observations for %s: %w", s.stationID, err)
	}
	if payload.Features == nil {
		return Extraction{}, ErrMissingFeatures
	}

	records := make([]ObservationRecord, 0, len(*payload.Features))
	for _, f := range *payload.Features {
		records = append(records, ExtractObservation(s.stationID, f))
	}

	if len(records) == 0 {
		s.logger.Info("no new observations to ingest", zap.String("start", common.FormatISO(start)))
		return Extraction{
			Outcome: OutcomeSkip,
			Reason:  "no new data to ingest",
			Table:   WeatherObs.Name,
		}, nil
	}

	SortObservations(records)
	watermark := LatestTimestamp(records)

	fields := []zap.Field{zap.Int("rows", len(records))}
	if watermark != nil {
		fields = append(fields, zap.String("watermark", common.FormatISO(*watermark)))
	} else {
		s.logger.Warn("observation batch carries no parseable timestamp; watermark unchanged")
	}
	s.logger.Info("observations retrieved", fields...)

	rows := make([]snapshot.Row, len(records))
	for i, r := range records {
		rows[i] = r
	}
	path, err := s.writer.Write(ctx, WeatherObs.Name, ObservationColumns, rows, runTS)
	if err != nil {
		return Extraction{}, fmt.Errorf("write %s snapshot: %w", WeatherObs.Name, err)
	}

	return Extraction{
		Outcome:   OutcomeProceed,
		Table:     WeatherObs.Name,
		Path:      path,
		Rows:      len(records),
		Watermark: watermark,
	}, nil
}

// SortObservations orders records ascending by observation timestamp.
// Records without a parseable timestamp sort first.
func SortObservations(records []ObservationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, okI := observationTime(records[i])
		tj, okJ := observationTime(records[j])
		switch {
		case !okI && !okJ:
			return false
		case !okI:
			return true
		case !okJ:
			return false
		default:
			return ti.Before(tj)
		}
	})
}

// LatestTimestamp returns the timestamp of the last record of a sorted batch.
func LatestTimestamp(sorted []ObservationRecord) *time.Time {
	if len(sorted) == 0 {
		return nil
	}
	ts, ok := observationTime(sorted[len(sorted)-1])
	if !ok {
		return nil
	}
	return &ts
}

func observationTime(r ObservationRecord) (time.Time, bool) {
	if r.ObservationTimestamp == nil {
		return time.Time{}, false
	}
	ts, err := common.ParseTimestamp(*r.ObservationTimestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

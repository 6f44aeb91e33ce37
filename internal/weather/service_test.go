package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jean18/front/internal/snapshot"
)

// fakeClient returns canned payloads and records the requested start.
type fakeClient struct {
	station      StationFeature
	observations ObservationCollection
	err          error
	gotStart     time.Time
}

func (f *fakeClient) Station(context.Context, string) (StationFeature, error) {
	return f.station, f.err
}

func (f *fakeClient) Observations(_ context.Context, _ string, start time.Time) (ObservationCollection, error) {
	f.gotStart = start
	return f.observations, f.err
}

// recordingWriter captures writes instead of touching disk.
type recordingWriter struct {
	table string
	rows  []snapshot.Row
	calls int
}

func (w *recordingWriter) Write(_ context.Context, table string, _ []snapshot.Column, rows []snapshot.Row, _ time.Time) (string, error) {
	w.calls++
	w.table = table
	w.rows = rows
	return "/tmp/raw/weather_api/" + table + ".parquet", nil
}

func strPtr(s string) *string { return &s }
func fltPtr(f float64) *float64 { return &f }

func obsFeature(ts string, temp float64) ObservationFeature {
	return ObservationFeature{
		Geometry: &Geometry{Coordinates: []*float64{fltPtr(-83.17), fltPtr(30.05)}},
		Properties: &ObservationProperties{
			Timestamp:   strPtr(ts),
			Temperature: &Quantity{Value: &temp},
		},
	}
}

func TestExtractStations(t *testing.T) {
	client := &fakeClient{station: StationFeature{Properties: &StationProperties{
		Name:     strPtr("Lafayette High School"),
		TimeZone: strPtr("America/New_York"),
	}}}
	writer := &recordingWriter{}
	svc := NewService(client, writer, "0112W", nil)

	got, err := svc.ExtractStations(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Outcome != OutcomeProceed || got.Rows != 1 || got.Path == "" {
		t.Fatalf("unexpected extraction: %+v", got)
	}
	if writer.table != Stations.Name || len(writer.rows) != 1 {
		t.Fatalf("writer got table=%q rows=%d", writer.table, len(writer.rows))
	}
	rec := writer.rows[0].(StationRecord)
	if *rec.StationName != "Lafayette High School" {
		t.Fatalf("station name = %q", *rec.StationName)
	}
}

func TestExtractStationsPropagatesFetchError(t *testing.T) {
	boom := errors.New("503 service unavailable")
	svc := NewService(&fakeClient{err: boom}, &recordingWriter{}, "0112W", nil)

	if _, err := svc.ExtractStations(context.Background(), time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestExtractObservationsSortsAndReportsWatermark(t *testing.T) {
	features := []ObservationFeature{
		obsFeature("2024-08-30T09:40:00+00:00", 23),
		obsFeature("2024-08-30T09:20:00+00:00", 22),
		obsFeature("2024-08-30T10:00:00+00:00", 24),
	}
	client := &fakeClient{observations: ObservationCollection{Features: &features}}
	writer := &recordingWriter{}
	svc := NewService(client, writer, "0112W", nil)

	start := time.Date(2024, 8, 29, 2, 40, 1, 0, time.UTC)
	got, err := svc.ExtractObservations(context.Background(), time.Now(), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.gotStart.Equal(start) {
		t.Fatalf("client start = %v, want %v", client.gotStart, start)
	}
	if got.Outcome != OutcomeProceed || got.Rows != 3 {
		t.Fatalf("unexpected extraction: %+v", got)
	}

	want := time.Date(2024, 8, 30, 10, 0, 0, 0, time.UTC)
	if got.Watermark == nil || !got.Watermark.Equal(want) {
		t.Fatalf("watermark = %v, want %v", got.Watermark, want)
	}

	var prev string
	for _, row := range writer.rows {
		ts := *row.(ObservationRecord).ObservationTimestamp
		if prev != "" && ts < prev {
			t.Fatalf("rows not sorted: %s after %s", ts, prev)
		}
		prev = ts
	}
}

func TestExtractObservationsEmptyBatchIsSkip(t *testing.T) {
	empty := []ObservationFeature{}
	writer := &recordingWriter{}
	svc := NewService(&fakeClient{observations: ObservationCollection{Features: &empty}}, writer, "0112W", nil)

	got, err := svc.ExtractObservations(context.Background(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("empty batch must not be an error: %v", err)
	}
	if got.Outcome != OutcomeSkip {
		t.Fatalf("outcome = %v, want skip", got.Outcome)
	}
	if writer.calls != 0 {
		t.Fatalf("writer called %d times for empty batch", writer.calls)
	}
	if got.Watermark != nil {
		t.Fatalf("watermark must not move on empty batch")
	}
}

func TestExtractObservationsMissingFeatures(t *testing.T) {
	svc := NewService(&fakeClient{}, &recordingWriter{}, "0112W", nil)

	_, err := svc.ExtractObservations(context.Background(), time.Now(), time.Now())
	if !errors.Is(err, ErrMissingFeatures) {
		t.Fatalf("expected ErrMissingFeatures, got %v", err)
	}
}

func TestSortObservationsIdempotent(t *testing.T) {
	recs := []ObservationRecord{
		{ObservationTimestamp: strPtr("2024-08-30T09:20:00+00:00")},
		{ObservationTimestamp: strPtr("2024-08-30T09:40:00+00:00")},
		{ObservationTimestamp: strPtr("2024-08-30T10:00:00+00:00")},
	}
	SortObservations(recs)
	SortObservations(recs)

	want := []string{"2024-08-30T09:20:00+00:00", "2024-08-30T09:40:00+00:00", "2024-08-30T10:00:00+00:00"}
	for i, r := range recs {
		if *r.ObservationTimestamp != want[i] {
			t.Fatalf("position %d = %s, want %s", i, *r.ObservationTimestamp, want[i])
		}
	}

	wm := LatestTimestamp(recs)
	if wm == nil || !wm.Equal(time.Date(2024, 8, 30, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("latest = %v", wm)
	}
}

func TestSortObservationsNullTimestampsFirst(t *testing.T) {
	recs := []ObservationRecord{
		{ObservationTimestamp: strPtr("2024-08-30T10:00:00+00:00")},
		{},
		{ObservationTimestamp: strPtr("2024-08-30T09:00:00+00:00")},
	}
	SortObservations(recs)

	if recs[0].ObservationTimestamp != nil {
		t.Fatalf("null timestamp should sort first, got %v", *recs[0].ObservationTimestamp)
	}
	if *recs[2].ObservationTimestamp != "2024-08-30T10:00:00+00:00" {
		t.Fatalf("last = %s", *recs[2].ObservationTimestamp)
	}
	if LatestTimestamp([]ObservationRecord{{}}) != nil {
		t.Fatalf("batch without timestamps has no watermark")
	}
}

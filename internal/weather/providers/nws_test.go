package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jean18/front/internal/weather"
)

var _ weather.Client = (*NWSClient)(nil)

func TestGetSendsParamsAndHeaders(t *testing.T) {
	var gotPath, gotAccept, gotStart, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotCustom = r.Header.Get("X-Custom")
		gotStart = r.URL.Query().Get("param_1")
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(`{"data": "data_mock"}`))
	}))
	defer srv.Close()

	c := NewNWSClient(srv.Client(), srv.URL, "test-agent", nil)

	var out struct {
		Data string `json:"data"`
	}
	params := map[string][]string{"param_1": {"value_1"}}
	err := c.Get(context.Background(), "endpoint_mock", params, map[string]string{"Accept": "mock", "X-Custom": "1"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Data != "data_mock" {
		t.Fatalf("data = %q", out.Data)
	}
	if gotPath != "/endpoint_mock" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAccept != "mock" || gotCustom != "1" {
		t.Fatalf("headers not overridden: accept=%q custom=%q", gotAccept, gotCustom)
	}
	if gotStart != "value_1" {
		t.Fatalf("param_1 = %q", gotStart)
	}
}

func TestObservationsRequestsStartAndGeoJSON(t *testing.T) {
	var gotPath, gotAccept, gotStart string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotStart = r.URL.Query().Get("start")
		w.Write([]byte(`{"type": "FeatureCollection", "features": []}`))
	}))
	defer srv.Close()

	c := NewNWSClient(srv.Client(), srv.URL, "", nil)
	start := time.Date(2024, 8, 29, 2, 40, 1, 0, time.UTC)

	payload, err := c.Observations(context.Background(), "0112W", start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/stations/0112W/observations" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAccept != DefaultAccept {
		t.Fatalf("accept = %q", gotAccept)
	}
	if gotStart != "2024-08-29T02:40:01+00:00" {
		t.Fatalf("start = %q", gotStart)
	}
	// An empty collection is a valid result, not an error.
	if payload.Features == nil || len(*payload.Features) != 0 {
		t.Fatalf("expected empty features, got %+v", payload.Features)
	}
}

func TestStationDecodesProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations/0112W" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"type": "Feature", "properties": {"name": "Lafayette High School", "timeZone": "America/New_York"}}`))
	}))
	defer srv.Close()

	c := NewNWSClient(srv.Client(), srv.URL, "", nil)
	feature, err := c.Station(context.Background(), "0112W")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feature.Properties == nil || *feature.Properties.Name != "Lafayette High School" {
		t.Fatalf("unexpected properties: %+v", feature.Properties)
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewNWSClient(srv.Client(), srv.URL, "", nil)
	_, err := c.Station(context.Background(), "0112W")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", se.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestMissingHTTPClient(t *testing.T) {
	c := NewNWSClient(nil, "http://example.invalid", "", nil)
	if _, err := c.Station(context.Background(), "0112W"); !errors.Is(err, errNoHTTPClient) {
		t.Fatalf("expected errNoHTTPClient, got %v", err)
	}
}

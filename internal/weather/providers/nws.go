package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jean18/front/internal/common"
	"github.com/jean18/front/internal/metrics"
	"github.com/jean18/front/internal/weather"
)

const (
	DefaultBaseURL = "https://api.weather.gov"

	// DefaultAccept asks for the GeoJSON representation.
	DefaultAccept = "application/geo+json"

	endpointStations     = "stations"
	endpointObservations = "observations"
)

// NWSClient talks to the National Weather Service API.
// See https://www.weather.gov/documentation/services-web-api
type NWSClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewNWSClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewNWSClient(client *http.Client, baseURL, userAgent string, logger *zap.Logger) *NWSClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NWSClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
		circuit:   newBreaker("nws"),
		logger:    logger,
	}
}

// Get issues a GET to endpoint and decodes the JSON body into dst.
// headers override the defaults (accept: application/geo+json).
func (c *NWSClient) Get(ctx context.Context, endpoint string, params url.Values, headers map[string]string, dst any) error {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", DefaultAccept)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	c.logger.Info("api get call", zap.String("url", u))

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		metrics.ObserveAPIRequest(endpointLabel(endpoint), statusLabel(err))
		return err
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(endpointLabel(endpoint), strconv.Itoa(resp.StatusCode))

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// Station fetches GET /stations/{id}.
func (c *NWSClient) Station(ctx context.Context, stationID string) (weather.StationFeature, error) {
	var feature weather.StationFeature
	err := c.Get(ctx, path.Join(endpointStations, stationID), nil, nil, &feature)
	return feature, err
}

// Observations fetches GET /stations/{id}/observations?start=... ; the API
// decides the upper bound.
func (c *NWSClient) Observations(ctx context.Context, stationID string, start time.Time) (weather.ObservationCollection, error) {
	params := url.Values{}
	params.Set("start", common.FormatISO(start))

	var payload weather.ObservationCollection
	err := c.Get(ctx, path.Join(endpointStations, stationID, endpointObservations), params, nil, &payload)
	return payload, err
}

func endpointLabel(endpoint string) string {
	if strings.HasSuffix(strings.TrimRight(endpoint, "/"), endpointObservations) {
		return endpointObservations
	}
	return endpointStations
}

func statusLabel(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	return "error"
}

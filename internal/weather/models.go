package weather

import (
	"github.com/jean18/front/internal/snapshot"
)

// TableMetadata names a target table and the SQL template that loads it.
type TableMetadata struct {
	Name    string
	SQLPath string
}

var (
	Stations = TableMetadata{
		Name:    "stations",
		SQLPath: "sql/weather/load_stations_data.sql",
	}
	WeatherObs = TableMetadata{
		Name:    "weather_obs",
		SQLPath: "sql/weather/load_weather_obs_data.sql",
	}
)

// StationRecord is one row of the stations table.
// Nil pointers are the null value for missing source fields.
type StationRecord struct {
	StationID       string  `json:"station_id"`
	StationName     *string `json:"station_name"`
	StationTimezone *string `json:"station_timezone"`
}

// StationColumns is the snapshot layout of StationRecord.
var StationColumns = []snapshot.Column{
	{Name: "station_id", Type: snapshot.String},
	{Name: "station_name", Type: snapshot.String},
	{Name: "station_timezone", Type: snapshot.String},
}

// Values returns the record in StationColumns order.
func (r StationRecord) Values() []any {
	return []any{r.StationID, r.StationName, r.StationTimezone}
}

// ObservationRecord is one row of the weather_obs table, identified by
// (StationID, ObservationTimestamp).
type ObservationRecord struct {
	StationID            string   `json:"station_id"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	ObservationTimestamp *string  `json:"observation_timestamp"`
	Temperature          *float64 `json:"temperature"`
	WindSpeed            *float64 `json:"wind_speed"`
	Humidity             *float64 `json:"humidity"`
}

// ObservationColumns is the snapshot layout of ObservationRecord.
var ObservationColumns = []snapshot.Column{
	{Name: "station_id", Type: snapshot.String},
	{Name: "latitude", Type: snapshot.Float64},
	{Name: "longitude", Type: snapshot.Float64},
	{Name: "observation_timestamp", Type: snapshot.String},
	{Name: "temperature", Type: snapshot.Float64},
	{Name: "wind_speed", Type: snapshot.Float64},
	{Name: "humidity", Type: snapshot.Float64},
}

// Values returns the record in ObservationColumns order.
func (r ObservationRecord) Values() []any {
	return []any{
		r.StationID,
		r.Latitude,
		r.Longitude,
		r.ObservationTimestamp,
		r.Temperature,
		r.WindSpeed,
		r.Humidity,
	}
}

// Quantity is the {unitCode, value} shape used by api.weather.gov for
// measured values. Value is null when the sensor reported nothing.
type Quantity struct {
	UnitCode       string   `json:"unitCode,omitempty"`
	Value          *float64 `json:"value"`
	QualityControl string   `json:"qualityControl,omitempty"`
}

// Geometry is a GeoJSON point; Coordinates are ordered [longitude, latitude].
// Either element may be null.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates []*float64 `json:"coordinates"`
}

// StationProperties holds the subset of station metadata we read.
type StationProperties struct {
	StationIdentifier string  `json:"stationIdentifier,omitempty"`
	Name              *string `json:"name"`
	TimeZone          *string `json:"timeZone"`
}

// StationFeature is the GeoJSON Feature returned by /stations/{id}.
type StationFeature struct {
	ID         string             `json:"id"`
	Geometry   *Geometry          `json:"geometry"`
	Properties *StationProperties `json:"properties"`
}

// ObservationProperties holds the subset of observation fields we read.
type ObservationProperties struct {
	Timestamp        *string   `json:"timestamp"`
	Temperature      *Quantity `json:"temperature"`
	WindSpeed        *Quantity `json:"windSpeed"`
	RelativeHumidity *Quantity `json:"relativeHumidity"`
}

// ObservationFeature is one element of an observations FeatureCollection.
type ObservationFeature struct {
	ID         string                 `json:"id"`
	Geometry   *Geometry              `json:"geometry"`
	Properties *ObservationProperties `json:"properties"`
}

// ObservationCollection is the FeatureCollection returned by
// /stations/{id}/observations. A nil Features means the key was absent.
type ObservationCollection struct {
	Type     string                `json:"type"`
	Features *[]ObservationFeature `json:"features"`
}

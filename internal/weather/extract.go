package weather

// ExtractStation projects station properties into a StationRecord.
// Missing properties yield nil fields; it never fails.
func ExtractStation(stationID string, props *StationProperties) StationRecord {
	rec := StationRecord{StationID: stationID}
	if props == nil {
		return rec
	}
	rec.StationName = props.Name
	rec.StationTimezone = props.TimeZone
	return rec
}

// ExtractObservation projects an observation feature into an ObservationRecord.
// GeoJSON orders coordinates longitude first, so index 0 is the longitude.
func ExtractObservation(stationID string, feature ObservationFeature) ObservationRecord {
	rec := ObservationRecord{StationID: stationID}

	if g := feature.Geometry; g != nil && len(g.Coordinates) >= 2 {
		rec.Longitude = copyFloat(g.Coordinates[0])
		rec.Latitude = copyFloat(g.Coordinates[1])
	}

	props := feature.Properties
	if props == nil {
		return rec
	}
	rec.ObservationTimestamp = props.Timestamp
	rec.Temperature = quantityValue(props.Temperature)
	rec.WindSpeed = quantityValue(props.WindSpeed)
	rec.Humidity = quantityValue(props.RelativeHumidity)
	return rec
}

func quantityValue(q *Quantity) *float64 {
	if q == nil {
		return nil
	}
	return copyFloat(q.Value)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

package models

import "time"

// Direction labels used by the Vivacity counts endpoint.
const (
	DirectionClockwise     = "clockwise"
	DirectionAntiClockwise = "anti_clockwise"
)

// Source tag attached to every row produced by this module.
const Source = "vivacity"

// CountRecord is a single per-class count for one countline and time bucket.
// Direction is empty when the record is the result of bidirectional
// aggregation, in which case Count is the sum over both directions.
type CountRecord struct {
	CountlineID string    `json:"countline_id"`
	Timestamp   time.Time `json:"timestamp"`
	BucketEnd   time.Time `json:"bucket_end"`
	Direction   string    `json:"direction,omitempty"`
	Class       string    `json:"class"`
	Mode        string    `json:"mode"`
	Count       int64     `json:"count"`
}

// SpeedRecord is one speed observation bucket for a countline. The sensor
// may report no data for an interval, so every measurement is nullable.
type SpeedRecord struct {
	CountlineID string    `json:"countline_id"`
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	MeanSpeed   *float64  `json:"mean_speed"`
	P50Speed    *float64  `json:"p50_speed"`
	P85Speed    *float64  `json:"p85_speed"`
	SampleSize  *int64    `json:"sample_size"`
}

// LineGeometry is a GeoJSON LineString: an ordered sequence of
// (longitude, latitude) pairs.
type LineGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// CountlineMetadata describes one countline as reported by the vendor.
// SensorName is derived from the raw name (camera prefix plus first location
// segment). HardwareID is a weak reference to HardwareMetadata.ID.
type CountlineMetadata struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	SensorName  string        `json:"sensor_name"`
	Description string        `json:"description"`
	IsSpeed     bool          `json:"is_speed"`
	Geometry    *LineGeometry `json:"geometry,omitempty"`
	HardwareID  string        `json:"hardware_id,omitempty"`
	ViewpointID string        `json:"viewpoint_id,omitempty"`
}

// HardwareMetadata describes a physical sensor unit and its location.
type HardwareMetadata struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Latitude        *float64 `json:"lat"`
	Longitude       *float64 `json:"lon"`
	ProjectName     string   `json:"project_name"`
	HardwareVersion string   `json:"hardware_version"`
}

// TrafficRow is one tabular record ready for ingestion. Bidirectional rows
// leave Direction empty and may carry a V85 speed; directional rows keep
// Direction and never carry V85.
type TrafficRow struct {
	Timestamp time.Time `json:"timestamp"`
	SensorID  string    `json:"sensor_id"`
	Direction string    `json:"direction,omitempty"`
	Mode      string    `json:"mode"`
	Count     int64     `json:"count"`
	V85       *float64  `json:"v85"`
	Region    string    `json:"region"`
	Source    string    `json:"source"`
}

package api

import (
	"context"
	"sort"
	"strings"

	"github.com/counterflow/vivacity/internal/models"
)

type countlineMetadataPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSpeed     bool   `json:"is_speed"`
	HardwareID  string `json:"hardware_id"`
	ViewpointID string `json:"viewpoint_id"`
	Geometry    *struct {
		GeoJSON *struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geo_json"`
	} `json:"geometry"`
}

type hardwareMetadataPayload struct {
	Name            string   `json:"name"`
	Lat             *float64 `json:"lat"`
	Long            *float64 `json:"long"` // vendor spells longitude "long"
	ProjectName     string   `json:"project_name"`
	HardwareVersion string   `json:"hardware_version"`
}

// GetCountlineMetadata fetches all countline metadata for this region.
// Unlike count and speed fetches this is a single request, so failures
// propagate to the caller. Results are sorted by countline ID.
func (c *Client) GetCountlineMetadata(ctx context.Context) ([]models.CountlineMetadata, error) {
	var payload map[string]countlineMetadataPayload
	if err := c.getJSON(ctx, "/countline/metadata", nil, &payload); err != nil {
		return nil, err
	}

	countlines := make([]models.CountlineMetadata, 0, len(payload))
	for id, item := range payload {
		meta := models.CountlineMetadata{
			ID:          id,
			Name:        item.Name,
			SensorName:  deriveSensorName(item.Name),
			Description: item.Description,
			IsSpeed:     item.IsSpeed,
			HardwareID:  item.HardwareID,
			ViewpointID: item.ViewpointID,
		}
		if item.Geometry != nil && item.Geometry.GeoJSON != nil && len(item.Geometry.GeoJSON.Coordinates) > 0 {
			meta.Geometry = &models.LineGeometry{
				Type:        "LineString",
				Coordinates: item.Geometry.GeoJSON.Coordinates,
			}
		}
		countlines = append(countlines, meta)
	}

	sort.Slice(countlines, func(i, j int) bool { return countlines[i].ID < countlines[j].ID })
	return countlines, nil
}

// GetHardwareMetadata fetches hardware (sensor unit) metadata with
// locations. Results are sorted by hardware ID.
func (c *Client) GetHardwareMetadata(ctx context.Context) ([]models.HardwareMetadata, error) {
	var payload map[string]hardwareMetadataPayload
	if err := c.getJSON(ctx, "/hardware/metadata", nil, &payload); err != nil {
		return nil, err
	}

	hardware := make([]models.HardwareMetadata, 0, len(payload))
	for id, item := range payload {
		hardware = append(hardware, models.HardwareMetadata{
			ID:              id,
			Name:            item.Name,
			Latitude:        item.Lat,
			Longitude:       item.Long,
			ProjectName:     item.ProjectName,
			HardwareVersion: item.HardwareVersion,
		})
	}

	sort.Slice(hardware, func(i, j int) bool { return hardware[i].ID < hardware[j].ID })
	return hardware, nil
}

// deriveSensorName keeps the camera prefix and first location segment of a
// raw countline name ("S40_WoodhouseLn_road_wyca001" -> "S40_WoodhouseLn").
func deriveSensorName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) >= 2 {
		return parts[0] + "_" + parts[1]
	}
	return name
}

package api

import (
	"context"
	"time"

	"github.com/counterflow/vivacity/internal/models"
)

// FetchRegionTraffic fetches counts for the given countlines and reshapes
// them into ingestion rows tagged with the region and source. Bidirectional
// rows carry a null v85 placeholder; directional rows keep the direction
// column instead.
func (c *Client) FetchRegionTraffic(ctx context.Context, countlineIDs []string, start, end time.Time, regionName, timeBucket string, bidirectional bool) ([]models.TrafficRow, error) {
	counts, err := c.GetCounts(ctx, countlineIDs, start, end, timeBucket, bidirectional)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, nil
	}

	rows := make([]models.TrafficRow, 0, len(counts))
	for _, rec := range counts {
		row := models.TrafficRow{
			Timestamp: rec.Timestamp,
			SensorID:  rec.CountlineID,
			Mode:      rec.Mode,
			Count:     rec.Count,
			Region:    regionName,
			Source:    models.Source,
		}
		if !bidirectional {
			row.Direction = rec.Direction
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchRegionTrafficWithSpeed fetches bidirectional traffic rows and joins
// daily 85th-percentile speeds onto them. Speed is fetched at daily buckets,
// averaged per (sensor, UTC calendar day), and attached only to rows whose
// mode is "car"; every other mode keeps a null v85 regardless of speed-data
// availability.
func (c *Client) FetchRegionTrafficWithSpeed(ctx context.Context, countlineIDs []string, start, end time.Time, regionName, timeBucket string) ([]models.TrafficRow, error) {
	rows, err := c.FetchRegionTraffic(ctx, countlineIDs, start, end, regionName, timeBucket, true)
	if err != nil || len(rows) == 0 {
		return rows, err
	}

	speeds, err := c.GetSpeed(ctx, countlineIDs, start, end, DefaultSpeedBucket)
	if err != nil {
		return nil, err
	}

	daily := dailyP85(speeds)
	for i := range rows {
		if rows[i].Mode != ModeCar {
			continue
		}
		key := dayKey{rows[i].SensorID, rows[i].Timestamp.UTC().Truncate(24 * time.Hour)}
		if v85, ok := daily[key]; ok {
			v85 := v85
			rows[i].V85 = &v85
		}
	}
	return rows, nil
}

type dayKey struct {
	sensorID string
	day      time.Time
}

// dailyP85 averages the 85th-percentile speed per sensor per UTC calendar
// day across duplicate buckets, ignoring buckets with no reading.
func dailyP85(records []models.SpeedRecord) map[dayKey]float64 {
	sums := make(map[dayKey]float64)
	counts := make(map[dayKey]int)
	for _, r := range records {
		if r.P85Speed == nil {
			continue
		}
		key := dayKey{r.CountlineID, r.BucketStart.UTC().Truncate(24 * time.Hour)}
		sums[key] += *r.P85Speed
		counts[key]++
	}

	daily := make(map[dayKey]float64, len(sums))
	for key, sum := range sums {
		daily[key] = sum / float64(counts[key])
	}
	return daily
}

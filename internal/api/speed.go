package api

import (
	"context"
	"time"

	"github.com/counterflow/vivacity/internal/models"
)

// speedBucket mirrors one time-bucket entry on the speed endpoint. A sensor
// may report no data for an interval, so every field is nullable.
type speedBucket struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Mean       *float64  `json:"mean"`
	P50        *float64  `json:"p50"`
	P85        *float64  `json:"p85"`
	SampleSize *int64    `json:"sample_size"`
}

// GetSpeed fetches speed percentile data for the given countlines over
// [start, end), using the same batching and skip-on-failure policy as
// GetCounts. One record is emitted per countline per bucket.
func (c *Client) GetSpeed(ctx context.Context, countlineIDs []string, start, end time.Time, timeBucket string) ([]models.SpeedRecord, error) {
	var acc collector[models.SpeedRecord]

	c.runSubBatches(ctx, "speed", countlineIDs, start, end, func(ctx context.Context, ids []string, window DateBatch) error {
		records, err := c.fetchSpeedBatch(ctx, ids, window, timeBucket)
		if err != nil {
			return err
		}
		acc.append(records)
		return nil
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return acc.records, nil
}

func (c *Client) fetchSpeedBatch(ctx context.Context, ids []string, window DateBatch, timeBucket string) ([]models.SpeedRecord, error) {
	var payload map[string][]speedBucket
	if err := c.getJSON(ctx, "/countline/speed", rangeParams(ids, window, timeBucket), &payload); err != nil {
		return nil, err
	}

	var records []models.SpeedRecord
	for countlineID, buckets := range payload {
		for _, bucket := range buckets {
			records = append(records, models.SpeedRecord{
				CountlineID: countlineID,
				BucketStart: bucket.From,
				BucketEnd:   bucket.To,
				MeanSpeed:   bucket.Mean,
				P50Speed:    bucket.P50,
				P85Speed:    bucket.P85,
				SampleSize:  bucket.SampleSize,
			})
		}
	}

	RecordsFetched.WithLabelValues("speed").Add(float64(len(records)))
	return records, nil
}

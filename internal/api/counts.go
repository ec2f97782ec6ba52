package api

import (
	"context"
	"sort"
	"time"

	"github.com/counterflow/vivacity/internal/models"
)

// totalPseudoClass is the vendor's per-direction sum; it is never emitted as
// a class of its own.
const totalPseudoClass = "total"

// countsBucket mirrors one time-bucket entry on the counts endpoint. Counts
// are nullable per class.
type countsBucket struct {
	From          time.Time         `json:"from"`
	To            time.Time         `json:"to"`
	Clockwise     map[string]*int64 `json:"clockwise"`
	AntiClockwise map[string]*int64 `json:"anti_clockwise"`
}

// GetCounts fetches per-class counts for the given countlines over
// [start, end), batching requests to respect API limits. With bidirectional
// set, clockwise and anti-clockwise counts for the same (countline, bucket,
// class) are summed into a single undirected record; otherwise the direction
// is preserved per record.
//
// Sub-batches that fail are skipped, so the result may be partial. An empty
// result is not an error.
func (c *Client) GetCounts(ctx context.Context, countlineIDs []string, start, end time.Time, timeBucket string, bidirectional bool) ([]models.CountRecord, error) {
	var acc collector[models.CountRecord]

	c.runSubBatches(ctx, "counts", countlineIDs, start, end, func(ctx context.Context, ids []string, window DateBatch) error {
		records, err := c.fetchCountBatch(ctx, ids, window, timeBucket)
		if err != nil {
			return err
		}
		acc.append(records)
		return nil
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bidirectional {
		return aggregateBidirectional(acc.records), nil
	}
	return acc.records, nil
}

// fetchCountBatch issues one counts request and flattens the nested
// countline -> bucket -> direction -> class payload into records.
func (c *Client) fetchCountBatch(ctx context.Context, ids []string, window DateBatch, timeBucket string) ([]models.CountRecord, error) {
	var payload map[string][]countsBucket
	if err := c.getJSON(ctx, "/countline/counts", rangeParams(ids, window, timeBucket), &payload); err != nil {
		return nil, err
	}

	var records []models.CountRecord
	for countlineID, buckets := range payload {
		for _, bucket := range buckets {
			records = append(records, parseDirection(countlineID, bucket, models.DirectionClockwise, bucket.Clockwise)...)
			records = append(records, parseDirection(countlineID, bucket, models.DirectionAntiClockwise, bucket.AntiClockwise)...)
		}
	}

	RecordsFetched.WithLabelValues("counts").Add(float64(len(records)))
	return records, nil
}

// parseDirection emits one record per class present in a direction's
// payload, skipping the total pseudo-class and null counts.
func parseDirection(countlineID string, bucket countsBucket, direction string, classCounts map[string]*int64) []models.CountRecord {
	var records []models.CountRecord
	for class, count := range classCounts {
		if class == totalPseudoClass || count == nil {
			continue
		}
		records = append(records, models.CountRecord{
			CountlineID: countlineID,
			Timestamp:   bucket.From,
			BucketEnd:   bucket.To,
			Direction:   direction,
			Class:       class,
			Mode:        ModeForClass(class),
			Count:       *count,
		})
	}
	return records
}

type countKey struct {
	countlineID string
	timestamp   time.Time
	bucketEnd   time.Time
	class       string
	mode        string
}

// aggregateBidirectional groups records by (countline, bucket, class, mode),
// sums counts across directions, and drops the direction field. Output order
// is deterministic.
func aggregateBidirectional(records []models.CountRecord) []models.CountRecord {
	if len(records) == 0 {
		return nil
	}

	sums := make(map[countKey]int64, len(records))
	for _, r := range records {
		sums[countKey{r.CountlineID, r.Timestamp, r.BucketEnd, r.Class, r.Mode}] += r.Count
	}

	aggregated := make([]models.CountRecord, 0, len(sums))
	for key, total := range sums {
		aggregated = append(aggregated, models.CountRecord{
			CountlineID: key.countlineID,
			Timestamp:   key.timestamp,
			BucketEnd:   key.bucketEnd,
			Class:       key.class,
			Mode:        key.mode,
			Count:       total,
		})
	}

	sort.Slice(aggregated, func(i, j int) bool {
		a, b := aggregated[i], aggregated[j]
		if a.CountlineID != b.CountlineID {
			return a.CountlineID < b.CountlineID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Class < b.Class
	})
	return aggregated
}

// Package ingest composes the Vivacity client and the traffic repository
// into per-region ingestion flows.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/counterflow/vivacity/internal/api"
	"github.com/counterflow/vivacity/internal/database"
	"github.com/counterflow/vivacity/internal/models"
	"github.com/counterflow/vivacity/internal/names"
)

const parserCacheSize = 1024

// Ingestor fetches traffic data for one region and stores it.
type Ingestor struct {
	client     *api.Client
	repo       database.TrafficRepository
	parser     *names.Parser
	logger     *logrus.Logger
	regionName string
	timeBucket string
}

// New builds an Ingestor for one region. timeBucket defaults to the client's
// standard count bucket when empty.
func New(client *api.Client, repo database.TrafficRepository, logger *logrus.Logger, regionName, timeBucket string) (*Ingestor, error) {
	parser, err := names.NewParser(parserCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating name parser: %w", err)
	}
	if timeBucket == "" {
		timeBucket = api.DefaultTimeBucket
	}
	return &Ingestor{
		client:     client,
		repo:       repo,
		parser:     parser,
		logger:     logger,
		regionName: regionName,
		timeBucket: timeBucket,
	}, nil
}

// SyncMetadata refreshes the sensor dimension: countline metadata joined
// with hardware coordinates and the camera identity parsed from each raw
// name. Returns the number of sensors written.
func (i *Ingestor) SyncMetadata(ctx context.Context) (int, error) {
	countlines, err := i.client.GetCountlineMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching countline metadata: %w", err)
	}
	hardware, err := i.client.GetHardwareMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching hardware metadata: %w", err)
	}

	hardwareByID := make(map[string]models.HardwareMetadata, len(hardware))
	for _, hw := range hardware {
		hardwareByID[hw.ID] = hw
	}

	sensors := make([]database.Sensor, 0, len(countlines))
	for _, cl := range countlines {
		parsed := i.parser.Parse(cl.Name)
		sensor := database.Sensor{
			CountlineID: cl.ID,
			Name:        cl.Name,
			CameraID:    parsed.CameraID,
			CordonName:  parsed.CordonName,
			RoadName:    parsed.RoadName,
			CounterType: parsed.CounterType,
			IsSpeed:     cl.IsSpeed,
			Region:      i.regionName,
		}
		if hw, ok := hardwareByID[cl.HardwareID]; ok {
			sensor.Latitude = hw.Latitude
			sensor.Longitude = hw.Longitude
		}
		sensors = append(sensors, sensor)
	}

	if err := i.repo.UpsertSensors(ctx, sensors); err != nil {
		return 0, fmt.Errorf("upserting sensors: %w", err)
	}

	i.logger.WithFields(logrus.Fields{
		"region":  i.regionName,
		"sensors": len(sensors),
	}).Info("Synced sensor metadata")
	return len(sensors), nil
}

// IngestWindow fetches traffic with speed for [start, end) across all of
// the region's countlines and stores the resulting rows. Returns the number
// of rows written; zero rows is not an error.
func (i *Ingestor) IngestWindow(ctx context.Context, start, end time.Time) (int, error) {
	countlines, err := i.client.GetCountlineMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching countline metadata: %w", err)
	}
	ids := make([]string, len(countlines))
	for n, cl := range countlines {
		ids[n] = cl.ID
	}

	rows, err := i.client.FetchRegionTrafficWithSpeed(ctx, ids, start, end, i.regionName, i.timeBucket)
	if err != nil {
		return 0, fmt.Errorf("fetching traffic: %w", err)
	}
	if len(rows) == 0 {
		i.logger.WithFields(logrus.Fields{
			"region": i.regionName,
			"from":   start,
			"to":     end,
		}).Info("No traffic rows for window")
		return 0, nil
	}

	if err := i.repo.BatchInsertTrafficRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("inserting traffic rows: %w", err)
	}

	i.logger.WithFields(logrus.Fields{
		"region": i.regionName,
		"from":   start,
		"to":     end,
		"rows":   len(rows),
	}).Info("Ingested traffic window")
	return len(rows), nil
}

// IngestLatest ingests from the last stored bucket (or the lookback bound,
// whichever is more recent) up to now. Used by the scheduler for incremental
// catch-up.
func (i *Ingestor) IngestLatest(ctx context.Context, lookback time.Duration) (int, error) {
	end := time.Now().UTC()
	start := end.Add(-lookback)

	latest, err := i.repo.LatestTimestamp(ctx, i.regionName)
	if err != nil {
		return 0, fmt.Errorf("querying latest timestamp: %w", err)
	}
	if !latest.IsZero() && latest.After(start) {
		start = latest
	}

	return i.IngestWindow(ctx, start, end)
}

// Backfill ingests the trailing days of history in one pass, typically run
// once when a region is first onboarded.
func (i *Ingestor) Backfill(ctx context.Context, days int) (int, error) {
	end := time.Now().UTC()
	return i.IngestWindow(ctx, end.AddDate(0, 0, -days), end)
}

// Region returns the region name this ingestor writes rows under.
func (i *Ingestor) Region() string {
	return i.regionName
}

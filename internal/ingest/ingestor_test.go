package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/counterflow/vivacity/internal/api"
	"github.com/counterflow/vivacity/internal/database"
	"github.com/counterflow/vivacity/internal/models"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) BatchInsertTrafficRows(ctx context.Context, rows []models.TrafficRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *mockRepository) UpsertSensors(ctx context.Context, sensors []database.Sensor) error {
	args := m.Called(ctx, sensors)
	return args.Error(0)
}

func (m *mockRepository) LatestTimestamp(ctx context.Context, region string) (time.Time, error) {
	args := m.Called(ctx, region)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockRepository) Close() error {
	return m.Called().Error(0)
}

const metadataFixture = `{
	"100": {
		"name": "S40_WoodhouseLn_road_wyca001",
		"is_speed": true,
		"hardware_id": "hw-1"
	},
	"200": {
		"name": "S40_Vicarln_crossing_south_lptip001",
		"is_speed": false,
		"hardware_id": "hw-missing"
	}
}`

const hardwareFixture = `{
	"hw-1": {
		"name": "S40 Woodhouse Lane",
		"lat": 53.8072,
		"long": -1.5566,
		"project_name": "wyca",
		"hardware_version": "v4"
	}
}`

const countsFixture = `{
	"100": [
		{
			"from": "2026-03-01T05:00:00Z",
			"to": "2026-03-01T06:00:00Z",
			"clockwise": {"car": 3, "total": 3},
			"anti_clockwise": {"car": 5, "total": 5}
		}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/countline/metadata":
			fmt.Fprint(w, metadataFixture)
		case "/hardware/metadata":
			fmt.Fprint(w, hardwareFixture)
		case "/countline/counts":
			fmt.Fprint(w, countsFixture)
		case "/countline/speed":
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestIngestor(t *testing.T, baseURL string, repo database.TrafficRepository) *Ingestor {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := api.DefaultClientConfig("wyca")
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL
	cfg.RateLimit = 1000
	cfg.RateLimitBurst = 1000
	cfg.Logger = logger

	client, err := api.NewClient(cfg)
	require.NoError(t, err)

	ingestor, err := New(client, repo, logger, "West Yorkshire", "1h")
	require.NoError(t, err)
	return ingestor
}

func TestSyncMetadata(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	repo := new(mockRepository)
	repo.On("UpsertSensors", mock.Anything, mock.MatchedBy(func(sensors []database.Sensor) bool {
		if len(sensors) != 2 {
			return false
		}
		bySensor := make(map[string]database.Sensor, len(sensors))
		for _, s := range sensors {
			bySensor[s.CountlineID] = s
		}

		road := bySensor["100"]
		crossing := bySensor["200"]
		return road.CameraID == "S40_woodhouseln" &&
			road.RoadName == "Woodhouse Lane" &&
			road.CounterType == "segment" &&
			road.Latitude != nil && *road.Latitude == 53.8072 &&
			crossing.CounterType == "crossing" &&
			crossing.Latitude == nil &&
			crossing.Region == "West Yorkshire"
	})).Return(nil)

	ingestor := newTestIngestor(t, server.URL, repo)
	count, err := ingestor.SyncMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	repo.AssertExpectations(t)
}

func TestIngestWindow(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	var inserted []models.TrafficRow
	repo := new(mockRepository)
	repo.On("BatchInsertTrafficRows", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).([]models.TrafficRow)
		}).
		Return(nil)

	ingestor := newTestIngestor(t, server.URL, repo)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	count, err := ingestor.IngestWindow(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, inserted, 1)

	row := inserted[0]
	assert.Equal(t, "100", row.SensorID)
	assert.Equal(t, "car", row.Mode)
	assert.Equal(t, int64(8), row.Count) // directions summed
	assert.Equal(t, "West Yorkshire", row.Region)
	assert.Equal(t, "vivacity", row.Source)
	repo.AssertExpectations(t)
}

func TestIngestLatestResumesFromStoredTimestamp(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	latest := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Hour)

	repo := new(mockRepository)
	repo.On("LatestTimestamp", mock.Anything, "West Yorkshire").Return(latest, nil)
	repo.On("BatchInsertTrafficRows", mock.Anything, mock.Anything).Return(nil)

	ingestor := newTestIngestor(t, server.URL, repo)
	_, err := ingestor.IngestLatest(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIngestWindowEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	// No insert expectation: an empty window must not touch the repository.
	repo := new(mockRepository)

	ingestor := newTestIngestor(t, server.URL, repo)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	count, err := ingestor.IngestWindow(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
	repo.AssertExpectations(t)
}

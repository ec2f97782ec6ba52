package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterflow/vivacity/internal/models"
)

const speedFixture = `{
	"100": [
		{
			"from": "2026-03-01T00:00:00Z",
			"to": "2026-03-01T12:00:00Z",
			"mean": 25.0,
			"p50": 24.0,
			"p85": 30.0,
			"sample_size": 120
		},
		{
			"from": "2026-03-01T12:00:00Z",
			"to": "2026-03-02T00:00:00Z",
			"mean": 33.0,
			"p50": 31.0,
			"p85": 40.0,
			"sample_size": 80
		},
		{
			"from": "2026-03-02T00:00:00Z",
			"to": "2026-03-03T00:00:00Z",
			"mean": null,
			"p50": null,
			"p85": null,
			"sample_size": null
		}
	]
}`

func TestGetSpeed(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/countline/speed", r.URL.Path)
		assert.Equal(t, "24h", r.URL.Query().Get("time_bucket"))
		fmt.Fprint(w, speedFixture)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.GetSpeed(context.Background(), []string{"100"}, start, end, "24h")
	require.NoError(t, err)
	require.Len(t, records, 3)

	byStart := make(map[time.Time]models.SpeedRecord, len(records))
	for _, r := range records {
		byStart[r.BucketStart.UTC()] = r
	}

	first := byStart[time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)]
	require.NotNil(t, first.P85Speed)
	assert.Equal(t, 30.0, *first.P85Speed)
	assert.Equal(t, 24.0, *first.P50Speed)
	assert.Equal(t, 25.0, *first.MeanSpeed)
	assert.Equal(t, int64(120), *first.SampleSize)

	// A bucket with no samples keeps every measurement null.
	empty := byStart[time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)]
	assert.Nil(t, empty.MeanSpeed)
	assert.Nil(t, empty.P50Speed)
	assert.Nil(t, empty.P85Speed)
	assert.Nil(t, empty.SampleSize)
}

func TestFetchRegionTraffic(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, countsFixture)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	rows, err := client.FetchRegionTraffic(context.Background(), []string{"100"}, start, end, "West Yorkshire", "1h", true)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "100", row.SensorID)
		assert.Equal(t, "West Yorkshire", row.Region)
		assert.Equal(t, "vivacity", row.Source)
		assert.Empty(t, row.Direction)
		assert.Nil(t, row.V85)
	}

	directional, err := client.FetchRegionTraffic(context.Background(), []string{"100"}, start, end, "West Yorkshire", "1h", false)
	require.NoError(t, err)
	require.Len(t, directional, 4)
	for _, row := range directional {
		assert.NotEmpty(t, row.Direction)
		assert.Nil(t, row.V85)
	}
}

func TestFetchRegionTrafficWithSpeed(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/countline/counts":
			fmt.Fprint(w, countsFixture)
		case "/countline/speed":
			assert.Equal(t, "24h", r.URL.Query().Get("time_bucket"))
			fmt.Fprint(w, speedFixture)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	rows, err := client.FetchRegionTrafficWithSpeed(context.Background(), []string{"100"}, start, end, "West Yorkshire", "1h")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byMode := make(map[string]models.TrafficRow, len(rows))
	for _, row := range rows {
		byMode[row.Mode] = row
	}

	// The two daily speed buckets for 2026-03-01 average to 35; only the car
	// row receives it.
	car := byMode["car"]
	require.NotNil(t, car.V85)
	assert.InDelta(t, 35.0, *car.V85, 1e-9)

	assert.Nil(t, byMode["pedestrian"].V85)
	assert.Nil(t, byMode["horse"].V85)
}

func TestFetchRegionTrafficWithSpeedSkipsSpeedWhenNoCounts(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var speedCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/countline/speed" {
			speedCalls.Add(1)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	rows, err := client.FetchRegionTrafficWithSpeed(context.Background(), []string{"100"}, start, end, "West Yorkshire", "1h")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int64(0), speedCalls.Load())
}

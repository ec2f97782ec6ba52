package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchDateRange(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		maxSpan  time.Duration
		expected []DateBatch
	}{
		{
			name:     "range shorter than span yields one batch",
			from:     base,
			to:       base.Add(48 * time.Hour),
			maxSpan:  week,
			expected: []DateBatch{{From: base, To: base.Add(48 * time.Hour)}},
		},
		{
			name:    "range splits at exact span boundaries",
			from:    base,
			to:      base.Add(14 * 24 * time.Hour),
			maxSpan: week,
			expected: []DateBatch{
				{From: base, To: base.Add(week)},
				{From: base.Add(week), To: base.Add(2 * week)},
			},
		},
		{
			name:    "final batch is truncated to the range end",
			from:    base,
			to:      base.Add(10 * 24 * time.Hour),
			maxSpan: week,
			expected: []DateBatch{
				{From: base, To: base.Add(week)},
				{From: base.Add(week), To: base.Add(10 * 24 * time.Hour)},
			},
		},
		{
			name:     "zero-length range yields no batches",
			from:     base,
			to:       base,
			maxSpan:  week,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BatchDateRange(tt.from, tt.to, tt.maxSpan))
		})
	}
}

func TestBatchDateRangePartitionProperties(t *testing.T) {
	from := time.Date(2026, 1, 3, 7, 30, 0, 0, time.UTC)
	spans := []time.Duration{6 * time.Hour, 24 * time.Hour, 7 * 24 * time.Hour}
	ranges := []time.Duration{time.Hour, 23 * time.Hour, 30 * 24 * time.Hour, 90*24*time.Hour + 17*time.Minute}

	for _, span := range spans {
		for _, length := range ranges {
			to := from.Add(length)
			batches := BatchDateRange(from, to, span)
			require.NotEmpty(t, batches)

			// Contiguous, no overlap, each within the span, tiling [from, to).
			assert.True(t, batches[0].From.Equal(from))
			assert.True(t, batches[len(batches)-1].To.Equal(to))
			for i, b := range batches {
				assert.True(t, b.From.Before(b.To))
				assert.LessOrEqual(t, b.To.Sub(b.From), span)
				if i > 0 {
					assert.True(t, b.From.Equal(batches[i-1].To))
				}
			}
		}
	}
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		n        int
		size     int
		expected int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{125, 50, 3},
		{7, 3, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d ids in chunks of %d", tt.n, tt.size), func(t *testing.T) {
			ids := make([]string, tt.n)
			for i := range ids {
				ids[i] = fmt.Sprintf("id-%03d", i)
			}

			chunks := ChunkIDs(ids, tt.size)
			assert.Len(t, chunks, tt.expected)

			// Concatenating the chunks reproduces the input exactly.
			flattened := make([]string, 0, tt.n)
			for _, chunk := range chunks {
				assert.LessOrEqual(t, len(chunk), tt.size)
				flattened = append(flattened, chunk...)
			}
			assert.Equal(t, ids, flattened)
		})
	}
}

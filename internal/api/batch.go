package api

import "time"

// DateBatch is a contiguous sub-interval of a requested time range.
type DateBatch struct {
	From time.Time
	To   time.Time
}

// BatchDateRange splits [from, to) into consecutive sub-ranges of at most
// maxSpan. The sub-ranges tile the interval exactly: no gaps, no overlaps,
// and the final sub-range ends at to. An empty range yields no batches.
func BatchDateRange(from, to time.Time, maxSpan time.Duration) []DateBatch {
	var batches []DateBatch
	for current := from; current.Before(to); {
		end := current.Add(maxSpan)
		if end.After(to) {
			end = to
		}
		batches = append(batches, DateBatch{From: current, To: end})
		current = end
	}
	return batches
}

// ChunkIDs splits ids into consecutive groups of at most size, preserving
// order. Concatenating the groups reproduces the input exactly.
func ChunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

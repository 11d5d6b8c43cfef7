// Package framebuffer stores incoming simulation frames indexed by
// timestamp and answers "what applies at cursor time T".
//
// Frames arrive out of order and sometimes with duplicate timestamps; the
// buffer keeps one winner per (timestamp, county) pair, resolved by
// ingestion order. Growth is unbounded for the life of a scenario — a
// scenario reset disposes the buffer and creates a fresh one.
package framebuffer

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/metrics"
)

// Default buffer sizing constants. A US scenario tracks low thousands of
// counties and a frame every few simulated seconds.
const (
	defaultCountyCapacity = 4096
	defaultFrameCapacity  = 8192
)

// Buffer is the timeline store consumed by replay.
type Buffer interface {
	// Ingest inserts a frame by timestamp. A county snapshot at an already
	// buffered timestamp replaces the earlier arrival (last ingested wins).
	// Returns false if the buffer is closed and the frame was dropped.
	Ingest(ctx context.Context, f model.Frame) bool

	// EntityAtOrBefore returns the county's most recent snapshot at or
	// before t together with its frame timestamp. ok is false when the
	// county has no data at or before t; sparse data is expected, not an
	// error.
	EntityAtOrBefore(ctx context.Context, fips string, t float64) (model.CountyUpdate, float64, bool)

	// FrameAtOrBefore returns the most recent whole frame whose timestamp
	// is at or before t, or ok=false before the first frame.
	FrameAtOrBefore(ctx context.Context, t float64) (model.Frame, bool)

	// Span returns the first and last buffered timestamps. ok is false for
	// an empty buffer.
	Span(ctx context.Context) (first, last float64, ok bool)

	// Len returns the number of distinct buffered timestamps.
	Len(ctx context.Context) int

	// EntityIDs returns every county seen in any frame, sorted.
	EntityIDs(ctx context.Context) []string

	// Close stops accepting frames. Reads keep working on the frozen
	// content.
	Close() error

	// IsClosed returns true if the buffer has been closed.
	IsClosed() bool
}

// entityPoint is one county snapshot on that county's private timeline.
type entityPoint struct {
	ts float64
	u  model.CountyUpdate
}

// MemoryBuffer implements Buffer with per-county sorted series plus a
// timestamp index for whole-frame reads.
type MemoryBuffer struct {
	mu        sync.RWMutex
	series    map[string][]entityPoint // per county, sorted by timestamp
	stamps    []float64                // distinct frame timestamps, sorted
	frames    map[float64]map[string]model.CountyUpdate
	countyCap int // sizing hint for the county index
	frameCap  int // sizing hint for the timestamp index

	ingested int // frames accepted, for stats
	closed   bool
}

// NewMemoryBuffer constructs an empty buffer with configuration options.
func NewMemoryBuffer(opts ...Option) *MemoryBuffer {
	b := &MemoryBuffer{
		countyCap: defaultCountyCapacity,
		frameCap:  defaultFrameCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(b)
	}

	b.series = make(map[string][]entityPoint, b.countyCap)
	b.stamps = make([]float64, 0, b.frameCap)
	b.frames = make(map[float64]map[string]model.CountyUpdate, b.frameCap)

	metrics.UpdateBufferFrames(0)
	metrics.UpdateBufferCounties(0)
	metrics.UpdateBufferSpanSeconds(0)

	return b
}

// Ingest inserts a frame by timestamp.
func (b *MemoryBuffer) Ingest(ctx context.Context, f model.Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		metrics.RecordErrorByComponent("framebuffer", "closed")
		return false
	}

	if n := len(b.stamps); n > 0 && f.Timestamp < b.stamps[n-1] {
		metrics.RecordFrameOutOfOrder()
	}

	byCounty, seen := b.frames[f.Timestamp]
	if !seen {
		byCounty = make(map[string]model.CountyUpdate, len(f.Counties))
		b.frames[f.Timestamp] = byCounty
		b.insertStamp(f.Timestamp)
	}

	for fips, u := range f.Counties {
		if _, dup := byCounty[fips]; dup {
			metrics.RecordFrameReplaced()
		}
		byCounty[fips] = u
		b.insertPoint(fips, f.Timestamp, u)
	}

	b.ingested++
	metrics.RecordFrameIngested()
	metrics.UpdateBufferFrames(len(b.stamps))
	metrics.UpdateBufferCounties(len(b.series))
	if n := len(b.stamps); n > 0 {
		metrics.UpdateBufferSpanSeconds(b.stamps[n-1] - b.stamps[0])
	}
	return true
}

// insertStamp keeps the distinct timestamp index sorted.
func (b *MemoryBuffer) insertStamp(ts float64) {
	i := sort.SearchFloat64s(b.stamps, ts)
	b.stamps = append(b.stamps, 0)
	copy(b.stamps[i+1:], b.stamps[i:])
	b.stamps[i] = ts
}

// insertPoint updates one county's private timeline. A point at an existing
// timestamp is replaced in place, which is what makes the last arrival win.
func (b *MemoryBuffer) insertPoint(fips string, ts float64, u model.CountyUpdate) {
	pts := b.series[fips]
	i := sort.Search(len(pts), func(j int) bool { return pts[j].ts >= ts })
	if i < len(pts) && pts[i].ts == ts {
		pts[i].u = u
		return
	}
	pts = append(pts, entityPoint{})
	copy(pts[i+1:], pts[i:])
	pts[i] = entityPoint{ts: ts, u: u}
	b.series[fips] = pts
}

// EntityAtOrBefore returns the county's most recent snapshot at or before t.
func (b *MemoryBuffer) EntityAtOrBefore(ctx context.Context, fips string, t float64) (model.CountyUpdate, float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pts := b.series[fips]
	i := sort.Search(len(pts), func(j int) bool { return pts[j].ts > t })
	if i == 0 {
		return model.CountyUpdate{}, 0, false
	}
	return pts[i-1].u, pts[i-1].ts, true
}

// FrameAtOrBefore returns the most recent frame at or before t.
func (b *MemoryBuffer) FrameAtOrBefore(ctx context.Context, t float64) (model.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i := sort.Search(len(b.stamps), func(j int) bool { return b.stamps[j] > t })
	if i == 0 {
		return model.Frame{}, false
	}
	ts := b.stamps[i-1]

	src := b.frames[ts]
	counties := make(map[string]model.CountyUpdate, len(src))
	for fips, u := range src {
		counties[fips] = u
	}
	return model.Frame{Timestamp: ts, Counties: counties}, true
}

// Span returns the first and last buffered timestamps.
func (b *MemoryBuffer) Span(ctx context.Context) (first, last float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.stamps) == 0 {
		return 0, 0, false
	}
	return b.stamps[0], b.stamps[len(b.stamps)-1], true
}

// Len returns the number of distinct buffered timestamps.
func (b *MemoryBuffer) Len(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.stamps)
}

// EntityIDs returns every county seen in any frame, sorted.
func (b *MemoryBuffer) EntityIDs(ctx context.Context) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.series))
	for fips := range b.series {
		ids = append(ids, fips)
	}
	sort.Strings(ids)
	return ids
}

// Close stops accepting frames.
func (b *MemoryBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}

// IsClosed returns true if the buffer has been closed.
func (b *MemoryBuffer) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

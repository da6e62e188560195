// Package trend keeps a bounded in-memory history of selected process
// values and serves downsampled windows of it.
package trend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/tags"
)

// ErrNotTracked is returned for tags outside the trend set.
var ErrNotTracked = errors.New("trend: tag not tracked")

// DefaultCapacity holds a full day of one-second samples per tag.
const DefaultCapacity = 86400

// MaxPoints is the densest series a query returns.
const MaxPoints = 360

// Sample is one recorded value.
type Sample struct {
	At    time.Time
	Value float64
}

// Tracked returns the trended tag set in display order.
func Tracked() []string {
	return []string{
		tags.QIn,
		tags.LT101,
		tags.DO301,
		tags.DO301SP,
		tags.PH302,
		tags.Temp303,
		tags.BLW201PV,
		tags.LT401,
		tags.TUR501,
		tags.QOut,
		tags.COD501,
		tags.PH501,
		tags.SCR101DP,
		tags.DoseFeCl3,
		tags.Tank501Level,
	}
}

// ring is a fixed-capacity sample buffer; pushes overwrite the oldest.
type ring struct {
	buf  []Sample
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Sample, capacity)}
}

func (r *ring) push(s Sample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// each visits samples oldest to newest.
func (r *ring) each(fn func(Sample)) {
	start := r.head - r.size
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.size; i++ {
		fn(r.buf[(start+i)%len(r.buf)])
	}
}

// Buffer records one sample per tracked tag per tick.
type Buffer struct {
	mu     sync.RWMutex
	series map[string]*ring
	order  []string
	total  int
	cap    int
}

// NewBuffer builds a buffer for the given tags. capacity <= 0 uses
// DefaultCapacity.
func NewBuffer(tracked []string, capacity int) (*Buffer, error) {
	if len(tracked) == 0 {
		return nil, errors.New("trend: no tags to track")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		series: make(map[string]*ring, len(tracked)),
		order:  make([]string, 0, len(tracked)),
		cap:    capacity,
	}
	for _, name := range tracked {
		if _, dup := b.series[name]; dup {
			return nil, fmt.Errorf("trend: %s tracked twice", name)
		}
		b.series[name] = newRing(capacity)
		b.order = append(b.order, name)
	}
	return b, nil
}

// Record appends the current value of every tracked tag present in view.
func (b *Buffer) Record(now time.Time, view map[string]tags.Value) {
	b.mu.Lock()
	for _, name := range b.order {
		value, ok := view[name]
		if !ok {
			continue
		}
		r := b.series[name]
		if r.size == len(r.buf) {
			b.total-- // overwriting the oldest
		}
		r.push(Sample{At: now, Value: value.AsFloat()})
		b.total++
	}
	total := b.total
	b.mu.Unlock()

	metrics.SetTrendPoints(total)
}

// Len returns the number of samples currently held across all tags.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Tags returns the tracked tag names in display order.
func (b *Buffer) Tags() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Query returns samples for one tag over [now-window, now], downsampled
// to at most MaxPoints by keeping the last sample of each time bucket.
func (b *Buffer) Query(tag string, window time.Duration, now time.Time) ([]Sample, error) {
	if window <= 0 {
		return nil, fmt.Errorf("trend: window must be positive, got %s", window)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.series[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, tag)
	}

	cutoff := now.Add(-window)
	bucket := window / MaxPoints
	out := make([]Sample, 0, MaxPoints)
	lastBucket := -1
	r.each(func(s Sample) {
		if s.At.Before(cutoff) || s.At.After(now) {
			return
		}
		idx := int(s.At.Sub(cutoff) / bucket)
		if idx >= MaxPoints {
			idx = MaxPoints - 1
		}
		if idx == lastBucket && len(out) > 0 {
			out[len(out)-1] = s
			return
		}
		out = append(out, s)
		lastBucket = idx
	})
	return out, nil
}

// Reset drops all recorded samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	for _, name := range b.order {
		b.series[name] = newRing(b.cap)
	}
	b.total = 0
	b.mu.Unlock()

	metrics.SetTrendPoints(0)
}

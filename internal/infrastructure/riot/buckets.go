package riot

import (
	"strconv"
	"strings"
	"time"
)

// DefaultRateLimit is the safe development-key limit used when the server
// has not told us anything better.
const DefaultRateLimit = "20:1,100:120"

// RateBucket is a (capacity, window) admission primitive. It remembers the
// dispatch timestamps inside its window; a dispatch is admitted while fewer
// than capacity timestamps survive pruning.
type RateBucket struct {
	Capacity int
	Window   time.Duration

	timestamps []time.Time
}

// prune drops timestamps older than the window.
func (b *RateBucket) prune(now time.Time) {
	cutoff := now.Add(-b.Window)
	i := 0
	for i < len(b.timestamps) && !b.timestamps[i].After(cutoff) {
		i++
	}
	b.timestamps = b.timestamps[i:]
}

// Admit reports whether a dispatch fits right now.
func (b *RateBucket) Admit(now time.Time) bool {
	b.prune(now)
	return len(b.timestamps) < b.Capacity
}

// WaitTime returns how long until the bucket admits (0 if it already does).
func (b *RateBucket) WaitTime(now time.Time) time.Duration {
	b.prune(now)
	if len(b.timestamps) < b.Capacity {
		return 0
	}
	return b.timestamps[0].Add(b.Window).Sub(now)
}

// Record appends a dispatch timestamp.
func (b *RateBucket) Record(now time.Time) {
	b.timestamps = append(b.timestamps, now)
}

// Size returns the current in-window count.
func (b *RateBucket) Size(now time.Time) int {
	b.prune(now)
	return len(b.timestamps)
}

// BucketSet is several buckets in AND: a dispatch departs only after every
// bucket admits.
type BucketSet []*RateBucket

// AdmitAll reports whether every bucket admits.
func (s BucketSet) AdmitAll(now time.Time) bool {
	for _, b := range s {
		if !b.Admit(now) {
			return false
		}
	}
	return true
}

// MaxWait returns the longest wait across the set.
func (s BucketSet) MaxWait(now time.Time) time.Duration {
	var max time.Duration
	for _, b := range s {
		if w := b.WaitTime(now); w > max {
			max = w
		}
	}
	return max
}

// RecordAll stamps a dispatch into every bucket.
func (s BucketSet) RecordAll(now time.Time) {
	for _, b := range s {
		b.Record(now)
	}
}

// ParseRateLimit parses an "N1:S1,N2:S2,…" header value into a bucket set.
// Empty or unparsable input falls back to DefaultRateLimit.
func ParseRateLimit(header string) BucketSet {
	set := parseRateLimit(header)
	if set == nil {
		set = parseRateLimit(DefaultRateLimit)
	}
	return set
}

func parseRateLimit(header string) BucketSet {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var set BucketSet
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 2 {
			return nil
		}
		capacity, err := strconv.Atoi(fields[0])
		if err != nil || capacity <= 0 {
			return nil
		}
		seconds, err := strconv.Atoi(fields[1])
		if err != nil || seconds <= 0 {
			return nil
		}
		set = append(set, &RateBucket{
			Capacity: capacity,
			Window:   time.Duration(seconds) * time.Second,
		})
	}
	return set
}

// Package aggregate turns the raw sample stream into flat per-key
// exclusive/inclusive totals, the data behind top-N CPU views.
package aggregate

import (
	"sort"

	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

const (
	minFlatBuckets = 20
	maxFlatBuckets = 100
)

type (
	Options struct {
		Top             int
		GroupBy         frameutil.GroupMode
		SortByInclusive bool
		Window          *tracesource.TimeWindow
	}

	Entry struct {
		Name             string  `json:"name"`
		ExclusiveMetric  float64 `json:"exclusive_metric"`
		InclusiveMetric  float64 `json:"inclusive_metric"`
		ExclusivePercent float64 `json:"exclusive_percent"`
		BucketCounts     []int64 `json:"bucket_counts"`
	}

	Result struct {
		TotalMetric  float64 `json:"total_metric"`
		FromMs       float64 `json:"from_ms"`
		ToMs         float64 `json:"to_ms"`
		BucketSizeMs float64 `json:"bucket_size_ms"`
		BucketCount  int     `json:"bucket_count"`
		Entries      []Entry `json:"entries"`
	}
)

const defaultTop = 10

// FlatTop scans the sample stream once and returns the top-N keys by the
// requested sort field. Every sample charges its metric to exactly one
// exclusive key (the first real frame from the leaf end) and once to the
// inclusive total of every distinct key on its stack.
func FlatTop(src tracesource.Source, opts Options) (Result, error) {
	window := tracesource.TimeWindow{FromMs: 0, ToMs: src.DurationMs()}
	if opts.Window != nil {
		window = *opts.Window
	}
	if window.ToMs < window.FromMs {
		window.FromMs, window.ToMs = window.ToMs, window.FromMs
	}
	if opts.GroupBy == "" {
		opts.GroupBy = frameutil.GroupByMethod
	}
	top := opts.Top
	if top <= 0 {
		top = defaultTop
	}

	windowMs := window.ToMs - window.FromMs
	bucketCount := mathutil.Clamp(int(windowMs/100), minFlatBuckets, maxFlatBuckets)

	var total float64
	exclusive := make(map[string]float64)
	inclusive := make(map[string]float64)
	buckets := make(map[string][]int64)

	err := src.ForEachSample(&window, func(s tracesource.StackSample) bool {
		total += s.Metric
		idx := mathutil.BucketIndex(s.TimeMs, window.FromMs, window.ToMs, bucketCount)
		charged := false
		var seen map[string]struct{}
		for _, f := range s.Frames {
			if frameutil.IsPseudoFrame(f) {
				continue
			}
			key := frameutil.GroupKey(f, opts.GroupBy)
			if !charged {
				exclusive[key] += s.Metric
				charged = true
			}
			if seen == nil {
				seen = make(map[string]struct{}, len(s.Frames))
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			inclusive[key] += s.Metric
			counts := buckets[key]
			if counts == nil {
				counts = make([]int64, bucketCount)
				buckets[key] = counts
			}
			counts[idx]++
		}
		return true
	})
	if err != nil {
		return Result{}, err
	}

	keys := make(map[string]struct{}, len(inclusive))
	for k := range exclusive {
		keys[k] = struct{}{}
	}
	for k := range inclusive {
		keys[k] = struct{}{}
	}

	entries := make([]Entry, 0, len(keys))
	for k := range keys {
		entries = append(entries, Entry{
			Name:             k,
			ExclusiveMetric:  mathutil.Round2(exclusive[k]),
			InclusiveMetric:  mathutil.Round2(inclusive[k]),
			ExclusivePercent: mathutil.Percent(exclusive[k], total),
			BucketCounts:     buckets[k],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ExclusiveMetric, entries[j].ExclusiveMetric
		if opts.SortByInclusive {
			a, b = entries[i].InclusiveMetric, entries[j].InclusiveMetric
		}
		if a == b {
			return entries[i].Name < entries[j].Name
		}
		return a > b
	})
	if len(entries) > top {
		entries = entries[:top]
	}

	bucketSize := 0.0
	if bucketCount > 0 {
		bucketSize = windowMs / float64(bucketCount)
	}
	return Result{
		TotalMetric:  mathutil.Round2(total),
		FromMs:       mathutil.Round2(window.FromMs),
		ToMs:         mathutil.Round2(window.ToMs),
		BucketSizeMs: mathutil.Round2(bucketSize),
		BucketCount:  bucketCount,
		Entries:      entries,
	}, nil
}

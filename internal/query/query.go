// Package query exposes three generic query shapes (timeseries, correlate,
// aggregate) over the event stream, parameterized by source, field and
// group-by, for ad hoc exploration.
package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tracelens/tracelens/internal/eventutil"
	"github.com/tracelens/tracelens/internal/frameutil"
	"github.com/tracelens/tracelens/internal/mathutil"
	"github.com/tracelens/tracelens/internal/tracesource"
)

// MaxTimeseriesBuckets caps series density regardless of the requested
// bucket size.
const MaxTimeseriesBuckets = 10_000

const (
	TypeTimeseries = "timeseries"
	TypeCorrelate  = "correlate"
	TypeAggregate  = "aggregate"
)

const (
	SourceGC         = "gc"
	SourceEvents     = "events"
	SourceExceptions = "exceptions"
	SourceAlloc      = "alloc"
)

type (
	SeriesDef struct {
		Name   string `json:"name"`
		Source string `json:"source"`
		Field  string `json:"field"`
	}

	TimeseriesParams struct {
		Series       []SeriesDef `json:"series"`
		FromMs       *float64    `json:"from_ms,omitempty"`
		ToMs         *float64    `json:"to_ms,omitempty"`
		BucketSizeMs float64     `json:"bucket_size_ms"`
	}

	Point struct {
		TimeMs float64 `json:"time_ms"`
		Value  float64 `json:"value"`
	}

	Series struct {
		Name   string  `json:"name"`
		Points []Point `json:"points"`
	}

	TimeseriesResult struct {
		FromMs       float64  `json:"from_ms"`
		ToMs         float64  `json:"to_ms"`
		BucketSizeMs float64  `json:"bucket_size_ms"`
		Series       []Series `json:"series"`
	}

	AggregateParams struct {
		Source  string   `json:"source"`
		GroupBy string   `json:"group_by"`
		Field   string   `json:"field,omitempty"`
		FromMs  *float64 `json:"from_ms,omitempty"`
		ToMs    *float64 `json:"to_ms,omitempty"`
	}

	AggregateRow struct {
		Key   string  `json:"key"`
		Count int64   `json:"count"`
		Sum   float64 `json:"sum"`
		Avg   float64 `json:"avg"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
	}

	AggregateResult struct {
		Source  string         `json:"source"`
		GroupBy string         `json:"group_by"`
		Rows    []AggregateRow `json:"rows"`
	}
)

// Execute dispatches one of the three query shapes. correlate is an alias
// of timeseries kept for UI overlay convenience.
func Execute(src tracesource.Source, queryType string, rawParams json.RawMessage) (any, error) {
	switch queryType {
	case TypeTimeseries, TypeCorrelate:
		var p TimeseriesParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return nil, fmt.Errorf("invalid %s params: %w", queryType, err)
		}
		return Timeseries(src, p)
	case TypeAggregate:
		var p AggregateParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return nil, fmt.Errorf("invalid aggregate params: %w", err)
		}
		return Aggregate(src, p)
	default:
		return nil, fmt.Errorf("unknown query type %q", queryType)
	}
}

// Timeseries emits (time, value) pairs per bucket for each requested
// series. Records whose value field cannot be extracted are skipped.
func Timeseries(src tracesource.Source, params TimeseriesParams) (TimeseriesResult, error) {
	from, to := resolveWindow(src, params.FromMs, params.ToMs)
	windowMs := to - from

	size := params.BucketSizeMs
	if size <= 0 {
		size = windowMs / 100
	}
	if size <= 0 {
		size = 1
	}
	n := int(math.Ceil(windowMs / size))
	if n < 1 {
		n = 1
	}
	if n > MaxTimeseriesBuckets {
		n = MaxTimeseriesBuckets
		size = windowMs / float64(n)
	}

	result := TimeseriesResult{
		FromMs:       mathutil.Round2(from),
		ToMs:         mathutil.Round2(to),
		BucketSizeMs: mathutil.Round2(size),
	}
	window := &tracesource.TimeWindow{FromMs: from, ToMs: to}
	for _, def := range params.Series {
		values := make([]float64, n)
		err := src.ForEachEvent(func(e tracesource.RuntimeEvent) bool {
			if !window.Contains(e.TimeMs) || !matchesSource(e, def.Source) {
				return true
			}
			v, ok := fieldValue(e, def.Source, def.Field)
			if !ok {
				return true
			}
			// Place on the same size-based grid the point labels use; the
			// last bucket absorbs the ragged remainder.
			i := int((e.TimeMs - from) / size)
			if i < 0 {
				i = 0
			}
			if i >= n {
				i = n - 1
			}
			values[i] += v
			return true
		})
		if err != nil {
			return TimeseriesResult{}, err
		}
		points := make([]Point, n)
		for i := range values {
			points[i] = Point{
				TimeMs: mathutil.Round2(from + float64(i)*size),
				Value:  mathutil.Round2(values[i]),
			}
		}
		result.Series = append(result.Series, Series{Name: def.Name, Points: points})
	}
	return result, nil
}

// Aggregate groups the source's records by a caller-chosen field and
// reports count/sum/avg/min/max of the value field per group, sorted
// descending by count.
func Aggregate(src tracesource.Source, params AggregateParams) (AggregateResult, error) {
	from, to := resolveWindow(src, params.FromMs, params.ToMs)
	window := &tracesource.TimeWindow{FromMs: from, ToMs: to}

	type acc struct {
		count    int64
		sum      float64
		min, max float64
	}
	groups := make(map[string]*acc)

	err := src.ForEachEvent(func(e tracesource.RuntimeEvent) bool {
		if !window.Contains(e.TimeMs) || !matchesSource(e, params.Source) {
			return true
		}
		key := groupKey(e, params.GroupBy)
		v, ok := fieldValue(e, params.Source, params.Field)
		if !ok {
			// Malformed payload skips the record, not the query.
			return true
		}
		g := groups[key]
		if g == nil {
			g = &acc{min: v, max: v}
			groups[key] = g
		}
		g.count++
		g.sum += v
		if v < g.min {
			g.min = v
		}
		if v > g.max {
			g.max = v
		}
		return true
	})
	if err != nil {
		return AggregateResult{}, err
	}

	rows := make([]AggregateRow, 0, len(groups))
	for key, g := range groups {
		rows = append(rows, AggregateRow{
			Key:   key,
			Count: g.count,
			Sum:   mathutil.Round2(g.sum),
			Avg:   mathutil.Round2(g.sum / float64(g.count)),
			Min:   mathutil.Round2(g.min),
			Max:   mathutil.Round2(g.max),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Count > rows[j].Count
	})
	return AggregateResult{Source: params.Source, GroupBy: params.GroupBy, Rows: rows}, nil
}

func resolveWindow(src tracesource.Source, fromMs, toMs *float64) (float64, float64) {
	from, to := 0.0, src.DurationMs()
	if fromMs != nil && *fromMs > 0 {
		from = *fromMs
	}
	if toMs != nil && *toMs > 0 && *toMs < to {
		to = *toMs
	}
	if to < from {
		from, to = to, from
	}
	return from, to
}

func matchesSource(e tracesource.RuntimeEvent, source string) bool {
	switch source {
	case SourceGC:
		return eventutil.IsGCEvent(e)
	case SourceExceptions:
		return eventutil.IsExceptionThrow(e)
	case SourceAlloc:
		return eventutil.IsAllocationTick(e)
	default:
		return true
	}
}

// fieldValue resolves the numeric value of a record. "count" (or an empty
// field) counts records; "pause" on the gc source and "size" on the alloc
// source extract the category field; anything else is read from the payload.
func fieldValue(e tracesource.RuntimeEvent, source, field string) (float64, bool) {
	switch strings.ToLower(field) {
	case "", "count":
		return 1, true
	case "pause", "pause_ms":
		if source == SourceGC {
			return eventutil.GCPauseMs(e)
		}
	case "size", "bytes":
		if source == SourceAlloc {
			v, ok := eventutil.AllocationSize(e)
			return float64(v), ok
		}
	case "size_kb":
		if source == SourceAlloc {
			v, ok := eventutil.AllocationSize(e)
			return mathutil.Round3(float64(v) / 1024), ok
		}
	}
	return e.FieldFloat(field)
}

// groupKey renders the grouping field: intrinsic record fields first, then
// the payload.
func groupKey(e tracesource.RuntimeEvent, groupBy string) string {
	switch strings.ToLower(groupBy) {
	case "", "name", "event":
		return e.Name
	case "provider":
		return e.Provider
	case "process", "process_id":
		return strconv.Itoa(e.ProcessID)
	case "thread", "thread_id":
		return strconv.Itoa(e.ThreadID)
	case "generation":
		return strconv.Itoa(eventutil.GCGeneration(e))
	case "type", "exception_type":
		return eventutil.ExceptionType(e)
	case "alloc_type":
		return eventutil.AllocationTypeName(e)
	case "alloc_namespace":
		return frameutil.TypeNamespace(eventutil.AllocationTypeName(e))
	}
	if v, ok := e.FieldString(groupBy); ok {
		return v
	}
	return eventutil.UnknownType
}

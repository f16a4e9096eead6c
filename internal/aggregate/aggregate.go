// Package aggregate computes fixed summary statistics over the record log in
// a single pass. Nothing is cached; cost grows linearly with the log.
package aggregate

import (
	"iter"
	"time"

	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

type accumulator struct {
	count         int
	sum, min, max float64
}

func (a *accumulator) add(o optional.Opt[float64]) {
	v, ok := o.Get()
	if !ok {
		return
	}
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) stats() types.FieldStats {
	if a.count == 0 {
		return types.FieldStats{}
	}
	return types.FieldStats{
		Count: a.count,
		Avg:   a.sum / float64(a.count),
		Min:   a.min,
		Max:   a.max,
	}
}

// Summarize reduces records to a Report. Unknown latency and speed values are
// left out of their statistics. Rows the store could not decode are counted
// as skipped; any other error aborts the summary.
func Summarize(records iter.Seq2[types.Record, error]) (types.Report, error) {
	report := types.Report{StatusCounts: make(map[types.Status]int, len(types.Statuses))}
	var latency, speed accumulator

	for record, err := range records {
		if err != nil {
			var rowErr *database.RowError
			if errors.As(err, &rowErr) {
				report.Skipped++
				continue
			}
			return types.Report{}, errors.Wrap(err, "failed to summarize records")
		}

		if report.Total == 0 {
			report.First = record.Timestamp
		}
		report.Last = record.Timestamp
		report.Total++
		report.StatusCounts[record.Status]++
		if record.Status != types.StatusOK {
			report.IssueCount++
		}

		latency.add(record.AvgLatencyMS)
		speed.add(record.DownloadSpeedMbps)
	}

	if report.Total > 0 {
		report.IssuePct = float64(report.IssueCount) / float64(report.Total) * 100
	}
	report.Latency = latency.stats()
	report.Speed = speed.stats()
	return report, nil
}

// SummarizeSince lists the non-OK records strictly newer than cutoff. The
// comparison is made on the fixed-width local text form of the timestamps, the
// same form the log stores, so records and cutoff may carry any zone.
func SummarizeSince(records iter.Seq2[types.Record, error], cutoff time.Time) ([]types.Issue, error) {
	threshold := database.FormatTimestamp(cutoff)

	var issues []types.Issue
	for record, err := range records {
		if err != nil {
			var rowErr *database.RowError
			if errors.As(err, &rowErr) {
				continue
			}
			return nil, errors.Wrap(err, "failed to list issues")
		}

		if record.Status == types.StatusOK {
			continue
		}
		if database.FormatTimestamp(record.Timestamp) > threshold {
			issues = append(issues, types.Issue{
				Timestamp: record.Timestamp,
				Status:    record.Status,
			})
		}
	}
	return issues, nil
}

// FromSlice adapts an in-memory slice to the scan signature.
func FromSlice(records []types.Record) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

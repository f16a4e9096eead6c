// Package report draws the record history as a PNG chart.
package report

import (
	"fmt"
	"io"
	"iter"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// ErrNotEnoughData is returned when neither latency nor speed has two known
// points to draw a line between.
var ErrNotEnoughData = errors.New("not enough data to chart")

const smaPeriod = 10

// Points is one charted column with its unknown values left out.
type Points struct {
	Times  []time.Time
	Values []float64
}

func (p *Points) add(ts time.Time, v float64, ok bool) {
	if !ok {
		return
	}
	p.Times = append(p.Times, ts)
	p.Values = append(p.Values, v)
}

// drawable reports whether the points span some time, which the x axis needs.
func (p Points) drawable() bool {
	return len(p.Times) >= 2 && p.Times[len(p.Times)-1].After(p.Times[0])
}

// yRange pins a flat series to a small band so the axis has a non-zero span.
func (p Points) yRange() chart.Range {
	lo, hi := slices.Min(p.Values), slices.Max(p.Values)
	if lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: max(lo-1, 0), Max: hi + 1}
}

// Collect gathers the latency and speed points of records newer than since.
// A zero since keeps everything.
func Collect(records iter.Seq2[types.Record, error], since time.Time) (latency, speed Points, err error) {
	for record, err := range records {
		var rowErr *database.RowError
		if errors.As(err, &rowErr) {
			continue
		}
		if err != nil {
			return Points{}, Points{}, errors.Wrap(err, "failed to read records")
		}
		if !since.IsZero() && !record.Timestamp.After(since) {
			continue
		}
		v, ok := record.AvgLatencyMS.Get()
		latency.add(record.Timestamp, v, ok)
		v, ok = record.DownloadSpeedMbps.Get()
		speed.add(record.Timestamp, v, ok)
	}
	return latency, speed, nil
}

// Render writes a PNG of latency and download speed over time. Latency takes
// the left axis and speed the right one; with no latency to draw, speed moves
// to the left axis.
func Render(w io.Writer, host string, records iter.Seq2[types.Record, error], since time.Time) error {
	latency, speed, err := Collect(records, since)
	if err != nil {
		return err
	}
	if !latency.drawable() && !speed.drawable() {
		return ErrNotEnoughData
	}

	axisStyle := chart.Style{StrokeColor: drawing.ColorBlack, FontSize: 10}
	graph := chart.Chart{
		Title: fmt.Sprintf("Network health - %s", host),
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:  1200,
		Height: 450,
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeMinuteValueFormatter,
			Style:          axisStyle,
		},
		YAxis: chart.YAxis{
			Style: axisStyle,
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
	}

	speedAxis := chart.YAxisPrimary
	if latency.drawable() {
		graph.YAxis.Name = "Latency (ms)"
		graph.YAxis.Range = latency.yRange()

		ts := chart.TimeSeries{
			Name:    "Avg latency",
			Style:   chart.Style{StrokeColor: chart.GetDefaultColor(0), StrokeWidth: 2},
			XValues: latency.Times,
			YValues: latency.Values,
		}
		graph.Series = append(graph.Series, ts)
		if len(latency.Values) > smaPeriod {
			graph.Series = append(graph.Series, chart.SMASeries{
				Name: "Latency moving avg",
				Style: chart.Style{
					StrokeColor:     chart.GetDefaultColor(2),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5, 5},
				},
				InnerSeries: ts,
				Period:      smaPeriod,
			})
		}
		speedAxis = chart.YAxisSecondary
	}

	if speed.drawable() {
		if speedAxis == chart.YAxisPrimary {
			graph.YAxis.Name = "Download (Mbps)"
			graph.YAxis.Range = speed.yRange()
		} else {
			graph.YAxisSecondary = chart.YAxis{Name: "Download (Mbps)", Style: axisStyle, Range: speed.yRange()}
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Download speed",
			YAxis:   speedAxis,
			Style:   chart.Style{StrokeColor: chart.GetDefaultColor(1), StrokeWidth: 2},
			XValues: speed.Times,
			YValues: speed.Values,
		})
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return errors.Wrap(err, "failed to render chart")
	}
	return nil
}

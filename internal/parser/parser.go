// Package parser turns raw probe output into a typed Sample. Every assumption
// about the text printed by ping or curl lives here.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

var (
	numberPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

	// rtt min/avg/max/mdev = 9.8/10.1/10.5/0.2 ms (Linux)
	// round-trip min/avg/max/stddev = 9.8/10.1/10.5/0.2 ms (BSD, macOS, busybox)
	unixSummary = regexp.MustCompile(`(?:rtt|round-trip)\s+min/avg/max(?:/[a-z]+)?\s*=\s*([0-9.]+)/([0-9.]+)/([0-9.]+)`)
	// Minimum = 9ms, Maximum = 11ms, Average = 10ms (Windows)
	windowsSummary = regexp.MustCompile(`Minimum\s*=\s*([0-9.]+)\s*ms,\s*Maximum\s*=\s*([0-9.]+)\s*ms,\s*Average\s*=\s*([0-9.]+)\s*ms`)
	replyTime      = regexp.MustCompile(`time[=<]\s*([0-9.]+)\s*ms`)
	lossFigure     = regexp.MustCompile(`([0-9.]+)%\s*(?:packet\s+)?loss`)
)

type LatencyResult struct {
	Avg, Min, Max optional.Opt[float64]
	LossPct       float64
	// Failed is set when the probe process itself failed.
	Failed bool
	// Estimated is set when latency came from individual replies rather than
	// the summary line, so min and max equal the mean.
	Estimated bool
}

type BandwidthResult struct {
	SpeedMbps optional.Opt[float64]
	TimeSec   optional.Opt[float64]
	Failed    bool
}

// ParseNumber accepts only plain non-negative decimals. Anything else is no data.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseLatency extracts round-trip times and packet loss from ping output.
// An explicit loss figure always wins. Without one, loss is 0 when the probe
// ran and 100 when the probe process failed.
func ParseLatency(out types.LatencyOutput) LatencyResult {
	result := LatencyResult{Failed: out.Err != nil}

	if min, avg, max, ok := summaryLine(out.Text); ok {
		result.Min = optional.New(min)
		result.Avg = optional.New(avg)
		result.Max = optional.New(max)
	} else if mean, ok := meanReplyTime(out.Text); ok {
		result.Avg = optional.New(mean)
		result.Min = optional.New(mean)
		result.Max = optional.New(mean)
		result.Estimated = true
	}

	switch loss, ok := packetLoss(out.Text); {
	case ok:
		result.LossPct = loss
	case result.Failed:
		result.LossPct = 100
	default:
		result.LossPct = 0
	}

	return result
}

func summaryLine(text string) (min, avg, max float64, ok bool) {
	if m := unixSummary.FindStringSubmatch(text); m != nil {
		return numbers3(m[1], m[2], m[3])
	}
	if m := windowsSummary.FindStringSubmatch(text); m != nil {
		// Windows prints minimum, maximum, average.
		min, max, avg, ok = numbers3(m[1], m[2], m[3])
		return min, avg, max, ok
	}
	return 0, 0, 0, false
}

func numbers3(a, b, c string) (float64, float64, float64, bool) {
	x, ok1 := ParseNumber(a)
	y, ok2 := ParseNumber(b)
	z, ok3 := ParseNumber(c)
	return x, y, z, ok1 && ok2 && ok3
}

func meanReplyTime(text string) (float64, bool) {
	var sum float64
	var n int
	for _, m := range replyTime.FindAllStringSubmatch(text, -1) {
		if v, ok := ParseNumber(m[1]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func packetLoss(text string) (float64, bool) {
	m := lossFigure.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, ok := ParseNumber(m[1])
	if !ok {
		return 0, false
	}
	return min(v, 100), true
}

// ParseBandwidth converts one transfer into Mbps (MiB based). A failed
// transfer, or one with no bytes or no measurable elapsed time, records speed
// 0 and Failed instead of dividing.
func ParseBandwidth(out types.BandwidthOutput) BandwidthResult {
	elapsed := out.Elapsed.Seconds()

	result := BandwidthResult{}
	if elapsed > 0 || (out.Err == nil && elapsed == 0) {
		result.TimeSec = optional.New(elapsed)
	}

	if out.Err != nil || elapsed <= 0 || out.Bytes <= 0 {
		result.SpeedMbps = optional.New(0.0)
		result.Failed = true
		return result
	}

	result.SpeedMbps = optional.New(float64(out.Bytes) / elapsed / constants.BytesPerMiB)
	return result
}

// ParseTransferText reads "<bytes> <seconds>" as printed by
// curl -w '%{size_download} %{time_total}'. Fields that are not plain numbers
// make the whole transfer a failure.
func ParseTransferText(text string, probeErr error) types.BandwidthOutput {
	out := types.BandwidthOutput{Err: probeErr}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		if out.Err == nil {
			out.Err = errMalformedTransfer
		}
		return out
	}

	size, okSize := ParseNumber(fields[len(fields)-2])
	secs, okSecs := ParseNumber(fields[len(fields)-1])
	if !okSize || !okSecs {
		if out.Err == nil {
			out.Err = errMalformedTransfer
		}
		return out
	}

	out.Bytes = int64(size)
	out.Elapsed = time.Duration(secs * float64(time.Second))
	return out
}

// BuildSample assembles the cycle's measurements. The timestamp is truncated
// to whole seconds, the resolution of the record log.
func BuildSample(ts time.Time, host string, latency LatencyResult, bandwidth BandwidthResult) types.Sample {
	return types.Sample{
		Timestamp:         ts.Truncate(time.Second),
		TargetHost:        host,
		AvgLatencyMS:      latency.Avg,
		MinLatencyMS:      latency.Min,
		MaxLatencyMS:      latency.Max,
		PacketLossPct:     latency.LossPct,
		DownloadSpeedMbps: bandwidth.SpeedMbps,
		DownloadTimeSec:   bandwidth.TimeSec,
	}
}

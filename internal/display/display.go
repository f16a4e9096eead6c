// Package display renders records, reports and issue lists for a terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type Printer struct {
	out   io.Writer
	now   func() time.Time
	ok    *color.Color
	warn  *color.Color
	bad   *color.Color
	label *color.Color
}

// NewPrinter colors its output only when colored is set, independent of the
// global color settings.
func NewPrinter(out io.Writer, colored bool, now func() time.Time) *Printer {
	p := &Printer{
		out:   out,
		now:   now,
		ok:    color.New(color.FgGreen, color.Bold),
		warn:  color.New(color.FgYellow, color.Bold),
		bad:   color.New(color.FgRed, color.Bold),
		label: color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.label} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) status(s types.Status) string {
	switch s {
	case types.StatusOK:
		return p.ok.Sprint(s)
	case types.StatusPacketLoss:
		return p.bad.Sprint(s)
	default:
		return p.warn.Sprint(s)
	}
}

func (p *Printer) line(b *strings.Builder, label, format string, args ...any) {
	fmt.Fprintf(b, "%s %s\n", p.label.Sprintf("%-16s", label+":"), fmt.Sprintf(format, args...))
}

func number(o optional.Opt[float64]) string {
	v, ok := o.Get()
	if !ok {
		return "unknown"
	}
	return humanize.FtoaWithDigits(v, 2)
}

// Record prints the result block of one cycle.
func (p *Printer) Record(r types.Record) {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Network check %s ===\n", r.Timestamp.Format(constants.TimestampLayout))
	p.line(&b, "Host", "%s", r.TargetHost)
	p.line(&b, "Latency", "avg %s ms (min %s, max %s)", number(r.AvgLatencyMS), number(r.MinLatencyMS), number(r.MaxLatencyMS))
	p.line(&b, "Packet loss", "%s%%", humanize.FtoaWithDigits(r.PacketLossPct, 2))
	p.line(&b, "Download", "%s Mbps in %s s", number(r.DownloadSpeedMbps), number(r.DownloadTimeSec))
	if r.LatencyFailed() {
		p.line(&b, "Latency probe", "%s", p.bad.Sprint("failed"))
	}
	if r.BandwidthFailed() {
		p.line(&b, "Bandwidth probe", "%s", p.bad.Sprint("failed"))
	}
	p.line(&b, "Status", "%s", p.status(r.Status))
	fmt.Fprint(p.out, b.String())
}

func stats(s types.FieldStats, unit string) string {
	if s.Count == 0 {
		return "no data"
	}
	return fmt.Sprintf("avg %s %s (min %s, max %s) over %s samples",
		humanize.FtoaWithDigits(s.Avg, 2), unit,
		humanize.FtoaWithDigits(s.Min, 2), humanize.FtoaWithDigits(s.Max, 2),
		humanize.Comma(int64(s.Count)))
}

// Report prints the summary statistics. An empty report prints "No data".
func (p *Printer) Report(r types.Report) {
	if r.Empty() {
		fmt.Fprintln(p.out, "No data")
		if r.Skipped > 0 {
			fmt.Fprintf(p.out, "%s unreadable rows skipped\n", humanize.Comma(int64(r.Skipped)))
		}
		return
	}

	var b strings.Builder
	fmt.Fprintln(&b, "=== Network summary ===")
	p.line(&b, "Records", "%s", humanize.Comma(int64(r.Total)))
	p.line(&b, "Period", "%s to %s (last %s)",
		r.First.Format(constants.TimestampLayout), r.Last.Format(constants.TimestampLayout),
		humanize.RelTime(r.Last, p.now(), "ago", "from now"))

	issues := fmt.Sprintf("%s (%s%%)", humanize.Comma(int64(r.IssueCount)), humanize.FtoaWithDigits(r.IssuePct, 1))
	if r.IssueCount > 0 {
		issues = p.warn.Sprint(issues)
	}
	p.line(&b, "Issues", "%s", issues)
	for _, s := range types.Statuses {
		if n := r.StatusCounts[s]; n > 0 {
			p.line(&b, "  "+string(s), "%s", humanize.Comma(int64(n)))
		}
	}
	p.line(&b, "Latency", "%s", stats(r.Latency, "ms"))
	p.line(&b, "Download", "%s", stats(r.Speed, "Mbps"))
	if r.Skipped > 0 {
		p.line(&b, "Skipped rows", "%s", humanize.Comma(int64(r.Skipped)))
	}
	fmt.Fprint(p.out, b.String())
}

// Issues prints the recent non-OK records.
func (p *Printer) Issues(issues []types.Issue, since time.Time) {
	if len(issues) == 0 {
		fmt.Fprintf(p.out, "No issues since %s\n", since.Format(constants.TimestampLayout))
		return
	}

	fmt.Fprintf(p.out, "%s since %s:\n", english.Plural(len(issues), "issue", "issues"), since.Format(constants.TimestampLayout))
	for _, issue := range issues {
		fmt.Fprintf(p.out, "  %s  %s\n", issue.Timestamp.Format(constants.TimestampLayout), p.status(issue.Status))
	}
}

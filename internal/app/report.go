package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// newProgress returns a bar counting resolved items, or nil when disabled.
func newProgress(w io.Writer, total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || w == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Enriching"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(w) }),
	)
}

// printSummary renders the run summary table.
func printSummary(w io.Writer, s Summary) error {
	_, _ = bold.Fprintln(w, "Enrichment summary")

	bias := "none"
	if s.Bias != nil {
		bias = fmt.Sprintf("%.5f,%.5f r=%gm", s.Bias.Center.Lat, s.Bias.Center.Lon, s.Bias.RadiusMeters)
	}
	errs := strconv.Itoa(s.Stats.RequestErrors)
	if s.Stats.RequestErrors > 0 {
		errs = red.Sprint(errs)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	rows := [][]string{
		{"run", s.RunID},
		{"provider", s.Provider},
		{"items", strconv.Itoa(s.Stats.Items)},
		{"matched", green.Sprint(s.Stats.Matched)},
		{"exhausted", yellow.Sprint(s.Stats.Exhausted)},
		{"attempts", strconv.Itoa(s.Stats.Attempts)},
		{"fallbacks", strconv.Itoa(s.Stats.Fallbacks)},
		{"request errors", errs},
		{"output rows", strconv.Itoa(s.Join.Rows + s.Join.Orphans)},
		{"orphans", strconv.Itoa(s.Join.Orphans)},
		{"bias", bias},
		{"duration", s.Duration.Round(time.Millisecond).String()},
	}
	for _, r := range rows {
		if err := table.Append(r[0], r[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// CounterSummary aggregates the visits of one counter.
type CounterSummary struct {
	Counter       string  `json:"counter"`
	Visits        int     `json:"visits"`
	TotalSeconds  float64 `json:"total_seconds"`
	AverageSecond float64 `json:"average_seconds"`
}

// Summarize groups rows per counter. Counters appear in the order given,
// followed by any counter seen only in rows.
func Summarize(rows []Row, counters []string) []CounterSummary {
	index := make(map[string]int, len(counters))
	out := make([]CounterSummary, 0, len(counters))
	for _, c := range counters {
		index[c] = len(out)
		out = append(out, CounterSummary{Counter: c})
	}

	for _, r := range rows {
		i, ok := index[r.Counter]
		if !ok {
			i = len(out)
			index[r.Counter] = i
			out = append(out, CounterSummary{Counter: r.Counter})
		}
		out[i].Visits++
		out[i].TotalSeconds += r.Duration
	}

	for i := range out {
		out[i].TotalSeconds = Round2(out[i].TotalSeconds)
		if out[i].Visits > 0 {
			out[i].AverageSecond = Round2(out[i].TotalSeconds / float64(out[i].Visits))
		}
	}
	return out
}

// RenderChart writes an HTML page with visit counts and average dwell per
// counter.
func RenderChart(w io.Writer, title string, summaries []CounterSummary) error {
	x := make([]string, 0, len(summaries))
	visits := make([]opts.BarData, 0, len(summaries))
	avg := make([]opts.BarData, 0, len(summaries))
	for _, s := range summaries {
		x = append(x, s.Counter)
		visits = append(visits, opts.BarData{Value: s.Visits})
		avg = append(avg, opts.BarData{Value: s.AverageSecond})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Customer Activity", Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: "Counter dwell time", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("visits", visits,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("average dwell (s)", avg,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/tcolgate/entropycam/internal/entropy"
)

var bandColors = map[string]string{
	"r":     colorful.Hsv(0, 0.75, 0.95).Hex(),
	"g":     colorful.Hsv(120, 0.75, 0.85).Hex(),
	"b":     colorful.Hsv(220, 0.75, 0.95).Hex(),
	"total": colorful.Hsv(45, 0.85, 0.95).Hex(),
}

func lineData(vs []int) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func seriesOpts(band string) []charts.SeriesOpts {
	return []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: bandColors[band]}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: bandColors[band]}),
	}
}

func histogramChart(h *entropy.Histograms, reading *entropy.Reading) *charts.Line {
	levels := make([]int, entropy.Levels)
	for i := range levels {
		levels[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "entropycam", Theme: "dark", Width: "1000px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Difference histogram",
			Subtitle: fmt.Sprintf("entropy total=%.4f r=%.4f g=%.4f b=%.4f", reading.Total, reading.R, reading.G, reading.B),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "pixels"}),
	)
	line.SetXAxis(levels).
		AddSeries("r", lineData(h.R[:]), seriesOpts("r")...).
		AddSeries("g", lineData(h.G[:]), seriesOpts("g")...).
		AddSeries("b", lineData(h.B[:]), seriesOpts("b")...)
	return line
}

func entropyChart(samples []float64) *charts.Line {
	xs := make([]int, len(samples))
	data := make([]opts.LineData, len(samples))
	for i, v := range samples {
		xs[i] = i + 1
		data[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1000px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Entropy series", Subtitle: fmt.Sprintf("%d samples", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(xs).AddSeries("total", data, seriesOpts("total")...)
	return line
}

// handleHistogram renders the latest difference histogram and the entropy
// series as an HTML page.
func (s *server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	_, res := s.events.Latest()
	if res == nil {
		http.Error(w, "no difference image yet", http.StatusNotFound)
		return
	}

	page := components.NewPage()
	page.AddCharts(histogramChart(res.Histogram, res.Entropy), entropyChart(s.det.Series().Snapshot()))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

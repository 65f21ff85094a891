package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	chart "github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 900
	chartHeight = 420
)

// ErrNotEnoughData means a panel has too few points to plot.
var ErrNotEnoughData = errors.New("not_enough_data")

// Chart is one rendered dashboard panel.
type Chart struct {
	Title string
	PNG   []byte
}

// Charts renders every panel that has enough data. Panels that cannot be
// plotted are skipped.
func Charts(snapshot dashboarddomain.Snapshot) ([]Chart, error) {
	builders := []struct {
		title string
		build func(dashboarddomain.Snapshot) ([]byte, error)
	}{
		{titleMRR, mrrChart},
		{titleActiveSubscriptions, activeSubscriptionsChart},
		{titleRevenueByChannel, channelChart},
		{titleRetention, retentionChart},
	}

	charts := make([]Chart, 0, len(builders))
	for _, b := range builders {
		png, err := b.build(snapshot)
		if errors.Is(err, ErrNotEnoughData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", b.title, err)
		}
		charts = append(charts, Chart{Title: b.title, PNG: png})
	}
	return charts, nil
}

// WriteCharts writes each panel as <slug>.png into dir and returns the paths.
func WriteCharts(dir string, snapshot dashboarddomain.Snapshot) ([]string, error) {
	charts, err := Charts(snapshot)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		path := filepath.Join(dir, slug.Make(c.Title)+".png")
		if err := os.WriteFile(path, c.PNG, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func mrrChart(snapshot dashboarddomain.Snapshot) ([]byte, error) {
	xs := make([]time.Time, 0, len(snapshot.MRR))
	ys := make([]float64, 0, len(snapshot.MRR))
	for _, p := range snapshot.MRR {
		month, err := dashboarddomain.ParseMonth(p.Month)
		if err != nil {
			return nil, err
		}
		xs = append(xs, month)
		ys = append(ys, p.MRR.Float64())
	}
	return timeChart(titleMRR, xs, ys)
}

func activeSubscriptionsChart(snapshot dashboarddomain.Snapshot) ([]byte, error) {
	xs := make([]time.Time, 0, len(snapshot.ActiveSubscriptions))
	ys := make([]float64, 0, len(snapshot.ActiveSubscriptions))
	for _, p := range snapshot.ActiveSubscriptions {
		month, err := dashboarddomain.ParseMonth(p.Month)
		if err != nil {
			return nil, err
		}
		xs = append(xs, month)
		ys = append(ys, float64(p.ActiveSubscriptions))
	}
	return timeChart(titleActiveSubscriptions, xs, ys)
}

func retentionChart(snapshot dashboarddomain.Snapshot) ([]byte, error) {
	if len(snapshot.Retention) < 2 {
		return nil, ErrNotEnoughData
	}
	xs := make([]float64, 0, len(snapshot.Retention))
	ys := make([]float64, 0, len(snapshot.Retention))
	for _, p := range snapshot.Retention {
		xs = append(xs, float64(p.MonthsSinceSignup))
		ys = append(ys, float64(p.ActiveUsers))
	}
	axis := yRange(ys)
	if axis == nil {
		return nil, ErrNotEnoughData
	}

	graph := chart.Chart{
		Title:  titleRetention,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name: "Months Since Signup",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return strconv.Itoa(int(f))
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  "Active Users",
			Range: axis,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "Active Users", XValues: xs, YValues: ys},
		},
	}
	return renderPNG(graph.Render)
}

func channelChart(snapshot dashboarddomain.Snapshot) ([]byte, error) {
	if len(snapshot.RevenueByChannel) == 0 {
		return nil, ErrNotEnoughData
	}
	bars := make([]chart.Value, 0, len(snapshot.RevenueByChannel))
	values := make([]float64, 0, len(snapshot.RevenueByChannel))
	for _, c := range snapshot.RevenueByChannel {
		bars = append(bars, chart.Value{Label: c.Channel, Value: c.Revenue.Float64()})
		values = append(values, c.Revenue.Float64())
	}
	axis := yRange(values)
	if axis == nil {
		return nil, ErrNotEnoughData
	}

	graph := chart.BarChart{
		Title:    titleRevenueByChannel,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 60,
		YAxis:    chart.YAxis{Range: axis},
		Bars:     bars,
	}
	return renderPNG(graph.Render)
}

func timeChart(title string, xs []time.Time, ys []float64) ([]byte, error) {
	axis := yRange(ys)
	if len(xs) < 2 || axis == nil {
		return nil, ErrNotEnoughData
	}
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(dashboarddomain.MonthLayout),
		},
		YAxis: chart.YAxis{Range: axis},
		Series: []chart.Series{
			chart.TimeSeries{Name: title, XValues: xs, YValues: ys},
		},
	}
	return renderPNG(graph.Render)
}

// yRange anchors the axis at zero. It returns nil when nothing is above zero.
func yRange(values []float64) chart.Range {
	top := 0.0
	for _, v := range values {
		top = max(top, v)
	}
	if top <= 0 {
		return nil
	}
	return &chart.ContinuousRange{Min: 0, Max: top * 1.1}
}

func renderPNG(render func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

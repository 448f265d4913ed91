// Package chart renders analytics series to PNG images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/atinyakov/chemora/internal/client/analytics"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when a view has nothing to plot.
var ErrNoData = errors.New("chart: no data")

const (
	width  = 960
	height = 540
)

var palette = []drawing.Color{
	drawing.ColorFromHex("e74c3c"),
	drawing.ColorFromHex("f57c00"),
	drawing.ColorFromHex("ff9800"),
	drawing.ColorFromHex("388e3c"),
	drawing.ColorFromHex("0097a7"),
	drawing.ColorFromHex("1976d2"),
	drawing.ColorFromHex("7b1fa2"),
	drawing.ColorFromHex("c2185b"),
}

var (
	flowrateColor = drawing.ColorFromHex("3b82f6")
	pressureColor = drawing.ColorFromHex("10b981")
)

func paletteStyle(i int) gochart.Style {
	c := palette[i%len(palette)]
	return gochart.Style{FillColor: c.WithAlpha(200), StrokeColor: c, StrokeWidth: 2}
}

// TypeBar draws equipment count per type.
func TypeBar(w io.Writer, s analytics.TypeSeries) error {
	if len(s.Labels) == 0 {
		return ErrNoData
	}
	bars := make([]gochart.Value, len(s.Labels))
	top := 1.0
	for i, label := range s.Labels {
		bars[i] = gochart.Value{Label: label, Value: float64(s.Counts[i]), Style: paletteStyle(i)}
		top = max(top, float64(s.Counts[i]))
	}
	bc := gochart.BarChart{
		Title:      "Equipment Type Distribution",
		Width:      width,
		Height:     height,
		BarWidth:   60,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: top * 1.1}},
		Bars:       bars,
	}
	if err := bc.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render type bar chart: %w", err)
	}
	return nil
}

// TypePie draws the share of each type.
func TypePie(w io.Writer, s analytics.TypeSeries) error {
	if len(s.Labels) == 0 {
		return ErrNoData
	}
	values := make([]gochart.Value, len(s.Labels))
	for i, label := range s.Labels {
		values[i] = gochart.Value{Label: label, Value: float64(s.Counts[i]), Style: paletteStyle(i)}
	}
	pc := gochart.PieChart{
		Title:  "Equipment Type Share",
		Width:  height,
		Height: height,
		Values: values,
	}
	if err := pc.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render type pie chart: %w", err)
	}
	return nil
}

// Trend draws flowrate and pressure by record position.
func Trend(w io.Writer, s analytics.TrendSeries) error {
	n := len(s.Labels)
	if n == 0 {
		return ErrNoData
	}
	xMax := float64(n) + 0.5
	xs := make([]float64, n)
	// Ticks set the x range, so blank edge ticks keep a single record
	// plottable.
	ticks := []gochart.Tick{{Value: 0.5}}
	for i := range xs {
		xs[i] = float64(i + 1)
		ticks = append(ticks, gochart.Tick{Value: xs[i], Label: fmt.Sprintf("%d", i+1)})
	}
	ticks = append(ticks, gochart.Tick{Value: xMax})

	lo := min(slices.Min(s.Flowrate), slices.Min(s.Pressure))
	hi := max(slices.Max(s.Flowrate), slices.Max(s.Pressure))
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05

	ch := gochart.Chart{
		Title:      "Flowrate vs Pressure",
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 48}},
		XAxis: gochart.XAxis{
			Name:  "Equipment",
			Range: &gochart.ContinuousRange{Min: 0.5, Max: xMax},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{Range: &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Flowrate",
				XValues: xs,
				YValues: s.Flowrate,
				Style:   gochart.Style{StrokeColor: flowrateColor, StrokeWidth: 3, DotColor: flowrateColor, DotWidth: 4},
			},
			gochart.ContinuousSeries{
				Name:    "Pressure",
				XValues: xs,
				YValues: s.Pressure,
				Style:   gochart.Style{StrokeColor: pressureColor, StrokeWidth: 3, DotColor: pressureColor, DotWidth: 4},
			},
		},
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

// WriteAll renders every chart of v into dir and returns the written paths.
func WriteAll(dir string, v analytics.DerivedView) ([]string, error) {
	if !v.Ready {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	jobs := []struct {
		name   string
		render func(io.Writer) error
	}{
		{"type_bar.png", func(w io.Writer) error { return TypeBar(w, v.TypeSeries) }},
		{"type_pie.png", func(w io.Writer) error { return TypePie(w, v.TypeSeries) }},
		{"trend.png", func(w io.Writer) error { return Trend(w, v.TrendSeries) }},
	}

	var paths []string
	for _, j := range jobs {
		path := filepath.Join(dir, j.name)
		if err := writeFile(path, j.render); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return render(f)
}

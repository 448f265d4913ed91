package analytics

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/atinyakov/chemora/internal/models"
)

// DerivedView is a snapshot of one dataset's analytics.
type DerivedView struct {
	DatasetID  int64
	Loading    bool
	Search     string
	TypeFilter string

	// Ready is false when there is nothing to chart: no summary or no
	// records.
	Ready       bool
	Summary     *models.Summary
	Records     []models.Equipment
	Filtered    []models.Equipment
	UniqueTypes []string

	TypeSeries   TypeSeries
	TrendSeries  TrendSeries
	Stats        Stats
	TypeAverages []TypeAverage
}

// Total is the number of loaded records.
func (v DerivedView) Total() int { return len(v.Records) }

// TypeSeries is the categorical count series, in the server's key order.
type TypeSeries struct {
	Labels []string
	Counts []int
}

// TrendSeries pairs flowrate and pressure by record position.
type TrendSeries struct {
	Labels   []string
	Flowrate []float64
	Pressure []float64
}

// ParamStats describes one measured parameter.
type ParamStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Stats covers the filtered records.
type Stats struct {
	Count       int
	Flowrate    ParamStats
	Pressure    ParamStats
	Temperature ParamStats
}

// TypeAverage holds the mean parameters of one equipment type.
type TypeAverage struct {
	Type        string
	Count       int
	Flowrate    float64
	Pressure    float64
	Temperature float64
}

func derive(v DerivedView, records []models.Equipment, summary *models.Summary) DerivedView {
	v.Records = slices.Clone(records)
	v.Summary = summary
	v.Filtered = Filter(records, v.Search, v.TypeFilter)
	v.UniqueTypes = UniqueTypes(records)
	v.Ready = summary != nil && len(records) > 0
	if !v.Ready {
		return v
	}

	keys := summary.TypeDistribution.Keys()
	v.TypeSeries = TypeSeries{Labels: keys, Counts: make([]int, len(keys))}
	for i, k := range keys {
		v.TypeSeries.Counts[i], _ = summary.TypeDistribution.Count(k)
	}

	v.TrendSeries = TrendSeries{
		Labels:   make([]string, len(records)),
		Flowrate: make([]float64, len(records)),
		Pressure: make([]float64, len(records)),
	}
	for i, r := range records {
		v.TrendSeries.Labels[i] = fmt.Sprintf("Equipment %d", i+1)
		v.TrendSeries.Flowrate[i] = r.Flowrate
		v.TrendSeries.Pressure[i] = r.Pressure
	}

	v.Stats = ComputeStats(v.Filtered)
	v.TypeAverages = ComputeTypeAverages(v.Filtered)
	return v
}

// Filter keeps records whose name contains search, ignoring case, and
// whose type equals typeFilter when it is set. The input is not modified.
func Filter(records []models.Equipment, search, typeFilter string) []models.Equipment {
	needle := strings.ToLower(search)
	out := make([]models.Equipment, 0, len(records))
	for _, r := range records {
		if !strings.Contains(strings.ToLower(r.Name), needle) {
			continue
		}
		if typeFilter != "" && r.Type != typeFilter {
			continue
		}
		out = append(out, r)
	}
	return out
}

// UniqueTypes lists the equipment types in order of first appearance.
func UniqueTypes(records []models.Equipment) []string {
	var out []string
	for _, r := range records {
		if !slices.Contains(out, r.Type) {
			out = append(out, r.Type)
		}
	}
	return out
}

// ComputeStats uses the population standard deviation.
func ComputeStats(records []models.Equipment) Stats {
	s := Stats{Count: len(records)}
	if len(records) == 0 {
		return s
	}
	s.Flowrate = paramStats(records, func(e models.Equipment) float64 { return e.Flowrate })
	s.Pressure = paramStats(records, func(e models.Equipment) float64 { return e.Pressure })
	s.Temperature = paramStats(records, func(e models.Equipment) float64 { return e.Temperature })
	return s
}

func paramStats(records []models.Equipment, field func(models.Equipment) float64) ParamStats {
	ps := ParamStats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, r := range records {
		x := field(r)
		sum += x
		ps.Min = math.Min(ps.Min, x)
		ps.Max = math.Max(ps.Max, x)
	}
	n := float64(len(records))
	ps.Mean = sum / n

	var sq float64
	for _, r := range records {
		d := field(r) - ps.Mean
		sq += d * d
	}
	ps.StdDev = math.Sqrt(sq / n)
	return ps
}

// ComputeTypeAverages groups records by type in order of first appearance.
func ComputeTypeAverages(records []models.Equipment) []TypeAverage {
	var out []TypeAverage
	index := map[string]int{}
	for _, r := range records {
		i, ok := index[r.Type]
		if !ok {
			i = len(out)
			index[r.Type] = i
			out = append(out, TypeAverage{Type: r.Type})
		}
		out[i].Count++
		out[i].Flowrate += r.Flowrate
		out[i].Pressure += r.Pressure
		out[i].Temperature += r.Temperature
	}
	for i := range out {
		n := float64(out[i].Count)
		out[i].Flowrate /= n
		out[i].Pressure /= n
		out[i].Temperature /= n
	}
	return out
}

// FormatAverage renders an averaged value with one decimal.
func FormatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// FormatMeasurement renders a per-record value with two decimals.
func FormatMeasurement(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ShowingNote returns the "Showing X of Y" line, or "" when the filter
// matches nothing or everything.
func ShowingNote(filtered, total int) string {
	if filtered == 0 || filtered == total {
		return ""
	}
	return fmt.Sprintf("Showing %d of %d equipment items", filtered, total)
}

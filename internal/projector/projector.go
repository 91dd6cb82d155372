// Package projector produces the views the renderer shows: the filtered,
// distance-sorted list projection and the detail sheet content.
package projector

import (
	"sort"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/location"
)

// Entry is one projected record with its distance from the reference point.
type Entry struct {
	Record     location.Record
	DistanceKm float64
}

// DistanceText renders the entry distance for display.
func (e Entry) DistanceText() string {
	return calculator.FormatDistance(e.DistanceKm)
}

// Project filters records with sel, computes each survivor's distance from
// ref and sorts ascending. Ties keep collection order. The result depends only
// on the three inputs.
func Project(records []location.Record, sel filter.Selection, ref calculator.Point) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if !sel.Matches(r) {
			continue
		}
		entries = append(entries, Entry{
			Record:     r,
			DistanceKm: calculator.DistanceKm(ref, r.Position),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DistanceKm < entries[j].DistanceKm
	})
	return entries
}

// ReferencePoint picks the live device position when there is one, else the fallback.
func ReferencePoint(device *calculator.Point, fallback calculator.Point) calculator.Point {
	if device != nil {
		return *device
	}
	return fallback
}

// Metrics summarises the distances of a projection.
func Metrics(ref calculator.Point, entries []Entry) calculator.DistanceMetrics {
	points := make([]calculator.Point, len(entries))
	for i, e := range entries {
		points[i] = e.Record.Position
	}
	return calculator.CalculateMetrics(ref, points)
}

// Package mapsurface describes the external map rendering engine as the
// service sees it: a set of named layers that accept declarative filter and
// paint expressions, plus camera movement.
package mapsurface

import (
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/filter"
)

// PropertyIconOpacity is the paint property used for selection highlighting.
const PropertyIconOpacity = "icon-opacity"

// Camera is an ease/fly target.
type Camera struct {
	Center calculator.Point `json:"center"`
	Zoom   float64          `json:"zoom"`
	// Offset is a pixel offset [x, y] applied to the center.
	Offset     [2]float64 `json:"offset"`
	DurationMS int        `json:"duration_ms"`
}

// Surface is the map-surface contract. Any layer may be absent at any time;
// commands against an absent layer return an error.
type Surface interface {
	HasLayer(id string) bool
	SetFilter(layer string, expr filter.Expression) error
	SetPaintProperty(layer, property string, value interface{}) error
	EaseTo(cam Camera) error
	FlyTo(cam Camera) error
	Zoom() float64
	Loaded() bool
	StyleLoaded() bool
}

// ApplyFilter sets expr on every layer that exists. Missing layers and
// failing commands are logged and skipped.
func ApplyFilter(s Surface, layers []string, expr filter.Expression) {
	for _, layer := range layers {
		if !s.HasLayer(layer) {
			log.Warn().Str("layer", layer).Msg("Map layer not present, skipping filter")
			continue
		}
		if err := s.SetFilter(layer, expr); err != nil {
			log.Warn().Err(err).Str("layer", layer).Msg("Failed to set layer filter")
		}
	}
}

// ApplyPaint sets a paint property on every layer that exists, with the same
// degrade-and-log behaviour as ApplyFilter.
func ApplyPaint(s Surface, layers []string, property string, value interface{}) {
	for _, layer := range layers {
		if !s.HasLayer(layer) {
			continue
		}
		if err := s.SetPaintProperty(layer, property, value); err != nil {
			log.Warn().Err(err).Str("layer", layer).Str("property", property).Msg("Failed to set paint property")
		}
	}
}

// AnyLayer reports whether at least one of layers exists.
func AnyLayer(s Surface, layers []string) bool {
	for _, l := range layers {
		if s.HasLayer(l) {
			return true
		}
	}
	return false
}

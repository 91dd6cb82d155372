// Package selection tracks the single "currently open" venue and drives the
// highlight, camera and detail commands that go with opening and closing it.
package selection

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/mapsurface"
	"github.com/stuartshay/gobebop/internal/projector"
)

const (
	highlightOpacity = 1.0
	dimmedOpacity    = 0.5
	easeDurationMS   = 600
)

// Renderer shows and hides the detail sheet.
type Renderer interface {
	ShowDetail(d projector.Detail)
	HideDetail()
}

// Viewport is the client's visible map area in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Options tunes highlighting and camera placement.
type Options struct {
	Layers []string
	// SheetHeightFraction is the share of a mobile viewport the sheet covers.
	SheetHeightFraction float64
	MobileBreakpoint    float64
	SidebarWidth        float64
}

// Controller is either Closed or Open(record).
type Controller struct {
	surface  mapsurface.Surface
	renderer Renderer
	opts     Options
	lookup   projector.IconLookup
	viewport Viewport

	current *location.Record
}

// NewController creates a Closed controller. lookup may be nil.
func NewController(surface mapsurface.Surface, renderer Renderer, opts Options, lookup projector.IconLookup) *Controller {
	return &Controller{
		surface:  surface,
		renderer: renderer,
		opts:     opts,
		lookup:   lookup,
		viewport: Viewport{Width: 1280, Height: 800},
	}
}

// SetViewport records the client viewport used for camera offsets.
func (c *Controller) SetViewport(v Viewport) {
	if v.Width > 0 && v.Height > 0 {
		c.viewport = v
	}
}

// Current returns the open record.
func (c *Controller) Current() (location.Record, bool) {
	if c.current == nil {
		return location.Record{}, false
	}
	return *c.current, true
}

// IsOpen reports whether a record is open.
func (c *Controller) IsOpen() bool {
	return c.current != nil
}

// Open moves to Open(r) from either state. Records picked from a map layer
// are highlighted; records opened from the list are not.
func (c *Controller) Open(r location.Record) {
	rec := r
	c.current = &rec

	if r.Layer != "" {
		c.highlight(r.ID())
	}
	c.easeTo(r)
	c.renderer.ShowDetail(projector.BuildDetail(r, c.lookup))
}

// Close restores full opacity and hides the detail. Closing while Closed does nothing.
func (c *Controller) Close() {
	if c.current == nil {
		return
	}
	c.current = nil

	mapsurface.ApplyPaint(c.surface, c.opts.Layers, mapsurface.PropertyIconOpacity, highlightOpacity)
	c.renderer.HideDetail()
}

// HighlightExpression is the opacity expression that keeps the feature whose
// id, name_en or Name equals featureID fully opaque and dims the rest.
func HighlightExpression(featureID string) filter.Expression {
	expr := filter.Expression{filter.OpCase}
	for _, key := range location.IdentifierKeys() {
		expr = append(expr, filter.Equals(key, featureID), highlightOpacity)
	}
	return append(expr, dimmedOpacity)
}

func (c *Controller) highlight(featureID string) {
	if !mapsurface.AnyLayer(c.surface, c.opts.Layers) {
		log.Warn().Msg("Map layers not ready yet")
		return
	}
	mapsurface.ApplyPaint(c.surface, c.opts.Layers, mapsurface.PropertyIconOpacity, HighlightExpression(featureID))
}

// Camera computes where to move the map so the record stays visible beside
// the sheet (mobile) or sidebar (desktop).
func (c *Controller) Camera(r location.Record) mapsurface.Camera {
	zoom := c.surface.Zoom()
	cam := mapsurface.Camera{Center: r.Position, DurationMS: easeDurationMS}

	if c.viewport.Width <= c.opts.MobileBreakpoint {
		sheetHeight := c.viewport.Height * c.opts.SheetHeightFraction
		cam.Offset = [2]float64{0, -(sheetHeight / 2)}
		cam.Zoom = math.Min(math.Max(zoom, 13), 14)
		return cam
	}

	cam.Offset = [2]float64{-(c.opts.SidebarWidth / 2), 0}
	cam.Zoom = math.Max(zoom, 15)
	return cam
}

func (c *Controller) easeTo(r location.Record) {
	if err := c.surface.EaseTo(c.Camera(r)); err != nil {
		log.Warn().Err(err).Msg("Failed to move camera")
	}
}

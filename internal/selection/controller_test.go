package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/mapsurface"
	"github.com/stuartshay/gobebop/internal/projector"
)

type paintCall struct {
	layer    string
	property string
	value    interface{}
}

type fakeSurface struct {
	layers  map[string]bool
	failing map[string]bool
	zoom    float64
	paints  []paintCall
	eases   []mapsurface.Camera
}

func newFakeSurface(layers ...string) *fakeSurface {
	s := &fakeSurface{layers: map[string]bool{}, failing: map[string]bool{}, zoom: 12}
	for _, l := range layers {
		s.layers[l] = true
	}
	return s
}

func (f *fakeSurface) HasLayer(id string) bool { return f.layers[id] }
func (f *fakeSurface) SetFilter(string, filter.Expression) error {
	return nil
}
func (f *fakeSurface) SetPaintProperty(layer, property string, value interface{}) error {
	if f.failing[layer] {
		return errors.New("layer exploded")
	}
	f.paints = append(f.paints, paintCall{layer, property, value})
	return nil
}
func (f *fakeSurface) EaseTo(cam mapsurface.Camera) error {
	f.eases = append(f.eases, cam)
	return nil
}
func (f *fakeSurface) FlyTo(mapsurface.Camera) error { return nil }
func (f *fakeSurface) Zoom() float64                 { return f.zoom }
func (f *fakeSurface) Loaded() bool                  { return true }
func (f *fakeSurface) StyleLoaded() bool             { return true }

type fakeRenderer struct {
	shown  []projector.Detail
	hidden int
}

func (f *fakeRenderer) ShowDetail(d projector.Detail) { f.shown = append(f.shown, d) }
func (f *fakeRenderer) HideDetail()                   { f.hidden++ }

var testOptions = Options{
	Layers:              []string{"Icons", "Dots"},
	SheetHeightFraction: 0.42,
	MobileBreakpoint:    600,
	SidebarWidth:        440,
}

func zoo() location.Record {
	return location.NewRecord(calculator.NewPoint(52.3660, 4.9160), map[string]string{
		location.KeyID:     "artis",
		location.KeyNameEn: "Artis Zoo",
	})
}

func TestOpen_WithoutLayerSkipsHighlight(t *testing.T) {
	surface := newFakeSurface("Icons", "Dots")
	renderer := &fakeRenderer{}
	c := NewController(surface, renderer, testOptions, nil)

	c.Open(zoo())

	assert.Empty(t, surface.paints, "no highlight for list-opened records")
	require.Len(t, renderer.shown, 1)
	assert.Equal(t, "Artis Zoo", renderer.shown[0].Name)
	assert.True(t, c.IsOpen())
}

func TestOpen_WithLayerHighlights(t *testing.T) {
	surface := newFakeSurface("Icons", "Dots")
	renderer := &fakeRenderer{}
	c := NewController(surface, renderer, testOptions, nil)

	c.Open(zoo().WithLayer("Icons"))

	require.Len(t, surface.paints, 2)
	for i, layer := range []string{"Icons", "Dots"} {
		assert.Equal(t, layer, surface.paints[i].layer)
		assert.Equal(t, mapsurface.PropertyIconOpacity, surface.paints[i].property)
	}
	assert.Len(t, renderer.shown, 1)

	expr := surface.paints[0].value.(filter.Expression)
	for _, tc := range []struct {
		props filter.PropertyMap
		want  float64
	}{
		{filter.PropertyMap{"id": "artis"}, 1},
		{filter.PropertyMap{"name_en": "artis"}, 1},
		{filter.PropertyMap{"Name": "artis"}, 1},
		{filter.PropertyMap{"id": "other", "Name": "Other"}, 0.5},
	} {
		v, err := filter.Evaluate(expr, tc.props)
		require.NoError(t, err)
		assert.Equal(t, tc.want, v, "%v", tc.props)
	}
}

func TestOpen_NoLayersPresent(t *testing.T) {
	surface := newFakeSurface()
	renderer := &fakeRenderer{}
	c := NewController(surface, renderer, testOptions, nil)

	c.Open(zoo().WithLayer("Icons"))

	assert.Empty(t, surface.paints)
	assert.Len(t, renderer.shown, 1, "detail still shows when layers are missing")
}

func TestOpen_FailingLayerDoesNotAbort(t *testing.T) {
	surface := newFakeSurface("Icons", "Dots")
	surface.failing["Icons"] = true
	renderer := &fakeRenderer{}
	c := NewController(surface, renderer, testOptions, nil)

	c.Open(zoo().WithLayer("Dots"))

	require.Len(t, surface.paints, 1)
	assert.Equal(t, "Dots", surface.paints[0].layer)
	assert.Len(t, renderer.shown, 1)
}

func TestClose(t *testing.T) {
	surface := newFakeSurface("Icons")
	renderer := &fakeRenderer{}
	c := NewController(surface, renderer, testOptions, nil)

	c.Close()
	assert.Equal(t, 0, renderer.hidden, "closing while closed is a no-op")
	assert.Empty(t, surface.paints)

	c.Open(zoo())
	c.Close()
	assert.Equal(t, 1, renderer.hidden)
	require.Len(t, surface.paints, 1, "only the existing layer is restored")
	assert.Equal(t, paintCall{"Icons", mapsurface.PropertyIconOpacity, 1.0}, surface.paints[0])
	assert.False(t, c.IsOpen())

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCamera(t *testing.T) {
	surface := newFakeSurface("Icons")
	c := NewController(surface, &fakeRenderer{}, testOptions, nil)

	t.Run("desktop", func(t *testing.T) {
		c.SetViewport(Viewport{Width: 1280, Height: 800})
		surface.zoom = 12
		cam := c.Camera(zoo())
		assert.Equal(t, 15.0, cam.Zoom)
		assert.Equal(t, [2]float64{-220, 0}, cam.Offset)
		assert.Equal(t, 600, cam.DurationMS)
	})

	t.Run("mobile", func(t *testing.T) {
		c.SetViewport(Viewport{Width: 390, Height: 800})
		surface.zoom = 16
		cam := c.Camera(zoo())
		assert.Equal(t, 14.0, cam.Zoom)
		assert.InDelta(t, -168, cam.Offset[1], 1e-9)

		surface.zoom = 10
		assert.Equal(t, 13.0, c.Camera(zoo()).Zoom)
	})

	t.Run("ignores empty viewport", func(t *testing.T) {
		c.SetViewport(Viewport{Width: 390, Height: 800})
		c.SetViewport(Viewport{})
		surface.zoom = 13.5
		assert.Equal(t, 13.5, c.Camera(zoo()).Zoom)
	})
}

// Package app is the application controller for one UI session. It owns the
// session's explicit state (filters, selection, overlays, geolocation) and
// turns client events into state changes and client commands.
//
// An App is not safe for concurrent use. Every method, and every callback
// it schedules, must run on the session's event loop.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/errorreport"
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/geolocate"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/mapsurface"
	"github.com/stuartshay/gobebop/internal/navigation"
	"github.com/stuartshay/gobebop/internal/projector"
	"github.com/stuartshay/gobebop/internal/selection"
	"github.com/stuartshay/gobebop/internal/share"
)

// ErrUnknownLocation is returned when an event names a record that is not in
// the collection.
var ErrUnknownLocation = errors.New("unknown location")

// Shared-link camera move.
const (
	SharedFlyZoom     = 15
	SharedFlyDuration = 1500 * time.Millisecond
	SharedOpenDelay   = 1000 * time.Millisecond
)

// Scheduler runs fn after d on the session's event loop.
type Scheduler = navigation.Scheduler

// Options configures an App.
type Options struct {
	Layers []string
	// Fallback is the list reference point when the device position is unknown.
	Fallback             calculator.Point
	PollInterval         time.Duration
	BaseURL              string
	SheetHeightFraction  float64
	MobileBreakpoint     float64
	SidebarWidth         float64
	InitialZoom          float64
	Delays               navigation.Delays
	GeolocationSupported bool
	CommandCapacity      int
}

// DefaultOptions are the Amsterdam defaults.
func DefaultOptions() Options {
	return Options{
		Layers:               []string{"Icons", "Dots"},
		Fallback:             calculator.NewPoint(52.3676, 4.9041),
		PollInterval:         200 * time.Millisecond,
		BaseURL:              "http://localhost:8080/",
		SheetHeightFraction:  0.42,
		MobileBreakpoint:     600,
		SidebarWidth:         440,
		InitialZoom:          12,
		Delays:               navigation.DefaultDelays(),
		GeolocationSupported: true,
		CommandCapacity:      DefaultCommandCapacity,
	}
}

// State is the session's application state. It replaces what would
// otherwise be scattered globals: the checked controls, the derived filter
// selection, the open record, overlay flags and device position.
type State struct {
	Checks      []filter.Check
	Filters     filter.Selection
	Selection   *selection.Controller
	Navigation  *navigation.Coordinator
	Geolocation *geolocate.Tracker

	listRetryPending bool
	// sharedGen invalidates the poll of a superseded shared-link open.
	sharedGen uint64
}

// App is the controller for one UI session.
type App struct {
	ID string

	store    *location.Store
	sched    Scheduler
	opts     Options
	commands *CommandLog
	surface  *RemoteMap
	view     *RemoteView
	state    State
}

// New creates the controller for session id. The collection in store may
// still be loading.
func New(id string, store *location.Store, sched Scheduler, opts Options) *App {
	cmds := NewCommandLog(opts.CommandCapacity)
	a := &App{
		ID:       id,
		store:    store,
		sched:    sched,
		opts:     opts,
		commands: cmds,
		surface:  NewRemoteMap(cmds, opts.InitialZoom),
		view:     &RemoteView{log: cmds},
	}

	lookup := func(name string) (location.Record, bool) {
		r, ok, err := store.FindByName(name)
		return r, ok && err == nil
	}
	a.state.Filters = filter.Reset()
	a.state.Selection = selection.NewController(a.surface, a.view, selection.Options{
		Layers:              opts.Layers,
		SheetHeightFraction: opts.SheetHeightFraction,
		MobileBreakpoint:    opts.MobileBreakpoint,
		SidebarWidth:        opts.SidebarWidth,
	}, lookup)
	a.state.Navigation = navigation.NewCoordinator(
		a.state.Selection, a.view, a, sched, navigation.NewSessionMemory(), opts.Delays,
	)
	a.state.Geolocation = geolocate.NewTracker(&notifyingScheduler{sched: sched, after: a.pushGeolocation}, opts.GeolocationSupported)
	return a
}

// notifyingScheduler pushes state to the client after a delayed callback.
type notifyingScheduler struct {
	sched Scheduler
	after func()
}

func (n *notifyingScheduler) After(d time.Duration, fn func()) {
	n.sched.After(d, func() {
		fn()
		n.after()
	})
}

// State exposes the session state for read-only inspection.
func (a *App) State() *State {
	return &a.state
}

// Surface is the mirrored map surface.
func (a *App) Surface() *RemoteMap {
	return a.surface
}

// Drain hands the pending client commands over, oldest first.
func (a *App) Drain() []Command {
	return a.commands.Drain()
}

// Requeue returns commands that could not be delivered to the log.
func (a *App) Requeue(cmds []Command) {
	a.commands.Requeue(cmds)
}

// UpdateFilters rebuilds the selection from every checked control, pushes
// the matching expression to the map layers and refreshes the list if it is
// visible.
func (a *App) UpdateFilters(checks []filter.Check) {
	a.state.Checks = append([]filter.Check(nil), checks...)
	a.state.Filters = filter.Group(checks)

	a.applyFilter()
	a.view.FilterIndicator(filter.ActiveCount(a.state.Checks))
	if a.state.Navigation.IsOpen(navigation.List) {
		a.RefreshList()
	}
}

// ResetFilters clears every filter.
func (a *App) ResetFilters() {
	a.state.Checks = nil
	a.state.Filters = filter.Reset()

	a.applyFilter()
	a.view.FilterIndicator(0)
	if a.state.Navigation.IsOpen(navigation.List) {
		a.RefreshList()
	}
}

func (a *App) applyFilter() {
	mapsurface.ApplyFilter(a.surface, a.opts.Layers, a.state.Filters.Expression())
}

// RefreshList renders the current projection. Before the collection has
// loaded it retries on the poll interval for as long as the list stays open.
func (a *App) RefreshList() {
	records, err := a.store.Records()
	if err != nil {
		log.Warn().Err(err).Str("session_id", a.ID).Msg("No locations data available")
		a.retryList()
		return
	}

	ref := projector.ReferencePoint(a.state.Geolocation.LastKnownPtr(), a.opts.Fallback)
	entries := projector.Project(records, a.state.Filters, ref)
	a.view.RenderList(projector.BuildList(entries))
}

func (a *App) retryList() {
	if a.state.listRetryPending {
		return
	}
	a.state.listRetryPending = true
	a.sched.After(a.opts.PollInterval, func() {
		a.state.listRetryPending = false
		if a.state.Navigation.IsOpen(navigation.List) {
			a.RefreshList()
		}
	})
}

// Projection is the current list projection, independent of whether the
// list is visible.
func (a *App) Projection() ([]projector.Entry, error) {
	records, err := a.store.Records()
	if err != nil {
		return nil, err
	}
	ref := projector.ReferencePoint(a.state.Geolocation.LastKnownPtr(), a.opts.Fallback)
	return projector.Project(records, a.state.Filters, ref), nil
}

// ToggleList opens or closes the list.
func (a *App) ToggleList() { a.state.Navigation.ToggleList() }

// ClickFeature opens the sheet for a feature picked on a map layer.
func (a *App) ClickFeature(layer string, position calculator.Point, props map[string]string) {
	a.state.Navigation.OpenSheet(location.NewRecord(position, props).WithLayer(layer))
}

// OpenFromList opens the record with the given identifier from the list.
func (a *App) OpenFromList(id string) error {
	r, err := a.find(id)
	if err != nil {
		return err
	}
	a.state.Navigation.OpenFromList(r)
	return nil
}

// OpenByID opens the sheet for a stored record directly.
func (a *App) OpenByID(id string) error {
	r, err := a.find(id)
	if err != nil {
		return err
	}
	a.state.Navigation.OpenSheet(r)
	return nil
}

func (a *App) find(id string) (location.Record, error) {
	r, ok, err := a.store.FindByID(id)
	if err != nil {
		return location.Record{}, err
	}
	if !ok {
		return location.Record{}, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	return r, nil
}

// CloseSheet closes the detail sheet.
func (a *App) CloseSheet() { a.state.Navigation.CloseSheet() }

// OpenFiltersFromList swaps the list for the filter drawer.
func (a *App) OpenFiltersFromList() { a.state.Navigation.OpenFiltersFromList() }

// ToggleDrawer opens or closes the filter drawer.
func (a *App) ToggleDrawer() { a.state.Navigation.ToggleDrawer() }

// CloseDrawer closes the filter drawer.
func (a *App) CloseDrawer() { a.state.Navigation.CloseDrawer() }

// ToggleFeedback opens or closes the feedback modal.
func (a *App) ToggleFeedback() { a.state.Navigation.ToggleFeedback() }

// SetScrollOffset records the list scroll position.
func (a *App) SetScrollOffset(offset int) { a.state.Navigation.SetScrollOffset(offset) }

// SetViewport records the client's map size.
func (a *App) SetViewport(v selection.Viewport) { a.state.Selection.SetViewport(v) }

// ShareLink returns the share payload for the open record.
func (a *App) ShareLink() (share.Link, bool, error) {
	r, ok := a.state.Selection.Current()
	if !ok {
		return share.Link{}, false, nil
	}
	link, err := share.NewLink(a.opts.BaseURL, r)
	if err != nil {
		return share.Link{}, false, err
	}
	return link, true, nil
}

// OpenShared opens the record named by a shared link once both the data
// and the map are ready, polling until they are.
func (a *App) OpenShared(name string) {
	if name == "" {
		return
	}
	a.state.sharedGen++
	a.checkShared(name, a.state.sharedGen)
}

func (a *App) checkShared(name string, gen uint64) {
	if gen != a.state.sharedGen {
		return
	}
	retry := func() {
		a.sched.After(a.opts.PollInterval, func() { a.checkShared(name, gen) })
	}

	if !a.store.Ready() {
		log.Debug().Str("session_id", a.ID).Msg("Waiting for location data to load")
		retry()
		return
	}
	if !a.surface.Loaded() || !a.surface.StyleLoaded() {
		log.Debug().Str("session_id", a.ID).Msg("Waiting for map to be ready")
		retry()
		return
	}

	r, ok, err := a.store.FindByName(name)
	if err != nil || !ok {
		log.Warn().Str("location", name).Msg("Shared location not found")
		errorreport.CaptureMessage("shared location not found", sentry.LevelWarning, map[string]interface{}{
			"location": name,
		})
		return
	}

	log.Info().Str("location", name).Str("session_id", a.ID).Msg("Opening shared location")
	if err := a.surface.FlyTo(mapsurface.Camera{
		Center:     r.Position,
		Zoom:       SharedFlyZoom,
		DurationMS: int(SharedFlyDuration / time.Millisecond),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to fly to shared location")
	}
	a.sched.After(SharedOpenDelay, func() {
		if gen == a.state.sharedGen {
			a.state.Navigation.OpenSheet(r)
		}
	})
}

// MapLoaded records the map load event.
func (a *App) MapLoaded() {
	a.surface.loaded = true
	log.Debug().Str("session_id", a.ID).Msg("Map load event")
}

// StyleLoaded records that the map style finished loading.
func (a *App) StyleLoaded() { a.surface.styleLoaded = true }

// MapError logs an error reported by the map engine and forwards it to
// error reporting.
func (a *App) MapError(message string) {
	log.Error().Str("session_id", a.ID).Str("error", message).Msg("Map error")
	errorreport.CaptureMessage("map error: "+message, sentry.LevelError, map[string]interface{}{
		"session_id": a.ID,
	})
}

// LayerAdded records a rendered layer and brings it in line with the
// current filter.
func (a *App) LayerAdded(id string) {
	a.surface.layers[id] = true
	if a.state.Filters.IsEmpty() {
		return
	}
	if err := a.surface.SetFilter(id, a.state.Filters.Expression()); err != nil {
		log.Warn().Err(err).Str("layer", id).Msg("Failed to set layer filter")
	}
}

// LayerRemoved records that a layer is gone.
func (a *App) LayerRemoved(id string) { delete(a.surface.layers, id) }

// ZoomChanged records the map zoom level.
func (a *App) ZoomChanged(zoom float64) { a.surface.zoom = zoom }

// ToggleGeolocation handles a click on the location button.
func (a *App) ToggleGeolocation() {
	if a.state.Geolocation.Toggle() {
		a.view.TriggerGeolocate()
	}
	a.pushGeolocation()
}

// PositionFound records a device fix and re-sorts a visible list.
func (a *App) PositionFound(pos calculator.Point) {
	a.state.Geolocation.Found(pos)
	a.pushGeolocation()
	if a.state.Navigation.IsOpen(navigation.List) {
		a.RefreshList()
	}
}

// GeolocationEnded records that tracking stopped.
func (a *App) GeolocationEnded() {
	a.state.Geolocation.Ended()
	a.pushGeolocation()
}

// GeolocationFailed records a device geolocation error.
func (a *App) GeolocationFailed(code int, message string) {
	a.state.Geolocation.Failed(code, message)
	a.pushGeolocation()
}

// PermissionChanged records a geolocation permission change.
func (a *App) PermissionChanged(state string) {
	a.state.Geolocation.PermissionChanged(state)
	a.pushGeolocation()
}

func (a *App) pushGeolocation() {
	a.view.GeolocateState(a.state.Geolocation.State())
}

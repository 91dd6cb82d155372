package app

import (
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/geolocate"
	"github.com/stuartshay/gobebop/internal/navigation"
)

// Snapshot is a JSON view of the session state.
type Snapshot struct {
	SessionID       string                      `json:"session_id"`
	DataReady       bool                        `json:"data_ready"`
	MapReady        bool                        `json:"map_ready"`
	Layers          []string                    `json:"layers"`
	Overlays        map[navigation.Overlay]bool `json:"overlays"`
	Filters         filter.Selection            `json:"filters"`
	Expression      filter.Expression           `json:"expression"`
	ActiveFilters   int                         `json:"active_filters"`
	Selected        string                      `json:"selected,omitempty"`
	ScrollOffset    int                         `json:"scroll_offset"`
	PendingReturn   *navigation.Marker          `json:"pending_return,omitempty"`
	Geolocation     geolocate.State             `json:"geolocation"`
	PendingCommands int                         `json:"pending_commands"`
}

// Snapshot captures the current state.
func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		SessionID:       a.ID,
		DataReady:       a.store.Ready(),
		MapReady:        a.surface.Loaded() && a.surface.StyleLoaded(),
		Layers:          a.surface.Layers(),
		Overlays:        a.state.Navigation.OpenOverlays(),
		Filters:         a.state.Filters.Clone(),
		Expression:      a.state.Filters.Expression(),
		ActiveFilters:   filter.ActiveCount(a.state.Checks),
		ScrollOffset:    a.state.Navigation.ScrollOffset(),
		Geolocation:     a.state.Geolocation.State(),
		PendingCommands: a.commands.Len(),
	}
	if r, ok := a.state.Selection.Current(); ok {
		s.Selected = r.ID()
	}
	if m, ok := a.state.Navigation.PendingReturn(); ok {
		s.PendingReturn = &m
	}
	return s
}

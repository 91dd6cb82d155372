// Package geolocate tracks the state of the "find my location" affordance
// and the last position reported by the device.
package geolocate

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/calculator"
)

// Error codes reported by the device geolocation API.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Permission states.
const (
	PermissionPrompt  = "prompt"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Error flash durations.
const (
	PermanentErrorFlash = 2 * time.Second
	TransientErrorFlash = 3 * time.Second
)

// Scheduler runs fn after d on the caller's event loop.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// State is the affordance state rendered by the client.
type State struct {
	Available  bool   `json:"available"`
	Tracking   bool   `json:"tracking"`
	Error      bool   `json:"error"`
	Clicked    bool   `json:"clicked"`
	Permission string `json:"permission"`
}

// Tracker is not safe for concurrent use.
type Tracker struct {
	sched     Scheduler
	supported bool
	state     State
	last    *calculator.Point
	flashID uint64
}

// NewTracker returns a tracker. available is false when the device has no
// geolocation support at all.
func NewTracker(sched Scheduler, available bool) *Tracker {
	t := &Tracker{
		sched:     sched,
		supported: available,
		state:     State{Available: available, Permission: PermissionPrompt},
	}
	if !available {
		t.state.Permission = PermissionDenied
	}
	return t
}

// State returns the current affordance state.
func (t *Tracker) State() State {
	return t.state
}

// LastKnown returns the last reported device position, if any.
func (t *Tracker) LastKnown() (calculator.Point, bool) {
	if t.last == nil {
		return calculator.Point{}, false
	}
	return *t.last, true
}

// LastKnownPtr is LastKnown in the form the projector takes.
func (t *Tracker) LastKnownPtr() *calculator.Point {
	if t.last == nil {
		return nil
	}
	p := *t.last
	return &p
}

// Toggle handles a click on the affordance. It reports whether the click
// should be forwarded to the device control.
func (t *Tracker) Toggle() bool {
	if !t.state.Available {
		log.Debug().Msg("Geolocation not available")
		return false
	}
	t.state.Clicked = true
	return true
}

// Found records a successful fix. Tracking only becomes active here, not
// when the device starts asking for permission.
func (t *Tracker) Found(pos calculator.Point) {
	p := pos
	t.last = &p
	t.state.Tracking = true
	t.state.Error = false
	log.Debug().Float64("lat", pos.Lat()).Float64("lon", pos.Lon()).Msg("Location found")
}

// Ended records that the device stopped tracking.
func (t *Tracker) Ended() {
	t.state.Tracking = false
}

// Failed records a geolocation error. Permission denial disables the
// affordance for good; other codes only flash the error state.
func (t *Tracker) Failed(code int, message string) {
	log.Info().Int("code", code).Str("message", message).Msg("Geolocation error")
	t.state.Tracking = false

	flash := TransientErrorFlash
	if code == CodePermissionDenied {
		t.state.Available = false
		t.state.Permission = PermissionDenied
		flash = PermanentErrorFlash
	}
	t.flash(flash)
}

// PermissionChanged applies a permission state change from the device.
// Devices without geolocation support have no permission to change.
func (t *Tracker) PermissionChanged(state string) {
	if !t.supported {
		log.Debug().Str("permission", state).Msg("Ignoring permission change without geolocation support")
		return
	}
	t.state.Permission = state
	switch state {
	case PermissionDenied:
		t.state.Available = false
		t.state.Tracking = false
	case PermissionGranted:
		t.state.Available = true
	}
}

func (t *Tracker) flash(d time.Duration) {
	t.state.Error = true
	t.flashID++
	id := t.flashID
	t.sched.After(d, func() {
		// a later error restarts the flash
		if t.flashID == id {
			t.state.Error = false
		}
	})
}

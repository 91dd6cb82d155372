package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/geolocate"
	"github.com/stuartshay/gobebop/internal/mapsurface"
	"github.com/stuartshay/gobebop/internal/navigation"
	"github.com/stuartshay/gobebop/internal/projector"
)

// CommandKind names a client-side instruction.
type CommandKind string

// Command kinds executed by the browser client.
const (
	CmdSetFilter        CommandKind = "map.set_filter"
	CmdSetPaint         CommandKind = "map.set_paint_property"
	CmdEaseTo           CommandKind = "map.ease_to"
	CmdFlyTo            CommandKind = "map.fly_to"
	CmdShowDetail       CommandKind = "view.show_detail"
	CmdHideDetail       CommandKind = "view.hide_detail"
	CmdSetOverlay       CommandKind = "view.set_overlay"
	CmdRestoreScroll    CommandKind = "view.restore_scroll"
	CmdRenderList       CommandKind = "view.render_list"
	CmdFilterIndicator  CommandKind = "view.filter_indicator"
	CmdGeolocateState   CommandKind = "view.geolocate_state"
	CmdTriggerGeolocate CommandKind = "device.trigger_geolocate"
)

// DefaultCommandCapacity bounds an undrained command log.
const DefaultCommandCapacity = 1024

// Command is one recorded instruction.
type Command struct {
	ID        string      `json:"id"`
	Kind      CommandKind `json:"kind"`
	Payload   interface{} `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// CommandLog buffers commands until the client drains them. When full, the
// oldest command is dropped.
type CommandLog struct {
	mu       sync.Mutex
	commands []Command
	capacity int
	dropped  int
}

// NewCommandLog creates a log holding at most capacity commands.
func NewCommandLog(capacity int) *CommandLog {
	if capacity <= 0 {
		capacity = DefaultCommandCapacity
	}
	return &CommandLog{capacity: capacity}
}

// Append records a command and returns its id.
func (l *CommandLog) Append(kind CommandKind, payload interface{}) string {
	cmd := Command{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.commands) >= l.capacity {
		l.commands = l.commands[1:]
		l.dropped++
		log.Warn().Int("dropped", l.dropped).Msg("Command log full, dropping oldest command")
	}
	l.commands = append(l.commands, cmd)
	return cmd.ID
}

// Drain returns and clears the pending commands, oldest first.
func (l *CommandLog) Drain() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.commands
	l.commands = nil
	if out == nil {
		out = []Command{}
	}
	return out
}

// Requeue puts undelivered commands back ahead of anything recorded since.
// The capacity bound still applies, dropping the oldest first.
func (l *CommandLog) Requeue(cmds []Command) {
	if len(cmds) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]Command, 0, len(cmds)+len(l.commands))
	merged = append(merged, cmds...)
	merged = append(merged, l.commands...)
	if over := len(merged) - l.capacity; over > 0 {
		merged = merged[over:]
		l.dropped += over
		log.Warn().Int("dropped", l.dropped).Msg("Command log full, dropping oldest command")
	}
	l.commands = merged
}

// Len is the number of pending commands.
func (l *CommandLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.commands)
}

// RemoteMap mirrors the browser map's state as reported by map events and
// turns map-surface calls into commands.
type RemoteMap struct {
	log         *CommandLog
	layers      map[string]bool
	loaded      bool
	styleLoaded bool
	zoom        float64
}

// NewRemoteMap creates a mirror of a map that has not loaded yet.
func NewRemoteMap(cmds *CommandLog, initialZoom float64) *RemoteMap {
	return &RemoteMap{log: cmds, layers: make(map[string]bool), zoom: initialZoom}
}

type filterPayload struct {
	Layer  string            `json:"layer"`
	Filter filter.Expression `json:"filter"`
}

type paintPayload struct {
	Layer    string      `json:"layer"`
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

// HasLayer implements mapsurface.Surface.
func (m *RemoteMap) HasLayer(id string) bool { return m.layers[id] }

// SetFilter implements mapsurface.Surface.
func (m *RemoteMap) SetFilter(layer string, expr filter.Expression) error {
	if !m.layers[layer] {
		return fmt.Errorf("layer %q does not exist", layer)
	}
	m.log.Append(CmdSetFilter, filterPayload{Layer: layer, Filter: expr})
	return nil
}

// SetPaintProperty implements mapsurface.Surface.
func (m *RemoteMap) SetPaintProperty(layer, property string, value interface{}) error {
	if !m.layers[layer] {
		return fmt.Errorf("layer %q does not exist", layer)
	}
	m.log.Append(CmdSetPaint, paintPayload{Layer: layer, Property: property, Value: value})
	return nil
}

// EaseTo implements mapsurface.Surface.
func (m *RemoteMap) EaseTo(cam mapsurface.Camera) error {
	m.log.Append(CmdEaseTo, cam)
	return nil
}

// FlyTo implements mapsurface.Surface.
func (m *RemoteMap) FlyTo(cam mapsurface.Camera) error {
	m.log.Append(CmdFlyTo, cam)
	return nil
}

// Zoom implements mapsurface.Surface.
func (m *RemoteMap) Zoom() float64 { return m.zoom }

// Loaded implements mapsurface.Surface.
func (m *RemoteMap) Loaded() bool { return m.loaded }

// StyleLoaded implements mapsurface.Surface.
func (m *RemoteMap) StyleLoaded() bool { return m.styleLoaded }

// Layers lists the layers currently present.
func (m *RemoteMap) Layers() []string {
	out := make([]string, 0, len(m.layers))
	for id, ok := range m.layers {
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// RemoteView turns renderer and overlay calls into commands.
type RemoteView struct {
	log *CommandLog
}

type overlayPayload struct {
	Overlay navigation.Overlay `json:"overlay"`
	Open    bool               `json:"open"`
}

type scrollPayload struct {
	Offset int `json:"offset"`
}

type indicatorPayload struct {
	Visible bool `json:"visible"`
	Count   int  `json:"count"`
}

// ShowDetail implements selection.Renderer.
func (v *RemoteView) ShowDetail(d projector.Detail) { v.log.Append(CmdShowDetail, d) }

// HideDetail implements selection.Renderer.
func (v *RemoteView) HideDetail() { v.log.Append(CmdHideDetail, nil) }

// SetOverlay implements navigation.Surfaces.
func (v *RemoteView) SetOverlay(o navigation.Overlay, open bool) {
	v.log.Append(CmdSetOverlay, overlayPayload{Overlay: o, Open: open})
}

// RestoreScroll implements navigation.Surfaces.
func (v *RemoteView) RestoreScroll(offset int) {
	v.log.Append(CmdRestoreScroll, scrollPayload{Offset: offset})
}

// RenderList replaces the list contents.
func (v *RemoteView) RenderList(view projector.ListView) { v.log.Append(CmdRenderList, view) }

// FilterIndicator shows the active filter count, hiding the badge at zero.
func (v *RemoteView) FilterIndicator(count int) {
	v.log.Append(CmdFilterIndicator, indicatorPayload{Visible: count > 0, Count: count})
}

// GeolocateState pushes the location affordance state.
func (v *RemoteView) GeolocateState(s geolocate.State) { v.log.Append(CmdGeolocateState, s) }

// TriggerGeolocate asks the device control to start or stop tracking.
func (v *RemoteView) TriggerGeolocate() { v.log.Append(CmdTriggerGeolocate, nil) }

// Package navigation sequences the overlay surfaces (detail sheet, list,
// filter drawer, feedback modal) and remembers where to return to when an
// overlay opened from the list is closed.
package navigation

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/location"
)

// Overlay is a full-panel UI surface.
type Overlay string

// Overlays.
const (
	Sheet    Overlay = "sheet"
	List     Overlay = "list"
	Drawer   Overlay = "drawer"
	Feedback Overlay = "feedback"
)

// Overlays lists every overlay in display order.
var Overlays = []Overlay{Sheet, List, Drawer, Feedback}

// Scheduler runs fn after d. Implementations must run fn on the same event
// loop that calls the coordinator.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// SheetController opens and closes the detail sheet content.
type SheetController interface {
	Open(r location.Record)
	Close()
}

// Surfaces shows and hides overlays on the client.
type Surfaces interface {
	SetOverlay(o Overlay, open bool)
	RestoreScroll(offset int)
}

// Lister rebuilds the list projection just before the list is shown.
type Lister interface {
	RefreshList()
}

// Delays between closing one overlay and opening the next.
type Delays struct {
	OpenFromList        time.Duration
	ReturnToList        time.Duration
	OpenFiltersFromList time.Duration
	ReturnFromDrawer    time.Duration
}

// DefaultDelays match the overlay close transitions.
func DefaultDelays() Delays {
	return Delays{
		OpenFromList:        150 * time.Millisecond,
		ReturnToList:        100 * time.Millisecond,
		OpenFiltersFromList: 100 * time.Millisecond,
		ReturnFromDrawer:    100 * time.Millisecond,
	}
}

// Coordinator is the overlay state machine. It is not safe for concurrent
// use; drive it from a single event loop.
type Coordinator struct {
	sheet    SheetController
	surfaces Surfaces
	lister   Lister
	sched    Scheduler
	memory   Memory
	delays   Delays

	open   map[Overlay]bool
	scroll int
}

// NewCoordinator creates a coordinator with every overlay closed.
func NewCoordinator(sheet SheetController, surfaces Surfaces, lister Lister, sched Scheduler, memory Memory, delays Delays) *Coordinator {
	return &Coordinator{
		sheet:    sheet,
		surfaces: surfaces,
		lister:   lister,
		sched:    sched,
		memory:   memory,
		delays:   delays,
		open:     make(map[Overlay]bool),
	}
}

// IsOpen reports whether o is shown.
func (c *Coordinator) IsOpen(o Overlay) bool {
	return c.open[o]
}

// OpenOverlays returns the open state of every overlay.
func (c *Coordinator) OpenOverlays() map[Overlay]bool {
	out := make(map[Overlay]bool, len(Overlays))
	for _, o := range Overlays {
		out[o] = c.open[o]
	}
	return out
}

// ScrollOffset is the last list scroll offset reported by the client.
func (c *Coordinator) ScrollOffset() int {
	return c.scroll
}

// SetScrollOffset records the client's current list scroll offset.
func (c *Coordinator) SetScrollOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	c.scroll = offset
}

// PendingReturn exposes the return marker, if any, without consuming it.
func (c *Coordinator) PendingReturn() (Marker, bool) {
	return c.memory.Peek()
}

// ToggleList opens the list (rebuilding it first) or closes it.
func (c *Coordinator) ToggleList() {
	if c.open[List] {
		c.set(List, false)
		return
	}
	c.showList()
}

// OpenSheet opens the detail sheet for a record picked on the map.
func (c *Coordinator) OpenSheet(r location.Record) {
	c.openSheet(r)
}

// OpenFromList remembers the list position, closes the list and opens the
// sheet once the list has finished closing.
func (c *Coordinator) OpenFromList(r location.Record) {
	c.memory.Put(Marker{Kind: ReturnToList, ScrollOffset: c.scroll})
	c.set(List, false)

	c.later(c.delays.OpenFromList, func() {
		c.openSheet(r)
	})
}

// CloseSheet closes the sheet and, when it was opened from the list,
// reopens the list at its previous scroll offset.
func (c *Coordinator) CloseSheet() {
	c.sheet.Close()
	c.set(Sheet, false)

	m, ok := c.memory.Take(ReturnToList)
	if !ok {
		return
	}
	log.Debug().Int("scroll_offset", m.ScrollOffset).Msg("Returning to list view")
	c.later(c.delays.ReturnToList, func() {
		c.reopenList(m.ScrollOffset)
	})
}

// OpenFiltersFromList remembers the list position, closes the list and
// opens the filter drawer.
func (c *Coordinator) OpenFiltersFromList() {
	c.memory.Put(Marker{Kind: ReturnToListFromFilters, ScrollOffset: c.scroll})
	c.set(List, false)

	c.later(c.delays.OpenFiltersFromList, func() {
		c.set(Drawer, true)
	})
}

// ToggleDrawer opens the drawer, or closes it via CloseDrawer.
func (c *Coordinator) ToggleDrawer() {
	if c.open[Drawer] {
		c.CloseDrawer()
		return
	}
	c.set(Drawer, true)
}

// CloseDrawer closes the drawer and returns to the list when the drawer was
// opened from it.
func (c *Coordinator) CloseDrawer() {
	c.set(Drawer, false)

	m, ok := c.memory.Take(ReturnToListFromFilters)
	if !ok {
		return
	}
	c.later(c.delays.ReturnFromDrawer, func() {
		c.reopenList(m.ScrollOffset)
	})
}

// ToggleFeedback shows or hides the feedback modal.
func (c *Coordinator) ToggleFeedback() {
	c.set(Feedback, !c.open[Feedback])
}

func (c *Coordinator) openSheet(r location.Record) {
	c.sheet.Open(r)
	c.set(Sheet, true)
}

func (c *Coordinator) showList() {
	c.lister.RefreshList()
	c.set(List, true)
}

func (c *Coordinator) reopenList(offset int) {
	c.showList()
	c.scroll = offset
	c.surfaces.RestoreScroll(offset)
}

func (c *Coordinator) set(o Overlay, open bool) {
	c.open[o] = open
	c.surfaces.SetOverlay(o, open)
}

// later runs fn after d. Scheduled steps are never cancelled.
func (c *Coordinator) later(d time.Duration, fn func()) {
	c.sched.After(d, fn)
}

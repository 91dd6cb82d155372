package httpapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/app"
	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/selection"
	"github.com/stuartshay/gobebop/internal/share"
)

// Map event types reported by the client.
const (
	MapEventLoad        = "load"
	MapEventStyleLoad   = "style.load"
	MapEventError       = "error"
	MapEventLayerAdd    = "layer.add"
	MapEventLayerRemove = "layer.remove"
	MapEventZoom        = "zoom"
	MapEventResize      = "resize"
)

// Geolocation event types reported by the client.
const (
	GeoEventToggle     = "toggle"
	GeoEventPosition   = "position"
	GeoEventEnd        = "end"
	GeoEventError      = "error"
	GeoEventPermission = "permission"
)

// uiResponse is returned by every UI mutation: the commands the client must
// execute now, and the resulting state.
type uiResponse struct {
	Commands []app.Command `json:"commands"`
	State    app.Snapshot  `json:"state"`
}

type mapEventRequest struct {
	Type    string  `json:"type"`
	Layer   string  `json:"layer"`
	Zoom    float64 `json:"zoom"`
	Message string  `json:"message"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

type featureClickRequest struct {
	Layer      string                 `json:"layer"`
	Latitude   float64                `json:"latitude"`
	Longitude  float64                `json:"longitude"`
	Properties map[string]interface{} `json:"properties"`
}

type filtersRequest struct {
	Filters []filter.Check `json:"filters"`
}

type scrollRequest struct {
	Offset int `json:"offset"`
}

type openRequest struct {
	ID string `json:"id"`
}

type geolocationRequest struct {
	Type       string  `json:"type"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	Permission string  `json:"permission"`
}

type sharedRequest struct {
	Location string `json:"location"`
}

// dispatch runs fn on the caller's session loop and responds with the
// drained commands and a snapshot.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, name string, fn func(*app.App) error) {
	sess, err := s.sessions.Session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var (
		resp  uiResponse
		opErr error
	)
	resp.Commands, err = sess.DoAndDrain(r.Context(), name, func(a *app.App) {
		opErr = fn(a)
		resp.State = a.Snapshot()
	})
	if err != nil {
		writeLoopError(w, err)
		return
	}

	switch {
	case opErr == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(opErr, app.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, opErr.Error())
	case errors.Is(opErr, location.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, opErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, opErr.Error())
	}
}

// uiAction adapts a no-argument App method to a handler.
func (s *Server) uiAction(name string, fn func(*app.App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, name, func(a *app.App) error {
			fn(a)
			return nil
		})
	}
}

func (s *Server) handleUIState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var snap app.Snapshot
	if err := sess.Do(r.Context(), "ui.state", func(a *app.App) { snap = a.Snapshot() }); err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleUICommands drains commands produced by delayed transitions.
func (s *Server) handleUICommands(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cmds, err := sess.DoAndDrain(r.Context(), "ui.commands", func(*app.App) {})
	if err != nil {
		writeLoopError(w, err)
		return
	}
	if cmds == nil {
		cmds = []app.Command{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": cmds})
}

func (s *Server) handleUIShare(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var (
		link  share.Link
		open  bool
		opErr error
	)
	if err := sess.Do(r.Context(), "ui.share", func(a *app.App) { link, open, opErr = a.ShareLink() }); err != nil {
		writeLoopError(w, err)
		return
	}
	switch {
	case opErr != nil:
		writeError(w, http.StatusInternalServerError, opErr.Error())
	case !open:
		writeError(w, http.StatusNotFound, "no location is open")
	default:
		writeJSON(w, http.StatusOK, link)
	}
}

func (s *Server) handleUIMapEvent(w http.ResponseWriter, r *http.Request) {
	var req mapEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fn func(*app.App)
	switch req.Type {
	case MapEventLoad:
		fn = (*app.App).MapLoaded
	case MapEventStyleLoad:
		fn = (*app.App).StyleLoaded
	case MapEventError:
		fn = func(a *app.App) { a.MapError(req.Message) }
	case MapEventLayerAdd, MapEventLayerRemove:
		if req.Layer == "" {
			writeError(w, http.StatusBadRequest, "layer is required")
			return
		}
		if req.Type == MapEventLayerAdd {
			fn = func(a *app.App) { a.LayerAdded(req.Layer) }
		} else {
			fn = func(a *app.App) { a.LayerRemoved(req.Layer) }
		}
	case MapEventZoom:
		fn = func(a *app.App) { a.ZoomChanged(req.Zoom) }
	case MapEventResize:
		fn = func(a *app.App) { a.SetViewport(selection.Viewport{Width: req.Width, Height: req.Height}) }
	default:
		writeError(w, http.StatusBadRequest, "unknown map event type "+req.Type)
		return
	}

	s.dispatch(w, r, "ui.map."+req.Type, func(a *app.App) error {
		fn(a)
		return nil
	})
}

func (s *Server) handleUIFeatureClick(w http.ResponseWriter, r *http.Request) {
	var req featureClickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	props := location.NormalizeProperties(req.Properties)
	pos := calculator.NewPoint(req.Latitude, req.Longitude)

	s.dispatch(w, r, "ui.features.click", func(a *app.App) error {
		a.ClickFeature(req.Layer, pos, props)
		return nil
	})
}

func (s *Server) handleUIFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.dispatch(w, r, "ui.filters", func(a *app.App) error {
		a.UpdateFilters(req.Filters)
		return nil
	})
}

func (s *Server) handleUIScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.dispatch(w, r, "ui.list.scroll", func(a *app.App) error {
		a.SetScrollOffset(req.Offset)
		return nil
	})
}

func (s *Server) handleUIOpenFromList(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dispatch(w, r, "ui.list.open", func(a *app.App) error {
		return a.OpenFromList(id)
	})
}

func (s *Server) handleUIOpenSheet(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	s.dispatch(w, r, "ui.sheet.open", func(a *app.App) error {
		return a.OpenByID(req.ID)
	})
}

func (s *Server) handleUIGeolocation(w http.ResponseWriter, r *http.Request) {
	var req geolocationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fn func(*app.App)
	switch req.Type {
	case GeoEventToggle:
		fn = (*app.App).ToggleGeolocation
	case GeoEventPosition:
		pos := calculator.NewPoint(req.Latitude, req.Longitude)
		fn = func(a *app.App) { a.PositionFound(pos) }
	case GeoEventEnd:
		fn = (*app.App).GeolocationEnded
	case GeoEventError:
		fn = func(a *app.App) { a.GeolocationFailed(req.Code, req.Message) }
	case GeoEventPermission:
		if req.Permission == "" {
			writeError(w, http.StatusBadRequest, "permission is required")
			return
		}
		fn = func(a *app.App) { a.PermissionChanged(req.Permission) }
	default:
		writeError(w, http.StatusBadRequest, "unknown geolocation event type "+req.Type)
		return
	}

	s.dispatch(w, r, "ui.geolocation."+req.Type, func(a *app.App) error {
		fn(a)
		return nil
	})
}

// handleUIShared starts opening a shared location. The location comes from
// the body or, failing that, the ?location= query of the page URL.
func (s *Server) handleUIShared(w http.ResponseWriter, r *http.Request) {
	var req sharedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Location == "" {
		req.Location, _ = share.ParseName(r.URL.RawQuery)
	}
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	log.Debug().Str("location", req.Location).Msg("Shared location requested")

	s.dispatch(w, r, "ui.shared", func(a *app.App) error {
		a.OpenShared(req.Location)
		return nil
	})
}

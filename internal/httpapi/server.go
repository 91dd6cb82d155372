// Package httpapi serves the JSON API: stateless list, nearby, filter and
// share endpoints over the loaded collection, plus per-browser UI sessions
// whose state changes are returned as client commands.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stuartshay/gobebop/internal/app"
	"github.com/stuartshay/gobebop/internal/errorreport"
	"github.com/stuartshay/gobebop/internal/filter"
	grpcserver "github.com/stuartshay/gobebop/internal/grpc"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/projector"
	"github.com/stuartshay/gobebop/internal/queue"
	"github.com/stuartshay/gobebop/internal/share"
	"github.com/stuartshay/gobebop/internal/tracing"
)

// DefaultNearbyRadius is used when radius_m is omitted.
const DefaultNearbyRadius = 1000.0

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// HealthChecker is a dependency that readiness depends on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type readinessCheck struct {
	name    string
	checker HealthChecker
}

// Server is the HTTP front of the service.
type Server struct {
	name     string
	store    *location.Store
	service  *grpcserver.Server
	sessions *Manager
	checks   []readinessCheck
}

// NewServer wires the HTTP API. service provides the stateless operations
// shared with the gRPC API.
func NewServer(name string, store *location.Store, service *grpcserver.Server, sessions *Manager) *Server {
	return &Server{name: name, store: store, service: service, sessions: sessions}
}

// AddReadinessCheck makes readiness depend on checker. Call it before the
// handler starts serving.
func (s *Server) AddReadinessCheck(name string, checker HealthChecker) {
	s.checks = append(s.checks, readinessCheck{name: name, checker: checker})
}

// Ready returns the number of loaded locations, or the reason the service
// cannot serve: location.ErrNotReady while loading, or a failed dependency.
func (s *Server) Ready(ctx context.Context) (int, error) {
	records, err := s.store.Records()
	if err != nil {
		return 0, err
	}
	for _, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.checker.HealthCheck(checkCtx)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return len(records), nil
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, traced(pattern, h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	route("GET /api/locations", s.handleLocations)
	route("GET /api/locations.geojson", s.handleGeoJSON)
	route("GET /api/locations/nearby", s.handleNearby)
	route("POST /api/filters", s.handleFilters)
	route("GET /api/share", s.handleShare)

	route("GET /api/ui/state", s.handleUIState)
	route("GET /api/ui/commands", s.handleUICommands)
	route("GET /api/ui/share", s.handleUIShare)
	route("POST /api/ui/map/events", s.handleUIMapEvent)
	route("POST /api/ui/features/click", s.handleUIFeatureClick)
	route("POST /api/ui/filters", s.handleUIFilters)
	route("POST /api/ui/filters/reset", s.uiAction("ui.filters.reset", (*app.App).ResetFilters))
	route("POST /api/ui/list/toggle", s.uiAction("ui.list.toggle", (*app.App).ToggleList))
	route("POST /api/ui/list/filters", s.uiAction("ui.list.filters", (*app.App).OpenFiltersFromList))
	route("POST /api/ui/list/scroll", s.handleUIScroll)
	route("POST /api/ui/list/items/{id}/open", s.handleUIOpenFromList)
	route("POST /api/ui/sheet/open", s.handleUIOpenSheet)
	route("POST /api/ui/sheet/close", s.uiAction("ui.sheet.close", (*app.App).CloseSheet))
	route("POST /api/ui/drawer/toggle", s.uiAction("ui.drawer.toggle", (*app.App).ToggleDrawer))
	route("POST /api/ui/drawer/close", s.uiAction("ui.drawer.close", (*app.App).CloseDrawer))
	route("POST /api/ui/feedback/toggle", s.uiAction("ui.feedback.toggle", (*app.App).ToggleFeedback))
	route("POST /api/ui/geolocation", s.handleUIGeolocation)
	route("POST /api/ui/shared", s.handleUIShared)

	return errorreport.Middleware(mux)
}

// traced wraps h in a server span continuing any propagated trace.
func traced(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracing.StartSpan(ctx, route,
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
		)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		var err error
		if rec.status >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(rec.status))
		}
		tracing.EndSpan(span, err)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": s.name})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	count, err := s.Ready(r.Context())
	switch {
	case errors.Is(err, location.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	case err != nil:
		log.Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "locations": count})
	}
}

// handleLocations serves the list projection. Filters are repeated
// filter=key:value parameters.
func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var req grpcserver.ListLocationsRequest
	for _, raw := range q["filter"] {
		key, value, ok := strings.Cut(raw, ":")
		if !ok || key == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter %q, want key:value", raw))
			return
		}
		req.Filters = append(req.Filters, filter.Check{Key: key, Value: value})
	}

	if q.Has("lat") || q.Has("lon") {
		lat, lon, err := parseLatLon(q.Get("lat"), q.Get("lon"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Latitude, req.Longitude = &lat, &lon
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = limit
	}

	resp, err := s.service.List(r.Context(), req)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGeoJSON serves the whole collection as the map's GeoJSON source.
func (s *Server) handleGeoJSON(w http.ResponseWriter, _ *http.Request) {
	records, err := s.store.Records()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		fc.Append(location.ToFeature(rec))
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write geojson")
	}
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := parseLatLon(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius := DefaultNearbyRadius
	if v := q.Get("radius_m"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			writeError(w, http.StatusBadRequest, "radius_m must be a positive number")
			return
		}
	}

	neighbours, err := s.store.Nearby(lat, lon, radius)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	entries := make([]projector.Entry, len(neighbours))
	for i, n := range neighbours {
		entries[i] = projector.Entry{Record: n.Record, DistanceKm: n.DistanceKm}
	}
	writeJSON(w, http.StatusOK, projector.BuildList(entries))
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var req grpcserver.BuildFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, grpcserver.Filter(req))
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	name, ok := share.ParseName(r.URL.RawQuery)
	if !ok {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	resp, err := s.service.Resolve(r.Context(), grpcserver.ResolveLocationRequest{Name: name})
	if err != nil {
		writeStatusError(w, err)
		return
	}
	if !resp.Found {
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLatLon(rawLat, rawLon string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid lat %q", rawLat)
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid lon %q", rawLon)
	}
	return lat, lon, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, location.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeStatusError maps a service status error to its HTTP equivalent.
func writeStatusError(w http.ResponseWriter, err error) {
	st, _ := status.FromError(err)
	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.Unavailable:
		code = http.StatusServiceUnavailable
	}
	writeError(w, code, st.Message())
}

// writeLoopError reports a failure to hand work to a session loop.
func writeLoopError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Package grpc implements the LocationService gRPC server: stateless list
// projections, filter expressions and shared-link resolution over the
// loaded venue collection.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/filter"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/projector"
	"github.com/stuartshay/gobebop/internal/share"
)

// Server implements LocationServiceServer
type Server struct {
	store    *location.Store
	fallback calculator.Point
	baseURL  string
}

// NewServer creates a new gRPC server instance
func NewServer(store *location.Store, fallback calculator.Point, baseURL string) *Server {
	return &Server{store: store, fallback: fallback, baseURL: baseURL}
}

// ListLocationsRequest is the ListLocations request document.
type ListLocationsRequest struct {
	Filters   []filter.Check `json:"filters"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	Limit     int            `json:"limit"`
}

// ListLocationsResponse is the ListLocations response document.
type ListLocationsResponse struct {
	projector.ListView
	Total       int                        `json:"total"`
	Metrics     calculator.DistanceMetrics `json:"metrics"`
	GeneratedAt string                     `json:"generated_at"`
}

// BuildFilterRequest is the BuildFilter request document.
type BuildFilterRequest struct {
	Filters []filter.Check `json:"filters"`
}

// BuildFilterResponse is the BuildFilter response document.
type BuildFilterResponse struct {
	Selection   filter.Selection  `json:"selection"`
	Expression  filter.Expression `json:"expression"`
	ActiveCount int               `json:"active_count"`
}

// ResolveLocationRequest names a record by display name or identifier.
type ResolveLocationRequest struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ResolveLocationResponse is the ResolveLocation response document.
type ResolveLocationResponse struct {
	Found  bool              `json:"found"`
	Detail *projector.Detail `json:"detail,omitempty"`
	Share  *share.Link       `json:"share,omitempty"`
}

// ListLocations returns the filtered, distance-sorted projection
func (s *Server) ListLocations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListLocationsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return encode(resp)
}

// List is the typed form of ListLocations.
func (s *Server) List(ctx context.Context, req ListLocationsRequest) (ListLocationsResponse, error) {
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return ListLocationsResponse{}, status.Error(codes.InvalidArgument, "latitude and longitude must be given together")
	}
	if req.Limit < 0 {
		return ListLocationsResponse{}, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	records, err := s.store.Records()
	if err != nil {
		return ListLocationsResponse{}, storeError(err)
	}

	var device *calculator.Point
	if req.Latitude != nil {
		p := calculator.NewPoint(*req.Latitude, *req.Longitude)
		device = &p
	}
	ref := projector.ReferencePoint(device, s.fallback)
	entries := projector.Project(records, filter.Group(req.Filters), ref)

	resp := ListLocationsResponse{
		Total:       len(entries),
		Metrics:     projector.Metrics(ref, entries),
		GeneratedAt: timestamppb.Now().AsTime().Format(time.RFC3339),
	}
	if req.Limit > 0 && req.Limit < len(entries) {
		entries = entries[:req.Limit]
	}
	resp.ListView = projector.BuildList(entries)
	resp.CountText = projector.CountText(resp.Total)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("gobebop.locations.total", resp.Total),
		attribute.Int("gobebop.filters.active", filter.ActiveCount(req.Filters)),
	)
	log.Debug().Int("total", resp.Total).Int("returned", len(entries)).Msg("Listed locations")

	return resp, nil
}

// BuildFilter groups filter checks and returns the map-surface expression
func (s *Server) BuildFilter(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BuildFilterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return encode(Filter(req))
}

// Filter is the typed form of BuildFilter.
func Filter(req BuildFilterRequest) BuildFilterResponse {
	sel := filter.Group(req.Filters)
	return BuildFilterResponse{
		Selection:   sel,
		Expression:  sel.Expression(),
		ActiveCount: filter.ActiveCount(req.Filters),
	}
}

// ResolveLocation finds a record for a shared link or identifier. A miss is
// reported as found=false rather than an error.
func (s *Server) ResolveLocation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResolveLocationRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return encode(resp)
}

// Resolve is the typed form of ResolveLocation.
func (s *Server) Resolve(ctx context.Context, req ResolveLocationRequest) (ResolveLocationResponse, error) {
	if req.Name == "" && req.ID == "" {
		return ResolveLocationResponse{}, status.Error(codes.InvalidArgument, "name or id is required")
	}

	var (
		r   location.Record
		ok  bool
		err error
	)
	if req.ID != "" {
		r, ok, err = s.store.FindByID(req.ID)
	} else {
		r, ok, err = s.store.FindByName(req.Name)
	}
	if err != nil {
		return ResolveLocationResponse{}, storeError(err)
	}
	if !ok {
		log.Warn().Str("name", req.Name).Str("id", req.ID).Msg("Shared location not found")
		return ResolveLocationResponse{Found: false}, nil
	}

	detail := projector.BuildDetail(r, func(name string) (location.Record, bool) {
		rec, found, _ := s.store.FindByName(name)
		return rec, found
	})
	link, err := share.NewLink(s.baseURL, r)
	if err != nil {
		return ResolveLocationResponse{}, status.Error(codes.Internal, err.Error())
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("gobebop.location.id", r.ID()))

	return ResolveLocationResponse{Found: true, Detail: &detail, Share: &link}, nil
}

func storeError(err error) error {
	if errors.Is(err, location.ErrNotReady) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// decode maps a Struct onto a typed request through its JSON form.
func decode(in *structpb.Struct, v interface{}) error {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

// encode maps a typed response onto a Struct through its JSON form.
func encode(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

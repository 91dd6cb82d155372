package grpc

import (
	"context"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/location"
)

var center = calculator.NewPoint(52.3676, 4.9041)

func northOf(km float64) calculator.Point {
	return calculator.NewPoint(center.Lat()+km/(calculator.EarthRadiusKM*math.Pi/180), center.Lon())
}

func testRecords() []location.Record {
	return []location.Record{
		location.NewRecord(northOf(12.0), map[string]string{
			location.KeyID: "far", location.KeyName: "Far Farm", location.KeyAgeSmall: "TRUE",
		}),
		location.NewRecord(northOf(0.2), map[string]string{
			location.KeyID: "near", location.KeyName: "Near Park", location.KeyIndoorOutdoor: "Mixed",
		}),
		location.NewRecord(northOf(1.3), map[string]string{
			location.KeyID: "mid", location.KeyNameEn: "Mid Museum", location.KeyName: "Midden Museum",
			location.KeyAgeSmall: "TRUE", location.KeyIndoorOutdoor: "Indoor",
		}),
	}
}

// setupTestServer starts the service on an in-memory listener
func setupTestServer(t *testing.T, store *location.Store) (*LocationServiceClient, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterLocationServiceServer(srv, NewServer(store, center, "https://gobebop.com/"))
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewLocationServiceClient(conn), conn
}

func readyStore() *location.Store {
	s := location.NewStore()
	s.Set(testRecords())
	return s
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func itemNames(t *testing.T, resp *structpb.Struct) []string {
	t.Helper()
	var names []string
	for _, v := range resp.Fields["items"].GetListValue().GetValues() {
		names = append(names, v.GetStructValue().Fields["name"].GetStringValue())
	}
	return names
}

func TestListLocations(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	tests := []struct {
		name      string
		request   map[string]interface{}
		wantNames []string
		wantCount string
	}{
		{
			name:      "no filters sorts by distance from fallback centre",
			request:   map[string]interface{}{},
			wantNames: []string{"Near Park", "Mid Museum", "Far Farm"},
			wantCount: "3 locations",
		},
		{
			name: "age filter",
			request: map[string]interface{}{
				"filters": []interface{}{map[string]interface{}{"filter": "age_small", "value": "TRUE"}},
			},
			wantNames: []string{"Mid Museum", "Far Farm"},
			wantCount: "2 locations",
		},
		{
			name: "outdoor implies mixed",
			request: map[string]interface{}{
				"filters": []interface{}{map[string]interface{}{"filter": "indoor_outdoor", "value": "Outdoor"}},
			},
			wantNames: []string{"Near Park"},
			wantCount: "1 location",
		},
		{
			name: "device position changes the order",
			request: map[string]interface{}{
				"latitude":  northOf(12.0).Lat(),
				"longitude": northOf(12.0).Lon(),
			},
			wantNames: []string{"Far Farm", "Mid Museum", "Near Park"},
			wantCount: "3 locations",
		},
		{
			name:      "limit keeps the total count",
			request:   map[string]interface{}{"limit": 1},
			wantNames: []string{"Near Park"},
			wantCount: "3 locations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.ListLocations(context.Background(), mustStruct(t, tt.request))
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, itemNames(t, resp))
			assert.Equal(t, tt.wantCount, resp.Fields["count_text"].GetStringValue())
		})
	}
}

func TestListLocations_DistanceText(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	resp, err := client.ListLocations(context.Background(), mustStruct(t, map[string]interface{}{}))
	require.NoError(t, err)

	var texts []string
	for _, v := range resp.Fields["items"].GetListValue().GetValues() {
		texts = append(texts, v.GetStructValue().Fields["distance_text"].GetStringValue())
	}
	assert.Equal(t, []string{"200m away", "1.3km away", "12.0km away"}, texts)
	assert.Equal(t, float64(3), resp.Fields["metrics"].GetStructValue().Fields["total_locations"].GetNumberValue())
	assert.NotEmpty(t, resp.Fields["generated_at"].GetStringValue())
}

func TestListLocations_InvalidArguments(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	for _, req := range []map[string]interface{}{
		{"latitude": 52.0},
		{"limit": -1},
		{"filters": "age_small"},
	} {
		_, err := client.ListLocations(context.Background(), mustStruct(t, req))
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "%v", req)
	}
}

func TestListLocations_NotReady(t *testing.T) {
	client, _ := setupTestServer(t, location.NewStore())

	_, err := client.ListLocations(context.Background(), mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestBuildFilter(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	resp, err := client.BuildFilter(context.Background(), mustStruct(t, map[string]interface{}{
		"filters": []interface{}{
			map[string]interface{}{"filter": "indoor_outdoor", "value": "Indoor"},
			map[string]interface{}{"filter": "age_small", "value": "TRUE"},
		},
	}))
	require.NoError(t, err)

	got := resp.AsMap()
	assert.Equal(t, float64(2), got["active_count"])
	assert.Equal(t, []interface{}{"Indoor", "Mixed"}, got["selection"].(map[string]interface{})["indoor_outdoor"])
	assert.Equal(t, []interface{}{
		"all",
		[]interface{}{"==", []interface{}{"get", "age_small"}, "TRUE"},
		[]interface{}{"any",
			[]interface{}{"==", []interface{}{"get", "indoor_outdoor"}, "Indoor"},
			[]interface{}{"==", []interface{}{"get", "indoor_outdoor"}, "Mixed"},
		},
	}, got["expression"])
}

func TestBuildFilter_Empty(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	resp, err := client.BuildFilter(context.Background(), mustStruct(t, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"all"}, resp.AsMap()["expression"])
}

func TestResolveLocation(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	resp, err := client.ResolveLocation(context.Background(), mustStruct(t, map[string]interface{}{"name": "Mid Museum"}))
	require.NoError(t, err)
	got := resp.AsMap()
	require.Equal(t, true, got["found"])
	assert.Equal(t, "Mid Museum", got["detail"].(map[string]interface{})["name"])
	assert.Equal(t, "https://gobebop.com/?location=Mid%20Museum", got["share"].(map[string]interface{})["url"])

	resp, err = client.ResolveLocation(context.Background(), mustStruct(t, map[string]interface{}{"id": "near"}))
	require.NoError(t, err)
	assert.Equal(t, "Near Park", resp.AsMap()["detail"].(map[string]interface{})["name"])
}

func TestResolveLocation_Miss(t *testing.T) {
	client, _ := setupTestServer(t, readyStore())

	// Name is shadowed by name_en, so it does not resolve
	resp, err := client.ResolveLocation(context.Background(), mustStruct(t, map[string]interface{}{"name": "Midden Museum"}))
	require.NoError(t, err)
	assert.Equal(t, false, resp.AsMap()["found"])

	_, err = client.ResolveLocation(context.Background(), mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthService(t *testing.T) {
	_, conn := setupTestServer(t, readyStore())

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

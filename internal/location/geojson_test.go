package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [4.9041, 52.3676]},
      "properties": {"name_en": "Artis Zoo", "age_small": "TRUE", "indoor_outdoor": "Outdoor", "rating": 4.5, "toilet": true, "website": null}
    },
    {
      "type": "Feature",
      "id": 42,
      "geometry": {"type": "Point", "coordinates": [4.8686, 52.3580]},
      "properties": {"Name": "Vondelpark Speeltuin"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[4.0, 52.0], [4.1, 52.1]]},
      "properties": {"Name": "Route"}
    }
  ]
}`

func TestParseFeatureCollection(t *testing.T) {
	records, err := ParseFeatureCollection([]byte(sampleCollection))
	require.NoError(t, err)
	require.Len(t, records, 2, "non-point features are skipped")

	zoo := records[0]
	assert.Equal(t, "Artis Zoo", zoo.Name())
	assert.Equal(t, 4.9041, zoo.Position.Lon())
	assert.Equal(t, 52.3676, zoo.Position.Lat())
	assert.True(t, zoo.HasFlag(KeyAgeSmall))
	assert.Equal(t, "4.5", zoo.Get("rating"))
	assert.Equal(t, "TRUE", zoo.Get(KeyToilet))
	_, hasWebsite := zoo.Value(KeyWebsite)
	assert.False(t, hasWebsite, "null properties are dropped")

	park := records[1]
	assert.Equal(t, "42", park.ID(), "feature id fills in a missing id property")
	assert.Equal(t, "Vondelpark Speeltuin", park.DisplayName())
}

func TestParseFeatureCollection_Invalid(t *testing.T) {
	_, err := ParseFeatureCollection([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestToFeature_RoundTripsProperties(t *testing.T) {
	records, err := ParseFeatureCollection([]byte(sampleCollection))
	require.NoError(t, err)

	f := ToFeature(records[0])
	back, ok := FromFeature(f)
	require.True(t, ok)
	assert.Equal(t, records[0].Properties(), back.Properties())
	assert.Equal(t, records[0].Position, back.Position)
}

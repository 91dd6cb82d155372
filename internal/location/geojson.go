package location

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseFeatureCollection decodes a GeoJSON feature collection into records,
// preserving feature order. Features without a point geometry are skipped.
func ParseFeatureCollection(data []byte) ([]Record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	records := make([]Record, 0, len(fc.Features))
	for _, f := range fc.Features {
		rec, ok := FromFeature(f)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FromFeature converts a single GeoJSON feature. The feature id is used as the
// id property when the properties do not carry one.
func FromFeature(f *geojson.Feature) (Record, bool) {
	if f == nil || f.Geometry == nil {
		return Record{}, false
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Record{}, false
	}

	props := NormalizeProperties(f.Properties)
	if _, ok := props[KeyID]; !ok && f.ID != nil {
		if s, ok := stringify(f.ID); ok {
			props[KeyID] = s
		}
	}

	return NewRecord(pt, props), true
}

// ToFeature is the inverse of FromFeature, used when serving records back to clients.
func ToFeature(r Record) *geojson.Feature {
	f := geojson.NewFeature(r.Position)
	for k, v := range r.properties {
		f.Properties[k] = v
	}
	return f
}

// NormalizeProperties converts loosely typed attribute values, as decoded
// from JSON, to the string form records carry.
func NormalizeProperties(in map[string]interface{}) map[string]string {
	props := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := stringify(v); ok {
			props[k] = s
		}
	}
	return props
}

// stringify normalises a property value. Booleans become TRUE/FALSE to match
// the string flags used by the data set; null is dropped.
func stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		if t {
			return FlagTrue, true
		}
		return "FALSE", true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// Package location owns the venue collection: the record model with its
// property fallback rules, the one-shot loader and the readiness-aware store.
package location

import (
	"github.com/stuartshay/gobebop/internal/calculator"
)

// Property keys read from the feature properties.
const (
	KeyID                = "id"
	KeyNameEn            = "name_en"
	KeyName              = "Name"
	KeySecondaryCategory = "secondary_category"
	KeyPrimaryCategory   = "primary_category"
	KeyCategory          = "category"
	KeyDescription       = "description"
	KeyIconURL           = "icon_url"
	KeyAgeSmall          = "age_small"
	KeyAgeMedium         = "age_medium"
	KeyAgeLarge          = "age_large"
	KeyIndoorOutdoor     = "indoor_outdoor"
	KeyToilet            = "toilet"
	KeyChangingTable     = "changing_table"
	KeyWebsite           = "website"
	KeyGoogleMaps        = "google_maps"
	KeySeasonalMonths    = "seasonal_months"
)

// Weather values of the indoor_outdoor property.
const (
	Indoor  = "Indoor"
	Outdoor = "Outdoor"
	Mixed   = "Mixed"
)

// FlagTrue is the literal string used by boolean-valued properties.
const FlagTrue = "TRUE"

// Ordered fallbacks for the logical attributes that several property keys can carry.
var (
	identifierKeys  = []string{KeyID, KeyNameEn, KeyName}
	displayNameKeys = []string{KeyNameEn, KeyName}
	categoryKeys    = []string{KeySecondaryCategory, KeyPrimaryCategory, KeyCategory}
)

// IdentifierKeys returns the property keys an identifier is matched against,
// in order of preference.
func IdentifierKeys() []string {
	return append([]string(nil), identifierKeys...)
}

// Record is one venue. It is immutable once built; WithLayer returns a copy.
type Record struct {
	Position calculator.Point
	// Layer names the rendered map layer the record was picked from. It is
	// empty for records that come from the collection or the list view.
	Layer string

	properties map[string]string
}

// NewRecord builds a record, copying props.
func NewRecord(pos calculator.Point, props map[string]string) Record {
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return Record{Position: pos, properties: cp}
}

// WithLayer returns a copy of r associated with a rendered map layer.
func (r Record) WithLayer(layer string) Record {
	r.Layer = layer
	return r
}

// Value returns the raw property value for key.
func (r Record) Value(key string) (string, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// Get returns the property value for key, or "" when absent.
func (r Record) Get(key string) string {
	return r.properties[key]
}

// Properties returns a copy of the property map.
func (r Record) Properties() map[string]string {
	cp := make(map[string]string, len(r.properties))
	for k, v := range r.properties {
		cp[k] = v
	}
	return cp
}

// ID resolves the identifier: id, then name_en, then Name.
func (r Record) ID() string {
	return r.first(identifierKeys, "")
}

// Name resolves the shareable name: name_en, then Name. Empty when neither is set.
func (r Record) Name() string {
	return r.first(displayNameKeys, "")
}

// DisplayName is Name with a placeholder for unnamed venues.
func (r Record) DisplayName() string {
	return r.first(displayNameKeys, "No Name")
}

// Category resolves secondary_category, then primary_category, then category.
func (r Record) Category() string {
	return r.first(categoryKeys, "N/A")
}

// HasFlag reports whether a boolean-string property is literally TRUE.
func (r Record) HasFlag(key string) bool {
	return r.properties[key] == FlagTrue
}

func (r Record) first(keys []string, fallback string) string {
	for _, k := range keys {
		if v := r.properties[k]; v != "" {
			return v
		}
	}
	return fallback
}

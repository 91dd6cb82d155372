package projector

import (
	"fmt"

	"github.com/stuartshay/gobebop/internal/location"
)

const listDescriptionLimit = 100

var listAgeTags = []struct {
	key   string
	label string
}{
	{location.KeyAgeSmall, "👶 Babies"},
	{location.KeyAgeMedium, "👦 Toddlers"},
	{location.KeyAgeLarge, "👧 Big Kids"},
}

var weatherLabels = map[string]string{
	location.Indoor:  "☔ Indoor",
	location.Outdoor: "☀️ Outdoor",
	location.Mixed:   "☀️☔ Mixed Indoor/Outdoor",
}

// ListItem is the renderable summary of one list entry.
type ListItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description,omitempty"`
	IconURL      string   `json:"icon_url,omitempty"`
	AgeTags      []string `json:"age_tags,omitempty"`
	Weather      string   `json:"weather,omitempty"`
	DistanceKm   float64  `json:"distance_km"`
	DistanceText string   `json:"distance_text"`
	Longitude    float64  `json:"longitude"`
	Latitude     float64  `json:"latitude"`
}

// ListView is the full list as rendered, including the header count.
type ListView struct {
	Items     []ListItem `json:"items"`
	CountText string     `json:"count_text"`
	// Empty asks the renderer to show the "no matches, reset filters" prompt.
	Empty bool `json:"empty"`
}

// BuildList renders a projection.
func BuildList(entries []Entry) ListView {
	view := ListView{
		Items:     make([]ListItem, 0, len(entries)),
		CountText: CountText(len(entries)),
		Empty:     len(entries) == 0,
	}
	for _, e := range entries {
		view.Items = append(view.Items, BuildListItem(e))
	}
	return view
}

// BuildListItem renders one entry.
func BuildListItem(e Entry) ListItem {
	r := e.Record

	var ages []string
	for _, tag := range listAgeTags {
		if r.HasFlag(tag.key) {
			ages = append(ages, tag.label)
		}
	}

	return ListItem{
		ID:           r.ID(),
		Name:         r.DisplayName(),
		Category:     r.Category(),
		Description:  truncateChars(r.Get(location.KeyDescription), listDescriptionLimit),
		IconURL:      r.Get(location.KeyIconURL),
		AgeTags:      ages,
		Weather:      weatherLabels[r.Get(location.KeyIndoorOutdoor)],
		DistanceKm:   e.DistanceKm,
		DistanceText: e.DistanceText(),
		Longitude:    r.Position.Lon(),
		Latitude:     r.Position.Lat(),
	}
}

// CountText renders the list header count.
func CountText(n int) string {
	if n == 1 {
		return "1 location"
	}
	return fmt.Sprintf("%d locations", n)
}

func truncateChars(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

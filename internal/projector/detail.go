package projector

import (
	"regexp"
	"strings"

	"github.com/stuartshay/gobebop/internal/location"
)

// DescriptionWordLimit is the number of words shown before "See more".
const DescriptionWordLimit = 50

var detailAgeLabels = []struct {
	key   string
	label string
}{
	{location.KeyAgeSmall, "👶 Babies (0-2)"},
	{location.KeyAgeMedium, "👦 Toddlers (3-6)"},
	{location.KeyAgeLarge, "👧 Big Kids (7-12)"},
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// Detail is the content of the detail sheet for one record.
type Detail struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Truncated        bool     `json:"truncated"`
	IconURL          string   `json:"icon_url,omitempty"`
	Ages             []string `json:"ages,omitempty"`
	Weather          string   `json:"weather,omitempty"`
	SeasonalInfo     string   `json:"seasonal_info,omitempty"`
	Website          string   `json:"website,omitempty"`
	GoogleMaps       string   `json:"google_maps,omitempty"`
	Toilet           bool     `json:"toilet"`
	ChangingTable    bool     `json:"changing_table"`
	Longitude        float64  `json:"longitude"`
	Latitude         float64  `json:"latitude"`
}

// IconLookup finds a stored record by display name; used to recover an icon
// for features the map surface hands back without one.
type IconLookup func(name string) (location.Record, bool)

// BuildDetail renders the detail sheet for r.
func BuildDetail(r location.Record, lookup IconLookup) Detail {
	name := r.DisplayName()
	desc := r.Get(location.KeyDescription)
	short, truncated := truncateWords(desc, DescriptionWordLimit)

	icon := r.Get(location.KeyIconURL)
	if icon == "" && lookup != nil {
		if match, ok := lookup(name); ok {
			icon = match.Get(location.KeyIconURL)
		}
	}

	var ages []string
	for _, a := range detailAgeLabels {
		if r.HasFlag(a.key) {
			ages = append(ages, a.label)
		}
	}

	var weather string
	if v := r.Get(location.KeyIndoorOutdoor); v != "" {
		weather = weatherLabels[v]
		if weather == "" {
			weather = weatherLabels[location.Mixed]
		}
	}

	var seasonal string
	if months := strings.TrimSpace(r.Get(location.KeySeasonalMonths)); months != "" {
		seasonal = "Open seasonally from " + months
	}

	return Detail{
		ID:               r.ID(),
		Name:             name,
		Category:         r.Category(),
		Description:      desc,
		ShortDescription: short,
		Truncated:        truncated,
		IconURL:          icon,
		Ages:             ages,
		Weather:          weather,
		SeasonalInfo:     seasonal,
		Website:          WebsiteHref(r.Get(location.KeyWebsite)),
		GoogleMaps:       strings.TrimSpace(r.Get(location.KeyGoogleMaps)),
		Toilet:           r.HasFlag(location.KeyToilet),
		ChangingTable:    r.HasFlag(location.KeyChangingTable),
		Longitude:        r.Position.Lon(),
		Latitude:         r.Position.Lat(),
	}
}

// WebsiteHref trims a website value and prefixes https:// when it has no scheme.
func WebsiteHref(raw string) string {
	site := strings.TrimSpace(raw)
	if site == "" || schemePattern.MatchString(site) {
		return site
	}
	return "https://" + site
}

func truncateWords(s string, limit int) (string, bool) {
	if s == "" {
		return "", false
	}
	words := strings.Split(s, " ")
	if len(words) <= limit {
		return s, false
	}
	return strings.Join(words[:limit], " ") + "...", true
}

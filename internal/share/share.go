// Package share builds and parses deep links of the form
// <base>?location=<display name>.
package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/stuartshay/gobebop/internal/location"
)

// QueryParam carries the shared location's display name.
const QueryParam = "location"

const (
	appName         = "GoBebop"
	defaultLinkName = "Location"
)

// Link is the payload handed to the client's share sheet or clipboard.
type Link struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// BuildURL returns base with its query and fragment replaced by the
// location parameter.
func BuildURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}
	u.RawQuery = QueryParam + "=" + escape(name)
	u.Fragment = ""
	return u.String(), nil
}

// NewLink builds the share payload for r.
func NewLink(base string, r location.Record) (Link, error) {
	name := r.Name()
	if name == "" {
		name = defaultLinkName
	}
	u, err := BuildURL(base, name)
	if err != nil {
		return Link{}, err
	}
	return Link{
		Title: fmt.Sprintf("%s - %s", name, appName),
		Text:  fmt.Sprintf("Check out %s on %s!", name, appName),
		URL:   u,
	}, nil
}

// ParseName extracts the shared location name from a query string.
func ParseName(rawQuery string) (string, bool) {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return "", false
	}
	name := values.Get(QueryParam)
	return name, name != ""
}

// escape percent-encodes like a browser's encodeURIComponent, so spaces
// become %20 rather than +.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

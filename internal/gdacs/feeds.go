// Package gdacs fetches the GDACS disaster feeds and normalizes their
// events into the application incident schema.
package gdacs

// DefaultFeed is served when the caller names no feed or an unknown one.
const DefaultFeed = "all24h"

// Source tags every response envelope built from these feeds.
const Source = "GDACS"

var feedURLs = map[string]string{
	"all24h":      "https://www.gdacs.org/xml/rss_24h.xml",
	"allWeek":     "https://www.gdacs.org/xml/rss_7d.xml",
	"earthquakes": "https://www.gdacs.org/xml/rss_eq_24h.xml",
	"cyclones":    "https://www.gdacs.org/xml/rss_tc_24h.xml",
	"floods":      "https://www.gdacs.org/xml/rss_fl_24h.xml",
}

// Resolve maps a caller-supplied feed key to its upstream URL. Unknown
// or empty keys fall back to the 24-hour all-events feed. The canonical
// key is returned so callers can cache under it.
func Resolve(key string) (url, canonical string) {
	if u, ok := feedURLs[key]; ok {
		return u, key
	}
	return feedURLs[DefaultFeed], DefaultFeed
}

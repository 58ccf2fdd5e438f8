package gdacs

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"crisisrelay/internal/model"
)

// Normalize maps every item in feed to an incident. A single bad item
// is logged and skipped; it never aborts the rest of the feed.
func Normalize(log *slog.Logger, feed *gofeed.Feed, now time.Time) []model.Incident {
	incidents := make([]model.Incident, 0, len(feed.Items))
	for i, item := range feed.Items {
		raw, err := extractEvent(log, item)
		if err != nil {
			log.Warn("skipping feed item", "index", i, "error", err)
			continue
		}
		incidents = append(incidents, classify(raw, now))
	}
	return incidents
}

// extractEvent pulls the fields of one feed item, applying the default
// rules: missing alert level means Green, missing event type falls back
// to the item's category, an unparseable geo point lands at (0,0).
func extractEvent(log *slog.Logger, item *gofeed.Item) (model.RawEvent, error) {
	if item == nil {
		return model.RawEvent{}, fmt.Errorf("nil item")
	}
	if item.Link == "" && item.Title == "" {
		return model.RawEvent{}, fmt.Errorf("item has neither link nor title")
	}

	raw := model.RawEvent{
		Title:       strings.TrimSpace(item.Title),
		Description: strings.TrimSpace(item.Description),
		Link:        strings.TrimSpace(item.Link),
		Published:   item.PublishedParsed,
	}
	if len(item.Categories) > 0 {
		raw.Category = strings.TrimSpace(item.Categories[0])
	}

	raw.AlertLevel = extValue(item, "gdacs", "alertlevel")
	if raw.AlertLevel == "" {
		raw.AlertLevel = "Green"
	}

	raw.EventType = extValue(item, "gdacs", "eventtype")
	if raw.EventType == "" {
		raw.EventType = raw.Category
	}

	raw.Country = extValue(item, "gdacs", "country")
	raw.Population = extPopulation(item)

	if point := extValue(item, "georss", "point"); point != "" {
		lat, lng, err := parsePoint(point)
		if err != nil {
			// Known accuracy limitation: the item survives at (0,0).
			log.Warn("unparseable geo point", "point", point, "link", raw.Link)
		}
		raw.Lat, raw.Lng = lat, lng
	}

	return raw, nil
}

// extValue returns the first value of a namespaced extension tag, or
// the empty string when the tag is absent.
func extValue(item *gofeed.Item, namespace, name string) string {
	exts, ok := item.Extensions[namespace]
	if !ok {
		return ""
	}
	vals, ok := exts[name]
	if !ok || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0].Value)
}

// extPopulation reads the gdacs population extension. GDACS puts the
// count in a value attribute and a human-readable string in the text,
// so the attribute wins when both are present.
func extPopulation(item *gofeed.Item) int64 {
	exts, ok := item.Extensions["gdacs"]
	if !ok {
		return 0
	}
	vals, ok := exts["population"]
	if !ok || len(vals) == 0 {
		return 0
	}
	if v, ok := vals[0].Attrs["value"]; ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(vals[0].Value), 10, 64); err == nil {
		return n
	}
	return 0
}

// parsePoint splits a georss point into latitude and longitude. On any
// malformation both coordinates default to zero.
func parsePoint(s string) (lat, lng float64, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected 2 coordinates, got %d", len(fields))
	}
	lat, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude: %w", err)
	}
	return lat, lng, nil
}

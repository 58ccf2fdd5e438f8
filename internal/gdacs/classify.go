package gdacs

import (
	"encoding/base64"
	"strings"
	"time"

	"crisisrelay/internal/model"
)

const idLength = 12

// categoryRule maps a provider event-type keyword to an application
// category. Rules are checked in order; the first match wins.
type categoryRule struct {
	keywords []string
	category model.Category
}

var categoryRules = []categoryRule{
	{[]string{"earthquake", "eq"}, model.CategoryInfrastructure},
	{[]string{"flood", "fl"}, model.CategoryWater},
	{[]string{"cyclone", "tc", "hurricane", "typhoon"}, model.CategoryEvacuation},
	{[]string{"volcano", "vo"}, model.CategoryEvacuation},
	{[]string{"drought", "dr"}, model.CategoryWater},
	{[]string{"wildfire", "wf"}, model.CategoryEvacuation},
}

// classify turns one extracted event into an incident. Everything
// derived from the alert level uses the same three-tier Red > Orange >
// Green ladder.
func classify(raw model.RawEvent, now time.Time) model.Incident {
	status := statusFor(raw.AlertLevel)

	ts := now
	if raw.Published != nil {
		ts = *raw.Published
	}

	return model.Incident{
		ID:          incidentID(raw.Link, raw.Title),
		Title:       raw.Title,
		Description: raw.Description,
		Location: model.Location{
			Lat:     raw.Lat,
			Lng:     raw.Lng,
			Country: raw.Country,
		},
		Status:   status,
		Severity: severityFor(raw.AlertLevel),
		Category: categoryFor(raw.EventType),
		Source: model.Source{
			Type:           "direct",
			AuthorityScore: authorityScoreFor(raw.AlertLevel),
		},
		Verification: model.Verification{
			Score:     verificationScoreFor(raw.AlertLevel),
			Status:    status,
			Checks:    []string{},
			Timestamp: now,
		},
		Timestamp:          ts,
		UpdatedAt:          now,
		PeerConfirmations:  peerConfirmationsFor(raw.AlertLevel),
		ExternalLink:       raw.Link,
		AlertLevel:         raw.AlertLevel,
		AffectedPopulation: raw.Population,
	}
}

func severityFor(alert string) model.Severity {
	switch strings.ToLower(alert) {
	case "red":
		return model.SeverityCritical
	case "orange":
		return model.SeverityHigh
	case "green":
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func statusFor(alert string) model.IncidentStatus {
	if strings.EqualFold(alert, "red") {
		return model.IncidentVerified
	}
	return model.IncidentUnconfirmed
}

func authorityScoreFor(alert string) float64 {
	switch strings.ToLower(alert) {
	case "red":
		return 0.95
	case "orange":
		return 0.85
	}
	return 0.75
}

func verificationScoreFor(alert string) int {
	switch strings.ToLower(alert) {
	case "red":
		return 92
	case "orange":
		return 78
	}
	return 65
}

func peerConfirmationsFor(alert string) int {
	switch strings.ToLower(alert) {
	case "red":
		return 8
	case "orange":
		return 5
	}
	return 2
}

func categoryFor(eventType string) model.Category {
	lower := strings.ToLower(eventType)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryOther
}

// incidentID derives a stable id from the event link, or the title when
// the link is absent. The same upstream item yields the same id on
// every fetch, so callers can deduplicate across polls. The tail of the
// encoding is kept: GDACS links share a long common prefix and only
// vary in the trailing event id.
func incidentID(link, title string) string {
	key := link
	if key == "" {
		key = title
	}
	enc := base64.RawURLEncoding.EncodeToString([]byte(key))
	if len(enc) > idLength {
		enc = enc[len(enc)-idLength:]
	}
	return "gdacs-" + enc
}

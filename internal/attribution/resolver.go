// Package attribution resolves the marketing context a session starts
// with: the campaign id carried by the bot deep link plus UTM parameters
// from the launch URL.
package attribution

import (
	"encoding/base64"
	"net/url"

	"tg-quiz-miniapp/internal/domain"
)

// Launch captures the host-environment inputs available at bootstrap.
type Launch struct {
	// StartParam is the deep-link start parameter, normally the base64
	// form of a campaign id.
	StartParam string
	// Query is the launch URL query string.
	Query url.Values
	// Referrer is the navigating document's referrer, if any.
	Referrer string
}

// Resolve decodes the campaign id and marketing parameters from the
// launch environment. It never fails: a start parameter that is not valid
// base64 is treated as a plain campaign id (links generated before the
// encoding convention still attribute correctly), and missing UTM values
// fall back to the telegram/bot defaults.
func Resolve(launch Launch) domain.AttributionContext {
	return domain.AttributionContext{
		CampaignID: decodeCampaignID(launch.StartParam),
		Source:     pick(launch.Query, "utm_source", "source", "telegram"),
		Medium:     pick(launch.Query, "utm_medium", "medium", "bot"),
		Term:       pick(launch.Query, "utm_term", "term", ""),
		Content:    pick(launch.Query, "utm_content", "content", ""),
		Referrer:   launch.Referrer,
	}
}

func decodeCampaignID(raw string) string {
	if raw == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return raw
	}
	return string(decoded)
}

// pick prefers the utm_* variant over the bare name.
func pick(query url.Values, utm, bare, fallback string) string {
	if v := query.Get(utm); v != "" {
		return v
	}
	if v := query.Get(bare); v != "" {
		return v
	}
	return fallback
}

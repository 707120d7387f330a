package share

import (
	"fmt"

	"snowball/internal/model"
)

// AggregateFacts are the raw counters a share card is computed from.
type AggregateFacts struct {
	TotalActions     int
	CompletedActions int
	Calls            int
	Emails           int
}

// FactsFromStats lifts the caller's action stats into card facts.
func FactsFromStats(s model.ActionStats) AggregateFacts {
	return AggregateFacts{
		TotalActions:     s.TotalActions,
		CompletedActions: s.CompletedActions,
		Calls:            s.Calls,
		Emails:           s.Emails,
	}
}

// PeriodLabel is the wire label for a trailing window.
func PeriodLabel(windowDays int) string {
	return fmt.Sprintf("last_%d_days", windowDays)
}

// Project maps privacy and profile settings plus raw aggregates to the
// display-safe share card. It is total, pure, and must be re-evaluated on
// every observation rather than cached, so a settings change is reflected
// immediately. Rules, in order: card disabled -> not shareable, no display
// name, counters still previewed; private profile -> same; otherwise
// shareable with the profile username as display name.
func Project(privacy model.PrivacySettings, profile model.ProfileSettings, facts AggregateFacts, windowDays int) model.ShareCard {
	card := model.ShareCard{
		WindowDays:       windowDays,
		VisibilityMode:   profile.VisibilityMode,
		PeriodLabel:      PeriodLabel(windowDays),
		TotalActions:     facts.TotalActions,
		CompletedActions: facts.CompletedActions,
		Calls:            facts.Calls,
		Emails:           facts.Emails,
	}
	if privacy.AllowShareableCard && profile.VisibilityMode != model.VisibilityPrivate {
		card.Shareable = true
		name := profile.Username
		card.DisplayName = &name
	}
	card.Message = message(card.PeriodLabel, facts)
	return card
}

// message is deterministic over the period label and counters only. Identity
// fields never appear here, so nothing the rules redact can leak through the
// message.
func message(period string, f AggregateFacts) string {
	return fmt.Sprintf("%d completed actions including %d calls and %d emails (%s).",
		f.CompletedActions, f.Calls, f.Emails, period)
}

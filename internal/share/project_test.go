package share

import (
	"strings"
	"testing"

	"snowball/internal/model"
)

func TestProjectShareablePredicate(t *testing.T) {
	facts := AggregateFacts{TotalActions: 10, CompletedActions: 7, Calls: 4, Emails: 2}
	modes := []model.VisibilityMode{model.VisibilityPrivate, model.VisibilityCommunity, model.VisibilityPublicOptIn}
	for _, allow := range []bool{true, false} {
		for _, mode := range modes {
			privacy := model.PrivacySettings{AllowShareableCard: allow}
			profile := model.ProfileSettings{Username: "organizer", VisibilityMode: mode}
			card := Project(privacy, profile, facts, 7)
			want := allow && mode != model.VisibilityPrivate
			if card.Shareable != want {
				t.Fatalf("allow=%v mode=%s: shareable=%v, want %v", allow, mode, card.Shareable, want)
			}
			if card.Shareable {
				if card.DisplayName == nil || *card.DisplayName != "organizer" {
					t.Fatalf("allow=%v mode=%s: display name %v, want organizer", allow, mode, card.DisplayName)
				}
			} else if card.DisplayName != nil {
				t.Fatalf("allow=%v mode=%s: display name leaked: %q", allow, mode, *card.DisplayName)
			}
		}
	}
}

func TestProjectCountersAlwaysPreviewed(t *testing.T) {
	facts := AggregateFacts{TotalActions: 5, CompletedActions: 3, Calls: 2, Emails: 1}
	card := Project(model.PrivacySettings{}, model.ProfileSettings{Username: "u", VisibilityMode: model.VisibilityPrivate}, facts, 30)
	if card.Shareable {
		t.Fatal("card should not be shareable")
	}
	if card.CompletedActions != 3 || card.Calls != 2 || card.Emails != 1 || card.TotalActions != 5 {
		t.Fatalf("counters not previewed: %+v", card)
	}
	if card.PeriodLabel != "last_30_days" {
		t.Fatalf("period label %q", card.PeriodLabel)
	}
}

func TestProjectMessageNeverEmbedsIdentity(t *testing.T) {
	facts := AggregateFacts{CompletedActions: 9, Calls: 5, Emails: 4}
	for _, mode := range []model.VisibilityMode{model.VisibilityPrivate, model.VisibilityPublicOptIn} {
		profile := model.ProfileSettings{Username: "alice_walker", VisibilityMode: mode}
		card := Project(model.PrivacySettings{AllowShareableCard: true}, profile, facts, 7)
		if strings.Contains(card.Message, "alice_walker") {
			t.Fatalf("mode=%s: message embeds username: %q", mode, card.Message)
		}
	}
}

func TestProjectDeterministic(t *testing.T) {
	facts := AggregateFacts{CompletedActions: 1}
	privacy := model.PrivacySettings{AllowShareableCard: true}
	profile := model.ProfileSettings{Username: "u", VisibilityMode: model.VisibilityCommunity}
	a := Project(privacy, profile, facts, 7)
	b := Project(privacy, profile, facts, 7)
	if a.Message != b.Message || a.Shareable != b.Shareable {
		t.Fatalf("projection not deterministic: %+v vs %+v", a, b)
	}
}

package referral

import (
	"testing"
	"time"

	"snowball/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	ttl := 30 * 24 * time.Hour

	cases := []struct {
		name string
		r    model.Referral
		ttl  time.Duration
		want State
	}{
		{"fresh issued", model.Referral{CreatedAt: &recent}, ttl, StateIssued},
		{"aged out", model.Referral{CreatedAt: &old}, ttl, StateExpired},
		{"claimed wins over age", model.Referral{CreatedAt: &old, ReferredUserID: ptr("u9")}, ttl, StateClaimed},
		{"no ttl never expires", model.Referral{CreatedAt: &old}, 0, StateIssued},
		{"no timestamp stays issued", model.Referral{}, ttl, StateIssued},
	}
	for _, tc := range cases {
		if got := StateOf(tc.r, now, tc.ttl); got != tc.want {
			t.Fatalf("%s: state %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestLatestPicksNewestCreatedAt(t *testing.T) {
	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	list := model.ReferralList{Data: []model.Referral{
		{Code: "old-code", CreatedAt: &older},
		{Code: "new-code", CreatedAt: &newer},
	}, Count: 2}

	got, ok := Latest(list)
	if !ok || got.Code != "new-code" {
		t.Fatalf("latest %+v %v", got, ok)
	}
}

func TestLatestTieKeepsListOrder(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	list := model.ReferralList{Data: []model.Referral{
		{Code: "first", CreatedAt: &at},
		{Code: "second", CreatedAt: &at},
	}, Count: 2}

	got, ok := Latest(list)
	if !ok || got.Code != "first" {
		t.Fatalf("tie broke order: %+v %v", got, ok)
	}
}

func TestLatestMissingTimestampsKeepListOrder(t *testing.T) {
	list := model.ReferralList{Data: []model.Referral{
		{Code: "first"},
		{Code: "second"},
	}, Count: 2}
	got, ok := Latest(list)
	if !ok || got.Code != "first" {
		t.Fatalf("latest %+v %v", got, ok)
	}
}

func TestLatestEmpty(t *testing.T) {
	if _, ok := Latest(model.ReferralList{}); ok {
		t.Fatal("latest of empty list reported found")
	}
}

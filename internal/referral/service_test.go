package referral

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"snowball/internal/api"
	"snowball/internal/cache"
	"snowball/internal/model"
	"snowball/internal/mutate"
	"snowball/internal/query"
)

// fakeBackend serves both the read and write surfaces against one in-memory
// referral table, so issue/claim round-trips behave like the real server.
type fakeBackend struct {
	mu             sync.Mutex
	referrals      []model.Referral
	nextID         int
	referralsReads int
}

func (b *fakeBackend) GetProfile(ctx context.Context) (model.Maybe[model.ProfileSettings], error) {
	return model.Found(model.ProfileSettings{UserID: "u1"}), nil
}

func (b *fakeBackend) GetPrivacy(ctx context.Context) (model.PrivacySettings, error) {
	return model.PrivacySettings{UserID: "u1"}, nil
}

func (b *fakeBackend) GetActiveCampaigns(ctx context.Context) (model.CampaignList, error) {
	return model.CampaignList{}, nil
}

func (b *fakeBackend) GetTodayActions(ctx context.Context) (model.TodayActionList, error) {
	return model.TodayActionList{}, nil
}

func (b *fakeBackend) GetActionStats(ctx context.Context, window string) (model.ActionStats, error) {
	return model.ActionStats{}, nil
}

func (b *fakeBackend) GetMyActions(ctx context.Context, skip, limit int) (model.ActionLogList, error) {
	return model.ActionLogList{}, nil
}

func (b *fakeBackend) GetPlatformImpact(ctx context.Context, window string) (model.Impact, error) {
	return model.Impact{}, nil
}

func (b *fakeBackend) GetCampaignImpact(ctx context.Context, campaignID, window string) (model.Impact, error) {
	return model.Impact{}, nil
}

func (b *fakeBackend) GetShareCard(ctx context.Context, window string) (model.Maybe[model.ShareCard], error) {
	return model.Absent[model.ShareCard](), nil
}

func (b *fakeBackend) GetMyReferrals(ctx context.Context) (model.ReferralList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.referralsReads++
	out := make([]model.Referral, len(b.referrals))
	copy(out, b.referrals)
	return model.ReferralList{Data: out, Count: len(out)}, nil
}

func (b *fakeBackend) GetReferralAssists(ctx context.Context, window string) (model.ReferralAssistStats, error) {
	return model.ReferralAssistStats{WindowDays: 7}, nil
}

func (b *fakeBackend) UpdatePrivacy(ctx context.Context, patch api.PrivacyPatch) (model.PrivacySettings, error) {
	return model.PrivacySettings{}, nil
}

func (b *fakeBackend) UpdateProfile(ctx context.Context, patch api.ProfilePatch) (model.ProfileSettings, error) {
	return model.ProfileSettings{}, nil
}

func (b *fakeBackend) CompleteOnboarding(ctx context.Context, body api.OnboardingRequest) (model.OnboardingResult, error) {
	return model.OnboardingResult{}, nil
}

func (b *fakeBackend) LogAction(ctx context.Context, body api.ActionLogCreate) (model.ActionLog, error) {
	return model.ActionLog{}, nil
}

func (b *fakeBackend) CreateReferralLink(ctx context.Context, channel string) (model.Referral, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	at := time.Now().UTC().Add(time.Duration(b.nextID) * time.Second)
	r := model.Referral{
		ID:             fmt.Sprintf("r-%d", b.nextID),
		ReferrerUserID: "u1",
		Code:           fmt.Sprintf("code-%d", b.nextID),
		Channel:        channel,
		InviteURL:      fmt.Sprintf("https://snowball.example/r/code-%d", b.nextID),
		CreatedAt:      &at,
	}
	b.referrals = append(b.referrals, r)
	return r, nil
}

func (b *fakeBackend) ClaimReferral(ctx context.Context, code string) (model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.referrals {
		if r.Code != code {
			continue
		}
		if r.ReferredUserID != nil {
			return model.Message{}, api.Transport(409, "Referral already claimed")
		}
		claimed := "u2"
		b.referrals[i].ReferredUserID = &claimed
		return model.Message{Message: "Referral claimed"}, nil
	}
	return model.Message{}, api.Transport(404, "Referral code not found")
}

func newTestService(b *fakeBackend) *Service {
	store := cache.New()
	orch := query.NewOrchestrator(store, b, func() bool { return true }, query.DefaultWindows())
	coord := mutate.NewCoordinator(store, b)
	return NewService(orch, coord, nil)
}

func TestIssueThenOverviewShowsNewCodeOnce(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(b)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "link")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ov, err := s.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	seen := 0
	for _, r := range ov.Referrals.Data {
		if r.Code == issued.Code {
			seen++
			if r.ReferredUserID != nil {
				t.Fatalf("fresh referral already claimed: %+v", r)
			}
		}
	}
	if seen != 1 {
		t.Fatalf("new code appeared %d times", seen)
	}
	if !ov.Latest.Present || ov.Latest.Value.Code != issued.Code {
		t.Fatalf("latest %+v", ov.Latest)
	}
}

func TestClaimMarksReferralAndRefetchesOnce(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(b)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "qr")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := b.referralsReads

	if _, err := s.Claim(ctx, issued.Code); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := b.referralsReads - reads; got != 1 {
		t.Fatalf("claim triggered %d refetches, want 1", got)
	}
	ov, err := s.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	latest := ov.Latest.Value
	if StateOf(latest, time.Now().UTC(), 0) != StateClaimed {
		t.Fatalf("referral not claimed after refetch: %+v", latest)
	}
}

func TestDoubleClaimRejectedAndFirstClaimUnchanged(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(b)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "link")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := s.Claim(ctx, issued.Code); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err = s.Claim(ctx, issued.Code)
	if err == nil {
		t.Fatal("second claim accepted")
	}
	f := api.AsFailure(err)
	if f.Kind != api.FailureTransport || f.Status != 409 {
		t.Fatalf("failure %+v", f)
	}
	ov, err := s.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Latest.Value.ReferredUserID == nil || *ov.Latest.Value.ReferredUserID != "u2" {
		t.Fatalf("first claim lost: %+v", ov.Latest.Value)
	}
}

func TestClaimUnknownCodeSurfacesNotFound(t *testing.T) {
	s := newTestService(&fakeBackend{})
	_, err := s.Claim(context.Background(), "nosuchcode")
	if !api.IsStatus(err, 404) {
		t.Fatalf("error %v, want 404 transport failure", err)
	}
}

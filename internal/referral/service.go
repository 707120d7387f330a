package referral

import (
	"context"
	"time"

	"snowball/internal/cache"
	"snowball/internal/logging"
	"snowball/internal/model"
	"snowball/internal/mutate"
	"snowball/internal/query"
	"snowball/internal/store/sessiondb"
)

// Service runs the referral flows end to end: issuance and claims go through
// the mutation coordinator, and the follow-up state is re-read through the
// orchestrator so the dashboards observe settled server values.
type Service struct {
	orch     *query.Orchestrator
	coord    *mutate.Coordinator
	sessions *sessiondb.DB
}

func NewService(orch *query.Orchestrator, coord *mutate.Coordinator, sessions *sessiondb.DB) *Service {
	return &Service{orch: orch, coord: coord, sessions: sessions}
}

// Issue creates a new invite link. The coordinator invalidates the referral
// entities on success; the refetch here makes the new code visible to the
// caller immediately (read-after-write).
func (s *Service) Issue(ctx context.Context, channel string) (model.Referral, error) {
	ref, err := s.coord.CreateReferralLink(ctx, channel)
	if err != nil {
		return model.Referral{}, err
	}
	if s.sessions != nil {
		createdAt := time.Now().UTC()
		if ref.CreatedAt != nil {
			createdAt = *ref.CreatedAt
		}
		if err := s.sessions.SaveReferralLink(ctx, ref.Code, ref.InviteURL, createdAt); err != nil {
			logging.Error("referral_link_save", map[string]any{"error": err.Error()})
		}
	}
	s.orch.Run(ctx, query.EntityReferrals, query.EntityReferralAssists)
	return ref, nil
}

// Claim submits a code on behalf of the referred user. Claiming an already
// claimed or unknown code is a rejected command surfaced as a failure.
// Assist settlement is server-driven and eventual; the policy here is a
// single invalidate-and-refetch once the claim round-trips, no polling.
func (s *Service) Claim(ctx context.Context, code string) (model.Message, error) {
	msg, err := s.coord.ClaimReferral(ctx, code)
	if err != nil {
		return model.Message{}, err
	}
	s.orch.Run(ctx, query.EntityReferrals, query.EntityReferralAssists)
	return msg, nil
}

// Overview is the referral dashboard projection.
type Overview struct {
	Referrals model.ReferralList
	Latest    model.Maybe[model.Referral]
	Assists   model.ReferralAssistStats
}

// Overview fetches (or serves from fresh cache) the caller's referrals and
// assist stats.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	s.orch.Run(ctx, query.EntityReferrals, query.EntityReferralAssists)
	assistsKey := query.AssistsKey(s.orch.Windows().Assists)
	if r := s.orch.Readiness(query.ReferralsKey(), assistsKey); r.Err != nil {
		return Overview{}, r.Err
	}
	var out Overview
	if list, ok := cache.Value[model.ReferralList](s.orch.Store(), query.ReferralsKey()); ok {
		out.Referrals = list
		if latest, ok := Latest(list); ok {
			out.Latest = model.Found(latest)
		}
	}
	if assists, ok := cache.Value[model.ReferralAssistStats](s.orch.Store(), assistsKey); ok {
		out.Assists = assists
	}
	return out, nil
}

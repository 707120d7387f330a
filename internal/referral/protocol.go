package referral

import (
	"time"

	"snowball/internal/model"
)

// State is the client-observable lifecycle of a referral. Claimed and
// Expired are terminal.
type State string

const (
	StateUnissued State = "unissued"
	StateIssued   State = "issued"
	StateClaimed  State = "claimed"
	StateExpired  State = "expired"
)

// StateOf classifies a referral. A referral with a referred user is Claimed
// regardless of age; ttl<=0 disables expiry.
func StateOf(r model.Referral, now time.Time, ttl time.Duration) State {
	if r.ReferredUserID != nil {
		return StateClaimed
	}
	if ttl > 0 && r.CreatedAt != nil && now.Sub(*r.CreatedAt) > ttl {
		return StateExpired
	}
	return StateIssued
}

// Latest returns the most recently created referral: ordered by created_at,
// ties and missing timestamps broken by list order (the server already
// returns newest first).
func Latest(list model.ReferralList) (model.Referral, bool) {
	if len(list.Data) == 0 {
		return model.Referral{}, false
	}
	best := list.Data[0]
	for _, r := range list.Data[1:] {
		if r.CreatedAt != nil && (best.CreatedAt == nil || r.CreatedAt.After(*best.CreatedAt)) {
			best = r
		}
	}
	return best, true
}

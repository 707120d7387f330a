package query

import "snowball/internal/cache"

// Entity names used as cache key prefixes and invalidation targets.
const (
	EntityProfile         = "profile"
	EntityPrivacy         = "privacy"
	EntityCampaigns       = "campaigns"
	EntityActionsToday    = "actions.today"
	EntityActionStats     = "actions.stats"
	EntityActionLog       = "actions.me"
	EntityImpactPlatform  = "impact.platform"
	EntityImpactCampaign  = "impact.campaign"
	EntityShareCard       = "impact.share_card"
	EntityReferrals       = "referrals.me"
	EntityReferralAssists = "referrals.assists"
)

func ProfileKey() cache.Key   { return cache.Key{Entity: EntityProfile, Scope: "me"} }
func PrivacyKey() cache.Key   { return cache.Key{Entity: EntityPrivacy, Scope: "me"} }
func CampaignsKey() cache.Key { return cache.Key{Entity: EntityCampaigns, Scope: "active"} }
func TodayKey() cache.Key     { return cache.Key{Entity: EntityActionsToday} }

func StatsKey(window string) cache.Key {
	return cache.Key{Entity: EntityActionStats, Window: window}
}

func ActionLogKey() cache.Key { return cache.Key{Entity: EntityActionLog} }

func PlatformImpactKey(window string) cache.Key {
	return cache.Key{Entity: EntityImpactPlatform, Window: window}
}

func CampaignImpactKey(campaignID, window string) cache.Key {
	return cache.Key{Entity: EntityImpactCampaign, Scope: campaignID, Window: window}
}

func ShareCardKey(window string) cache.Key {
	return cache.Key{Entity: EntityShareCard, Window: window}
}

func ReferralsKey() cache.Key { return cache.Key{Entity: EntityReferrals} }

func AssistsKey(window string) cache.Key {
	return cache.Key{Entity: EntityReferralAssists, Window: window}
}

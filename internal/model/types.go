package model

import "time"

// VisibilityMode controls how much of a profile is exposed to other users.
type VisibilityMode string

const (
	VisibilityPrivate     VisibilityMode = "private"
	VisibilityCommunity   VisibilityMode = "community"
	VisibilityPublicOptIn VisibilityMode = "public_opt_in"
)

func (m VisibilityMode) Valid() bool {
	switch m {
	case VisibilityPrivate, VisibilityCommunity, VisibilityPublicOptIn:
		return true
	}
	return false
}

// ActionType is the kind of civic action a template asks for.
type ActionType string

const (
	ActionCall    ActionType = "call"
	ActionEmail   ActionType = "email"
	ActionBoycott ActionType = "boycott"
	ActionEvent   ActionType = "event"
)

// ProfileSettings mirrors /profile/me. A 404 on fetch means "not onboarded",
// which is a valid state, not an error.
type ProfileSettings struct {
	UserID         string         `json:"user_id"`
	Username       string         `json:"username"`
	StateCode      *string        `json:"state_code"`
	DistrictCode   *string        `json:"district_code"`
	Timezone       string         `json:"timezone"`
	VisibilityMode VisibilityMode `json:"visibility_mode"`
}

// PrivacySettings mirrors /privacy/me. Each toggle is its own optimistic unit.
type PrivacySettings struct {
	UserID                string `json:"user_id"`
	ShowOnLeaderboard     bool   `json:"show_on_leaderboard"`
	ShowStreaks           bool   `json:"show_streaks"`
	ShowBadges            bool   `json:"show_badges"`
	AllowShareableCard    bool   `json:"allow_shareable_card"`
	AllowReferralTracking bool   `json:"allow_referral_tracking"`
}

// Campaign is read-only reference data.
type Campaign struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CampaignList struct {
	Data  []Campaign `json:"data"`
	Count int        `json:"count"`
}

// TodayAction is ephemeral: the server recomputes the list daily. Logging one
// does not remove it from the cache until invalidation.
type TodayAction struct {
	CampaignID       string     `json:"campaign_id"`
	CampaignTitle    string     `json:"campaign_title"`
	TemplateID       string     `json:"template_id"`
	TargetID         *string    `json:"target_id"`
	ActionType       ActionType `json:"action_type"`
	Title            string     `json:"title"`
	EstimatedMinutes int        `json:"estimated_minutes"`
}

type TodayActionList struct {
	Data  []TodayAction `json:"data"`
	Count int           `json:"count"`
}

// ActionStats is the caller's own window-scoped aggregate.
type ActionStats struct {
	WindowDays       int        `json:"window_days"`
	TotalActions     int        `json:"total_actions"`
	CompletedActions int        `json:"completed_actions"`
	SkippedActions   int        `json:"skipped_actions"`
	Calls            int        `json:"calls"`
	Emails           int        `json:"emails"`
	Boycotts         int        `json:"boycotts"`
	Events           int        `json:"events"`
	LastActionAt     *time.Time `json:"last_action_at"`
}

// ActionLog is one row of the caller's personal action history.
type ActionLog struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	TemplateID *string    `json:"template_id"`
	TargetID   *string    `json:"target_id"`
	ActionType ActionType `json:"action_type"`
	Status     string     `json:"status"`
	Outcome    *string    `json:"outcome"`
	CreatedAt  *time.Time `json:"created_at"`
}

type ActionLogList struct {
	Data  []ActionLog `json:"data"`
	Count int         `json:"count"`
}

// Impact is a platform- or campaign-scoped aggregate with coarsened
// participant counts.
type Impact struct {
	WindowDays         int        `json:"window_days"`
	TotalActions       int        `json:"total_actions"`
	CompletedActions   int        `json:"completed_actions"`
	SkippedActions     int        `json:"skipped_actions"`
	Calls              int        `json:"calls"`
	Emails             int        `json:"emails"`
	Boycotts           int        `json:"boycotts"`
	Events             int        `json:"events"`
	UniqueParticipants int        `json:"unique_participants"`
	ParticipantRange   string     `json:"participant_range"`
	CampaignID         *string    `json:"campaign_id"`
	CampaignTitle      *string    `json:"campaign_title"`
	LastActionAt       *time.Time `json:"last_action_at"`
}

// ShareCard is the redacted, opt-in-gated activity summary. DisplayName is
// set iff the card is shareable.
type ShareCard struct {
	WindowDays       int            `json:"window_days"`
	Shareable        bool           `json:"shareable"`
	VisibilityMode   VisibilityMode `json:"visibility_mode"`
	DisplayName      *string        `json:"display_name"`
	PeriodLabel      string         `json:"period_label"`
	TotalActions     int            `json:"total_actions"`
	CompletedActions int            `json:"completed_actions"`
	Calls            int            `json:"calls"`
	Emails           int            `json:"emails"`
	Message          string         `json:"message"`
}

// Referral is one issued invite. ReferredUserID transitions nil -> set
// exactly once, on claim.
type Referral struct {
	ID             string     `json:"id"`
	ReferrerUserID string     `json:"referrer_user_id"`
	ReferredUserID *string    `json:"referred_user_id"`
	Code           string     `json:"code"`
	Channel        string     `json:"channel"`
	InviteURL      string     `json:"invite_url"`
	CreatedAt      *time.Time `json:"created_at"`
}

type ReferralList struct {
	Data  []Referral `json:"data"`
	Count int        `json:"count"`
}

// ReferralAssistStats is server-settled and monotone within a fixed window.
type ReferralAssistStats struct {
	WindowDays      int `json:"window_days"`
	RecruitedUsers  int `json:"recruited_users"`
	AssistedActions int `json:"assisted_actions"`
}

// OnboardingResult is the response body of /onboarding/complete.
type OnboardingResult struct {
	Profile         ProfileSettings `json:"profile"`
	Privacy         PrivacySettings `json:"privacy"`
	DailyPlansCount int             `json:"daily_plans_count"`
}

// Message is the generic {"message": ...} acknowledgement body.
type Message struct {
	Message string `json:"message"`
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"snowball/internal/metrics"
	"snowball/internal/model"
)

// Client is a bearer-token JSON client for the Snowball API. The token is
// read per request from local session storage; when absent the Authorization
// header is simply omitted, the request is still sent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokenFn    func() string
}

func NewClient(baseURL string, tokenFn func() string) *Client {
	if tokenFn == nil {
		tokenFn = func() string { return "" }
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    newDefaultLimiter(),
		tokenFn:    tokenFn,
	}
}

func (c *Client) auth(req *http.Request) {
	if tok := c.tokenFn(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// do performs one call. No automatic retry: a failed request surfaces
// immediately and retry is user-initiated.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Validation(err.Error())
		}
		rd = bytes.NewReader(b)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Network(err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return Network(err)
	}
	c.auth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveRequestDuration(op, start)
	if err != nil {
		metrics.IncRequestError(op)
		return Network(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode >= 300 {
		metrics.IncRequestError(op)
		return Transport(resp.StatusCode, parseDetail(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.IncRequestError(op)
		return Transport(resp.StatusCode, "invalid response body")
	}
	return nil
}

// parseDetail extracts {"detail": ...}; an unparseable body yields the
// generic message.
func parseDetail(r io.Reader) string {
	var raw struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil || raw.Detail == "" {
		return genericDetail
	}
	return raw.Detail
}

// GetProfile returns the caller's profile; 404 is the valid "not onboarded"
// state, not an error.
func (c *Client) GetProfile(ctx context.Context) (model.Maybe[model.ProfileSettings], error) {
	var out model.ProfileSettings
	err := c.do(ctx, "profile.get", http.MethodGet, "/profile/me", nil, &out)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return model.Absent[model.ProfileSettings](), nil
		}
		return model.Absent[model.ProfileSettings](), err
	}
	return model.Found(out), nil
}

// ProfilePatch carries the partial PATCH body for /profile/me.
type ProfilePatch struct {
	Username       *string               `json:"username,omitempty"`
	StateCode      *string               `json:"state_code,omitempty"`
	DistrictCode   *string               `json:"district_code,omitempty"`
	Timezone       *string               `json:"timezone,omitempty"`
	VisibilityMode *model.VisibilityMode `json:"visibility_mode,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (model.ProfileSettings, error) {
	var out model.ProfileSettings
	err := c.do(ctx, "profile.update", http.MethodPatch, "/profile/me", patch, &out)
	return out, err
}

func (c *Client) GetPrivacy(ctx context.Context) (model.PrivacySettings, error) {
	var out model.PrivacySettings
	err := c.do(ctx, "privacy.get", http.MethodGet, "/privacy/me", nil, &out)
	return out, err
}

// PrivacyPatch carries the partial PATCH body for /privacy/me. Each toggle is
// sent alone so the server applies exactly one optimistic unit.
type PrivacyPatch struct {
	ShowOnLeaderboard     *bool `json:"show_on_leaderboard,omitempty"`
	ShowStreaks           *bool `json:"show_streaks,omitempty"`
	ShowBadges            *bool `json:"show_badges,omitempty"`
	AllowShareableCard    *bool `json:"allow_shareable_card,omitempty"`
	AllowReferralTracking *bool `json:"allow_referral_tracking,omitempty"`
}

func (c *Client) UpdatePrivacy(ctx context.Context, patch PrivacyPatch) (model.PrivacySettings, error) {
	var out model.PrivacySettings
	err := c.do(ctx, "privacy.update", http.MethodPatch, "/privacy/me", patch, &out)
	return out, err
}

func (c *Client) GetActiveCampaigns(ctx context.Context) (model.CampaignList, error) {
	var out model.CampaignList
	err := c.do(ctx, "campaigns.active", http.MethodGet, "/campaigns/?status=active", nil, &out)
	return out, err
}

func (c *Client) GetTodayActions(ctx context.Context) (model.TodayActionList, error) {
	var out model.TodayActionList
	err := c.do(ctx, "actions.today", http.MethodGet, "/actions/today", nil, &out)
	return out, err
}

// ActionLogCreate is the POST body for /actions/log.
type ActionLogCreate struct {
	CampaignID      string           `json:"campaign_id"`
	TemplateID      *string          `json:"template_id"`
	TargetID        *string          `json:"target_id"`
	ActionType      model.ActionType `json:"action_type"`
	Status          string           `json:"status"`
	Outcome         string           `json:"outcome"`
	ConfidenceScore int              `json:"confidence_score"`
}

func (c *Client) LogAction(ctx context.Context, body ActionLogCreate) (model.ActionLog, error) {
	var out model.ActionLog
	err := c.do(ctx, "actions.log", http.MethodPost, "/actions/log", body, &out)
	return out, err
}

func (c *Client) GetMyActions(ctx context.Context, skip, limit int) (model.ActionLogList, error) {
	var out model.ActionLogList
	path := fmt.Sprintf("/actions/me?skip=%d&limit=%d", skip, limit)
	err := c.do(ctx, "actions.me", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetActionStats(ctx context.Context, window string) (model.ActionStats, error) {
	var out model.ActionStats
	path := "/actions/me/stats?window=" + url.QueryEscape(window)
	err := c.do(ctx, "actions.stats", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetPlatformImpact(ctx context.Context, window string) (model.Impact, error) {
	var out model.Impact
	path := "/impact/platform?window=" + url.QueryEscape(window)
	err := c.do(ctx, "impact.platform", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetCampaignImpact(ctx context.Context, campaignID, window string) (model.Impact, error) {
	var out model.Impact
	path := fmt.Sprintf("/impact/campaign/%s?window=%s", url.PathEscape(campaignID), url.QueryEscape(window))
	err := c.do(ctx, "impact.campaign", http.MethodGet, path, nil, &out)
	return out, err
}

// GetShareCard returns the caller's share card; 404 means "not yet eligible"
// and is a valid absent state.
func (c *Client) GetShareCard(ctx context.Context, window string) (model.Maybe[model.ShareCard], error) {
	var out model.ShareCard
	path := "/impact/me/share-card?window=" + url.QueryEscape(window)
	err := c.do(ctx, "impact.share_card", http.MethodGet, path, nil, &out)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return model.Absent[model.ShareCard](), nil
		}
		return model.Absent[model.ShareCard](), err
	}
	return model.Found(out), nil
}

func (c *Client) GetMyReferrals(ctx context.Context) (model.ReferralList, error) {
	var out model.ReferralList
	err := c.do(ctx, "referrals.me", http.MethodGet, "/referrals/me", nil, &out)
	return out, err
}

func (c *Client) CreateReferralLink(ctx context.Context, channel string) (model.Referral, error) {
	var out model.Referral
	body := map[string]string{"channel": channel}
	err := c.do(ctx, "referrals.link", http.MethodPost, "/referrals/link", body, &out)
	return out, err
}

func (c *Client) ClaimReferral(ctx context.Context, code string) (model.Message, error) {
	var out model.Message
	body := map[string]string{"code": code}
	err := c.do(ctx, "referrals.claim", http.MethodPost, "/referrals/claim", body, &out)
	return out, err
}

func (c *Client) GetReferralAssists(ctx context.Context, window string) (model.ReferralAssistStats, error) {
	var out model.ReferralAssistStats
	path := "/referrals/me/assists?window=" + url.QueryEscape(window)
	err := c.do(ctx, "referrals.assists", http.MethodGet, path, nil, &out)
	return out, err
}

// OnboardingRequest is the POST body for /onboarding/complete.
// ActiveWeekdaysMask must be the exact 7-character Monday-first encoding.
type OnboardingRequest struct {
	Username            string               `json:"username"`
	StateCode           *string              `json:"state_code"`
	DistrictCode        *string              `json:"district_code"`
	Timezone            string               `json:"timezone"`
	VisibilityMode      model.VisibilityMode `json:"visibility_mode"`
	CampaignIDs         []string             `json:"campaign_ids"`
	TargetActionsPerDay int                  `json:"target_actions_per_day"`
	ActiveWeekdaysMask  string               `json:"active_weekdays_mask"`
}

func (c *Client) CompleteOnboarding(ctx context.Context, body OnboardingRequest) (model.OnboardingResult, error) {
	var out model.OnboardingResult
	err := c.do(ctx, "onboarding.complete", http.MethodPost, "/onboarding/complete", body, &out)
	return out, err
}

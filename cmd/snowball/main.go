package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snowball/internal/api"
	"snowball/internal/cache"
	"snowball/internal/cmdlog"
	"snowball/internal/config"
	"snowball/internal/metrics"
	"snowball/internal/model"
	"snowball/internal/mutate"
	"snowball/internal/query"
	"snowball/internal/referral"
	"snowball/internal/share"
	"snowball/internal/store/sessiondb"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "login":
		cmdLogin()
	case "logout":
		cmdLogout()
	case "onboard":
		cmdOnboard()
	case "dashboard":
		cmdDashboard()
	case "actions":
		cmdActions()
	case "log":
		cmdLog()
	case "impact":
		cmdImpact()
	case "referrals":
		cmdReferrals()
	case "invite":
		cmdInvite()
	case "claim":
		cmdClaim()
	case "privacy":
		cmdPrivacy()
	case "visibility":
		cmdVisibility()
	default:
		printHelp()
	}
}

func printHelp() {
	fmt.Println("Usage: snowball <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./snowball.yaml")
	fmt.Println("  login       Store an access token in the local session")
	fmt.Println("  logout      Drop the local session")
	fmt.Println("  onboard     Complete onboarding (profile + daily plan)")
	fmt.Println("  dashboard   Profile summary and active campaigns")
	fmt.Println("  actions     Today's actions and your stats")
	fmt.Println("  log         Log a completed action by template id")
	fmt.Println("  impact      Platform/campaign impact and share card")
	fmt.Println("  referrals   Referral links and assist stats")
	fmt.Println("  invite      Create a new referral link")
	fmt.Println("  claim       Claim a referral code")
	fmt.Println("  privacy     Show or toggle privacy settings")
	fmt.Println("  visibility  Change profile visibility mode")
}

// app wires the client stack for one command invocation.
type app struct {
	cfg      config.Config
	sessions *sessiondb.DB
	store    *cache.Store
	client   *api.Client
	orch     *query.Orchestrator
	coord    *mutate.Coordinator
	refs     *referral.Service
}

func mustLoadApp(cfgPath string) *app {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
		cfg.ResolveEnv()
	}
	sessions, err := sessiondb.Open(cfg.Session.DBPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	tokenFn := func() string {
		if cfg.API.AccessToken != "" {
			return cfg.API.AccessToken
		}
		tok, _ := sessions.LoadToken(context.Background())
		return tok
	}
	store := cache.New()
	client := api.NewClient(cfg.API.BaseURL, tokenFn)
	windows := query.Windows{
		Stats:          cfg.Windows.Stats,
		PlatformImpact: cfg.Windows.PlatformImpact,
		CampaignImpact: cfg.Windows.CampaignImpact,
		ShareCard:      cfg.Windows.ShareCard,
		Assists:        cfg.Windows.Assists,
	}
	orch := query.NewOrchestrator(store, client, func() bool { return tokenFn() != "" }, windows)
	coord := mutate.NewCoordinator(store, client)
	metrics.StartServer(cfg.Metrics.Addr)
	return &app{
		cfg:      cfg,
		sessions: sessions,
		store:    store,
		client:   client,
		orch:     orch,
		coord:    coord,
		refs:     referral.NewService(orch, coord, sessions),
	}
}

func (a *app) close() { _ = a.sessions.Close() }

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./snowball.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	fmt.Println("Config written to:", abs)
}

func cmdLogin() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	token := fs.String("token", "", "bearer access token")
	_ = fs.Parse(os.Args[2:])
	if *token == "" {
		fmt.Println("error: -token is required")
		os.Exit(1)
	}
	a := mustLoadApp(*cfgPath)
	defer a.close()
	_ = cmdlog.Run("login", func() error {
		return a.sessions.SaveToken(context.Background(), *token)
	})
	fmt.Println("Session stored.")
}

func cmdLogout() {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	_ = cmdlog.Run("logout", func() error {
		a.store.Clear()
		return a.sessions.ClearToken(context.Background())
	})
	fmt.Println("Session cleared.")
}

func cmdOnboard() {
	fs := flag.NewFlagSet("onboard", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	username := fs.String("username", "", "public username")
	state := fs.String("state", "", "two-letter state code")
	district := fs.String("district", "", "district code")
	campaigns := fs.String("campaigns", "", "comma-separated campaign ids (default: first active)")
	target := fs.Int("target", 3, "target actions per day")
	weekdays := fs.String("weekdays", "1111100", "active weekdays mask, Monday first")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("onboard", func() error {
		mask, err := model.ParseWeekdayMask(*weekdays)
		if err != nil {
			return err
		}
		ids := splitIDs(*campaigns)
		if len(ids) == 0 {
			a.orch.Run(ctx, query.EntityCampaigns)
			list, ok := cache.Value[model.CampaignList](a.store, query.CampaignsKey())
			if ok && len(list.Data) > 0 {
				ids = []string{list.Data[0].ID}
			}
		}
		out, err := a.coord.CompleteOnboarding(ctx, mutate.OnboardingParams{
			Username:            *username,
			StateCode:           *state,
			DistrictCode:        *district,
			CampaignIDs:         ids,
			TargetActionsPerDay: *target,
			Weekdays:            mask,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Onboarded as @%s (%d daily plans)\n", out.Profile.Username, out.DailyPlansCount)
		// pull the now-ungated queries so the next dashboard is warm
		a.orch.Run(ctx, query.EntityActionsToday, query.EntityActionStats)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdDashboard() {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("dashboard", func() error {
		a.orch.Run(ctx, query.EntityProfile, query.EntityCampaigns)
		if r := a.orch.Readiness(query.ProfileKey(), query.CampaignsKey()); r.Err != nil {
			return r.Err
		}
		profile, _ := cache.Value[model.Maybe[model.ProfileSettings]](a.store, query.ProfileKey())
		campaigns, _ := cache.Value[model.CampaignList](a.store, query.CampaignsKey())
		if !profile.Present {
			fmt.Println("No profile yet. Run `snowball onboard -username <name>` to get started.")
		} else {
			p := profile.Value
			fmt.Printf("@%s  state=%s district=%s visibility=%s\n",
				p.Username, deref(p.StateCode), deref(p.DistrictCode), p.VisibilityMode)
		}
		fmt.Printf("Active campaigns: %d\n", campaigns.Count)
		for _, c := range campaigns.Data {
			fmt.Printf("  %s  %s\n", c.ID, c.Title)
		}
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdActions() {
	fs := flag.NewFlagSet("actions", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("actions", func() error {
		a.orch.Run(ctx, query.EntityActionsToday, query.EntityActionStats)
		statsKey := query.StatsKey(a.orch.Windows().Stats)
		if r := a.orch.Readiness(query.ProfileKey(), query.TodayKey(), statsKey); r.Err != nil {
			return r.Err
		}
		today := a.store.Get(query.TodayKey())
		if today.Status == cache.StatusIdle {
			fmt.Println("Actions are locked until onboarding is complete.")
			return nil
		}
		if stats, ok := cache.Value[model.ActionStats](a.store, statsKey); ok {
			fmt.Printf("Last %dd: %d completed, %d calls, %d emails\n",
				stats.WindowDays, stats.CompletedActions, stats.Calls, stats.Emails)
		}
		list, _ := cache.Value[model.TodayActionList](a.store, query.TodayKey())
		if list.Count == 0 {
			fmt.Println("No actions scheduled for today.")
			return nil
		}
		for _, act := range list.Data {
			fmt.Printf("  [%s] %s  (%s, ~%d min)  template=%s\n",
				act.ActionType, act.Title, act.CampaignTitle, act.EstimatedMinutes, act.TemplateID)
		}
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdLog() {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	template := fs.String("template", "", "template id from `snowball actions`")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("log", func() error {
		a.orch.Run(ctx, query.EntityActionsToday)
		list, ok := cache.Value[model.TodayActionList](a.store, query.TodayKey())
		if !ok {
			if r := a.orch.Readiness(query.TodayKey()); r.Err != nil {
				return r.Err
			}
			return fmt.Errorf("no action list available; complete onboarding first")
		}
		for _, act := range list.Data {
			if act.TemplateID == *template {
				if _, err := a.coord.LogAction(ctx, act); err != nil {
					return err
				}
				fmt.Println("Action logged.")
				// stale entries refetch before the next read
				a.orch.Run(ctx, query.EntityActionsToday, query.EntityActionStats)
				return nil
			}
		}
		return fmt.Errorf("template %q is not in today's actions", *template)
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdImpact() {
	fs := flag.NewFlagSet("impact", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("impact", func() error {
		a.orch.Run(ctx, query.EntityImpactPlatform, query.EntityImpactCampaign, query.EntityShareCard)
		w := a.orch.Windows()
		if r := a.orch.Readiness(query.CampaignsKey(), query.PlatformImpactKey(w.PlatformImpact), query.ShareCardKey(w.ShareCard)); r.Err != nil {
			return r.Err
		}
		if platform, ok := cache.Value[model.Impact](a.store, query.PlatformImpactKey(w.PlatformImpact)); ok {
			fmt.Printf("Platform (%dd): %d actions, participants %s\n",
				platform.WindowDays, platform.TotalActions, platform.ParticipantRange)
		}
		if list, ok := cache.Value[model.CampaignList](a.store, query.CampaignsKey()); ok && len(list.Data) > 0 {
			ck := query.CampaignImpactKey(list.Data[0].ID, w.CampaignImpact)
			if campaign, ok := cache.Value[model.Impact](a.store, ck); ok {
				fmt.Printf("Campaign %q (%dd): %d completed\n",
					deref(campaign.CampaignTitle), campaign.WindowDays, campaign.CompletedActions)
			}
		}
		card, _ := cache.Value[model.Maybe[model.ShareCard]](a.store, query.ShareCardKey(w.ShareCard))
		if !card.Present {
			fmt.Println("Share card: complete onboarding to generate a preview.")
			return nil
		}
		printShareCard(card.Value)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printShareCard(card model.ShareCard) {
	name := "Hidden"
	if card.DisplayName != nil {
		name = *card.DisplayName
	}
	fmt.Printf("Share card (%s): shareable=%v display_name=%s\n", card.PeriodLabel, card.Shareable, name)
	fmt.Printf("  %d completed / %d calls / %d emails\n", card.CompletedActions, card.Calls, card.Emails)
	fmt.Println("  " + card.Message)
}

func cmdReferrals() {
	fs := flag.NewFlagSet("referrals", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("referrals", func() error {
		ov, err := a.refs.Overview(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Recruited users (%dd): %d\n", ov.Assists.WindowDays, ov.Assists.RecruitedUsers)
		fmt.Printf("Assisted actions (%dd): %d\n", ov.Assists.WindowDays, ov.Assists.AssistedActions)
		if !ov.Latest.Present {
			fmt.Println("No links generated yet.")
			return nil
		}
		latest := ov.Latest.Value
		fmt.Printf("Latest link: code=%s url=%s state=%s\n",
			latest.Code, latest.InviteURL, referral.StateOf(latest, time.Now().UTC(), 0))
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdInvite() {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	channel := fs.String("channel", "link", "link, qr or social")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("invite", func() error {
		ref, err := a.refs.Issue(ctx, *channel)
		if err != nil {
			return err
		}
		fmt.Printf("Code: %s\nInvite URL: %s\n", ref.Code, ref.InviteURL)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdClaim() {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	code := fs.String("code", "", "referral code to claim")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("claim", func() error {
		msg, err := a.refs.Claim(ctx, *code)
		if err != nil {
			return err
		}
		fmt.Println(msg.Message)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdPrivacy() {
	fs := flag.NewFlagSet("privacy", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	set := fs.String("set", "", "toggle to change, e.g. show_on_leaderboard=false")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("privacy", func() error {
		a.orch.Run(ctx, query.EntityPrivacy, query.EntityProfile)
		if r := a.orch.Readiness(query.PrivacyKey(), query.ProfileKey()); r.Err != nil {
			return r.Err
		}
		if *set != "" {
			toggle, value, err := parseToggle(*set)
			if err != nil {
				return err
			}
			if _, err := a.coord.SetPrivacyToggle(ctx, toggle, value); err != nil {
				return err
			}
			fmt.Println("Privacy settings updated.")
		}
		settings, ok := cache.Value[model.PrivacySettings](a.store, query.PrivacyKey())
		if !ok {
			a.orch.Run(ctx, query.EntityPrivacy)
			settings, _ = cache.Value[model.PrivacySettings](a.store, query.PrivacyKey())
		}
		fmt.Printf("show_on_leaderboard=%v show_streaks=%v show_badges=%v\n",
			settings.ShowOnLeaderboard, settings.ShowStreaks, settings.ShowBadges)
		fmt.Printf("allow_shareable_card=%v allow_referral_tracking=%v\n",
			settings.AllowShareableCard, settings.AllowReferralTracking)
		printProjectedCard(a, ctx, settings)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// printProjectedCard previews the share card locally from the live settings,
// re-evaluated on every call rather than read from a stored card.
func printProjectedCard(a *app, ctx context.Context, settings model.PrivacySettings) {
	profile, ok := cache.Value[model.Maybe[model.ProfileSettings]](a.store, query.ProfileKey())
	if !ok || !profile.Present {
		return
	}
	a.orch.Run(ctx, query.EntityActionStats)
	statsKey := query.StatsKey(a.orch.Windows().Stats)
	stats, ok := cache.Value[model.ActionStats](a.store, statsKey)
	if !ok {
		return
	}
	card := share.Project(settings, profile.Value, share.FactsFromStats(stats), stats.WindowDays)
	fmt.Println("Preview:")
	printShareCard(card)
}

func cmdVisibility() {
	fs := flag.NewFlagSet("visibility", flag.ExitOnError)
	cfgPath := fs.String("config", "./snowball.yaml", "config path")
	mode := fs.String("mode", "", "private, community or public_opt_in")
	_ = fs.Parse(os.Args[2:])
	a := mustLoadApp(*cfgPath)
	defer a.close()
	ctx := context.Background()

	err := cmdlog.Run("visibility", func() error {
		out, err := a.coord.SetVisibilityMode(ctx, model.VisibilityMode(*mode))
		if err != nil {
			return err
		}
		fmt.Println("Visibility mode:", out.VisibilityMode)
		return nil
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func parseToggle(s string) (mutate.PrivacyToggle, bool, error) {
	name, value, found := strings.Cut(s, "=")
	if !found || (value != "true" && value != "false") {
		return "", false, fmt.Errorf("expected <toggle>=true|false, got %q", s)
	}
	return mutate.PrivacyToggle(name), value == "true", nil
}

func splitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}

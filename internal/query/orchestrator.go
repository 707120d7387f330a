package query

import (
	"context"
	"sync"
	"time"

	"snowball/internal/cache"
	"snowball/internal/metrics"
	"snowball/internal/model"
)

// Fetcher is the read surface of the transport consumed by queries.
type Fetcher interface {
	GetProfile(ctx context.Context) (model.Maybe[model.ProfileSettings], error)
	GetPrivacy(ctx context.Context) (model.PrivacySettings, error)
	GetActiveCampaigns(ctx context.Context) (model.CampaignList, error)
	GetTodayActions(ctx context.Context) (model.TodayActionList, error)
	GetActionStats(ctx context.Context, window string) (model.ActionStats, error)
	GetMyActions(ctx context.Context, skip, limit int) (model.ActionLogList, error)
	GetPlatformImpact(ctx context.Context, window string) (model.Impact, error)
	GetCampaignImpact(ctx context.Context, campaignID, window string) (model.Impact, error)
	GetShareCard(ctx context.Context, window string) (model.Maybe[model.ShareCard], error)
	GetMyReferrals(ctx context.Context) (model.ReferralList, error)
	GetReferralAssists(ctx context.Context, window string) (model.ReferralAssistStats, error)
}

// Windows configures the trailing periods the dashboards are scoped to.
type Windows struct {
	Stats          string
	PlatformImpact string
	CampaignImpact string
	ShareCard      string
	Assists        string
}

func DefaultWindows() Windows {
	return Windows{
		Stats:          "7d",
		PlatformImpact: "7d",
		CampaignImpact: "30d",
		ShareCard:      "7d",
		Assists:        "7d",
	}
}

// Orchestrator resolves the query dependency graph against the cache store,
// issuing fetches in an order that respects readiness gates. A gated query
// never transitions to loading or issues a request while its gate is false;
// it stays idle.
type Orchestrator struct {
	store   *cache.Store
	fetcher Fetcher
	authed  func() bool
	windows Windows
}

func NewOrchestrator(store *cache.Store, fetcher Fetcher, authed func() bool, windows Windows) *Orchestrator {
	if authed == nil {
		authed = func() bool { return true }
	}
	return &Orchestrator{store: store, fetcher: fetcher, authed: authed, windows: windows}
}

func (o *Orchestrator) Store() *cache.Store { return o.store }

func (o *Orchestrator) Windows() Windows { return o.windows }

// Definition is one row of the query dependency table. New aggregates are
// added by adding a row, not by threading conditionals through call sites.
type Definition struct {
	Name      string
	DependsOn []string
	// Gate suppresses the fetch while false. Reads only settled
	// predecessors from the store.
	Gate func(o *Orchestrator) bool
	// Key resolves the concrete cache key; ok=false means the key cannot
	// be formed (e.g. no campaign to scope by) and the query is skipped.
	Key   func(o *Orchestrator) (cache.Key, bool)
	Fetch func(ctx context.Context, o *Orchestrator) (any, error)
}

func staticKey(k cache.Key) func(*Orchestrator) (cache.Key, bool) {
	return func(*Orchestrator) (cache.Key, bool) { return k, true }
}

// profilePresent is the readiness gate for queries that require an onboarded
// profile: the profile entry must be fresh and hold a present value.
func profilePresent(o *Orchestrator) bool {
	p, ok := cache.Value[model.Maybe[model.ProfileSettings]](o.store, ProfileKey())
	return ok && p.Present
}

// firstActiveCampaign derives the campaign scope from the campaigns list.
func firstActiveCampaign(o *Orchestrator) (string, bool) {
	list, ok := cache.Value[model.CampaignList](o.store, CampaignsKey())
	if !ok || len(list.Data) == 0 {
		return "", false
	}
	return list.Data[0].ID, true
}

// Table is the full dependency table of spec'd queries. Absence (404) on
// profile and share card settles as success-with-absent, never error.
func (o *Orchestrator) Table() []Definition {
	return []Definition{
		{
			Name: EntityProfile,
			Key:  staticKey(ProfileKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetProfile(ctx)
			},
		},
		{
			Name: EntityPrivacy,
			Key:  staticKey(PrivacyKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetPrivacy(ctx)
			},
		},
		{
			Name: EntityCampaigns,
			Key:  staticKey(CampaignsKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetActiveCampaigns(ctx)
			},
		},
		{
			Name:      EntityActionsToday,
			DependsOn: []string{EntityProfile},
			Gate:      profilePresent,
			Key:       staticKey(TodayKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetTodayActions(ctx)
			},
		},
		{
			Name:      EntityActionStats,
			DependsOn: []string{EntityProfile},
			Gate:      profilePresent,
			Key:       staticKey(StatsKey(o.windows.Stats)),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetActionStats(ctx, o.windows.Stats)
			},
		},
		{
			Name:      EntityActionLog,
			DependsOn: []string{EntityProfile},
			Gate:      profilePresent,
			Key:       staticKey(ActionLogKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetMyActions(ctx, 0, 100)
			},
		},
		{
			Name: EntityImpactPlatform,
			Key:  staticKey(PlatformImpactKey(o.windows.PlatformImpact)),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetPlatformImpact(ctx, o.windows.PlatformImpact)
			},
		},
		{
			Name:      EntityImpactCampaign,
			DependsOn: []string{EntityCampaigns},
			Gate: func(o *Orchestrator) bool {
				_, ok := firstActiveCampaign(o)
				return ok
			},
			Key: func(o *Orchestrator) (cache.Key, bool) {
				id, ok := firstActiveCampaign(o)
				if !ok {
					return cache.Key{}, false
				}
				return CampaignImpactKey(id, o.windows.CampaignImpact), true
			},
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				id, _ := firstActiveCampaign(o)
				return o.fetcher.GetCampaignImpact(ctx, id, o.windows.CampaignImpact)
			},
		},
		{
			Name: EntityShareCard,
			Key:  staticKey(ShareCardKey(o.windows.ShareCard)),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetShareCard(ctx, o.windows.ShareCard)
			},
		},
		{
			Name: EntityReferrals,
			Gate: func(o *Orchestrator) bool { return o.authed() },
			Key:  staticKey(ReferralsKey()),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetMyReferrals(ctx)
			},
		},
		{
			Name: EntityReferralAssists,
			Gate: func(o *Orchestrator) bool { return o.authed() },
			Key:  staticKey(AssistsKey(o.windows.Assists)),
			Fetch: func(ctx context.Context, o *Orchestrator) (any, error) {
				return o.fetcher.GetReferralAssists(ctx, o.windows.Assists)
			},
		},
	}
}

// Run resolves the named queries plus their transitive dependencies, wave by
// wave: each wave fetches gate-open, non-fresh queries concurrently, then the
// next wave re-evaluates gates against the updated store. Stale entries are
// refetched before dependents read them, which is what gives read-after-write
// consistency across the dependent dashboards.
func (o *Orchestrator) Run(ctx context.Context, names ...string) {
	table := o.Table()
	byName := make(map[string]Definition, len(table))
	for _, d := range table {
		byName[d.Name] = d
	}

	want := make(map[string]bool)
	var include func(n string)
	include = func(n string) {
		if want[n] {
			return
		}
		want[n] = true
		for _, dep := range byName[n].DependsOn {
			include(dep)
		}
	}
	for _, n := range names {
		include(n)
	}
	if len(want) == 0 {
		for _, d := range table {
			want[d.Name] = true
		}
	}

	settled := make(map[string]bool)
	for len(settled) < len(want) {
		var wave []Definition
		for _, d := range table {
			if !want[d.Name] || settled[d.Name] {
				continue
			}
			ready := true
			for _, dep := range d.DependsOn {
				if !settled[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, d)
			}
		}
		if len(wave) == 0 {
			return // cycle or unknown name; nothing more can settle
		}
		var wg sync.WaitGroup
		for _, d := range wave {
			settled[d.Name] = true
			if d.Gate != nil && !d.Gate(o) {
				continue // suppressed, stays idle
			}
			k, ok := d.Key(o)
			if !ok {
				continue
			}
			if o.store.Get(k).Fresh() {
				metrics.CacheHits.Inc()
				continue
			}
			wg.Add(1)
			go func(d Definition, k cache.Key) {
				defer wg.Done()
				o.fetchInto(ctx, d, k)
			}(d, k)
		}
		wg.Wait()
	}
}

func (o *Orchestrator) fetchInto(ctx context.Context, d Definition, k cache.Key) {
	startedAt := time.Now().UTC()
	o.store.MarkLoading(k, startedAt)
	metrics.IncFetch(d.Name)
	v, err := d.Fetch(ctx, o)
	if err != nil {
		o.store.Fail(k, err, startedAt)
		return
	}
	o.store.Put(k, v, startedAt)
}

// Readiness is the single aggregate signal over a set of required nodes.
type Readiness struct {
	Loading bool
	Err     error
}

func (r Readiness) Ready() bool { return !r.Loading && r.Err == nil }

// Readiness reports loading if any required node is loading and the first
// error if any required node errored. Idle (gate-suppressed) nodes are
// neither.
func (o *Orchestrator) Readiness(keys ...cache.Key) Readiness {
	var r Readiness
	for _, k := range keys {
		e := o.store.Get(k)
		switch e.Status {
		case cache.StatusLoading:
			r.Loading = true
		case cache.StatusError:
			if r.Err == nil {
				r.Err = e.Err
			}
		}
	}
	return r
}

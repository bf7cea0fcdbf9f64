package inventory

import (
	"context"

	"golang.org/x/sync/errgroup"

	"servicehealth/internal/types"
)

// Source is the query surface the Discoverer depends on.
type Source interface {
	ActiveIssues(ctx context.Context, eventTypes []types.EventType) ([]types.HealthIssue, error)
	AdvisoryImpactedResources(ctx context.Context, trackingIDs []string) ([]types.ImpactedResource, error)
	MaintenanceImpactedResources(ctx context.Context, trackingIDs []string) ([]types.ImpactedResource, error)
	ImpactedSubscriptions(ctx context.Context, trackingIDs []string) ([]types.ImpactedSubscription, error)
}

// Discoverer turns a sweep into HealthImpact work items.
type Discoverer struct {
	source Source
	logger types.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(source Source, logger types.Logger) *Discoverer {
	return &Discoverer{source: source, logger: logger}
}

// Discover returns one HealthImpact per active issue covered by sweep, in
// issue order. Maintenance issues take their resources from the maintenance
// query and every other issue from the advisory query. Issues left without
// resources are completed with their impacted subscriptions.
func (d *Discoverer) Discover(ctx context.Context, sweep types.SweepKind) ([]types.HealthImpact, error) {
	issues, err := d.source.ActiveIssues(ctx, sweep.EventTypes())
	if err != nil {
		return nil, queryFailed("active_issues", err)
	}
	issues = latestPerTrackingID(issues)
	if len(issues) == 0 {
		d.logger.Info("no active issues", "sweep", string(sweep))
		return []types.HealthImpact{}, nil
	}

	var maintenanceIDs, advisoryIDs []string
	for _, issue := range issues {
		if issue.EventType.IsMaintenance() {
			maintenanceIDs = append(maintenanceIDs, issue.TrackingID)
		} else {
			advisoryIDs = append(advisoryIDs, issue.TrackingID)
		}
	}

	var maintenanceRes, advisoryRes []types.ImpactedResource
	g, gctx := errgroup.WithContext(ctx)
	if len(maintenanceIDs) > 0 {
		g.Go(func() error {
			var err error
			maintenanceRes, err = d.source.MaintenanceImpactedResources(gctx, maintenanceIDs)
			return err
		})
	}
	if len(advisoryIDs) > 0 {
		g.Go(func() error {
			var err error
			advisoryRes, err = d.source.AdvisoryImpactedResources(gctx, advisoryIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, queryFailed("impacted_resources", err)
	}

	byMaintenance := groupResources(maintenanceRes)
	byAdvisory := groupResources(advisoryRes)

	impacts := make([]types.HealthImpact, 0, len(issues))
	var bare []string
	for _, issue := range issues {
		resources := byAdvisory[issue.TrackingID]
		if issue.EventType.IsMaintenance() {
			resources = byMaintenance[issue.TrackingID]
		}
		if resources == nil {
			resources = []types.ImpactedResource{}
			bare = append(bare, issue.TrackingID)
		}
		impacts = append(impacts, types.HealthImpact{
			Issue:         issue,
			Resources:     resources,
			Subscriptions: []types.ImpactedSubscription{},
		})
	}

	if len(bare) > 0 {
		subs, err := d.source.ImpactedSubscriptions(ctx, bare)
		if err != nil {
			return nil, queryFailed("impacted_subscriptions", err)
		}
		bySub := make(map[string][]types.ImpactedSubscription)
		for _, s := range subs {
			bySub[s.TrackingID] = append(bySub[s.TrackingID], s)
		}
		for i := range impacts {
			if len(impacts[i].Resources) > 0 {
				continue
			}
			if s, ok := bySub[impacts[i].TrackingID()]; ok {
				impacts[i].Subscriptions = s
			}
		}
	}

	d.logger.Info("discovery completed",
		"sweep", string(sweep),
		"issues", len(issues),
		"maintenance_resources", len(maintenanceRes),
		"advisory_resources", len(advisoryRes),
		"subscription_fallbacks", len(bare),
	)
	return impacts, nil
}

func groupResources(rows []types.ImpactedResource) map[string][]types.ImpactedResource {
	out := make(map[string][]types.ImpactedResource)
	for _, r := range rows {
		out[r.TrackingID] = append(out[r.TrackingID], r)
	}
	return out
}

// latestPerTrackingID collapses duplicate rows for the same tracking ID,
// keeping the most recently updated one at the first row's position.
func latestPerTrackingID(issues []types.HealthIssue) []types.HealthIssue {
	index := make(map[string]int, len(issues))
	out := make([]types.HealthIssue, 0, len(issues))
	for _, issue := range issues {
		if i, ok := index[issue.TrackingID]; ok {
			if issue.LastUpdateTime.After(out[i].LastUpdateTime) {
				out[i] = issue
			}
			continue
		}
		index[issue.TrackingID] = len(out)
		out = append(out, issue)
	}
	return out
}

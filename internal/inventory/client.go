package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"servicehealth/internal/external"
	"servicehealth/internal/types"
)

// Client runs the four inventory queries. Queries taking a tracking-ID set
// make no remote call when the set is empty.
type Client struct {
	graph  external.GraphQuerier
	logger types.Logger
}

// NewClient creates a Client over graph.
func NewClient(graph external.GraphQuerier, logger types.Logger) *Client {
	return &Client{graph: graph, logger: logger}
}

// ActiveIssues returns unmitigated issues of the given event types.
func (c *Client) ActiveIssues(ctx context.Context, eventTypes []types.EventType) ([]types.HealthIssue, error) {
	if len(eventTypes) == 0 {
		return []types.HealthIssue{}, nil
	}
	rows, err := c.run(ctx, "active_issues", activeIssuesQuery(eventTypes))
	if err != nil {
		return nil, err
	}
	decoded, err := decodeRows[issueRow](rows)
	if err != nil {
		return nil, queryFailed("active_issues", err)
	}
	issues := make([]types.HealthIssue, 0, len(decoded))
	for _, r := range decoded {
		issues = append(issues, r.toIssue())
	}
	return issues, nil
}

// AdvisoryImpactedResources returns resources impacted by health advisories.
func (c *Client) AdvisoryImpactedResources(ctx context.Context, trackingIDs []string) ([]types.ImpactedResource, error) {
	return c.resources(ctx, "advisory_resources", trackingIDs, advisoryResourcesQuery)
}

// MaintenanceImpactedResources returns resources scheduled for planned
// maintenance.
func (c *Client) MaintenanceImpactedResources(ctx context.Context, trackingIDs []string) ([]types.ImpactedResource, error) {
	return c.resources(ctx, "maintenance_resources", trackingIDs, maintenanceResourcesQuery)
}

// ImpactedSubscriptions returns the subscriptions that received the given
// issues.
func (c *Client) ImpactedSubscriptions(ctx context.Context, trackingIDs []string) ([]types.ImpactedSubscription, error) {
	if len(trackingIDs) == 0 {
		return []types.ImpactedSubscription{}, nil
	}
	rows, err := c.run(ctx, "impacted_subscriptions", subscriptionsQuery(trackingIDs))
	if err != nil {
		return nil, err
	}
	subs, err := decodeRows[types.ImpactedSubscription](rows)
	if err != nil {
		return nil, queryFailed("impacted_subscriptions", err)
	}
	return subs, nil
}

func (c *Client) resources(ctx context.Context, name string, trackingIDs []string, build func([]string) string) ([]types.ImpactedResource, error) {
	if len(trackingIDs) == 0 {
		return []types.ImpactedResource{}, nil
	}
	rows, err := c.run(ctx, name, build(trackingIDs))
	if err != nil {
		return nil, err
	}
	decoded, err := decodeRows[resourceRow](rows)
	if err != nil {
		return nil, queryFailed(name, err)
	}
	out := make([]types.ImpactedResource, 0, len(decoded))
	for _, r := range decoded {
		out = append(out, r.toResource())
	}
	return out, nil
}

func (c *Client) run(ctx context.Context, name, query string) ([]json.RawMessage, error) {
	rows, err := c.graph.Query(ctx, query)
	if err != nil {
		return nil, queryFailed(name, err)
	}
	c.logger.Info("inventory query completed", "query", name, "rows", len(rows))
	return rows, nil
}

// queryFailed wraps err as upstream_query_failed unless it already is one.
func queryFailed(name string, err error) error {
	if types.CodeOf(err) == types.ErrCodeUpstreamQueryFailed {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamQueryFailed, fmt.Sprintf("inventory query %s failed: %v", name, err), err)
}

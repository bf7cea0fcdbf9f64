// Package inventory reads active Service Health issues and their impacted
// resources and subscriptions from Azure Resource Graph, and assembles them
// into HealthImpact work items.
package inventory

import (
	"fmt"
	"strings"

	"servicehealth/internal/types"
)

// QuoteList renders values as a KQL list body: "a","b". Backslashes and
// double quotes are escaped.
func QuoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ",")
}

func eventTypeList(eventTypes []types.EventType) string {
	values := make([]string, len(eventTypes))
	for i, e := range eventTypes {
		values[i] = string(e)
	}
	return QuoteList(values)
}

// activeIssuesQuery selects unmitigated events of the given types, one row
// per tracking ID with the most recent update time.
func activeIssuesQuery(eventTypes []types.EventType) string {
	return fmt.Sprintf(`ServiceHealthResources
| where type =~ 'Microsoft.ResourceHealth/events'
| extend eventType = tostring(properties.EventType), eventSubType = tostring(properties.EventSubType), status = tostring(properties.Status), title = tostring(properties.Title), trackingId = tostring(properties.TrackingId), summary = tostring(properties.Summary), impactStartTime = todatetime(tolong(properties.ImpactStartTime)), impactMitigationTime = todatetime(tolong(properties.ImpactMitigationTime)), lastUpdateTime = todatetime(tolong(properties.LastUpdateTime)), platformInitiated = tostring(properties.PlatformInitiated)
| where eventType in (%s) and impactMitigationTime > now()
| summarize lastUpdateTime = max(lastUpdateTime) by trackingId, eventType, eventSubType, title, summary, status, impactStartTime, impactMitigationTime, platformInitiated
| order by trackingId asc`, eventTypeList(eventTypes))
}

func advisoryResourcesQuery(trackingIDs []string) string {
	return fmt.Sprintf(`ServiceHealthResources
| where type == "microsoft.resourcehealth/events/impactedresources"
| extend trackingId = tostring(split(split(id, "/events/", 1)[0], "/impactedResources", 0)[0])
| where trackingId in (%s)
| extend p = parse_json(properties)
| project subscriptionId, trackingId, tags = tostring(tags), name = tostring(p.resourceName), resourceGroup = tostring(p.resourceGroup), type = tostring(p.targetResourceType), resourceId = tostring(p.targetResourceId), status = tostring(p.status)`, QuoteList(trackingIDs))
}

func maintenanceResourcesQuery(trackingIDs []string) string {
	return fmt.Sprintf(`resources
| project resource = tolower(id), name, tags, type, resourceGroup, subscriptionId
| join kind=inner (
    maintenanceresources
    | where type == "microsoft.maintenance/updates"
    | extend p = parse_json(properties)
    | mvexpand d = p.value
    | where d has 'notificationId' and d.notificationId in (%s)
    | project resource = tolower(name), status = tostring(d.status), trackingId = tostring(d.notificationId)
) on resource
| project resourceId = resource, name, type, status, trackingId, resourceGroup, subscriptionId, tags = tostring(tags)`, QuoteList(trackingIDs))
}

func subscriptionsQuery(trackingIDs []string) string {
	return fmt.Sprintf(`ServiceHealthResources
| where type =~ 'Microsoft.ResourceHealth/events'
| extend trackingId = tostring(properties.TrackingId)
| where trackingId in (%s)
| join kind=inner (
    resourcecontainers
    | where type == 'microsoft.resources/subscriptions'
    | project subscriptionId, subscriptionName = name
) on subscriptionId
| project trackingId, subscriptionId, name = subscriptionName`, QuoteList(trackingIDs))
}

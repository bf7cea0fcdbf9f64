package types

import (
	"strings"
)

// EventType is the Service Health event discriminator reported by the inventory.
type EventType string

const (
	EventHealthAdvisory     EventType = "HealthAdvisory"
	EventPlannedMaintenance EventType = "PlannedMaintenance"
	EventServiceIssue       EventType = "ServiceIssue"
	EventSecurityAdvisory   EventType = "SecurityAdvisory"
)

// IsMaintenance reports whether the event is a planned maintenance event.
// Comparison is case-insensitive to match inventory query semantics.
func (e EventType) IsMaintenance() bool {
	return strings.EqualFold(string(e), string(EventPlannedMaintenance))
}

// ChannelType identifies a notification fan-out channel.
type ChannelType string

const (
	ChannelEmail  ChannelType = "email"
	ChannelITSM   ChannelType = "itsm"
	ChannelDevOps ChannelType = "devops"
	ChannelOther  ChannelType = "other"
)

// AllChannels lists every supported channel in dispatch order.
var AllChannels = []ChannelType{ChannelEmail, ChannelITSM, ChannelDevOps, ChannelOther}

// Valid reports whether c is a known channel.
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelEmail, ChannelITSM, ChannelDevOps, ChannelOther:
		return true
	}
	return false
}

// ParseChannels parses a comma-separated channel list such as
// "email,itsm". Entries are trimmed and lower-cased, unknown entries are
// dropped and duplicates collapse to their first occurrence.
func ParseChannels(csv string) []ChannelType {
	var out []ChannelType
	seen := make(map[ChannelType]bool)
	for _, part := range strings.Split(csv, ",") {
		c := ChannelType(strings.ToLower(strings.TrimSpace(part)))
		if !c.Valid() || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DeliveryState is the per-notification delivery state.
type DeliveryState string

const (
	DeliveryPending     DeliveryState = "PENDING"
	DeliverySent        DeliveryState = "SENT"
	DeliveryRateLimited DeliveryState = "RATE_LIMITED"
	DeliveryFailed      DeliveryState = "FAILED"
	// DeliverySkipped is reported when outbound mail is disabled.
	DeliverySkipped DeliveryState = "SKIPPED"
)

// SweepKind selects which discovery sweep runs.
type SweepKind string

const (
	// SweepMaintenance runs frequently and only covers planned maintenance.
	SweepMaintenance SweepKind = "maintenance"
	// SweepHealth runs daily, covers advisories and maintenance, and writes
	// the consolidated report.
	SweepHealth SweepKind = "health"
)

// EventTypes returns the event types a sweep covers.
func (s SweepKind) EventTypes() []EventType {
	switch s {
	case SweepMaintenance:
		return []EventType{EventPlannedMaintenance}
	case SweepHealth:
		return []EventType{EventHealthAdvisory, EventPlannedMaintenance}
	}
	return nil
}

// WritesReport reports whether the sweep produces a consolidated report blob.
func (s SweepKind) WritesReport() bool {
	return s == SweepHealth
}

// OutputKind distinguishes queue writes from blob writes.
type OutputKind string

const (
	OutputQueue OutputKind = "queue"
	OutputBlob  OutputKind = "blob"
)

// Logical queue names.
const (
	QueueNotifications       = "notifications"
	QueueNotificationsEmail  = "notifications-email"
	QueueNotificationsITSM   = "notifications-itsm"
	QueueNotificationsDevOps = "notifications-devops"
	QueueNotificationsOther  = "notifications-other"
	QueueRetryEmail          = "retry-email"
	QueueFailedEmail         = "failed-email"
)

// QueueFor returns the logical queue a channel's fan-out writes to.
func (c ChannelType) QueueFor() string {
	return "notifications-" + string(c)
}

// ChannelForQueue is the inverse of QueueFor. ok is false for queues that do
// not belong to a channel.
func ChannelForQueue(queueName string) (ChannelType, bool) {
	for _, c := range AllChannels {
		if c.QueueFor() == queueName {
			return c, true
		}
	}
	return "", false
}

// Blob prefixes.
const (
	PrefixNotificationHistory = "health-notifications-history/"
	PrefixReports             = "health-reports/"
	PrefixReportHistory       = "health-report-history/"
)

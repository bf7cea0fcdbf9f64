package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"servicehealth/internal/types"
)

// Resource Graph returns projected columns loosely typed: tostring() turns
// booleans and dynamic bags into strings, and missing values arrive as
// null or "". The flex types below absorb both shapes.

type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" || s == `""` {
		*t = flexTime{}
		return nil
	}
	var parsed time.Time
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*t = flexTime(parsed.UTC())
	return nil
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*b = flexBool(x)
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(x))
		*b = flexBool(parsed)
	default:
		*b = false
	}
	return nil
}

// flexTags accepts a JSON object or a string holding one.
type flexTags map[string]string

func (t *flexTags) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || s == "null" {
			*t = nil
			return nil
		}
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
	}
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) == 0 {
		*t = nil
		return nil
	}
	tags := make(flexTags, len(obj))
	for k, v := range obj {
		switch x := v.(type) {
		case string:
			tags[k] = x
		case nil:
			tags[k] = ""
		default:
			tags[k] = fmt.Sprint(x)
		}
	}
	*t = tags
	return nil
}

type issueRow struct {
	TrackingID           string   `json:"trackingId"`
	EventType            string   `json:"eventType"`
	EventSubType         string   `json:"eventSubType"`
	Status               string   `json:"status"`
	Title                string   `json:"title"`
	Summary              string   `json:"summary"`
	ImpactStartTime      flexTime `json:"impactStartTime"`
	ImpactMitigationTime flexTime `json:"impactMitigationTime"`
	LastUpdateTime       flexTime `json:"lastUpdateTime"`
	PlatformInitiated    flexBool `json:"platformInitiated"`
}

// The issue title is the description shown in notifications.
func (r issueRow) toIssue() types.HealthIssue {
	return types.HealthIssue{
		TrackingID:           r.TrackingID,
		EventType:            types.EventType(r.EventType),
		EventSubType:         r.EventSubType,
		Status:               r.Status,
		Title:                r.Title,
		Summary:              r.Summary,
		Description:          r.Title,
		ImpactStartTime:      time.Time(r.ImpactStartTime),
		ImpactMitigationTime: time.Time(r.ImpactMitigationTime),
		LastUpdateTime:       time.Time(r.LastUpdateTime),
		PlatformInitiated:    bool(r.PlatformInitiated),
	}
}

type resourceRow struct {
	ResourceID     string   `json:"resourceId"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	ResourceGroup  string   `json:"resourceGroup"`
	SubscriptionID string   `json:"subscriptionId"`
	TrackingID     string   `json:"trackingId"`
	Status         string   `json:"status"`
	Tags           flexTags `json:"tags"`
}

func (r resourceRow) toResource() types.ImpactedResource {
	return types.ImpactedResource{
		ResourceID:     r.ResourceID,
		Name:           r.Name,
		Type:           r.Type,
		ResourceGroup:  r.ResourceGroup,
		SubscriptionID: r.SubscriptionID,
		TrackingID:     r.TrackingID,
		Status:         r.Status,
		Tags:           map[string]string(r.Tags),
	}
}

func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

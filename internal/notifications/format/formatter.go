// Package format renders HealthImpacts into notification and report HTML.
// Rendering is pure: the same input always yields byte-identical output.
package format

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"sort"
	"strings"
	"time"

	"servicehealth/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// DateLayout is used for every timestamp in rendered output.
const DateLayout = "02/01/2006 15:04"

// Portal blades linked from notifications.
const (
	PlannedMaintenanceURL = "https://portal.azure.com/#view/Microsoft_Azure_Health/AzureHealthBrowseBlade/~/plannedMaintenance"
	HealthAdvisoriesURL   = "https://portal.azure.com/#view/Microsoft_Azure_Health/AzureHealthBrowseBlade/~/healthAdvisories"
)

// ReportSubject is the subject of the consolidated report email.
const ReportSubject = "Azure Service Health report"

// Formatter holds the parsed templates. It is safe for concurrent use.
type Formatter struct {
	templates *template.Template
}

type notificationData struct {
	Issue         types.HealthIssue
	Summary       template.HTML
	Resources     []types.ImpactedResource
	Subscriptions []types.ImpactedSubscription
	Maintenance   bool
	PortalLink    string
}

type reportData struct {
	GeneratedOn string
	Items       []types.HealthImpact
}

// New parses the embedded templates.
func New() (*Formatter, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"date":   FormatDate,
		"tags":   FormatTags,
		"portal": func(issue types.HealthIssue) string { return PortalLink(issue.EventType) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("format: failed to parse templates: %w", err)
	}
	return &Formatter{templates: tmpl}, nil
}

// Format renders one impact. BodyText is the issue description.
func (f *Formatter) Format(impact types.HealthImpact) (types.RenderedNotification, error) {
	data := notificationData{
		Issue: impact.Issue,
		// Summaries are HTML authored by Azure Service Health.
		Summary:       template.HTML(impact.Issue.Summary),
		Resources:     impact.Resources,
		Subscriptions: impact.Subscriptions,
		Maintenance:   impact.Issue.EventType.IsMaintenance(),
		PortalLink:    PortalLink(impact.Issue.EventType),
	}

	var buf bytes.Buffer
	if err := f.templates.ExecuteTemplate(&buf, "notification", data); err != nil {
		return types.RenderedNotification{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to render notification %s", impact.TrackingID()), err)
	}
	return types.RenderedNotification{
		BodyHTML: buf.String(),
		BodyText: impact.Issue.Description,
	}, nil
}

// FormatReport renders the consolidated report. generatedAt is explicit so
// the output stays deterministic.
func (f *Formatter) FormatReport(impacts []types.HealthImpact, generatedAt time.Time) (types.RenderedNotification, error) {
	generatedOn := FormatDate(generatedAt)

	var buf bytes.Buffer
	if err := f.templates.ExecuteTemplate(&buf, "report", reportData{GeneratedOn: generatedOn, Items: impacts}); err != nil {
		return types.RenderedNotification{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render report", err)
	}
	return types.RenderedNotification{
		BodyHTML: buf.String(),
		BodyText: "Azure Service Health report generated on " + generatedOn,
	}, nil
}

// Subject is the email subject for an impact: the summary with markup
// stripped, else the description, else the tracking ID.
func Subject(impact types.HealthImpact) string {
	for _, candidate := range []string{html.UnescapeString(stripTags(impact.Issue.Summary)), impact.Issue.Description} {
		if s := strings.Join(strings.Fields(candidate), " "); s != "" {
			return truncate(s, 200)
		}
	}
	return impact.TrackingID()
}

// PortalLink returns the Service Health blade for an event type.
func PortalLink(eventType types.EventType) string {
	if eventType.IsMaintenance() {
		return PlannedMaintenanceURL
	}
	return HealthAdvisoriesURL
}

// FormatDate renders t in UTC with DateLayout, or "-" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(DateLayout)
}

// FormatTags renders tags as "k1=v1, k2=v2" sorted by key.
func FormatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + tags[k]
	}
	return strings.Join(pairs, ", ")
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"servicehealth/internal/types"
)

const (
	resourceGraphAPIVersion = "2022-10-01"
	resourceGraphPageSize   = 1000
	// resourceGraphMaxPages bounds $skipToken paging.
	resourceGraphMaxPages = 50
)

// ResourceGraphConfig holds the configuration for a ResourceGraphClient.
type ResourceGraphConfig struct {
	Endpoint      string // e.g. https://management.azure.com
	AuthorityHost string // e.g. https://login.microsoftonline.com
	TenantID      string
	ClientID      string
	ClientSecret  string
	Subscriptions []string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// ResourceGraphClient implements GraphQuerier against the Azure Resource
// Graph REST API. Requests carry an Azure AD client-credentials token and go
// through BaseClient for retries and circuit breaking.
type ResourceGraphClient struct {
	base          *BaseClient
	endpoint      string
	subscriptions []string
	logger        *slog.Logger
}

// NewResourceGraphClient creates a client whose HTTP transport fetches and
// refreshes tokens from the tenant's v2.0 token endpoint.
func NewResourceGraphClient(cfg ResourceGraphConfig) *ResourceGraphClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(cfg.AuthorityHost, "/"), cfg.TenantID),
		Scopes:       []string{endpoint + "/.default"},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := creds.Client(tokenCtx)
	httpClient.Timeout = timeout

	base := NewBaseClient(httpClient, "resource-graph", DefaultRetryPolicy(), "ServiceHealth/1.0")
	return NewResourceGraphClientWithBase(base, cfg)
}

// NewResourceGraphClientWithBase creates a client with a pre-configured
// BaseClient. Authentication is whatever the BaseClient's http.Client does.
func NewResourceGraphClientWithBase(base *BaseClient, cfg ResourceGraphConfig) *ResourceGraphClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceGraphClient{
		base:          base,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		subscriptions: cfg.Subscriptions,
		logger:        logger,
	}
}

type graphRequest struct {
	Subscriptions []string     `json:"subscriptions,omitempty"`
	Query         string       `json:"query"`
	Options       graphOptions `json:"options"`
}

type graphOptions struct {
	ResultFormat string `json:"resultFormat"`
	Top          int    `json:"$top,omitempty"`
	SkipToken    string `json:"$skipToken,omitempty"`
}

type graphResponse struct {
	TotalRecords int64             `json:"totalRecords"`
	Count        int64             `json:"count"`
	Data         []json.RawMessage `json:"data"`
	SkipToken    string            `json:"$skipToken"`
}

type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Query runs query and follows $skipToken until every page is read.
func (c *ResourceGraphClient) Query(ctx context.Context, query string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	skipToken := ""

	for page := 0; page < resourceGraphMaxPages; page++ {
		resp, err := c.queryPage(ctx, query, skipToken)
		if err != nil {
			return nil, err
		}
		rows = append(rows, resp.Data...)

		if resp.SkipToken == "" {
			return rows, nil
		}
		skipToken = resp.SkipToken
	}

	c.logger.Warn("resource graph paging limit reached", "pages", resourceGraphMaxPages, "rows", len(rows))
	return rows, nil
}

func (c *ResourceGraphClient) queryPage(ctx context.Context, query, skipToken string) (*graphResponse, error) {
	body, err := json.Marshal(graphRequest{
		Subscriptions: c.subscriptions,
		Query:         query,
		Options: graphOptions{
			ResultFormat: "objectArray",
			Top:          resourceGraphPageSize,
			SkipToken:    skipToken,
		},
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal resource graph request", err)
	}

	reqURL := fmt.Sprintf("%s/providers/Microsoft.ResourceGraph/resources?api-version=%s", c.endpoint, resourceGraphAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create resource graph request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamQueryFailed, "failed to read resource graph response", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(raw))
		var graphErr graphErrorResponse
		if json.Unmarshal(raw, &graphErr) == nil && graphErr.Error.Message != "" {
			message = graphErr.Error.Code + ": " + graphErr.Error.Message
		}
		return nil, types.NewAppError(
			types.ErrCodeUpstreamQueryFailed,
			fmt.Sprintf("resource graph returned %d: %s", resp.StatusCode, message),
			nil,
		)
	}

	var out graphResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamQueryFailed, "failed to decode resource graph response", err)
	}
	return &out, nil
}

var _ GraphQuerier = (*ResourceGraphClient)(nil)

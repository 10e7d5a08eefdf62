package entitlements

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
)

// ActiveEntitlement is one currently active grant for a customer.
// ExpiresAtMs is nil for grants without expiry.
type ActiveEntitlement struct {
	EntitlementID string `json:"entitlement_id"`
	ExpiresAtMs   *int64 `json:"expires_at"`
}

// Store is the entitlement store surface the reconciler relies on. Grant is
// "grant unless already present"; there is no way to move an expiry.
type Store interface {
	ActiveEntitlements(ctx context.Context, customerID string) ([]ActiveEntitlement, error)
	Grant(ctx context.Context, customerID, entitlementID string, expiresAtMs int64) error
	Revoke(ctx context.Context, customerID, entitlementID string) error
}

// APIError is a non-2xx answer from the entitlement store.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("entitlement store %s failed: status=%d body=%s", e.Op, e.Status, e.Body)
}

// Client talks to the v2 entitlement store API.
type Client struct {
	APIKey     string
	ProjectID  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewClient(cfg config.Entitlements) *Client {
	return &Client{
		APIKey:     cfg.APIKey,
		ProjectID:  cfg.ProjectID,
		APIBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) customerURL(customerID string, suffix string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.ProjectID) == "" {
		return "", fmt.Errorf("%w: entitlement store api key/project id", config.ErrMissingCredentials)
	}
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return "", errors.New("customer id is required")
	}
	return fmt.Sprintf("%s/projects/%s/customers/%s/%s",
		c.APIBaseURL, url.PathEscape(c.ProjectID), url.PathEscape(cid), suffix), nil
}

// ActiveEntitlements lists the customer's active grants. An unknown customer
// has none.
func (c *Client) ActiveEntitlements(ctx context.Context, customerID string) ([]ActiveEntitlement, error) {
	u, err := c.customerURL(customerID, "active_entitlements")
	if err != nil {
		return nil, err
	}

	var out []ActiveEntitlement
	for u != "" {
		status, body, err := c.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, nil
		}
		if status < 200 || status >= 300 {
			return nil, &APIError{Op: "list active entitlements", Status: status, Body: string(body)}
		}

		var page struct {
			Items    []ActiveEntitlement `json:"items"`
			NextPage *string             `json:"next_page"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Items...)

		u = ""
		if page.NextPage != nil && *page.NextPage != "" {
			u = c.resolvePage(*page.NextPage)
		}
	}
	return out, nil
}

// Grant grants entitlementID until expiresAtMs (epoch milliseconds).
func (c *Client) Grant(ctx context.Context, customerID, entitlementID string, expiresAtMs int64) error {
	u, err := c.customerURL(customerID, "actions/grant_entitlement")
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"entitlement_id": entitlementID,
		"expires_at":     expiresAtMs,
	}
	status, body, err := c.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Op: "grant entitlement", Status: status, Body: string(body)}
	}
	return nil
}

// Revoke removes a previously granted entitlement.
func (c *Client) Revoke(ctx context.Context, customerID, entitlementID string) error {
	u, err := c.customerURL(customerID, "actions/revoke_granted_entitlement")
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"entitlement_id": entitlementID,
	}
	status, body, err := c.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Op: "revoke entitlement", Status: status, Body: string(body)}
	}
	return nil
}

// next_page comes back as an absolute path starting at the API version.
func (c *Client) resolvePage(next string) string {
	if strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		return next
	}
	base, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(next)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(ref.Path, "/v2/") && strings.HasSuffix(base.Path, "/v2") {
		ref.Path = strings.TrimPrefix(ref.Path, "/v2")
	}
	return base.Scheme + "://" + base.Host + base.Path + ref.Path + queryPart(ref)
}

func queryPart(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

func (c *Client) do(ctx context.Context, method, u string, payload interface{}) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, nil
}

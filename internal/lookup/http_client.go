package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/metrics"
)

// TokenSource mints a signed request token for one outgoing call.
// Satisfied by *tokens.Signer.
type TokenSource interface {
	Sign(ctx context.Context) (string, error)
}

// HTTPClient implements Client against the partner's Lookup API over HTTPS.
// Every request carries a freshly signed bearer token with its own nonce, the
// mirror image of the validation we apply to incoming tokens.
type HTTPClient struct {
	endpoint string
	signer   TokenSource
	client   *http.Client
}

// NewHTTPClient creates a Lookup API client for the given endpoint base URL.
func NewHTTPClient(endpoint string, signer TokenSource, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/") + "/",
		signer:   signer,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) AccountLookup(ctx context.Context, externalAccountID string) (*AccountDescriptor, error) {
	var desc AccountDescriptor
	u := c.endpoint + "account/" + url.PathEscape(externalAccountID) + ".json"
	if err := c.get(ctx, "account", u, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *HTTPClient) UserLookup(ctx context.Context, externalAccountID, externalUserID string) (*UserDescriptor, error) {
	var desc UserDescriptor
	u := c.endpoint + "account/" + url.PathEscape(externalAccountID) + "/users/" + url.PathEscape(externalUserID) + ".json"
	if err := c.get(ctx, "user", u, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *HTTPClient) BulkUserLookup(ctx context.Context, externalAccountID string) ([]UserDescriptor, error) {
	var descs []UserDescriptor
	u := c.endpoint + "account/" + url.PathEscape(externalAccountID) + "/users.json"
	if err := c.get(ctx, "bulk_user", u, &descs); err != nil {
		return nil, err
	}
	return descs, nil
}

// get issues an authenticated GET and decodes the JSON response into out.
func (c *HTTPClient) get(ctx context.Context, kind, rawURL string, out interface{}) error {
	tok, err := c.signer.Sign(ctx)
	if err != nil {
		return fmt.Errorf("lookup: signing request token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("lookup: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	logger.Debugf("lookup: issuing %s request to %s", kind, rawURL)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.LookupRequests.WithLabelValues(kind, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			logger.Warnf("lookup: %s request timed out: %v", kind, err)
			return ErrRemoteTimeout
		}
		logger.Warnf("lookup: %s request failed: %v", kind, err)
		return ErrRemoteUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warnf("lookup: %s request returned %d: %s", kind, resp.StatusCode, string(body))
		if resp.StatusCode >= 500 {
			metrics.LookupRequests.WithLabelValues(kind, "error").Inc()
			return ErrRemoteUnavailable
		}
		metrics.LookupRequests.WithLabelValues(kind, "not_found").Inc()
		return ErrNotFound
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.LookupRequests.WithLabelValues(kind, "error").Inc()
		logger.Warnf("lookup: %s response decode failed: %v", kind, err)
		return ErrRemoteUnavailable
	}

	metrics.LookupRequests.WithLabelValues(kind, "ok").Inc()
	return nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

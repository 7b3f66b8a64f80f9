// package salesforce implements a rate-limited client for the Salesforce
// REST API with retries, daily-quota tracking, and object metadata caching.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"golang.org/x/time/rate"
)

// maxAttempts bounds retries for 429s, 5xx responses, and transport errors.
const maxAttempts = 5

var limitInfoPattern = regexp.MustCompile(`api-usage=(\d+)/(\d+)`)

// APIError is a non-retriable (4xx) API failure carrying the response body.
type APIError struct {
	Status int
	Body   string
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d Client Error for path %s: %s", e.Status, e.Path, e.Body)
}

// IsNotFound reports whether the error is a Salesforce 404.
func (e *APIError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// Response is a decoded-enough API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Client talks to the Salesforce REST API for one org.
//
// All calls are paced through a token-bucket limiter and guarded by the
// daily API quota check; crossing the configured percentage aborts the run
// via [shared.ErrQuotaExceeded] rather than failing mid-batch later.
type Client struct {
	config     *shared.Config
	auth       *Authenticator
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	mu        sync.Mutex
	fieldSets map[string]*FieldSet
}

// NewClient creates a Client using the given config and authenticator.
func NewClient(config *shared.Config, auth *Authenticator, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if auth == nil {
		auth = NewAuthenticator(config, logger)
	}

	return &Client{
		config:     config,
		auth:       auth,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
		fieldSets:  map[string]*FieldSet{},
	}
}

// Auth exposes the authenticator for CLI commands.
func (c *Client) Auth() *Authenticator { return c.auth }

// URL builds a full REST URL for the given endpoint under /services/data/{version}/.
func (c *Client) URL(ctx context.Context, endpoint string) (string, error) {
	instanceURL, err := c.auth.InstanceURL(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/services/data/%s/%s", instanceURL, c.config.APIVersion, strings.TrimPrefix(endpoint, "/")), nil
}

// Get performs a GET request against a REST endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	return c.request(ctx, http.MethodGet, endpoint, params, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.request(ctx, http.MethodPost, endpoint, nil, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.request(ctx, http.MethodPatch, endpoint, nil, body)
}

// request performs a rate-limited API call with exponential-backoff retries.
//
// 429 and 5xx responses plus transport errors are retried up to maxAttempts;
// other 4xx responses surface immediately as *APIError so sink decision
// trees can branch on them.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var resp *Response
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var err error
		resp, err = c.do(ctx, method, endpoint, params, payload)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	if err := c.checkLimits(resp.Header); err != nil {
		return nil, err
	}
	return resp, nil
}

// do performs a single HTTP attempt and classifies the outcome for retry.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload []byte) (*Response, error) {
	fullURL, err := c.URL(ctx, endpoint)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors (timeouts included) are retriable.
		return nil, fmt.Errorf("%w: %v", shared.ErrRetriableAPI, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", shared.ErrRetriableAPI, err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d Server Error for path %s", shared.ErrRetriableAPI, httpResp.StatusCode, endpoint)
	case httpResp.StatusCode >= 400:
		return nil, backoff.Permanent(&APIError{
			Status: httpResp.StatusCode,
			Body:   string(data),
			Path:   endpoint,
		})
	}

	return resp, nil
}

// checkLimits inspects the Sforce-Limit-Info header and aborts the run once
// the org's daily REST quota usage crosses the configured percentage.
func (c *Client) checkLimits(header http.Header) error {
	limitInfo := header.Get("Sforce-Limit-Info")
	match := limitInfoPattern.FindStringSubmatch(limitInfo)
	if match == nil {
		return nil
	}

	used, _ := strconv.Atoi(match[1])
	allotted, _ := strconv.Atoi(match[2])
	if allotted == 0 {
		return nil
	}

	c.logger.Info("daily REST API quota", "used", used, "allotted", allotted)

	percentUsed := float64(used) / float64(allotted) * 100
	if percentUsed > c.config.QuotaPercent {
		return fmt.Errorf(
			"%w: %d/%d (%.2f%%) of the org-wide REST quota is in use, past the configured %.0f%% ceiling; terminating replication",
			shared.ErrQuotaExceeded, used, allotted, percentUsed, c.config.QuotaPercent)
	}
	return nil
}

// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
)

// AuthedConfig returns a config holding a fresh token so clients built from
// it never attempt an OAuth refresh.
func AuthedConfig(instanceURL string) *shared.Config {
	return &shared.Config{
		AccessToken:       "test-token",
		InstanceURL:       instanceURL,
		IssuedAt:          time.Now().UnixMilli(),
		APIVersion:        shared.DefaultAPIVersion,
		QuotaPercent:      shared.DefaultQuotaPercent,
		RequestsPerSecond: 1000,
	}
}

// NewServer starts a fake Salesforce instance and returns a client bound to
// it. The server is torn down with the test.
func NewServer(t *testing.T, handler http.Handler) (*salesforce.Client, *shared.Config) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := AuthedConfig(server.URL)
	client := salesforce.NewClient(config, nil, server.Client(), shared.NewLogger(io.Discard))
	return client, config
}

// APIPath prefixes a REST endpoint the way the client builds URLs.
func APIPath(endpoint string) string {
	return "/services/data/" + shared.DefaultAPIVersion + "/" + endpoint
}

// WriteJSON serves v as a JSON response body.
func WriteJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
}

// DescribeResponse wraps fields in the envelope a describe call returns.
func DescribeResponse(fields ...salesforce.Field) map[string]any {
	return map[string]any{"fields": fields}
}

// QueryResponse wraps records in the envelope a SOQL query returns.
func QueryResponse(records ...map[string]any) map[string]any {
	return map[string]any{"records": records}
}

// MemoryCache is an in-process LookupCache for sink tests.
type MemoryCache struct {
	Entries map[string]string
	Puts    int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{Entries: map[string]string{}}
}

func (c *MemoryCache) Get(kind, key string) (string, bool) {
	id, ok := c.Entries[kind+"|"+key]
	return id, ok
}

func (c *MemoryCache) Put(kind, key, id string) error {
	c.Entries[kind+"|"+key] = id
	c.Puts++
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

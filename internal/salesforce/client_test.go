package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crmbridge/target-salesforce/internal/shared"
)

// testClient builds a client against a fake instance whose token never
// needs refreshing.
func testClient(t *testing.T, handler http.Handler) (*Client, *shared.Config) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := &shared.Config{
		AccessToken:       "test-token",
		InstanceURL:       server.URL,
		IssuedAt:          time.Now().UnixMilli(),
		APIVersion:        shared.DefaultAPIVersion,
		QuotaPercent:      shared.DefaultQuotaPercent,
		RequestsPerSecond: 1000,
	}
	return NewClient(config, nil, server.Client(), shared.NewLogger(io.Discard)), config
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		t.Run("sends a bearer token to the versioned endpoint", func(t *testing.T) {
			var gotPath, gotAuth string
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				w.Write([]byte(`{"ok": true}`))
			}))

			resp, err := client.Get(ctx, "sobjects/Contact/describe", nil)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}

			if gotPath != "/services/data/v55.0/sobjects/Contact/describe" {
				t.Errorf("unexpected path %q", gotPath)
			}
			if gotAuth != "Bearer test-token" {
				t.Errorf("unexpected auth header %q", gotAuth)
			}

			var body map[string]any
			if err := resp.JSON(&body); err != nil {
				t.Fatalf("JSON failed: %v", err)
			}
			if body["ok"] != true {
				t.Errorf("unexpected body %v", body)
			}
		})

		t.Run("retries a 500 and succeeds", func(t *testing.T) {
			var calls atomic.Int32
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write([]byte(`{}`))
			}))

			if _, err := client.Get(ctx, "sobjects", nil); err != nil {
				t.Fatalf("expected retry to succeed, got %v", err)
			}
			if calls.Load() != 2 {
				t.Errorf("expected 2 attempts, got %d", calls.Load())
			}
		})

		t.Run("does not retry a 404", func(t *testing.T) {
			var calls atomic.Int32
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`[{"errorCode": "NOT_FOUND"}]`))
			}))

			_, err := client.Get(ctx, "sobjects/Contact/ExtID__c/missing", nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if !apiErr.IsNotFound() {
				t.Errorf("expected 404, got %d", apiErr.Status)
			}
			if calls.Load() != 1 {
				t.Errorf("expected a single attempt, got %d", calls.Load())
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("marshals the body as JSON", func(t *testing.T) {
			var received map[string]any
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("unexpected content type %q", ct)
				}
				json.NewDecoder(r.Body).Decode(&received)
				w.Write([]byte(`{"id": "003xx0001", "success": true}`))
			}))

			if _, err := client.Post(ctx, "sobjects/Contact", map[string]any{"LastName": "Doe"}); err != nil {
				t.Fatalf("Post failed: %v", err)
			}
			if received["LastName"] != "Doe" {
				t.Errorf("body not delivered, got %v", received)
			}
		})
	})

	t.Run("quota guard", func(t *testing.T) {
		t.Run("aborts past the configured ceiling", func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Sforce-Limit-Info", "api-usage=95000/100000")
				w.Write([]byte(`{}`))
			}))

			_, err := client.Get(ctx, "sobjects", nil)
			if !errors.Is(err, shared.ErrQuotaExceeded) {
				t.Errorf("expected ErrQuotaExceeded, got %v", err)
			}
		})

		t.Run("allows usage below the ceiling", func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Sforce-Limit-Info", "api-usage=100/100000")
				w.Write([]byte(`{}`))
			}))

			if _, err := client.Get(ctx, "sobjects", nil); err != nil {
				t.Errorf("expected success, got %v", err)
			}
		})

		t.Run("ignores a missing or malformed header", func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Sforce-Limit-Info", "something-else")
				w.Write([]byte(`{}`))
			}))

			if _, err := client.Get(ctx, "sobjects", nil); err != nil {
				t.Errorf("expected success, got %v", err)
			}
		})
	})

	t.Run("URL strips a leading slash", func(t *testing.T) {
		client, config := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		url, err := client.URL(ctx, "/query")
		if err != nil {
			t.Fatalf("URL failed: %v", err)
		}
		want := config.InstanceURL + "/services/data/v55.0/query"
		if url != want {
			t.Errorf("expected %q, got %q", want, url)
		}
	})

	t.Run("APIError message names the path", func(t *testing.T) {
		err := &APIError{Status: 400, Body: "bad", Path: "sobjects/Contact"}
		if !strings.Contains(err.Error(), "sobjects/Contact") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}

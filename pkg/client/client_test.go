package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/dex-client/internal/testutil"
	"github.com/Sternrassler/dex-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// newTestClient creates a client with a short backoff so retry tests stay fast.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig("dex-test/1.0.0")
	cfg.Retry.Backoff = 5 * time.Millisecond
	cfg.Tracker = ratelimit.NewTracker(ratelimit.NewMemoryStore(), zerolog.Nop())

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("dex/1.0.0"),
			expectError: false,
		},
		{
			name: "empty user agent",
			config: Config{
				Retry: DefaultRetryConfig(),
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "negative retries",
			config: Config{
				UserAgent: "dex/1.0.0",
				Retry:     RetryConfig{MaxRetries: -1, Backoff: Backoff},
			},
			expectError: true,
			errorMsg:    "max_retries must be >= 0 (got -1)",
		},
		{
			name: "zero backoff",
			config: Config{
				UserAgent: "dex/1.0.0",
				Retry:     RetryConfig{MaxRetries: 2},
			},
			expectError: true,
			errorMsg:    "backoff must be > 0 (got 0s)",
		},
		{
			name: "negative pacing",
			config: Config{
				UserAgent:         "dex/1.0.0",
				Retry:             DefaultRetryConfig(),
				RequestsPerSecond: -1,
			},
			expectError: true,
			errorMsg:    "requests_per_second must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("dex/1.0.0")

	if cfg.UserAgent != "dex/1.0.0" {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, "dex/1.0.0")
	}
	if cfg.Retry.MaxRetries != MaxRetries {
		t.Errorf("Retry.MaxRetries = %d, want %d", cfg.Retry.MaxRetries, MaxRetries)
	}
	if cfg.Retry.Backoff != Backoff {
		t.Errorf("Retry.Backoff = %v, want %v", cfg.Retry.Backoff, Backoff)
	}
	if cfg.RequestsPerSecond != 0 {
		t.Errorf("RequestsPerSecond = %v, want 0 (unlimited)", cfg.RequestsPerSecond)
	}
}

func TestGet_UserAgentSet(t *testing.T) {
	userAgentReceived := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	if _, err := client.Get(context.Background(), server.URL+"/pokemon/1"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if userAgentReceived != "dex-test/1.0.0" {
		t.Errorf("User-Agent = %q, want %q", userAgentReceived, "dex-test/1.0.0")
	}
}

func TestGet_RetriesRateLimit(t *testing.T) {
	mock := testutil.NewMockCatalog(3)
	defer mock.Close()
	mock.Script("/pokemon/1", testutil.NewRateLimitResponse(), testutil.NewRateLimitResponse())

	client := newTestClient(t)
	body, err := client.Get(context.Background(), mock.URL()+"/pokemon/1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(body) == 0 {
		t.Error("expected body after successful retry")
	}
	if got := mock.ItemFetches(1); got != 3 {
		t.Errorf("requests = %d, want 3 (two 429s then success)", got)
	}

	state, err := client.Tracker().GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Total != 2 {
		t.Errorf("tracker Total = %d, want 2", state.Total)
	}
	if state.Consecutive != 0 {
		t.Errorf("tracker Consecutive = %d, want 0 after success", state.Consecutive)
	}
}

func TestGet_RateLimitExhausted(t *testing.T) {
	mock := testutil.NewMockCatalog(3)
	defer mock.Close()
	mock.Script("/pokemon/1",
		testutil.NewRateLimitResponse(),
		testutil.NewRateLimitResponse(),
		testutil.NewRateLimitResponse(),
	)

	client := newTestClient(t)
	_, err := client.Get(context.Background(), mock.URL()+"/pokemon/1")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %T, want *NetworkError", err)
	}
	if netErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", netErr.StatusCode)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("errors.Is(err, ErrRetryExhausted) = false, err = %v", err)
	}
	if got := mock.ItemFetches(1); got != 3 {
		t.Errorf("requests = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestGet_NonRateLimitStatusNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		response  testutil.MockResponse
		wantClass ErrorClass
	}{
		{name: "not found", response: testutil.NewNotFoundResponse(), wantClass: ErrorClassClient},
		{name: "server error", response: testutil.NewServerErrorResponse(), wantClass: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog(1)
			defer mock.Close()
			mock.Script("/pokemon/1", tt.response)

			client := newTestClient(t)
			_, err := client.Get(context.Background(), mock.URL()+"/pokemon/1")

			var netErr *NetworkError
			if !errors.As(err, &netErr) {
				t.Fatalf("err = %v, want *NetworkError", err)
			}
			if netErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", netErr.ErrorClass, tt.wantClass)
			}
			if got := mock.ItemFetches(1); got != 1 {
				t.Errorf("requests = %d, want 1 (no retry)", got)
			}
		})
	}
}

func TestGet_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t)
	_, err := client.Get(context.Background(), url+"/pokemon/1")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if netErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", netErr.ErrorClass, ErrorClassNetwork)
	}
}

func TestFetchJSON(t *testing.T) {
	mock := testutil.NewMockCatalog(2)
	defer mock.Close()

	client := newTestClient(t)

	var payload struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := client.FetchJSON(context.Background(), mock.URL()+"/pokemon/2", &payload); err != nil {
		t.Fatalf("FetchJSON() failed: %v", err)
	}
	if payload.ID != 2 || payload.Name != "item-2" {
		t.Errorf("payload = %+v, want id 2 name item-2", payload)
	}
}

func TestFetchJSON_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(t)
	var v map[string]any
	if err := client.FetchJSON(context.Background(), server.URL+"/type", &v); err == nil {
		t.Error("expected decode error")
	}
}

func TestGet_Pacing(t *testing.T) {
	mock := testutil.NewMockCatalog(3)
	defer mock.Close()

	cfg := DefaultConfig("dex-test/1.0.0")
	cfg.RequestsPerSecond = 20
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	for range 3 {
		if _, err := client.Get(context.Background(), mock.URL()+"/pokemon/1"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	// Burst 1 at 20 rps: the 2nd and 3rd requests each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 80ms with pacing", elapsed)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://pokeapi.co/api/v2/pokemon?limit=24", "/pokemon"},
		{"https://pokeapi.co/api/v2/pokemon/25/", "/pokemon/{ref}"},
		{"https://pokeapi.co/api/v2/pokemon/pikachu", "/pokemon/{ref}"},
		{"https://pokeapi.co/api/v2/type", "/type"},
		{"https://pokeapi.co/api/v2/type/fire", "/type/{ref}"},
		{"https://pokeapi.co", "/"},
	}

	for _, tt := range tests {
		if got := endpointLabel(tt.url); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

package tibber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getverbrauch/consumption-export/internal/datetoken"
)

const samplePayload = `{"data":{"viewer":{"homes":[{"consumption":{"nodes":[
{"from":"2024-01-01T00:00:00.000+01:00","to":"2024-01-01T01:00:00.000+01:00","consumption":0.412,"consumptionUnit":"kWh"},
{"from":"2024-01-01T01:00:00.000+01:00","to":"2024-01-01T02:00:00.000+01:00","consumption":null,"consumptionUnit":"kWh"}
]}}]}}}`

func fastBackoff() Option {
	return WithBackoff(BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond})
}

func TestFirstFor(t *testing.T) {
	jan, _ := datetoken.EncodeTransportToken("2024-01")
	feb, _ := datetoken.EncodeTransportToken("2024-02")
	cases := []struct {
		cursor string
		want   int
	}{
		{jan, 744},
		{feb, 696},
		{"2024-04", 720},
		{"garbage!", 720},
	}
	for _, c := range cases {
		if got := FirstFor(c.cursor); got != c.want {
			t.Errorf("FirstFor(%q) = %d, want %d", c.cursor, got, c.want)
		}
	}
}

func TestConsumption(t *testing.T) {
	cursor, _ := datetoken.EncodeTransportToken("2024-01")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(body.Query, `after: "`+cursor+`", first: 744`) {
			t.Errorf("query missing cursor or page size: %s", body.Query)
		}
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "secret", WithEndpoint(srv.URL), fastBackoff())
	snap, err := c.Consumption(context.Background(), cursor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes := snap.Response.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Consumption == nil || nodes[0].Consumption.String() != "0.412" {
		t.Fatalf("unexpected consumption %v", nodes[0].Consumption)
	}
	if nodes[1].Consumption != nil {
		t.Fatalf("expected null consumption, got %v", nodes[1].Consumption)
	}
	if string(snap.Raw) != samplePayload {
		t.Fatal("raw payload not preserved")
	}
}

func TestConsumptionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "secret", WithEndpoint(srv.URL), fastBackoff())
	if _, err := c.Consumption(context.Background(), "2024-01", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestConsumptionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "secret", WithEndpoint(srv.URL), fastBackoff())
	_, err := c.Consumption(context.Background(), "2024-01", 10)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestConsumptionGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid cursor"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "secret", WithEndpoint(srv.URL), fastBackoff())
	_, err := c.Consumption(context.Background(), "x", 10)
	if err == nil || !strings.Contains(err.Error(), "invalid cursor") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestConsumptionRequiresToken(t *testing.T) {
	c := NewClient(http.DefaultClient, "")
	if _, err := c.Consumption(context.Background(), "x", 1); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestConsumptionGraphQLRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Too many requests, try again later"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "secret", WithEndpoint(srv.URL), fastBackoff())
	if _, err := c.Consumption(context.Background(), "x", 10); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	cases := []struct {
		code      int
		want      error
		retryable bool
	}{
		{http.StatusTooManyRequests, ErrRateLimited, true},
		{http.StatusServiceUnavailable, ErrServerError, true},
		{http.StatusForbidden, ErrUnexpectedStatus, false},
	}
	for _, c := range cases {
		err := &StatusError{Code: c.code}
		if !errors.Is(err, c.want) || err.retryable() != c.retryable {
			t.Errorf("StatusError{%d}: is %v = false or retryable != %v", c.code, c.want, c.retryable)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	b := BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}
	for attempt, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second} {
		if got := b.delay(attempt); got != want {
			t.Errorf("delay(%d) = %v, want %v", attempt, got, want)
		}
	}
	if got := retryAfter("3"); got != 3*time.Second {
		t.Errorf("retryAfter(3) = %v", got)
	}
	if got := retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"); got != 0 {
		t.Errorf("expected dates to be ignored, got %v", got)
	}
}

// Package tibber fetches hourly consumption from the Tibber GraphQL API.
package tibber

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

	"github.com/sony/gobreaker"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/common"
	"github.com/getverbrauch/consumption-export/internal/consumption"
	"github.com/getverbrauch/consumption-export/internal/datetoken"
)

const (
	DefaultEndpoint = "https://api.tibber.com/v1-beta/gql"

	// defaultFirst is requested when the cursor carries no recognisable month.
	defaultFirst = 720
)

const consumptionQuery = `{
  viewer {
    homes {
      consumption(resolution: HOURLY, after: "%s", first: %d) {
        nodes {
          from
          to
          consumption
          consumptionUnit
        }
      }
    }
  }
}`

// Client implements consumption.Source against the Tibber API.
type Client struct {
	endpoint string
	token    string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.endpoint = u
		}
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) { c.httpCfg.Backoff = b }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client authenticating with the given access token.
func NewClient(httpClient *http.Client, token string, opts ...Option) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tibber",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	c := &Client{
		endpoint: DefaultEndpoint,
		token:    token,
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FirstFor sizes a request: the hours in the cursor's month, capped at the
// API page size, or 720 if the cursor yields no month.
func FirstFor(cursor string) int {
	k, err := datetoken.DecodeMonthKey(cursor)
	if err != nil {
		return defaultFirst
	}
	return calendar.HoursCapacity(k)
}

// Consumption fetches up to first hourly records after the cursor token.
// A first of zero or less is derived from the cursor with FirstFor.
func (c *Client) Consumption(ctx context.Context, cursor string, first int) (consumption.Snapshot, error) {
	if c.token == "" {
		return consumption.Snapshot{}, fmt.Errorf("tibber access token is not configured")
	}
	if first <= 0 {
		first = FirstFor(cursor)
		c.logger.Debug("derived page size from cursor", "cursor", cursor, "first", first)
	}

	body, err := json.Marshal(map[string]string{"query": fmt.Sprintf(consumptionQuery, cursor, first)})
	if err != nil {
		return consumption.Snapshot{}, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, c.logger, buildRequest)
	if err != nil {
		return consumption.Snapshot{}, fmt.Errorf("fetch consumption: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return consumption.Snapshot{}, fmt.Errorf("read response: %w", err)
	}

	var payload consumption.Response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return consumption.Snapshot{}, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Errors) > 0 {
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			msgs = append(msgs, e.Message)
		}
		joined := strings.Join(msgs, "; ")
		if common.ContainsAnyFold(joined, "too many requests", "rate limit") {
			return consumption.Snapshot{}, fmt.Errorf("%w: %s", ErrRateLimited, joined)
		}
		return consumption.Snapshot{}, fmt.Errorf("api returned errors: %s", joined)
	}

	return consumption.Snapshot{Raw: raw, Response: payload}, nil
}

package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dream60/internal/auction"
)

// Options parameterise the Dream60 API fetcher.
type Options struct {
	BaseURL           string
	SnapshotPath      string
	ServerTimePath    string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

// API fetches auction snapshots and server time over HTTP.
type API struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewAPI constructs an API fetcher.
func NewAPI(opts Options, logger zerolog.Logger) *API {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &API{
		opts:    opts,
		logger:  logger.With().Str("component", "api_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// FetchSnapshot retrieves the live hourly auction.
func (a *API) FetchSnapshot(ctx context.Context) (auction.Snapshot, error) {
	if a.opts.SnapshotPath == "" {
		return auction.Snapshot{}, errors.New("snapshot path not configured")
	}

	payload, err := a.get(ctx, a.opts.SnapshotPath)
	if err != nil {
		return auction.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	var snap auction.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return auction.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	a.logger.Debug().
		Str("hourly_auction_id", snap.HourlyAuctionID).
		Int("rounds", len(snap.Rounds)).
		Int("participants", len(snap.Participants)).
		Msg("snapshot fetched")
	return snap, nil
}

// FetchServerTime retrieves the backend clock. The minute is derived from the timestamp when
// the payload omits it.
func (a *API) FetchServerTime(ctx context.Context) (auction.ServerTime, error) {
	if a.opts.ServerTimePath == "" {
		return auction.ServerTime{}, errors.New("server time path not configured")
	}

	payload, err := a.get(ctx, a.opts.ServerTimePath)
	if err != nil {
		return auction.ServerTime{}, fmt.Errorf("fetch server time: %w", err)
	}

	var res serverTimeResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return auction.ServerTime{}, fmt.Errorf("decode server time: %w", err)
	}
	if res.Timestamp.IsZero() && res.Minute == nil {
		return auction.ServerTime{}, errors.New("server time payload missing timestamp and minute")
	}

	st := auction.ServerTime{Timestamp: res.Timestamp}
	if res.Minute != nil {
		st.Minute = *res.Minute
	} else {
		st.Minute = res.Timestamp.Minute()
	}
	if st.Minute < 0 || st.Minute >= 60 {
		return auction.ServerTime{}, fmt.Errorf("server minute out of range: %d", st.Minute)
	}
	return st, nil
}

// get performs a paced GET and returns the unwrapped data payload.
func (a *API) get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "dream60-cli/1.0")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError(resp.StatusCode, body)
	}

	return unwrapEnvelope(body)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// unwrapEnvelope accepts both {success,data,message} bodies and bare objects.
func unwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("api reported failure: %s", env.Message)
		}
		return nil, errors.New("api reported failure")
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data, nil
	}
	return json.RawMessage(trimmed), nil
}

type serverTimeResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Minute    *int      `json:"minute"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("dream60 api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("dream60 api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("dream60 api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("dream60 api error (%d)", status)
}

var _ SnapshotFetcher = (*API)(nil)
var _ ClockFetcher = (*API)(nil)

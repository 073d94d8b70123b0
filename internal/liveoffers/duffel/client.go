// Package duffel provides a live offer source backed by the Duffel flight
// search API.
package duffel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/skyloop/skyloop/internal/liveoffers"
)

const (
	// SourceName identifies this live offer source.
	SourceName = "duffel"

	// DefaultBaseURL is the Duffel API base URL.
	DefaultBaseURL = "https://api.duffel.com"

	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts bounds rate-limit and timeout retries per search.
	DefaultMaxAttempts = 5

	// DefaultBackoffInitial is the first retry delay.
	DefaultBackoffInitial = time.Second

	// DefaultBackoffMultiplier grows the retry delay between attempts.
	DefaultBackoffMultiplier = 2.0
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Duffel client.
type ClientConfig struct {
	// APIToken is the Duffel access token (required).
	APIToken string

	// BaseURL is the API base URL (optional, defaults to the Duffel API).
	BaseURL string

	// Timeout is the per-attempt request timeout (optional).
	Timeout time.Duration

	// MaxAttempts is the total number of attempts per search, counting
	// rate-limited and timed-out ones (optional).
	MaxAttempts int

	// BackoffInitial and BackoffMultiplier define the retry schedule:
	// delay after attempt n is BackoffInitial × BackoffMultiplier^(n-1).
	BackoffInitial    time.Duration
	BackoffMultiplier float64

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Duffel API live offer source. A circuit breaker guards the
// upstream; rate-limit responses and timeouts are retried on an exponential
// schedule, other errors surface immediately.
type Client struct {
	token             string
	baseURL           string
	timeout           time.Duration
	maxAttempts       int
	backoffInitial    time.Duration
	backoffMultiplier float64
	httpClient        HTTPDoer
	breaker           *gobreaker.CircuitBreaker[*http.Response]
	logger            zerolog.Logger

	// sleep is injectable so retry schedules are testable without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Duffel client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoffInitial := cfg.BackoffInitial
	if backoffInitial == 0 {
		backoffInitial = DefaultBackoffInitial
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier == 0 {
		multiplier = DefaultBackoffMultiplier
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        SourceName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		token:             cfg.APIToken,
		baseURL:           baseURL,
		timeout:           timeout,
		maxAttempts:       maxAttempts,
		backoffInitial:    backoffInitial,
		backoffMultiplier: multiplier,
		httpClient:        httpClient,
		breaker:           breaker,
		logger:            cfg.Logger,
		sleep:             sleepContext,
	}
}

// Name returns the source identifier.
func (c *Client) Name() string {
	return SourceName
}

// Search returns live one-way offers for the given leg and date.
func (c *Client) Search(ctx context.Context, q liveoffers.Query) ([]liveoffers.Offer, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffInitial
	bo.Multiplier = c.backoffMultiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		offers, err := c.attempt(ctx, q)
		if err == nil {
			return offers, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := bo.NextBackOff()
		c.logger.Warn().
			Str("leg", q.DepartureAirport+"->"+q.ArrivalAirport).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Dur("delay", delay).
			Err(err).
			Msg("retrying live offer search")
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, &liveoffers.Error{
				Source:  SourceName,
				Code:    "CANCELLED",
				Message: "search cancelled during backoff",
				Err:     liveoffers.ErrUnavailable,
			}
		}
	}

	return nil, lastErr
}

// retryable reports whether a failed attempt may be repeated: rate limits
// and timeouts only. Other client and server errors are final.
func retryable(err error) bool {
	if errors.Is(err, liveoffers.ErrRateLimited) {
		return true
	}
	var lerr *liveoffers.Error
	return errors.As(err, &lerr) && lerr.Code == "TIMEOUT"
}

// attempt performs a single offer request through the circuit breaker.
func (c *Client) attempt(ctx context.Context, q liveoffers.Query) ([]liveoffers.Offer, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := offerRequest{}
	payload.Data.Slices = []offerRequestSlice{{
		Origin:        q.DepartureAirport,
		Destination:   q.ArrivalAirport,
		DepartureDate: q.DepartureDate.Format("2006-01-02"),
	}}
	payload.Data.Passengers = []offerRequestPassenger{{Type: "adult"}}
	payload.Data.CabinClass = "economy"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling offer request: %w", err)
	}

	url := c.baseURL + "/air/offer_requests?return_offers=true"
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Duffel-Version", "v2")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		// Server errors count against the breaker; 4xx responses are the
		// caller's fault and do not.
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &serverError{status: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		var srvErr *serverError
		if errors.As(err, &srvErr) {
			return nil, &liveoffers.Error{
				Source:  SourceName,
				Code:    fmt.Sprintf("HTTP_%d", srvErr.status),
				Message: "live offer source returned server error",
				Err:     liveoffers.ErrUnavailable,
			}
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &liveoffers.Error{
				Source:  SourceName,
				Code:    "CIRCUIT_OPEN",
				Message: "live offer source circuit breaker open",
				Err:     liveoffers.ErrUnavailable,
			}
		}
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, &liveoffers.Error{
				Source:  SourceName,
				Code:    "TIMEOUT",
				Message: "live offer request timed out",
				Err:     liveoffers.ErrUnavailable,
			}
		}
		return nil, &liveoffers.Error{
			Source:  SourceName,
			Code:    "REQUEST_FAILED",
			Message: "failed to reach live offer source",
			Err:     liveoffers.ErrUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return parseOffers(respBody)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &liveoffers.Error{
			Source:  SourceName,
			Code:    "RATE_LIMIT",
			Message: "live offer source rate limit exceeded",
			Err:     liveoffers.ErrRateLimited,
		}
	default:
		return nil, &liveoffers.Error{
			Source:  SourceName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "live offer query rejected by source",
			Err:     liveoffers.ErrBadRequest,
		}
	}
}

// serverError marks a 5xx upstream response inside the breaker so that it
// counts as a failure.
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// parseOffers converts a Duffel offer request response to domain offers.
func parseOffers(body []byte) ([]liveoffers.Offer, error) {
	var resp offerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding offer response: %w", err)
	}

	offers := make([]liveoffers.Offer, 0, len(resp.Data.Offers))
	for _, o := range resp.Data.Offers {
		if len(o.Slices) == 0 || len(o.Slices[0].Segments) == 0 {
			continue
		}
		price, err := strconv.ParseFloat(o.TotalAmount, 64)
		if err != nil {
			continue
		}
		segments := o.Slices[0].Segments
		first := segments[0]
		last := segments[len(segments)-1]

		depTime, err := time.Parse(time.RFC3339, first.DepartingAt)
		if err != nil {
			continue
		}
		arrTime, err := time.Parse(time.RFC3339, last.ArrivingAt)
		if err != nil {
			continue
		}

		offers = append(offers, liveoffers.Offer{
			ID:            o.ID,
			CarrierCode:   first.OperatingCarrier.IATACode,
			CarrierName:   first.OperatingCarrier.Name,
			DepartureTime: depTime,
			ArrivalTime:   arrTime,
			Price:         price,
			Currency:      o.TotalCurrency,
			Stops:         len(segments) - 1,
		})
	}

	return offers, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wire types for the Duffel offer request API.

type offerRequest struct {
	Data struct {
		Slices     []offerRequestSlice     `json:"slices"`
		Passengers []offerRequestPassenger `json:"passengers"`
		CabinClass string                  `json:"cabin_class"`
	} `json:"data"`
}

type offerRequestSlice struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
}

type offerRequestPassenger struct {
	Type string `json:"type"`
}

type offerResponse struct {
	Data struct {
		Offers []offerPayload `json:"offers"`
	} `json:"data"`
}

type offerPayload struct {
	ID            string       `json:"id"`
	TotalAmount   string       `json:"total_amount"`
	TotalCurrency string       `json:"total_currency"`
	Slices        []offerSlice `json:"slices"`
}

type offerSlice struct {
	Segments []offerSegment `json:"segments"`
}

type offerSegment struct {
	DepartingAt      string       `json:"departing_at"`
	ArrivingAt       string       `json:"arriving_at"`
	OperatingCarrier offerCarrier `json:"operating_carrier"`
}

type offerCarrier struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

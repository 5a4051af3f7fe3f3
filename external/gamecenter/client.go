// Package gamecenter fetches live play-by-play from the legacy game-center
// JSON feed, one document per game, addressed by the schedule's event id.
package gamecenter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/gridironlab/pbp-refresh/internal/domain/play"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/resilience"
)

const defaultBaseURL = "https://www.nfl.com/liveupdate/game-center"

var errGamecenterTransient = crerr.New("gamecenter transient failure")

// EventIDResolver maps the modern game id to the legacy event id the feed is
// keyed by.
type EventIDResolver interface {
	EventIDFor(ctx context.Context, gameID string) (string, error)
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Concurrency    int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	concurrency    int
	resolver       EventIDResolver
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig, resolver EventIDResolver) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		concurrency:    concurrency,
		resolver:       resolver,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// Fetch pulls every requested game. Results come back in the input order
// regardless of fetch concurrency. Games the feed has not published yet are
// normal empty results; an error is returned only when every game failed at
// the transport level.
func (c *Client) Fetch(ctx context.Context, gameIDs []string) ([]play.FetchResult, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}

	results := make([]play.FetchResult, len(gameIDs))
	errs := make([]error, len(gameIDs))

	if c.concurrency <= 1 || len(gameIDs) == 1 {
		for i, gameID := range gameIDs {
			results[i], errs[i] = c.fetchGame(ctx, gameID)
		}
	} else {
		pool, err := ants.NewPool(c.concurrency)
		if err != nil {
			return nil, fmt.Errorf("create fetch pool: %w", err)
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i, gameID := range gameIDs {
			i, gameID := i, gameID
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				results[i], errs[i] = c.fetchGame(ctx, gameID)
			})
			if submitErr != nil {
				wg.Done()
				errs[i] = submitErr
			}
		}
		wg.Wait()
	}

	out := make([]play.FetchResult, 0, len(gameIDs))
	var firstErr error
	failed := 0
	for i, gameID := range gameIDs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			c.logger.WarnContext(ctx, "game fetch failed", "game_id", gameID, "error", errs[i])
			continue
		}
		out = append(out, results[i])
	}
	if failed == len(gameIDs) {
		return nil, fmt.Errorf("all %d game fetches failed: %w", failed, firstErr)
	}
	return out, nil
}

func (c *Client) fetchGame(ctx context.Context, gameID string) (play.FetchResult, error) {
	eventID, err := c.resolver.EventIDFor(ctx, gameID)
	if err != nil {
		return play.FetchResult{}, fmt.Errorf("resolve event id for %s: %w", gameID, err)
	}

	raw, notFound, err := c.fetchDocument(ctx, eventID)
	if err != nil {
		return play.FetchResult{}, err
	}
	if notFound || len(raw) == 0 {
		return play.FetchResult{GameID: gameID, EventID: eventID, NotFound: true}, nil
	}

	var doc map[string]any
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return play.FetchResult{}, fmt.Errorf("%w: decode feed document for %s: %v", errGamecenterTransient, gameID, err)
	}

	game := extractGameBlob(doc, eventID)
	if game == nil {
		return play.FetchResult{GameID: gameID, EventID: eventID, NotFound: true}, nil
	}

	rows := gameToRows(gameID, game)
	return play.FetchResult{
		GameID:     gameID,
		EventID:    eventID,
		Rows:       rows,
		MaxPlayID:  maxPlayID(rows),
		IsFinal:    inferIsFinal(game, rows),
		RawPayload: string(raw),
	}, nil
}

// fetchDocument performs the HTTP round trip with circuit breaking, request
// deduplication, and bounded retries. A 404 means the feed has not published
// the game yet and is reported as not-found, never as an error.
func (c *Client) fetchDocument(ctx context.Context, eventID string) ([]byte, bool, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "gamecenter circuit breaker rejected request", "state", c.breaker.State())
			return nil, false, fmt.Errorf("play-by-play feed is temporarily unavailable: %w", err)
		}
	}

	url := fmt.Sprintf("%s/%s/%s_gtd.json", c.baseURL, eventID, eventID)

	out, err, _ := c.flight.Do(url, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, url)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errGamecenterTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, false, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected response payload type %T", out)
	}
	if raw == nil {
		return nil, true, nil
	}
	return raw, false, nil
}

// executeRequest returns a nil slice without error for 404 responses.
func (c *Client) executeRequest(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json,text/plain,*/*")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Referer", "https://www.nfl.com/")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errGamecenterTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errGamecenterTransient, readErr)
			case resp.StatusCode == http.StatusNotFound:
				return nil, nil
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: feed status=%d", errGamecenterTransient, resp.StatusCode)
			default:
				return nil, fmt.Errorf("feed status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("feed request failed")
	}
	c.logger.WarnContext(ctx, "gamecenter request failed", "url", url, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func abbreviateBody(raw []byte) string {
	const limit = 200
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package nflverse reads the community data releases: the season schedule,
// which carries the modern-to-legacy game id mapping, and season rosters.
package nflverse

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/gridironlab/pbp-refresh/internal/domain/game"
	"github.com/gridironlab/pbp-refresh/internal/domain/roster"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/resilience"
)

const (
	defaultScheduleURL    = "https://raw.githubusercontent.com/nflverse/nfldata/master/data/games.csv"
	defaultRosterTemplate = "https://github.com/nflverse/nflverse-data/releases/download/rosters/roster_%d.csv"
)

var errNflverseTransient = crerr.New("nflverse transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	ScheduleURL    string
	RosterTemplate string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
}

// Client downloads and caches release files. The schedule for a season is
// fetched at most once per process; rosters are fetched on demand.
type Client struct {
	httpClient     *http.Client
	scheduleURL    string
	rosterTemplate string
	maxRetries     int
	logger         *logging.Logger
	flight         resilience.SingleFlight

	mu        sync.RWMutex
	schedules map[int][]game.Game
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	scheduleURL := strings.TrimSpace(cfg.ScheduleURL)
	if scheduleURL == "" {
		scheduleURL = defaultScheduleURL
	}
	rosterTemplate := strings.TrimSpace(cfg.RosterTemplate)
	if rosterTemplate == "" {
		rosterTemplate = defaultRosterTemplate
	}

	return &Client{
		httpClient:     httpClient,
		scheduleURL:    scheduleURL,
		rosterTemplate: rosterTemplate,
		maxRetries:     cfg.MaxRetries,
		logger:         logger,
		schedules:      make(map[int][]game.Game),
	}
}

// GameIDsForWeek returns the distinct game ids scheduled for the week, sorted.
// A week with no games is an empty result, not an error.
func (c *Client) GameIDsForWeek(ctx context.Context, season, week int) ([]string, error) {
	games, err := c.Schedule(ctx, season)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, 16)
	for _, g := range games {
		if g.Week != week || g.ID == "" || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		ids = append(ids, g.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// EventIDFor maps a modern game id to the legacy event id the game-center
// feed is addressed by. The season is embedded in the id itself.
func (c *Client) EventIDFor(ctx context.Context, gameID string) (string, error) {
	season, err := seasonFromGameID(gameID)
	if err != nil {
		return "", err
	}
	games, err := c.Schedule(ctx, season)
	if err != nil {
		return "", err
	}
	for _, g := range games {
		if g.ID == gameID {
			if g.EventID == "" {
				return "", fmt.Errorf("schedule has no legacy event id for %s", gameID)
			}
			return g.EventID, nil
		}
	}
	return "", fmt.Errorf("game %s not present in season %d schedule", gameID, season)
}

// Schedule returns all games for a season, fetching and caching the release
// file on first use.
func (c *Client) Schedule(ctx context.Context, season int) ([]game.Game, error) {
	c.mu.RLock()
	cached, ok := c.schedules[season]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	key := fmt.Sprintf("schedule-%d", season)
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, err := c.download(ctx, c.scheduleURL)
		if err != nil {
			return nil, err
		}
		games, err := parseSchedule(raw, season)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.schedules[season] = games
		c.mu.Unlock()
		return games, nil
	})
	if err != nil {
		return nil, err
	}
	games, ok := out.([]game.Game)
	if !ok {
		return nil, fmt.Errorf("unexpected schedule payload type %T", out)
	}
	return games, nil
}

// Rosters downloads the season roster release.
func (c *Client) Rosters(ctx context.Context, season int) ([]roster.Row, error) {
	raw, err := c.download(ctx, fmt.Sprintf(c.rosterTemplate, season))
	if err != nil {
		return nil, err
	}
	return parseRosters(raw)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "text/csv,*/*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: download %s: %v", errNflverseTransient, url, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read %s: %v", errNflverseTransient, url, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("%w: release status=%d for %s", errNflverseTransient, resp.StatusCode, url)
			default:
				return nil, fmt.Errorf("release status=%d for %s", resp.StatusCode, url)
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
		lastErr = fmt.Errorf("release download failed for %s", url)
	}
	c.logger.WarnContext(ctx, "nflverse download failed", "url", url, "error", lastErr)
	return nil, lastErr
}

func parseSchedule(raw []byte, season int) ([]game.Game, error) {
	header, records, err := readCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	col := columnIndex(header)
	iGameID, iSeason, iWeek := col("game_id"), col("season"), col("week")
	iOldID := col("old_game_id")
	iGameday := col("gameday")
	iHome, iAway := col("home_team"), col("away_team")
	if iGameID < 0 || iSeason < 0 || iWeek < 0 {
		return nil, fmt.Errorf("schedule is missing required columns (game_id, season, week)")
	}

	games := make([]game.Game, 0, 300)
	for _, rec := range records {
		if cell(rec, iSeason) != strconv.Itoa(season) {
			continue
		}
		week, _ := strconv.Atoi(cell(rec, iWeek))
		games = append(games, game.Game{
			ID:       cell(rec, iGameID),
			Season:   season,
			Week:     week,
			GameDate: cell(rec, iGameday),
			HomeTeam: cell(rec, iHome),
			AwayTeam: cell(rec, iAway),
			EventID:  normalizeEventID(cell(rec, iOldID)),
		})
	}
	return games, nil
}

func parseRosters(raw []byte) ([]roster.Row, error) {
	header, records, err := readCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rosters: %w", err)
	}

	col := columnIndex(header)
	iGsis := col("gsis_id")
	iName := col("full_name")
	iTeam := col("team")
	iPos := col("position")
	if iGsis < 0 {
		return nil, fmt.Errorf("roster release is missing gsis_id column")
	}

	rows := make([]roster.Row, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(cell(rec, iGsis))
		if id == "" {
			continue
		}
		rows = append(rows, roster.Row{
			GsisID:   id,
			FullName: cell(rec, iName),
			Team:     cell(rec, iTeam),
			Position: cell(rec, iPos),
		})
	}
	return rows, nil
}

func readCSV(raw []byte) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(string(raw)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return header, records, nil
}

func columnIndex(header []string) func(string) int {
	return func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// normalizeEventID strips a float-formatted legacy id ("2026011100.0") down
// to its digits.
func normalizeEventID(value string) string {
	if value == "" {
		return ""
	}
	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		value = value[:dot]
	}
	return value
}

func seasonFromGameID(gameID string) (int, error) {
	parts := strings.SplitN(gameID, "_", 2)
	season, err := strconv.Atoi(parts[0])
	if err != nil || season < 1999 {
		return 0, fmt.Errorf("cannot derive season from game id %q", gameID)
	}
	return season, nil
}

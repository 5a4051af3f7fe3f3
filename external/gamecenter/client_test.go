package gamecenter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/resilience"
)

type staticResolver map[string]string

func (r staticResolver) EventIDFor(ctx context.Context, gameID string) (string, error) {
	eventID, ok := r[gameID]
	if !ok {
		return "", fmt.Errorf("no event id for %s", gameID)
	}
	return eventID, nil
}

func newTestClient(t *testing.T, handler http.Handler, resolver EventIDResolver) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:        server.URL,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	}, resolver)
}

const sampleDoc = `{
  "2026011100": {
    "home": {"abbr": "BUF"},
    "away": {"abbr": "PIT"},
    "gameDate": "1/11/2026",
    "qtr": "Final",
    "drives": {
      "1": {
        "driveNum": 1,
        "plays": {
          "40": {
            "playId": 40,
            "qtr": 1,
            "time": "10:21",
            "possessionTeam": "BUF",
            "defensiveTeam": "PIT",
            "scoringPlayType": "touchdown",
            "desc": "J.Allen pass short left to K.Shakir for 12 yards, TOUCHDOWN."
          }
        }
      },
      "2": {
        "driveNum": 2,
        "plays": {
          "98": {
            "playId": 98,
            "qtr": 4,
            "time": "0:00",
            "possessionTeam": "PIT",
            "defensiveTeam": "BUF",
            "desc": "End of game."
          }
        }
      },
      "crntdrv": 2
    }
  }
}`

func TestFetch_ParsesDocument(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2026011100/2026011100_gtd.json", r.URL.Path)
		fmt.Fprint(w, sampleDoc)
	})
	client := newTestClient(t, handler, staticResolver{"2025_19_PIT_BUF": "2026011100"})

	results, err := client.Fetch(context.Background(), []string{"2025_19_PIT_BUF"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, "2025_19_PIT_BUF", result.GameID)
	assert.Equal(t, "2026011100", result.EventID)
	assert.False(t, result.NotFound)
	assert.Equal(t, 98, result.MaxPlayID)
	assert.NotEmpty(t, result.RawPayload)
	require.Len(t, result.Rows, 2)

	byID := map[int]int{result.Rows[0].PlayID: 0, result.Rows[1].PlayID: 1}
	td := result.Rows[byID[40]]
	assert.Equal(t, "BUF", *td.Posteam)
	assert.Equal(t, "PIT", *td.Defteam)
	assert.Equal(t, 1, *td.Qtr)
	assert.Equal(t, 1, *td.Drive)
	assert.Equal(t, 1, *td.Touchdown)
	assert.Equal(t, 1, *td.PassTouchdown)
	assert.Equal(t, "1/11/2026", td.GameDate)
}

// A play at 0:00 in the fourth quarter marks the game final even when the
// feed carries no explicit status field.
func TestFetch_InfersFinalFromClock(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleDoc)
	})
	client := newTestClient(t, handler, staticResolver{"2025_19_PIT_BUF": "2026011100"})

	results, err := client.Fetch(context.Background(), []string{"2025_19_PIT_BUF"})
	require.NoError(t, err)
	assert.True(t, results[0].IsFinal)
}

func TestFetch_ExplicitFinalStatus(t *testing.T) {
	doc := `{"99": {"phase": "FINAL", "drives": {"crntdrv": 0}}}`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	})
	client := newTestClient(t, handler, staticResolver{"G1": "99"})

	results, err := client.Fetch(context.Background(), []string{"G1"})
	require.NoError(t, err)
	assert.True(t, results[0].IsFinal)
	assert.Empty(t, results[0].Rows)
}

// The feed 404s until a game is loaded; that is steady state, not an error.
func TestFetch_NotYetPublished(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client := newTestClient(t, handler, staticResolver{"G1": "77"})

	results, err := client.Fetch(context.Background(), []string{"G1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].NotFound)
	assert.Equal(t, 0, results[0].MaxPlayID)
}

func TestFetch_AllGamesFailingIsAnError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client := newTestClient(t, handler, staticResolver{"G1": "1", "G2": "2"})

	_, err := client.Fetch(context.Background(), []string{"G1", "G2"})
	assert.Error(t, err)
}

func TestFetch_PartialFailureKeepsSuccesses(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1/1_gtd.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.NotFound(w, r)
	})
	client := newTestClient(t, handler, staticResolver{"G1": "1", "G2": "2"})

	results, err := client.Fetch(context.Background(), []string{"G1", "G2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "G2", results[0].GameID)
}

// Fetch order must match the input order even with a parallel pool.
func TestFetch_ConcurrentFetchPreservesOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	resolver := staticResolver{}
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = fmt.Sprintf("G%d", i)
		resolver[ids[i]] = fmt.Sprintf("%d", 100+i)
	}

	client := NewClient(ClientConfig{
		BaseURL:        server.URL,
		Concurrency:    4,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	}, resolver)

	results, err := client.Fetch(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, results, len(ids))
	for i, result := range results {
		assert.Equal(t, ids[i], result.GameID)
	}
}

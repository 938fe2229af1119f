package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgordonbell/c3-azure-demo/pkg/ai"
	"github.com/adamgordonbell/c3-azure-demo/pkg/jokes"
	"github.com/adamgordonbell/c3-azure-demo/pkg/prompt"
	"github.com/adamgordonbell/c3-azure-demo/pkg/storage"
)

// mockStore is a small in-memory storage.Store for exercising the handlers
// without Redis.
type mockStore struct {
	mu       sync.Mutex
	jokes    []storage.JokeRecord
	counters map[string]int64
}

func newMockStore() *mockStore {
	return &mockStore{counters: make(map[string]int64)}
}

func (m *mockStore) SaveJoke(ctx context.Context, rec *storage.JokeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jokes = append(m.jokes, *rec)
	return nil
}

func (m *mockStore) RecentJokes(ctx context.Context, limit int) ([]storage.JokeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.JokeRecord, len(m.jokes))
	copy(out, m.jokes)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) IncrementDailyCounter(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[day]++
	return m.counters[day], nil
}

func (m *mockStore) DailyCount(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[day], nil
}

func (m *mockStore) TotalCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, c := range m.counters {
		total += c
	}
	return total, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

// stubCompleter returns a canned completion or error.
type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Generate(ctx context.Context, p prompt.Pair) (string, error) {
	return s.text, s.err
}

// panicCompleter simulates an unexpected fault escaping the handler.
type panicCompleter struct{}

func (panicCompleter) Generate(ctx context.Context, p prompt.Pair) (string, error) {
	panic("unexpected fault")
}

func newTestServer(t *testing.T, c Completer, st storage.Store) *httptest.Server {
	t.Helper()
	bank := jokes.NewBankWithRand(rand.New(rand.NewSource(1)))
	mux := http.NewServeMux()
	NewJokeAPI(c, bank, storage.NewUsage(st)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJoke(t *testing.T, url string) (int, jokeResponse) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out jokeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestJoke_NoKeywords(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "AI joke"}, newMockStore())

	status, out := getJoke(t, srv.URL+"/api/joke")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AI joke", out.Joke)
	assert.Nil(t, out.Keywords, "keywords should be null when absent")
	assert.GreaterOrEqual(t, out.RequestCount, int64(1))
	assert.NotEmpty(t, out.Timestamp)
}

func TestJoke_QueryKeywords(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "AI joke"}, newMockStore())

	status, out := getJoke(t, srv.URL+"/api/joke?keywords=cats")
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, out.Keywords)
	assert.Equal(t, "cats", *out.Keywords)
}

func TestJoke_PostBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"json object", `{"keywords":"dogs"}`, "dogs"},
		{"json string", `"coffee"`, "coffee"},
		{"raw text", `pirates`, "pirates"},
		{"malformed json", `{"keywords": dogs`, `{"keywords": dogs`},
		{"empty body", ``, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, stubCompleter{text: "AI joke"}, newMockStore())

			resp, err := http.Post(srv.URL+"/api/joke", "application/json", bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var out jokeResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			if tc.want == "" {
				assert.Nil(t, out.Keywords)
			} else {
				require.NotNil(t, out.Keywords)
				assert.Equal(t, tc.want, *out.Keywords)
			}
		})
	}
}

func TestJoke_CompletionFailuresFallBack(t *testing.T) {
	failures := []error{
		&ai.Error{Kind: ai.KindUnauthorized, Status: 401},
		&ai.Error{Kind: ai.KindUnreachable},
		&ai.Error{Kind: ai.KindRateLimited, Status: 429},
		&ai.Error{Kind: ai.KindEmptyResponse},
		errors.New("something else entirely"),
	}

	for _, failure := range failures {
		srv := newTestServer(t, stubCompleter{err: failure}, newMockStore())

		status, out := getJoke(t, srv.URL+"/api/joke")
		assert.Equal(t, http.StatusOK, status, "failures must degrade, never surface")
		assert.NotEmpty(t, out.Joke)
		assert.Contains(t, jokes.All(), out.Joke, "degraded joke must come from the bank")
	}
}

func TestJoke_FallbackHonorsKeywordAnchors(t *testing.T) {
	srv := newTestServer(t, stubCompleter{err: &ai.Error{Kind: ai.KindUnreachable}}, newMockStore())

	_, out := getJoke(t, srv.URL+"/api/joke?keywords=science")
	assert.Contains(t, out.Joke, "atom")
}

func TestJoke_StoreUnavailableStillServes(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "AI joke"}, nil)

	status, out := getJoke(t, srv.URL+"/api/joke")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AI joke", out.Joke)
	assert.Equal(t, storage.PlaceholderCount, out.RequestCount)
}

func TestJoke_PanicProducesGeneric500(t *testing.T) {
	srv := newTestServer(t, panicCompleter{}, newMockStore())

	resp, err := http.Get(srv.URL + "/api/joke")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Failed to generate joke", out["error"])
}

func TestJoke_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "x"}, newMockStore())

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/joke", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func getStats(t *testing.T, url string) (int, statsResponse) {
	t.Helper()
	resp, err := http.Get(url + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestStats_Empty(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "x"}, newMockStore())

	status, out := getStats(t, srv.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, out.TotalRequests)
	assert.Zero(t, out.TodayRequests)
	assert.Empty(t, out.RecentJokes)
	assert.True(t, out.StoreAvailable)
}

func TestStats_AfterSixJokes(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "AI joke"}, newMockStore())

	for i := 0; i < 6; i++ {
		status, _ := getJoke(t, srv.URL+"/api/joke")
		require.Equal(t, http.StatusOK, status)
	}

	status, out := getStats(t, srv.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(6), out.TodayRequests)
	assert.Equal(t, int64(6), out.TotalRequests)
	assert.Len(t, out.RecentJokes, 5, "recent jokes are capped at five")
	for _, j := range out.RecentJokes {
		assert.Equal(t, "AI joke", j.Joke)
		assert.NotEmpty(t, j.Timestamp)
	}
}

func TestStats_StoreUnavailable(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "x"}, nil)

	status, out := getStats(t, srv.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, out.TotalRequests)
	assert.Zero(t, out.TodayRequests)
	assert.Empty(t, out.RecentJokes)
	assert.False(t, out.StoreAvailable)
}

func TestStats_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, stubCompleter{text: "x"}, newMockStore())

	resp, err := http.Post(srv.URL+"/api/stats", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

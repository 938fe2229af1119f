package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adamgordonbell/c3-azure-demo/pkg/ai"
	"github.com/adamgordonbell/c3-azure-demo/pkg/jokes"
	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
	"github.com/adamgordonbell/c3-azure-demo/pkg/prompt"
	"github.com/adamgordonbell/c3-azure-demo/pkg/storage"
)

// Completer generates a joke for a prompt pair. Satisfied by *ai.Client;
// tests substitute stubs.
type Completer interface {
	Generate(ctx context.Context, p prompt.Pair) (string, error)
}

// JokeAPI serves the joke and stats endpoints. Completion and storage
// failures degrade silently: the caller always gets a joke and a 200.
type JokeAPI struct {
	completions Completer
	fallback    *jokes.Bank
	usage       *storage.Usage
}

// NewJokeAPI creates the API handler set.
func NewJokeAPI(completions Completer, fallback *jokes.Bank, usage *storage.Usage) *JokeAPI {
	return &JokeAPI{
		completions: completions,
		fallback:    fallback,
		usage:       usage,
	}
}

// RegisterRoutes registers the public endpoints.
func (api *JokeAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/joke", recoverTo("Failed to generate joke", api.handleJoke))
	mux.HandleFunc("/api/stats", recoverTo("Failed to retrieve stats", api.handleStats))
}

type jokeResponse struct {
	Joke         string  `json:"joke"`
	Keywords     *string `json:"keywords"`
	RequestCount int64   `json:"requestCount"`
	Timestamp    string  `json:"timestamp"`
}

func (api *JokeAPI) handleJoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keywords := keywordsFromRequest(r)

	joke, err := api.completions.Generate(r.Context(), prompt.Build(keywords))
	source := "ai"
	if err != nil {
		// Silent degrade: the classification is for our logs and metrics
		// only, the caller just gets a joke.
		logger.Warn("completion failed, using fallback",
			logger.String("kind", string(ai.KindOf(err))),
			logger.Err(err),
		)
		joke = api.fallback.Pick(keywords)
		source = "fallback"
	}
	jokesServed.WithLabelValues(source).Inc()

	rec := api.usage.RecordJoke(r.Context(), joke, keywords)
	count := api.usage.IncrementToday(r.Context())

	resp := jokeResponse{
		Joke:         joke,
		RequestCount: count,
		Timestamp:    rec.Timestamp.Format(time.RFC3339),
	}
	if keywords != "" {
		resp.Keywords = &keywords
	}
	respondJSON(w, http.StatusOK, resp)
}

type statsJoke struct {
	Joke      string `json:"joke"`
	Keywords  string `json:"keywords"`
	Timestamp string `json:"timestamp"`
}

type statsResponse struct {
	TotalRequests  int64       `json:"totalRequests"`
	TodayRequests  int64       `json:"todayRequests"`
	RecentJokes    []statsJoke `json:"recentJokes"`
	StoreAvailable bool        `json:"storeAvailable"`
}

func (api *JokeAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := api.usage.Stats(r.Context())

	resp := statsResponse{
		TotalRequests:  snap.TotalRequests,
		TodayRequests:  snap.TodayRequests,
		RecentJokes:    make([]statsJoke, 0, len(snap.RecentJokes)),
		StoreAvailable: snap.StoreAvailable,
	}
	for _, rec := range snap.RecentJokes {
		resp.RecentJokes = append(resp.RecentJokes, statsJoke{
			Joke:      rec.Joke,
			Keywords:  rec.Keywords,
			Timestamp: rec.Timestamp.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// keywordsFromRequest pulls keywords from the query string first, then from
// a POST body: a JSON object with a keywords field, or failing that the raw
// body text with surrounding quotes stripped. A body we can't make sense of
// degrades to no keywords rather than an error.
func keywordsFromRequest(r *http.Request) string {
	if kw := strings.TrimSpace(r.URL.Query().Get("keywords")); kw != "" {
		return kw
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var parsed struct {
		Keywords string `json:"keywords"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		return strings.TrimSpace(parsed.Keywords)
	}
	return strings.TrimSpace(strings.Trim(text, `"`))
}

// recoverTo converts a panic escaping a handler into the endpoint's generic
// 500 payload. Details stay in the server log.
func recoverTo(message string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic",
					logger.String("path", r.URL.Path),
					logger.Any("panic", rec),
				)
				respondJSON(w, http.StatusInternalServerError, map[string]string{
					"error": message,
				})
			}
		}()
		next(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", logger.Err(err))
	}
}

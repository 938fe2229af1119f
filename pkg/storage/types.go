package storage

import "time"

// JokeRecord is one generated joke, AI-sourced or fallback. Immutable once
// written; the store keeps these as an append-only log.
type JokeRecord struct {
	ID        string    `json:"id"`
	Joke      string    `json:"joke"`
	Keywords  string    `json:"keywords,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DailyCounter tracks joke generations for one UTC calendar day.
type DailyCounter struct {
	Day         string    `json:"day"` // YYYY-MM-DD, UTC
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
}

// StatsSnapshot is the derived aggregate view; never persisted.
type StatsSnapshot struct {
	TotalRequests  int64        `json:"totalRequests"`
	TodayRequests  int64        `json:"todayRequests"`
	RecentJokes    []JokeRecord `json:"recentJokes"`
	StoreAvailable bool         `json:"storeAvailable"`
}

// DayKey formats a timestamp as the UTC day a counter lives under.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

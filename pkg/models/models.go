package models

import "time"

// User is the identity record returned by the osu! v1 get_user endpoint
type User struct {
	UserID   int    `json:"user_id,string"`
	Username string `json:"username"`
	Country  string `json:"country"`
}

// BeatmapsetRef identifies the beatmap set a score was played on
type BeatmapsetRef struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// BeatmapRef identifies the single difficulty a score was played on
type BeatmapRef struct {
	ID         int    `json:"id"`
	Version    string `json:"version"`
	BeatmapSet int    `json:"beatmapset_id"`
}

// Score is a snapshot of one recent play. A nil Beatmapset means the
// score cannot drive a download.
type Score struct {
	ID         int64          `json:"id"`
	Passed     bool           `json:"passed"`
	Rank       string         `json:"rank"`
	PP         *float64       `json:"pp"`
	CreatedAt  time.Time      `json:"created_at"`
	Beatmap    *BeatmapRef    `json:"beatmap"`
	Beatmapset *BeatmapsetRef `json:"beatmapset"`
}

// Failed reports whether the play was a fail
func (s Score) Failed() bool {
	return !s.Passed
}

// SetID returns the beatmap set id, falling back to the beatmap's parent
// set when the set object is missing.
func (s Score) SetID() (int, bool) {
	if s.Beatmapset != nil && s.Beatmapset.ID > 0 {
		return s.Beatmapset.ID, true
	}
	if s.Beatmap != nil && s.Beatmap.BeatmapSet > 0 {
		return s.Beatmap.BeatmapSet, true
	}
	return 0, false
}

// Title returns the set title, or "" when unknown
func (s Score) Title() string {
	if s.Beatmapset == nil {
		return ""
	}
	return s.Beatmapset.Title
}

// Player is a watched player after identity resolution. MostRecentScores
// is replaced wholesale every round; nil means no scores were available.
type Player struct {
	DisplayName      string
	ID               int
	MostRecentScores []Score
}

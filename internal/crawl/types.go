// Package crawl defines core types shared across subsystems.
package crawl

import (
	"fmt"
	"time"
)

// Target identifies one author/account to crawl. Opaque to the core.
type Target string

// DateWindow bounds a crawl by calendar date, inclusive on both ends.
// Since and Until are dates at midnight UTC.
type DateWindow struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// DefaultWindowDays is how far back the dispatcher reaches when a batch
// carries no explicit window.
const DefaultWindowDays = 30

// NewDateWindow builds a window from calendar dates, truncating any
// time-of-day component.
func NewDateWindow(since, until time.Time) DateWindow {
	return DateWindow{Since: truncateToDate(since), Until: truncateToDate(until)}
}

// DefaultWindow returns the window ending today and starting
// DefaultWindowDays earlier.
func DefaultWindow(now time.Time) DateWindow {
	until := truncateToDate(now)
	return DateWindow{Since: until.AddDate(0, 0, -DefaultWindowDays), Until: until}
}

// Validate enforces the since <= until invariant.
func (w DateWindow) Validate() error {
	if w.Since.IsZero() || w.Until.IsZero() {
		return fmt.Errorf("date window bounds must be set")
	}
	if w.Since.After(w.Until) {
		return fmt.Errorf("date window since %s is after until %s",
			w.Since.Format("2006-01-02"), w.Until.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether ts falls inside the window. A timestamp on the
// Until date itself is included regardless of its time of day.
func (w DateWindow) Contains(ts time.Time) bool {
	ts = ts.UTC()
	return !ts.Before(w.Since) && ts.Before(w.Until.AddDate(0, 0, 1))
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RunTimestamp namespaces one batch dispatch's storage keys. Every worker
// spawned from the same batch shares one value, so re-running the same
// batch overwrites its own keys instead of colliding with other runs.
type RunTimestamp string

// NewRunTimestamp formats t as a path-safe UTC stamp.
func NewRunTimestamp(t time.Time) RunTimestamp {
	return RunTimestamp(t.UTC().Format("20060102T150405Z"))
}

// AuthorRecord is the persisted author profile. Follower/following counts
// are optional: the upstream API may not expose them without elevated
// privilege, and absence is a valid permanent state.
type AuthorRecord struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	CreatedAt      string `json:"created_at"`
	FollowersCount *int   `json:"followers_count,omitempty"`
	FollowingCount *int   `json:"following_count,omitempty"`
}

// RawPost is one post as returned by a platform client, before window
// filtering and media acquisition.
type RawPost struct {
	AuthorID  string
	Text      string
	CreatedAt time.Time
	Likes     int
	Reposts   int
	Comments  int
	MediaURLs []string
}

// PostRecord is the persisted form of one post. MediaLocalPaths holds only
// successfully downloaded items; failed downloads are dropped, not
// null-padded, so the two slices have no positional correspondence.
type PostRecord struct {
	AuthorID        string   `json:"author_id"`
	Text            string   `json:"text"`
	Timestamp       string   `json:"timestamp"`
	LikeCount       int      `json:"like_count"`
	RepostCount     int      `json:"repost_count"`
	CommentCount    int      `json:"comment_count"`
	MediaURLs       []string `json:"media_urls"`
	MediaLocalPaths []string `json:"media_local_paths"`
}

// QueueItem is one unit of crawl work: a single target plus the batch
// context it was dispatched under.
type QueueItem struct {
	TaskID  string       `json:"task_id"`
	Target  Target       `json:"target"`
	Window  DateWindow   `json:"window"`
	RunTS   RunTimestamp `json:"run_ts"`
	Storage string       `json:"storage"`
	Attempt int          `json:"attempt"`
}

// WorkResult is the terminal outcome of one crawl unit. Counts reflect
// successfully persisted records only.
type WorkResult struct {
	TaskID       string `json:"task_id"`
	Target       Target `json:"target"`
	PostsFetched int    `json:"posts_fetched"`
	MediaFetched int    `json:"media_fetched"`
	Failed       bool   `json:"failed"`
	ErrorText    string `json:"error_text,omitempty"`
}

// BatchSpec is the validated input to the dispatcher.
type BatchSpec struct {
	Targets []Target
	Window  *DateWindow
	Storage string
}

// TaskHandle is the opaque scheduling id returned per dispatched target.
type TaskHandle struct {
	TaskID string `json:"task_id"`
	Target Target `json:"target"`
}

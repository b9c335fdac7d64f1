// Package reddit implements the platform client for Reddit's public
// JSON endpoints. It owns retrieval and pagination; window filtering and
// limits belong to the worker.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feedlake/social-crawler/internal/crawl"
	"github.com/feedlake/social-crawler/internal/useragent"
)

const (
	defaultBaseURL  = "https://www.reddit.com"
	defaultPageSize = 100
)

// Config controls the Reddit client.
type Config struct {
	BaseURL  string        `mapstructure:"base_url"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// RequestsPerMinute caps the steady request rate against the public
	// endpoints, which enforce roughly 60 unauthenticated requests per
	// minute per client.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Client fetches author profiles and submissions from Reddit.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	throttle *crawl.Throttle
	agents   *useragent.Pool
	baseURL  string
	pageSize int
	logger   *zap.Logger
}

// New builds a Client with config defaults applied.
func New(cfg Config, throttle *crawl.Throttle, agents *useragent.Pool, logger *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		throttle: throttle,
		agents:   agents,
		baseURL:  base,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Name returns the platform path segment used in storage keys.
func (c *Client) Name() string { return "reddit" }

// FetchProfile retrieves the author's public profile.
func (c *Client) FetchProfile(ctx context.Context, target crawl.Target) (crawl.AuthorRecord, error) {
	endpoint := fmt.Sprintf("%s/user/%s/about.json", c.baseURL, url.PathEscape(string(target)))

	var body aboutResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return crawl.AuthorRecord{}, err
	}
	if body.Data.Name == "" {
		return crawl.AuthorRecord{}, crawl.Errorf(crawl.KindParse, "profile response for %s has no name", target)
	}

	rec := crawl.AuthorRecord{
		ID:          body.Data.ID,
		DisplayName: body.Data.Name,
		CreatedAt:   epochToRFC3339(body.Data.CreatedUTC),
	}
	// Subscriber count is only present when the user profile exposes a
	// subreddit; absence is a valid permanent state, not an error.
	if body.Data.Subreddit != nil {
		n := body.Data.Subreddit.Subscribers
		rec.FollowersCount = &n
	}
	return rec, nil
}

// FetchPosts returns a lazy cursor over the author's submissions, newest
// first, following the listing's after-token until exhaustion.
func (c *Client) FetchPosts(_ context.Context, target crawl.Target) (crawl.PostCursor, error) {
	return &submissionCursor{client: c, target: target}, nil
}

type submissionCursor struct {
	client *Client
	target crawl.Target
	after  string
	buf    []crawl.RawPost
	done   bool
}

// Next returns the next submission, fetching the following page when the
// buffered one is drained. Returns crawl.ErrEndOfPosts at the end of the
// listing.
func (s *submissionCursor) Next(ctx context.Context) (crawl.RawPost, error) {
	for len(s.buf) == 0 {
		if s.done {
			return crawl.RawPost{}, crawl.ErrEndOfPosts
		}
		if err := s.fetchPage(ctx); err != nil {
			return crawl.RawPost{}, err
		}
	}
	post := s.buf[0]
	s.buf = s.buf[1:]
	return post, nil
}

func (s *submissionCursor) fetchPage(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.client.pageSize))
	q.Set("raw_json", "1")
	if s.after != "" {
		q.Set("after", s.after)
	}
	endpoint := fmt.Sprintf("%s/user/%s/submitted.json?%s",
		s.client.baseURL, url.PathEscape(string(s.target)), q.Encode())

	var body listingResponse
	if err := s.client.getJSON(ctx, endpoint, &body); err != nil {
		return err
	}

	for _, child := range body.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		s.buf = append(s.buf, child.Data.toRawPost())
	}
	s.after = body.Data.After
	if s.after == "" || len(body.Data.Children) == 0 {
		s.done = true
	}
	return nil
}

// getJSON performs one rate-limited GET and decodes the response,
// mapping failures onto the crawl error taxonomy.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return crawl.WrapErr(crawl.KindGeneric, err, "rate limit wait")
	}
	if err := c.throttle.Wait(ctx); err != nil {
		return crawl.WrapErr(crawl.KindGeneric, err, "throttle wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return crawl.WrapErr(crawl.KindGeneric, err, "build request")
	}
	req.Header.Set("User-Agent", c.agents.Random())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return crawl.WrapErr(crawl.KindNetwork, err, "get %s", endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return crawl.FromStatus(resp.StatusCode, "get "+endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return crawl.WrapErr(crawl.KindParse, err, "decode %s", endpoint)
	}
	c.logger.Debug("reddit fetch", zap.String("endpoint", endpoint))
	return nil
}

func epochToRFC3339(epoch float64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(int64(epoch), 0).UTC().Format(time.RFC3339)
}

// Package batch loads crawl batch documents from YAML files.
package batch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedlake/social-crawler/internal/crawl"
)

// Parameter defaults applied when the document omits them.
const (
	DefaultMinPostsPerAuthor = 2
	DefaultMinDateSpanDays   = 14
	DefaultDelaySeconds      = 30
)

// Parameters tune crawl expectations for one batch.
type Parameters struct {
	MinPostsPerAuthor int `yaml:"min_posts_per_author"`
	MinDateSpanDays   int `yaml:"min_date_span_days"`
	DelaySeconds      int `yaml:"delay_seconds"`
}

// Document is the raw YAML batch shape. RedditUsers is the legacy key
// for Targets; Targets wins when both are present.
type Document struct {
	Targets     []string `yaml:"targets"`
	RedditUsers []string `yaml:"reddit_users"`
	DateRange   *struct {
		Since string `yaml:"since"`
		Until string `yaml:"until"`
	} `yaml:"date_range"`
	Parameters Parameters `yaml:"parameters"`
	Storage    string     `yaml:"storage"`
}

// Batch is the validated, defaulted form ready for dispatch.
type Batch struct {
	Spec       crawl.BatchSpec
	Parameters Parameters
}

// Load reads and validates the batch document at path.
func Load(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch file: %w", err)
	}
	return Parse(data)
}

// Parse validates the document bytes and applies defaults.
func Parse(data []byte) (Batch, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Batch{}, fmt.Errorf("parse batch document: %w", err)
	}

	names := doc.Targets
	if len(names) == 0 {
		names = doc.RedditUsers
	}
	targets := make([]crawl.Target, 0, len(names))
	for _, name := range names {
		if name == "" {
			return Batch{}, fmt.Errorf("batch contains an empty target")
		}
		targets = append(targets, crawl.Target(name))
	}

	window, err := parseWindow(doc)
	if err != nil {
		return Batch{}, err
	}

	params := doc.Parameters
	if params.MinPostsPerAuthor <= 0 {
		params.MinPostsPerAuthor = DefaultMinPostsPerAuthor
	}
	if params.MinDateSpanDays <= 0 {
		params.MinDateSpanDays = DefaultMinDateSpanDays
	}
	if params.DelaySeconds <= 0 {
		params.DelaySeconds = DefaultDelaySeconds
	}

	return Batch{
		Spec: crawl.BatchSpec{
			Targets: targets,
			Window:  window,
			Storage: doc.Storage,
		},
		Parameters: params,
	}, nil
}

// parseWindow returns nil when either bound is absent so the dispatcher
// applies its default window.
func parseWindow(doc Document) (*crawl.DateWindow, error) {
	if doc.DateRange == nil || doc.DateRange.Since == "" || doc.DateRange.Until == "" {
		return nil, nil
	}
	since, err := time.Parse("2006-01-02", doc.DateRange.Since)
	if err != nil {
		return nil, fmt.Errorf("parse date_range.since: %w", err)
	}
	until, err := time.Parse("2006-01-02", doc.DateRange.Until)
	if err != nil {
		return nil, fmt.Errorf("parse date_range.until: %w", err)
	}
	window := crawl.NewDateWindow(since, until)
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &window, nil
}

// Delay returns the configured inter-request delay.
func (p Parameters) Delay() time.Duration {
	return time.Duration(p.DelaySeconds) * time.Second
}

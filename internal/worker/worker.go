// Package worker executes crawl units: fetch the author, fetch and
// filter posts, acquire media, persist everything, record the result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
	"github.com/feedlake/social-crawler/internal/metrics"
)

// MediaFetcher downloads media URLs, returning local paths of the
// successful downloads only.
type MediaFetcher interface {
	FetchAll(ctx context.Context, urls []string) []string
}

// Config controls Worker behavior.
type Config struct {
	Tier           string
	DefaultStorage string
	Retry          crawl.RetryConfig
}

// Worker consumes queue items and runs the crawl pipeline for each.
// The author fetch is the gate: if it fails after retries the unit is
// recorded as failed and no post work happens. Past that gate, failures
// are per-item: a post or media failure is logged, skipped, and never
// aborts the unit.
type Worker struct {
	queue    crawl.Queue
	platform crawl.PlatformClient
	stores   map[string]crawl.ObjectStore
	results  crawl.ResultStore
	media    MediaFetcher
	keys     crawl.KeySet
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. stores maps storage selector names to
// backends; cfg.DefaultStorage names the backend used when a queue item
// does not carry a selector.
func New(
	queue crawl.Queue,
	platform crawl.PlatformClient,
	stores map[string]crawl.ObjectStore,
	results crawl.ResultStore,
	media MediaFetcher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:    queue,
		platform: platform,
		stores:   stores,
		results:  results,
		media:    media,
		keys:     crawl.NewKeySet(cfg.Tier, platform.Name()),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued crawl unit",
			zap.String("task_id", item.TaskID), zap.String("target", string(item.Target)))
		w.Process(ctx, item)
	}
}

// Process runs one crawl unit end to end and records its result. The
// returned result mirrors what was stored.
func (w *Worker) Process(ctx context.Context, item crawl.QueueItem) crawl.WorkResult {
	metrics.WorkerStarted()
	defer metrics.WorkerFinished()

	res := w.process(ctx, item)

	if err := w.results.Put(ctx, res); err != nil {
		w.logger.Error("record work result failed",
			zap.String("task_id", item.TaskID), zap.Error(err))
	}
	if res.Failed {
		metrics.ObserveTarget("failed")
	} else {
		metrics.ObserveTarget("completed")
	}
	return res
}

func (w *Worker) process(ctx context.Context, item crawl.QueueItem) crawl.WorkResult {
	res := crawl.WorkResult{TaskID: item.TaskID, Target: item.Target}

	store, err := w.storeFor(item.Storage)
	if err != nil {
		res.Failed = true
		res.ErrorText = err.Error()
		return res
	}

	retryCfg := w.retryConfig(item)

	// The author fetch gates the unit: without a profile there is no
	// author to attribute posts to.
	var author crawl.AuthorRecord
	err = crawl.Retry(ctx, retryCfg, func(ctx context.Context) error {
		var ferr error
		author, ferr = w.platform.FetchProfile(ctx, item.Target)
		return ferr
	})
	if err != nil {
		w.logger.Error("author fetch failed",
			zap.String("target", string(item.Target)),
			zap.String("kind", string(crawl.KindOf(err))),
			zap.Error(err))
		res.Failed = true
		res.ErrorText = err.Error()
		return res
	}

	profileKey := w.keys.ProfileKey(item.RunTS, item.Target)
	if _, err := store.WriteJSON(ctx, author, profileKey); err != nil {
		// Post processing still proceeds: the profile write is
		// independent of post persistence.
		w.logger.Error("profile write failed",
			zap.String("key", profileKey), zap.Error(err))
	}

	posts, err := w.collectPosts(ctx, item, retryCfg)
	if err != nil {
		w.logger.Error("post listing failed",
			zap.String("target", string(item.Target)),
			zap.String("kind", string(crawl.KindOf(err))),
			zap.Error(err))
		res.Failed = true
		res.ErrorText = err.Error()
		return res
	}

	for _, post := range posts {
		if ctx.Err() != nil {
			w.logger.Warn("crawl unit interrupted",
				zap.String("task_id", item.TaskID),
				zap.Int("posts_persisted", res.PostsFetched))
			res.Failed = true
			res.ErrorText = ctx.Err().Error()
			return res
		}
		persisted, mediaCount := w.persistPost(ctx, store, item, post)
		if persisted {
			res.PostsFetched++
			res.MediaFetched += mediaCount
		}
	}

	w.logger.Info("crawl unit completed",
		zap.String("task_id", item.TaskID),
		zap.String("target", string(item.Target)),
		zap.Int("posts", res.PostsFetched),
		zap.Int("media", res.MediaFetched))
	return res
}

// collectPosts walks the full listing and keeps the posts inside the
// item's window. The listing is always scanned to exhaustion: posts may
// arrive out of strict timestamp order, so no prefix of the listing is a
// safe place to stop.
func (w *Worker) collectPosts(ctx context.Context, item crawl.QueueItem, retryCfg crawl.RetryConfig) ([]crawl.RawPost, error) {
	var posts []crawl.RawPost
	err := crawl.Retry(ctx, retryCfg, func(ctx context.Context) error {
		posts = posts[:0]
		cursor, err := w.platform.FetchPosts(ctx, item.Target)
		if err != nil {
			return err
		}
		for {
			post, err := cursor.Next(ctx)
			if errors.Is(err, crawl.ErrEndOfPosts) {
				return nil
			}
			if err != nil {
				return err
			}
			if item.Window.Contains(post.CreatedAt) {
				posts = append(posts, post)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// persistPost downloads the post's media, writes the post record, and
// uploads the media files. The post record write is the commit point: if
// it fails the post does not count and its media is not uploaded.
func (w *Worker) persistPost(ctx context.Context, store crawl.ObjectStore, item crawl.QueueItem, post crawl.RawPost) (bool, int) {
	localPaths := w.media.FetchAll(ctx, post.MediaURLs)

	postTS := post.CreatedAt.UTC().Format(time.RFC3339)
	record := crawl.PostRecord{
		AuthorID:        post.AuthorID,
		Text:            post.Text,
		Timestamp:       postTS,
		LikeCount:       post.Likes,
		RepostCount:     post.Reposts,
		CommentCount:    post.Comments,
		MediaURLs:       post.MediaURLs,
		MediaLocalPaths: localPaths,
	}

	postKey := w.keys.PostKey(item.RunTS, item.Target, postTS)
	if _, err := store.WriteJSON(ctx, record, postKey); err != nil {
		metrics.ObservePost("failed")
		w.logger.Error("post write failed", zap.String("key", postKey), zap.Error(err))
		return false, 0
	}
	metrics.ObservePost("persisted")

	uploaded := 0
	for i, localPath := range localPaths {
		key := w.keys.MediaKey(item.Target, postTS, i, filepath.Ext(localPath))
		if _, err := store.WriteFile(ctx, localPath, key); err != nil {
			metrics.ObserveMedia("upload_failed")
			w.logger.Error("media upload failed", zap.String("key", key), zap.Error(err))
			continue
		}
		metrics.ObserveMedia("uploaded")
		uploaded++
	}
	return true, uploaded
}

func (w *Worker) storeFor(name string) (crawl.ObjectStore, error) {
	if name == "" {
		name = w.cfg.DefaultStorage
	}
	store, ok := w.stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q", name)
	}
	return store, nil
}

func (w *Worker) retryConfig(item crawl.QueueItem) crawl.RetryConfig {
	cfg := w.cfg.Retry
	if cfg.MaxRetries == 0 && cfg.BaseDelay == 0 {
		cfg = crawl.DefaultRetryConfig()
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.ObserveRetry()
		w.logger.Warn("retrying platform call",
			zap.String("target", string(item.Target)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("kind", string(crawl.KindOf(err))),
			zap.Error(err))
	}
	return cfg
}

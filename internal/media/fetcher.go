// Package media downloads post media to local temporary files with
// deterministic, collision-resistant naming.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
	"github.com/feedlake/social-crawler/internal/metrics"
	"github.com/feedlake/social-crawler/internal/useragent"
)

const copyChunkSize = 32 * 1024

// Config controls the fetcher.
type Config struct {
	DownloadDir string
	Timeout     time.Duration
}

// Fetcher downloads media URLs one at a time, isolating per-URL failure:
// one bad URL never fails the batch.
type Fetcher struct {
	client   *http.Client
	throttle *crawl.Throttle
	agents   *useragent.Pool
	dir      string
	logger   *zap.Logger
}

// NewFetcher creates the download directory and builds a Fetcher.
func NewFetcher(cfg Config, throttle *crawl.Throttle, agents *useragent.Pool, logger *zap.Logger) (*Fetcher, error) {
	if cfg.DownloadDir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		throttle: throttle,
		agents:   agents,
		dir:      cfg.DownloadDir,
		logger:   logger,
	}, nil
}

// FetchAll downloads each URL in order and returns the local paths of the
// successful downloads only. Failures are logged with their cause and
// dropped, never raised; a failure on URL k does not prevent URLs k+1..n
// from being attempted. The returned slice is therefore at most as long
// as urls and has no positional correspondence with it.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []string {
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		localPath, err := f.fetchOne(ctx, u)
		if err != nil {
			metrics.ObserveMedia("download_failed")
			f.logger.Warn("media download failed", zap.String("url", u), zap.Error(err))
			continue
		}
		metrics.ObserveMedia("downloaded")
		paths = append(paths, localPath)
	}
	return paths
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) (string, error) {
	if err := f.throttle.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", crawl.WrapErr(crawl.KindGeneric, err, "build request")
	}
	req.Header.Set("User-Agent", f.agents.Random())

	resp, err := f.client.Do(req)
	if err != nil {
		return "", crawl.WrapErr(crawl.KindNetwork, err, "get %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", crawl.FromStatus(resp.StatusCode, "download "+rawURL)
	}

	// The random suffix keeps repeated fetches of the same URL (retries
	// within one process lifetime) from colliding.
	name := fmt.Sprintf("%s_%s%s",
		shortHash(rawURL),
		randomSuffix(),
		extensionFor(rawURL, resp.Header.Get("Content-Type")),
	)
	localPath := filepath.Join(f.dir, name)

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}
	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(dst, resp.Body, buf); err != nil {
		dst.Close()
		os.Remove(localPath)
		return "", crawl.WrapErr(crawl.KindNetwork, err, "stream body of %s", rawURL)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", localPath, err)
	}

	f.logger.Debug("media downloaded", zap.String("url", rawURL), zap.String("path", localPath))
	return localPath, nil
}

func shortHash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:10]
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"audio/mpeg": ".mp3",
}

// extensionFor derives a file extension from the URL path, falling back
// to the declared content type, falling back to a generic binary
// extension.
func extensionFor(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	if ext, ok := contentTypeExtensions[strings.TrimSpace(strings.ToLower(mediaType))]; ok {
		return ext
	}
	return ".bin"
}

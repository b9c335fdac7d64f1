package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
	qmemory "github.com/feedlake/social-crawler/internal/queue/memory"
	rmemory "github.com/feedlake/social-crawler/internal/results/memory"
	smemory "github.com/feedlake/social-crawler/internal/storage/memory"
)

type fakePlatform struct {
	profile      crawl.AuthorRecord
	profileErr   error
	profileCalls int
	posts        []crawl.RawPost
	listErr      error
}

func (f *fakePlatform) Name() string { return "reddit" }

func (f *fakePlatform) FetchProfile(_ context.Context, _ crawl.Target) (crawl.AuthorRecord, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return crawl.AuthorRecord{}, f.profileErr
	}
	return f.profile, nil
}

func (f *fakePlatform) FetchPosts(_ context.Context, _ crawl.Target) (crawl.PostCursor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &sliceCursor{posts: f.posts}, nil
}

type sliceCursor struct {
	posts []crawl.RawPost
	pos   int
}

func (c *sliceCursor) Next(_ context.Context) (crawl.RawPost, error) {
	if c.pos >= len(c.posts) {
		return crawl.RawPost{}, crawl.ErrEndOfPosts
	}
	post := c.posts[c.pos]
	c.pos++
	return post, nil
}

// fakeMedia writes one real temp file per URL so store.WriteFile can
// read it back.
type fakeMedia struct {
	dir   string
	calls [][]string
}

func (f *fakeMedia) FetchAll(_ context.Context, urls []string) []string {
	f.calls = append(f.calls, urls)
	paths := make([]string, 0, len(urls))
	for i, u := range urls {
		p := filepath.Join(f.dir, fmt.Sprintf("m%d_%d%s", len(f.calls), i, filepath.Ext(u)))
		if err := os.WriteFile(p, []byte(u), 0o600); err != nil {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

type fixture struct {
	worker   *Worker
	platform *fakePlatform
	store    *smemory.Store
	results  *rmemory.Store
}

func newFixture(t *testing.T, platform *fakePlatform) *fixture {
	t.Helper()
	store := smemory.New()
	results := rmemory.New()
	w := New(
		qmemory.New(4),
		platform,
		map[string]crawl.ObjectStore{"memory": store},
		results,
		&fakeMedia{dir: t.TempDir()},
		Config{
			DefaultStorage: "memory",
			Retry:          crawl.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		},
		zap.NewNop(),
	)
	return &fixture{worker: w, platform: platform, store: store, results: results}
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func item() crawl.QueueItem {
	return crawl.QueueItem{
		TaskID: "task-1",
		Target: "alice",
		Window: crawl.NewDateWindow(day(10), day(20)),
		RunTS:  "20260821T000000Z",
	}
}

func TestProcess_HappyPath(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		profile: crawl.AuthorRecord{ID: "t2_abc", DisplayName: "alice"},
		posts: []crawl.RawPost{
			{AuthorID: "t2_abc", Text: "in window", CreatedAt: day(15), MediaURLs: []string{"https://i.redd.it/a.jpg"}},
			{AuthorID: "t2_abc", Text: "too old", CreatedAt: day(1)},
			{AuthorID: "t2_abc", Text: "also in window", CreatedAt: day(20).Add(23 * time.Hour)},
		},
	}
	f := newFixture(t, platform)

	res := f.worker.Process(context.Background(), item())

	assert.False(t, res.Failed)
	assert.Equal(t, 2, res.PostsFetched)
	assert.Equal(t, 1, res.MediaFetched)

	// Profile persisted under the run-scoped key.
	profileKey := "bronze/crawler/metadata/user_profile/20260821T000000Z/reddit/alice.json"
	data, ok := f.store.Object(profileKey)
	require.True(t, ok)
	var author crawl.AuthorRecord
	require.NoError(t, json.Unmarshal(data, &author))
	assert.Equal(t, "alice", author.DisplayName)

	// One post record per in-window post, named by sanitized timestamp.
	postKeys, err := f.store.List(context.Background(), "bronze/crawler/metadata/user_post/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bronze/crawler/metadata/user_post/20260821T000000Z/reddit/alice/2026-08-15T00-00-00Z.json",
		"bronze/crawler/metadata/user_post/20260821T000000Z/reddit/alice/2026-08-20T23-00-00Z.json",
	}, postKeys)

	mediaKeys, err := f.store.List(context.Background(), "bronze/crawler/media/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bronze/crawler/media/reddit/alice/2026-08-15T00-00-00Z_0.jpg",
	}, mediaKeys)

	// The stored result matches the returned one.
	stored, err := f.results.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, res, stored)
}

func TestProcess_AuthorFetchFailureAbortsUnit(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		profileErr: crawl.Errorf(crawl.KindAuthFailed, "suspended"),
		posts:      []crawl.RawPost{{CreatedAt: day(15)}},
	}
	f := newFixture(t, platform)

	res := f.worker.Process(context.Background(), item())

	assert.True(t, res.Failed)
	assert.Contains(t, res.ErrorText, "suspended")
	assert.Zero(t, res.PostsFetched)

	keys, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys, "no output should be written when the author fetch fails")

	stored, err := f.results.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.True(t, stored.Failed)
}

func TestProcess_AuthorFetchRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{profileErr: crawl.Errorf(crawl.KindNetwork, "connection reset")}
	f := newFixture(t, platform)

	res := f.worker.Process(context.Background(), item())

	assert.True(t, res.Failed)
	assert.Equal(t, 2, platform.profileCalls, "one initial try plus one retry")
}

func TestProcess_FullListingScannedDespiteOldPosts(t *testing.T) {
	t.Parallel()

	// Recent posts appear after a long run of out-of-window ones; the
	// whole listing must still be walked.
	posts := make([]crawl.RawPost, 0, 8)
	for i := 0; i < 7; i++ {
		posts = append(posts, crawl.RawPost{CreatedAt: day(1)})
	}
	posts = append(posts, crawl.RawPost{Text: "late but relevant", CreatedAt: day(15)})

	f := newFixture(t, &fakePlatform{posts: posts})
	res := f.worker.Process(context.Background(), item())

	assert.False(t, res.Failed)
	assert.Equal(t, 1, res.PostsFetched)
}

func TestProcess_UnknownStorageBackend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePlatform{})
	it := item()
	it.Storage = "nonexistent"

	res := f.worker.Process(context.Background(), it)
	assert.True(t, res.Failed)
	assert.Contains(t, res.ErrorText, "nonexistent")
}

// failingStore wraps the memory store, failing writes for keys that
// match a substring.
type failingStore struct {
	*smemory.Store
	failSubstring string
}

func (s *failingStore) WriteJSON(ctx context.Context, v any, key string) (string, error) {
	if s.failSubstring != "" && strings.Contains(key, s.failSubstring) {
		return "", fmt.Errorf("simulated write failure for %s", key)
	}
	return s.Store.WriteJSON(ctx, v, key)
}

func TestProcess_PostWriteFailureSkipsPostOnly(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		posts: []crawl.RawPost{
			{Text: "first", CreatedAt: day(12), MediaURLs: []string{"https://i.redd.it/x.png"}},
			{Text: "second", CreatedAt: day(13)},
		},
	}
	base := smemory.New()
	store := &failingStore{Store: base, failSubstring: "2026-08-12"}
	results := rmemory.New()
	w := New(
		qmemory.New(4),
		platform,
		map[string]crawl.ObjectStore{"memory": store},
		results,
		&fakeMedia{dir: t.TempDir()},
		Config{DefaultStorage: "memory", Retry: crawl.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}},
		zap.NewNop(),
	)

	res := w.Process(context.Background(), item())

	assert.False(t, res.Failed, "a single post failure must not fail the unit")
	assert.Equal(t, 1, res.PostsFetched)
	assert.Zero(t, res.MediaFetched, "media of a skipped post is not uploaded")

	mediaKeys, err := base.List(context.Background(), "bronze/crawler/media/")
	require.NoError(t, err)
	assert.Empty(t, mediaKeys)
}

func TestProcess_ProfileWriteFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		posts: []crawl.RawPost{{Text: "ok", CreatedAt: day(12)}},
	}
	base := smemory.New()
	store := &failingStore{Store: base, failSubstring: "user_profile"}
	w := New(
		qmemory.New(4),
		platform,
		map[string]crawl.ObjectStore{"memory": store},
		rmemory.New(),
		&fakeMedia{dir: t.TempDir()},
		Config{DefaultStorage: "memory", Retry: crawl.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}},
		zap.NewNop(),
	)

	res := w.Process(context.Background(), item())
	assert.False(t, res.Failed)
	assert.Equal(t, 1, res.PostsFetched)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	q := qmemory.New(4)
	f := newFixture(t, &fakePlatform{})
	w := New(
		q,
		f.platform,
		map[string]crawl.ObjectStore{"memory": f.store},
		f.results,
		&fakeMedia{dir: t.TempDir()},
		Config{DefaultStorage: "memory"},
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

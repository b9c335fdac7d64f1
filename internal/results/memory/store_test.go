package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlake/social-crawler/internal/crawl"
)

func TestPutGet(t *testing.T) {
	t.Parallel()

	s := New()
	res := crawl.WorkResult{TaskID: "t1", Target: "alice", PostsFetched: 3, MediaFetched: 2}
	require.NoError(t, s.Put(context.Background(), res))

	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestGet_UnknownTask(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, crawl.ErrResultNotFound)
}

func TestPut_OverwritesPrevious(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Put(context.Background(), crawl.WorkResult{TaskID: "t1", Failed: true, ErrorText: "transient"}))
	require.NoError(t, s.Put(context.Background(), crawl.WorkResult{TaskID: "t1", PostsFetched: 5}))

	got, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, got.Failed)
	assert.Equal(t, 5, got.PostsFetched)
}

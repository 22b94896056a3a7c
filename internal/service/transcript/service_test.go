package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/cache"
	model "github.com/zhouzirui/podtalk/backend/internal/model/transcript"
)

type fakeFetcher struct {
	calls int
	body  string
	err   error
}

func (f *fakeFetcher) FetchTranscript(_ context.Context, _ string) (model.Payload, error) {
	f.calls++
	if f.err != nil {
		return model.Payload{}, f.err
	}
	return model.Parse([]byte(f.body))
}

func newCache(t *testing.T) *cache.Cache {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return cache.New(ctx, cache.Options{TTL: time.Minute}, nil)
}

func TestTextJoinsSegments(t *testing.T) {
	f := &fakeFetcher{body: `{"transcript":[{"text":"hello","start":0,"duration":1},{"text":"world","start":1,"duration":1}]}`}
	svc := NewService(f, nil, nil)

	text, err := svc.Text(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestMissingVideoIDSkipsUpstream(t *testing.T) {
	f := &fakeFetcher{}
	svc := NewService(f, nil, nil)

	_, err := svc.Segments(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingVideoID)
	assert.Equal(t, 0, f.calls)
}

func TestCacheHitSkipsUpstream(t *testing.T) {
	f := &fakeFetcher{body: `[{"text":"hello","start":0,"duration":2}]`}
	svc := NewService(f, newCache(t), nil)

	first, err := svc.Segments(context.Background(), "abc")
	require.NoError(t, err)
	second, err := svc.Segments(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, first.Raw, second.Raw)
	assert.Equal(t, model.ShapeArray, second.Shape)
}

func TestUpstreamErrorIsNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	svc := NewService(f, newCache(t), nil)

	_, err := svc.Segments(context.Background(), "abc")
	require.Error(t, err)
	_, err = svc.Segments(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, 2, f.calls)
}

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autostream/gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	origin  model.Origin
	results []model.Candidate
	err     error
	delay   time.Duration
	slow    bool
}

func (f fakeClient) Find(ctx context.Context, contentID string) ([]model.Candidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}
func (f fakeClient) IsSlow() bool        { return f.slow }
func (f fakeClient) Origin() model.Origin { return f.origin }

func TestFanout_MergesAndDedupes(t *testing.T) {
	clients := map[string]Client{
		"a": fakeClient{origin: model.OriginTorrentIndexA, results: []model.Candidate{{InfoHash: "H1"}, {InfoHash: "H2"}}},
		"b": fakeClient{origin: model.OriginTorrentIndexB, results: []model.Candidate{{InfoHash: "H2"}, {InfoHash: "H3"}}},
	}
	f := NewFanout(clients, []string{"a", "b"}, time.Second, 200*time.Millisecond, zap.NewNop())
	results, err := f.Find(context.Background(), "tt123", nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFanout_AbsorbsPartialFailure(t *testing.T) {
	clients := map[string]Client{
		"a": fakeClient{origin: model.OriginTorrentIndexA, results: []model.Candidate{{InfoHash: "H1"}}},
		"b": fakeClient{origin: model.OriginTorrentIndexB, err: errors.New("boom")},
	}
	f := NewFanout(clients, []string{"a", "b"}, time.Second, 200*time.Millisecond, zap.NewNop())
	results, err := f.Find(context.Background(), "tt123", nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFanout_ErrorsOnlyWhenAllFail(t *testing.T) {
	clients := map[string]Client{
		"a": fakeClient{origin: model.OriginTorrentIndexA, err: errors.New("boom a")},
		"b": fakeClient{origin: model.OriginTorrentIndexB, err: errors.New("boom b")},
	}
	f := NewFanout(clients, []string{"a", "b"}, time.Second, 200*time.Millisecond, zap.NewNop())
	_, err := f.Find(context.Background(), "tt123", nil)
	require.Error(t, err)
}

func TestFanout_SlowClientTreatedAsEmptyPastQuickSkip(t *testing.T) {
	clients := map[string]Client{
		"fast": fakeClient{origin: model.OriginTorrentIndexA, results: []model.Candidate{{InfoHash: "H1"}}},
		"slow": fakeClient{origin: model.OriginTorrentIndexB, results: []model.Candidate{{InfoHash: "H2"}}, delay: 500 * time.Millisecond, slow: true},
	}
	f := NewFanout(clients, []string{"fast", "slow"}, 5*time.Second, 50*time.Millisecond, zap.NewNop())
	results, err := f.Find(context.Background(), "tt123", nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "H1", results[0].InfoHash)
}

func TestFanout_OnlyRestrictsToNamedSource(t *testing.T) {
	clients := map[string]Client{
		"a": fakeClient{origin: model.OriginTorrentIndexA, results: []model.Candidate{{InfoHash: "H1"}}},
		"b": fakeClient{origin: model.OriginTorrentIndexB, results: []model.Candidate{{InfoHash: "H2"}}},
	}
	f := NewFanout(clients, []string{"a", "b"}, time.Second, 200*time.Millisecond, zap.NewNop())
	results, err := f.Find(context.Background(), "tt123", []string{"a"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "H1", results[0].InfoHash)
}

func TestFanout_MergesInRegistrationOrderRegardlessOfCompletionOrder(t *testing.T) {
	// "a" is the slower of the two but comes first in registration order;
	// the merged list must still put its candidates first.
	clients := map[string]Client{
		"a": fakeClient{origin: model.OriginTorrentIndexA, results: []model.Candidate{{InfoHash: "H1"}}, delay: 50 * time.Millisecond},
		"b": fakeClient{origin: model.OriginTorrentIndexB, results: []model.Candidate{{InfoHash: "H2"}}},
	}
	f := NewFanout(clients, []string{"a", "b"}, time.Second, 200*time.Millisecond, zap.NewNop())
	results, err := f.Find(context.Background(), "tt123", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "H1", results[0].InfoHash)
	assert.Equal(t, "H2", results[1].InfoHash)
}

func TestCreateMagnetURL(t *testing.T) {
	got := CreateMagnetURL("ABCDEF0123456789ABCDEF0123456789ABCDEF01", "My Movie", []string{"udp://tracker.example:80", "udp://tracker.example:80"})
	assert.Contains(t, got, "magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	assert.Equal(t, 1, countOccurrences(got, "tr="))
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}

package metafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/httpclient"
)

func TestGetMovie_CinemetaFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"name":"The Matrix","year":"1999"}}`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	metaCache, err := cache.New[string, []byte](100, time.Hour)
	require.NoError(t, err)

	client, err := New(context.Background(), Options{CinemetaBaseURL: srv.URL}, hc, metaCache, zap.NewNop())
	require.NoError(t, err)

	m, err := client.GetMovie(context.Background(), "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", m.Name)
	assert.Equal(t, 1999, m.Year)
}

func TestGetMovie_CachesResult(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"meta":{"name":"Cached Movie","year":"2001"}}`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	metaCache, err := cache.New[string, []byte](100, time.Hour)
	require.NoError(t, err)

	client, err := New(context.Background(), Options{CinemetaBaseURL: srv.URL}, hc, metaCache, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GetMovie(context.Background(), "tt1")
	require.NoError(t, err)
	_, err = client.GetMovie(context.Background(), "tt1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetMovie_NoNameIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{}}`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	metaCache, err := cache.New[string, []byte](100, time.Hour)
	require.NoError(t, err)

	client, err := New(context.Background(), Options{CinemetaBaseURL: srv.URL}, hc, metaCache, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GetMovie(context.Background(), "tt-missing")
	require.Error(t, err)
}

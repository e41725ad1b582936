package torrenta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autostream/gateway/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"Movie.2160p.mkv","info_hash":"ABCDEF0123456789ABCDEF0123456789ABCDEF01","seeders":12,"size":8589934592}]`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(srv.URL, hc, time.Second, zap.NewNop())

	candidates, err := client.Find(context.Background(), "tt0111161")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "ABCDEF0123456789ABCDEF0123456789ABCDEF01", candidates[0].InfoHash)
	assert.Equal(t, 12, candidates[0].StructuredSeeders)
	assert.Contains(t, candidates[0].Magnet, "magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01")
}

func TestFind_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(srv.URL, hc, time.Second, zap.NewNop())

	candidates, err := client.Find(context.Background(), "tt0111161")
	require.NoError(t, err)
	assert.Nil(t, candidates)
}

package torrentb

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
	mux := http.NewServeMux()
	mux.HandleFunc("/category-search/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table class="table-list"><tbody><tr><td><a>x</a><a href="/torrent/1">Movie 1080p BluRay</a></td></tr></tbody></table></body></html>`))
	})
	mux.HandleFunc("/torrent/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Movie Name</h1><div class="box-info"><ul><li><a href="magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=Movie">magnet</a></li></ul></div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(srv.URL, hc, time.Second, zap.NewNop())

	candidates, err := client.Find(context.Background(), "Movie Name")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "ABCDEF0123456789ABCDEF0123456789ABCDEF01", candidates[0].InfoHash)
}

func TestExtractInfoHash(t *testing.T) {
	assert.Equal(t, "ABC123", extractInfoHash("magnet:?xt=urn:btih:abc123&dn=x"))
	assert.Equal(t, "", extractInfoHash("not-a-magnet"))
}

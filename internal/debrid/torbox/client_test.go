package torbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/httpclient"
)

func TestResolve_HappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/torrents/createtorrent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"torrent_id":"7"}}`))
	})
	mux.HandleFunc("/v1/api/torrents/mylist", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"download_finished":true,"download_state":"","files":[{"id":"1","name":"a.mkv","size":100},{"id":"2","name":"b.mkv","size":999}]}}`))
	})
	mux.HandleFunc("/v1/api/torrents/requestdl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":"https://tb.com/final.mkv"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, zap.NewNop())

	streamURL, err := client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://tb.com/final.mkv", streamURL)
}

func TestResolve_ErrorState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/torrents/createtorrent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"torrent_id":"7"}}`))
	})
	mux.HandleFunc("/v1/api/torrents/mylist", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"download_state":"error"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, zap.NewNop())

	_, err = client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.Error(t, err)
	var f *debrid.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, debrid.FailureTransient, f.Kind)
}

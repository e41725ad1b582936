package alldebrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/httpclient"
)

func TestResolve_HappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/magnet/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"magnets":[{"id":42}]}}`))
	})
	mux.HandleFunc("/v4/magnet/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"magnets":{"links":[{"filename":"a.mkv","size":100,"link":"https://ad.com/l1"},{"filename":"b.mkv","size":999,"link":"https://ad.com/l2"}]}}}`))
	})
	mux.HandleFunc("/v4/link/unlock", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"link":"https://dl.ad.com/final.mkv"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	streamURL, err := client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://dl.ad.com/final.mkv", streamURL)
}

func TestResolve_AuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/magnet/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","error":{"code":"AUTH_BAD_APIKEY","message":"bad key"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	_, err = client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "bad", debrid.Options{})
	require.Error(t, err)
	var f *debrid.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, debrid.FailureAuthInvalid, f.Kind)
}

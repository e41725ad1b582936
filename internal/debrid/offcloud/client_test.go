package offcloud

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
	mux.HandleFunc("/api/cloud", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"requestId":"req1"}`))
	})
	mux.HandleFunc("/api/cloud/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"req1":{"status":"downloaded"}}}`))
	})
	mux.HandleFunc("/api/cloud/explore/req1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["a.mkv","b.mkv"]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, zap.NewNop())

	streamURL, err := client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.NoError(t, err)
	assert.Contains(t, streamURL, "/cloud/download/req1/")
}

func TestResolve_TransferError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cloud", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"requestId":"req1"}`))
	})
	mux.HandleFunc("/api/cloud/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"req1":{"status":"error"}}}`))
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

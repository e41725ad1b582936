package premiumize

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
	mux.HandleFunc("/transfer/directdl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","content":[{"path":"a.mkv","size":100,"link":"https://pm.com/a"},{"path":"b.mkv","size":999,"link":"https://pm.com/b"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	streamURL, err := client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://pm.com/b", streamURL)
}

func TestResolve_NoContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transfer/directdl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","content":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	_, err = client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "key", debrid.Options{})
	require.Error(t, err)
	var f *debrid.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, debrid.FailureNoFiles, f.Kind)
}

package realdebrid

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
	mux.HandleFunc("/rest/1.0/torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"tid1","uri":"` + testBaseURL + `/rest/1.0/torrents/info/tid1"}`))
	})
	var polls int
	mux.HandleFunc("/rest/1.0/torrents/info/tid1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			w.Write([]byte(`{"id":"tid1","status":"downloading","files":[{"id":1,"path":"a.mkv","bytes":100},{"id":2,"path":"b.mkv","bytes":999}]}`))
			return
		}
		w.Write([]byte(`{"id":"tid1","status":"downloaded","files":[{"id":1,"path":"a.mkv","bytes":100},{"id":2,"path":"b.mkv","bytes":999}],"links":["https://real-debrid.com/l1"]}`))
	})
	mux.HandleFunc("/rest/1.0/torrents/selectFiles/tid1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/rest/1.0/unrestrict/link", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"download":"https://dl.real-debrid.com/final/stream.mkv"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	testBaseURL = srv.URL

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	streamURL, err := client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "token", debrid.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://dl.real-debrid.com/final/stream.mkv", streamURL)
}

func TestResolve_NoFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/1.0/torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"tid1","uri":"` + testBaseURL + `/rest/1.0/torrents/info/tid1"}`))
	})
	mux.HandleFunc("/rest/1.0/torrents/info/tid1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"tid1","status":"waiting_files_selection","files":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	testBaseURL = srv.URL

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	_, err = client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "token", debrid.Options{})
	require.Error(t, err)
	var f *debrid.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, debrid.FailureNoFiles, f.Kind)
}

func TestResolve_AuthInvalid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/1.0/torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(Options{BaseURL: srv.URL}, hc, cache.NewInMemoryValidityCache(), zap.NewNop())

	_, err = client.Resolve(context.Background(), "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "bad-token", debrid.Options{})
	require.Error(t, err)
	var f *debrid.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, debrid.FailureAuthInvalid, f.Kind)
}

// testBaseURL lets handlers embed the dynamically-assigned httptest server
// URL in the "uri" field they return, since RealDebrid's real API returns
// an absolute follow-up URL rather than a relative path.
var testBaseURL string

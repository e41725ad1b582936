package directhost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"url":"https://host.example/a.mp4","name":"Movie A","requiresCookie":true,"size":1048576}]`))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	require.NoError(t, err)
	client := New(srv.URL, hc, time.Second, zap.NewNop())

	candidates, err := client.Find(context.Background(), "tt0111161")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].RequiresCookie)
	assert.Equal(t, int64(1048576), candidates[0].StructuredBytes)
}

func TestWithCookie(t *testing.T) {
	in := []model.Candidate{
		{RequiresCookie: true},
		{RequiresCookie: false},
	}
	out := WithCookie(in, "session-value")
	assert.Equal(t, "ui=session-value", out[0].ProxyHeaders["Cookie"])
	assert.Nil(t, out[1].ProxyHeaders)
}

func TestWithCookie_EmptyCookieIsNoOp(t *testing.T) {
	in := []model.Candidate{{RequiresCookie: true}}
	out := WithCookie(in, "")
	assert.Nil(t, out[0].ProxyHeaders)
}

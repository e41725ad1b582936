package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(Options{})
	require.NoError(t, err)

	res, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "ok", string(res.Body))
}

func TestDo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Options{})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	var httpErr *Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, KindHTTP, httpErr.Kind)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	var httpErr *Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, KindTimeout, httpErr.Kind)
}

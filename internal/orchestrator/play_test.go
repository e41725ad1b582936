package orchestrator

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/reliability"
)

func newTestServer(t *testing.T) (*fiber.App, *Server) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	caches, err := cache.NewSet(stop)
	require.NoError(t, err)

	srv := New(Deps{
		Caches:      caches,
		Reliability: reliability.New(),
		Logger:      zap.NewNop(),
	})
	app := fiber.New()
	srv.Register(app)
	return app, srv
}

func TestHandlePlay_RejectsMalformedInfoHash(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/play?ih=not-a-hash&imdb=tt1234567&rd=somekey", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandlePlay_RejectsMissingImdb(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/play?ih="+validHash+"&rd=somekey", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandlePlay_RejectsMissingProviderKey(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/play?ih="+validHash+"&imdb=tt1234567", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandlePlay_RejectsUnregisteredProvider(t *testing.T) {
	app, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/play?ih="+validHash+"&imdb=tt1234567&rd=somekey", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	// No resolvers wired in this Deps, so a syntactically valid request
	// still 400s for lacking a registered provider.
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

const validHash = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

package orchestrator

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/reliability"
)

func TestHandleHealth(t *testing.T) {
	app, _ := newTestServer(t)
	for _, path := range []string{"/health", "/status"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestHandlePing(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleManifest_UntaggedWithoutProviderKey(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/manifest.json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

// manifestFakeResolver satisfies debrid.Resolver but intentionally not
// tokenValidator, so providerValidates takes the "no dedicated probe"
// branch and a syntactically valid key is treated as sufficient.
type manifestFakeResolver struct {
	tag debrid.ProviderTag
}

func (r manifestFakeResolver) Tag() debrid.ProviderTag { return r.tag }
func (r manifestFakeResolver) Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts debrid.Options) (string, error) {
	return "", nil
}

func TestHandleManifest_TagsHigherPriorityProviderWhenMultipleKeysPresent(t *testing.T) {
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	caches, err := cache.NewSet(stop)
	require.NoError(t, err)

	srv := New(Deps{
		Caches:      caches,
		Reliability: reliability.New(),
		Resolvers: map[debrid.ProviderTag]debrid.Resolver{
			debrid.TagAllDebrid:  manifestFakeResolver{tag: debrid.TagAllDebrid},
			debrid.TagRealDebrid: manifestFakeResolver{tag: debrid.TagRealDebrid},
		},
		Logger: zap.NewNop(),
	})
	app := fiber.New()
	srv.Register(app)

	// Both ad and rd keys present: deterministic priority (AD > RD) must
	// tag the manifest "(AD)", never "(RD)".
	req := httptest.NewRequest("GET", "/manifest.json?ad=adkey1234567890&rd=rdkey1234567890123456789012345678", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "(AD)")
	assert.NotContains(t, string(body), "(RD)")
}

func TestHandleListing_RejectsUnknownType(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/stream/episode/tt1234567", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleListing_RejectsMalformedMovieID(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/stream/movie/not-an-id", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleListingCompat_RedirectsBySeriesShape(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/stream/tt1234567:1:2.json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/stream/series/tt1234567:1:2.json", resp.Header.Get("Location"))
}

func TestHandleReliabilityClear_Accepts(t *testing.T) {
	app, _ := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("POST", "/reliability/clear", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

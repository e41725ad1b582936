package orchestrator

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/stremio"
	"github.com/autostream/gateway/internal/userdata"
)

const manifestProbeValidity = 5 * time.Minute

// tokenValidator is implemented by the resolvers with a dedicated
// user-info-style probe endpoint (realdebrid, alldebrid, premiumize).
// torbox and offcloud don't implement one in this gateway, so presence of a correctly-shaped key is treated as
// sufficient for the manifest tag without a live probe.
type tokenValidator interface {
	TestToken(ctx context.Context, key string) error
}

// handleManifest serves the addon manifest (spec §6). The manifest name
// gets a "(<TAG>)" suffix for whichever provider key wins deterministic
// priority (AD > RD > PM > TB > OC) when multiple are supplied, as long as
// it validates against a cached probe.
func (s *Server) handleManifest(c *fiber.Ctx) error {
	q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		q = url.Values{}
	}
	opts, err := userdata.Parse(q)
	if err != nil {
		// Manifest requests must never fail a media client's installation
		// step over a malformed key; serve the untagged manifest instead.
		opts = userdata.Options{}
	}

	name := "AutoStream"
	if tag, key, ok := opts.SelectedProvider(); ok && s.providerValidates(c.Context(), tag, key) {
		name = name + " (" + string(tag) + ")"
	}

	m := stremio.Manifest{
		ID:          "com.autostream.gateway",
		Name:        name,
		Description: "Aggregates torrent and direct-host streams, with optional click-time debrid resolution.",
		Version:     Version,
		ResourceItems: []stremio.ResourceItem{
			{Name: "stream", Types: []string{"movie", "series"}, IDprefixes: []string{"tt", "tmdb"}},
		},
		Types:      []string{"movie", "series"},
		Catalogs:   []struct{}{},
		IDprefixes: []string{"tt", "tmdb"},
	}
	return c.JSON(m)
}

func (s *Server) providerValidates(ctx context.Context, tag debrid.ProviderTag, key string) bool {
	probeKey := string(tag) + ":" + cache.Fingerprint(key)
	if confirmedAt, found, _ := s.deps.Caches.ManifestProbes.Get(probeKey); found {
		if time.Since(confirmedAt) < manifestProbeValidity {
			return true
		}
	}

	resolver, ok := s.deps.Resolvers[tag]
	if !ok {
		return false
	}
	validator, ok := resolver.(tokenValidator)
	if !ok {
		// No dedicated probe for this provider; a syntactically valid key
		// (already enforced by internal/userdata) is treated as sufficient.
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := validator.TestToken(probeCtx, key); err != nil {
		return false
	}
	_ = s.deps.Caches.ManifestProbes.Set(probeKey)
	return true
}

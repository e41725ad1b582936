package orchestrator

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/autostream/gateway/internal/apierr"
	"github.com/autostream/gateway/internal/reliability"
)

// handleHealth backs both /health and /status: a cheap liveness probe that
// never touches an upstream.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
	})
}

// handlePing is the bare liveness check load balancers poll at a high rate.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// handleRoot redirects the addon's bare root to the configured RootURL, or
// to the configure page when none is set, the same convenience the
// teacher's stremio.Options.LandingTemplate covers.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	if s.deps.RootURL != "" {
		return c.Redirect(s.deps.RootURL, fiber.StatusFound)
	}
	return c.Redirect("/configure", fiber.StatusFound)
}

// handleConfigure serves the static configure page operators and end users
// use to build their manifest URL with provider keys and preferences.
// Grounded on the teacher's web/configure static assets, trimmed to a
// single self-contained page since this gateway has no OAuth2 flow.
func (s *Server) handleConfigure(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(configurePage)
}

// handleReliabilityStats exposes the aggregate penalty distribution C3
// tracks, for operators diagnosing why cache TTLs are shrinking.
func (s *Server) handleReliabilityStats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Reliability.StatsSnapshot())
}

// handleReliabilityPenalties exposes the per-host penalty map verbatim.
func (s *Server) handleReliabilityPenalties(c *fiber.Ctx) error {
	return c.JSON(s.deps.Reliability.Snapshot())
}

type reliabilityClearRequest struct {
	URL string `json:"url"`
}

// handleReliabilityClear resets a single host's penalty, or every host's
// when no URL is named.
func (s *Server) handleReliabilityClear(c *fiber.Ctx) error {
	var req reliabilityClearRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeAPIErr(c, apierr.New(apierr.Validation, "invalid request body"))
		}
	}
	if req.URL == "" {
		s.deps.Reliability.ClearAll()
	} else {
		s.deps.Reliability.Clear(reliability.HostOf(req.URL))
	}
	return c.SendStatus(http.StatusNoContent)
}

const configurePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AutoStream</title>
<style>body{font-family:sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}
code{background:#eee;padding:.1rem .3rem;border-radius:.2rem}</style>
</head>
<body>
<h1>AutoStream</h1>
<p>Aggregates torrent and direct-host streams for movies and series, with
optional click-time debrid resolution.</p>
<p>Install by adding your provider key(s) and preferences as query
parameters on the manifest URL, for example:</p>
<p><code>https://your-host/manifest.json?rd=&lt;your-realdebrid-key&gt;</code></p>
<p>Supported provider parameters: <code>ad</code> (AllDebrid), <code>rd</code>
(RealDebrid), <code>pm</code> (Premiumize), <code>tb</code> (TorBox),
<code>oc</code> (Offcloud). Priority when more than one is given:
AD &gt; RD &gt; PM &gt; TB &gt; OC.</p>
</body>
</html>
`

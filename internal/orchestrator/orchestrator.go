// Package orchestrator implements C10 (request orchestrator), C11 (play
// handler) and C12 (protective envelope): the fiber app that fronts every
// route named in spec §6. Grounded on cmd/deflix-stremio/handlers.go's
// fiber.Handler functions and main.go's route wiring, adapted from the
// teacher's userData-path-segment model to spec §6's query-parameter
// interface (see internal/userdata).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/metafetcher"
	"github.com/autostream/gateway/internal/provider"
	"github.com/autostream/gateway/internal/reliability"
	"github.com/autostream/gateway/internal/score"
)

// Version is the addon manifest version (spec §6).
const Version = "1.0.0"

// Deps bundles every collaborator the orchestrator wires together. It is
// built once at startup (cmd/autostream-gateway/main.go) and never reached
// for via a package-level global (spec §9: "ambient singletons -> explicit
// context").
type Deps struct {
	Providers   *provider.Fanout
	Resolvers   map[debrid.ProviderTag]debrid.Resolver
	// DebridHosts names the host attributed to each provider's reliability
	// entries when a /play call fails before a direct URL is known (spec
	// §4.12 point 5: "on failure, on_fail(host_of_attempted_target)").
	DebridHosts map[debrid.ProviderTag]string
	Metafetcher metafetcher.Fetcher
	Caches      *cache.Set
	Reliability *reliability.Store
	HostRep     score.HostReputationConfig

	StreamURLAddr      string
	RootURL            string
	RateLimitPerMinute int
	ConcurrencyLimit   int

	Logger *zap.Logger
}

// Server holds the protective-envelope state (C12) in addition to Deps.
type Server struct {
	deps Deps

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	concurrency chan struct{}

	// inflight coalesces concurrent identical listing requests onto a
	// single computation, the same purpose as the teacher's
	// redirectLock/redirectLockMapLock pair in cmd/deflix-stremio/handlers.go,
	// but backed by go-cache so a lock entry expires on its own instead of
	// living in the map forever.
	inflight *gocache.Cache
}

// New builds a Server. rateLimitPerMinute <= 0 and concurrencyLimit <= 0
// fall back to sensible defaults (100/min, 15 in flight), matching the
// example values in spec §4.13.
func New(deps Deps) *Server {
	if deps.RateLimitPerMinute <= 0 {
		deps.RateLimitPerMinute = 100
	}
	if deps.ConcurrencyLimit <= 0 {
		deps.ConcurrencyLimit = 15
	}
	return &Server{
		deps:        deps,
		limiters:    map[string]*rate.Limiter{},
		concurrency: make(chan struct{}, deps.ConcurrencyLimit),
		inflight:    gocache.New(30*time.Second, time.Minute),
	}
}

// Register mounts every route named in spec §6 onto app.
func (s *Server) Register(app *fiber.App) {
	app.Use(s.recoverMiddleware)
	app.Use(s.rateLimitMiddleware)

	app.Get("/manifest.json", s.handleManifest)

	app.Get("/stream/:type/:id", s.concurrencyGate, s.handleListing)
	app.Get("/stream/:id", s.handleListingCompat)

	app.Get("/play", s.handlePlay)

	app.Get("/configure", s.handleConfigure)
	app.Get("/", s.handleRoot)

	app.Get("/health", s.handleHealth)
	app.Get("/status", s.handleHealth)
	app.Get("/ping", s.handlePing)

	app.Get("/reliability/stats", s.handleReliabilityStats)
	app.Get("/reliability/penalties", s.handleReliabilityPenalties)
	app.Post("/reliability/clear", s.handleReliabilityClear)
}

// requestContext returns a context bound to the underlying fasthttp
// request's lifetime, so that provider fan-out and debrid resolution are
// cancelled if the client disconnects (spec §5: "If a client disconnects,
// the orchestrator cancels outstanding provider calls").
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithCancel(c.Context())
}

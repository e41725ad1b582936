// Command autostream-gateway runs the AutoStream aggregation addon: it
// fronts two torrent indexers and one direct-host indexer behind a single
// Stremio-compatible manifest, and resolves torrent candidates into direct
// URLs via whichever debrid provider the caller supplies a key for.
// Grounded on cmd/deflix-stremio/main.go's bootstrap sequence (parse config
// -> build logger -> build caches -> build clients -> build addon -> serve
// -> wait for signal), generalized from a single-debrid-provider, SDK-hosted
// addon to the five-provider, fiber-hosted one in internal/orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/config"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/debrid/alldebrid"
	"github.com/autostream/gateway/internal/debrid/offcloud"
	"github.com/autostream/gateway/internal/debrid/premiumize"
	"github.com/autostream/gateway/internal/debrid/realdebrid"
	"github.com/autostream/gateway/internal/debrid/torbox"
	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/metafetcher"
	"github.com/autostream/gateway/internal/orchestrator"
	"github.com/autostream/gateway/internal/provider"
	"github.com/autostream/gateway/internal/provider/directhost"
	"github.com/autostream/gateway/internal/provider/torrenta"
	"github.com/autostream/gateway/internal/provider/torrentb"
	"github.com/autostream/gateway/internal/reliability"
	"github.com/autostream/gateway/internal/score"
)

const (
	fanoutTimeout        = 8 * time.Second
	fanoutQuickSkip      = 3 * time.Second
	debridResolveTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "couldn't parse config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "couldn't create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.CheckSecureMode(); err != nil {
		logger.Fatal("secure mode check failed", zap.Error(err))
	}
	logger.Info("parsed config", zap.Int("port", cfg.Port), zap.Bool("secureMode", cfg.SecureMode))

	stop := make(chan struct{})
	defer close(stop)

	caches, err := cache.NewSet(stop)
	if err != nil {
		logger.Fatal("couldn't build cache set", zap.Error(err))
	}

	sharedHTTP, err := httpclient.New(httpclient.Options{})
	if err != nil {
		logger.Fatal("couldn't build shared http client", zap.Error(err))
	}

	var torrentBHTTP *httpclient.Client
	if cfg.SocksProxyAddrTorrentB != "" {
		torrentBHTTP, err = httpclient.New(httpclient.Options{
			SOCKS5ProxyAddr: cfg.SocksProxyAddrTorrentB,
			WithCookieJar:   true,
		})
		if err != nil {
			logger.Fatal("couldn't build SOCKS5 http client for torrentb", zap.Error(err))
		}
	} else {
		torrentBHTTP = sharedHTTP
	}

	clients := map[string]provider.Client{
		"torrentio": torrenta.New(cfg.BaseURLTorrentA, sharedHTTP, fanoutTimeout, logger),
		"tpb":       torrentb.New(cfg.BaseURLTorrentB, torrentBHTTP, fanoutTimeout, logger),
	}
	// order fixes the merged candidate ordering (spec's {torrent_A,
	// torrent_B, direct_host}); nuvio only joins it when direct-host
	// fanout is configured.
	order := []string{"torrentio", "tpb"}
	if cfg.BaseURLDirectHost != "" {
		clients["nuvio"] = directhost.New(cfg.BaseURLDirectHost, sharedHTTP, fanoutTimeout, logger)
		order = append(order, "nuvio")
	}
	fanout := provider.NewFanout(clients, order, fanoutTimeout, fanoutQuickSkip, logger)

	resolvers := buildResolvers(cfg, sharedHTTP, caches, logger)
	debridHosts := map[debrid.ProviderTag]string{
		debrid.TagAllDebrid:  hostOf(cfg.BaseURLAllDebrid),
		debrid.TagRealDebrid: hostOf(cfg.BaseURLRealDebrid),
		debrid.TagPremiumize: hostOf(cfg.BaseURLPremiumize),
		debrid.TagTorBox:     hostOf(cfg.BaseURLTorBox),
		debrid.TagOffcloud:   hostOf(cfg.BaseURLOffcloud),
	}

	var fetcher metafetcher.Fetcher
	if cfg.MetaFetcherGRPCAddr != "" || cfg.MetaFetcherCinemetaURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metaClient, err := metafetcher.New(ctx, metafetcher.Options{
			GRPCAddr:        cfg.MetaFetcherGRPCAddr,
			CinemetaBaseURL: cfg.MetaFetcherCinemetaURL,
		}, sharedHTTP, caches.UpstreamMeta, logger)
		cancel()
		if err != nil {
			logger.Warn("couldn't build metafetcher client, titles will fall back to bare IMDb ids", zap.Error(err))
		} else {
			fetcher = metaClient
		}
	}

	app := fiber.New()
	srv := orchestrator.New(orchestrator.Deps{
		Providers:          fanout,
		Resolvers:          resolvers,
		DebridHosts:        debridHosts,
		Metafetcher:        fetcher,
		Caches:             caches,
		Reliability:        reliability.New(),
		HostRep:            score.DefaultHostReputation(),
		StreamURLAddr:      cfg.StreamURLAddr,
		RootURL:            cfg.RootURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ConcurrencyLimit:   cfg.ConcurrencyLimit,
		Logger:             logger,
	})
	srv.Register(app)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func buildResolvers(cfg config.Config, httpClient *httpclient.Client, caches *cache.Set, logger *zap.Logger) map[debrid.ProviderTag]debrid.Resolver {
	rd := realdebrid.New(realdebrid.Options{BaseURL: cfg.BaseURLRealDebrid, Timeout: debridResolveTimeout}, httpClient, cache.NewInMemoryValidityCache(), logger)
	ad := alldebrid.New(alldebrid.Options{BaseURL: cfg.BaseURLAllDebrid}, httpClient, cache.NewInMemoryValidityCache(), logger)
	pm := premiumize.New(premiumize.Options{BaseURL: cfg.BaseURLPremiumize}, httpClient, cache.NewInMemoryValidityCache(), logger)
	tb := torbox.New(torbox.Options{BaseURL: cfg.BaseURLTorBox}, httpClient, logger)
	oc := offcloud.New(offcloud.Options{BaseURL: cfg.BaseURLOffcloud}, httpClient, logger)

	return map[debrid.ProviderTag]debrid.Resolver{
		debrid.TagRealDebrid: rd,
		debrid.TagAllDebrid:  ad,
		debrid.TagPremiumize: pm,
		debrid.TagTorBox:     tb,
		debrid.TagOffcloud:   oc,
	}
}

func hostOf(baseURL string) string {
	return reliability.HostOf(baseURL)
}

// newLogger builds a zap logger whose level follows cfg.LogLevel, the same
// "info" default plus override the teacher's config.LogLevel flag drives.
func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}

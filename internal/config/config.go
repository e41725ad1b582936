// Package config implements C10's bootstrap configuration: flags with an
// env-var fallback, following cmd/deflix-stremio/config.go's isArgSet
// precedence idiom, plus the secure-mode lockout spec.md §7 requires.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the process-wide bootstrap configuration. It never carries a
// debrid API key field: those are per-request values parsed by
// internal/userdata on every call and must never be defaulted here
// (spec §7's non-negotiable rule).
type Config struct {
	BindAddr   string
	Port       int
	StreamURLAddr string
	LogLevel   string
	RootURL    string

	BaseURLTorrentA    string
	BaseURLTorrentB    string
	BaseURLDirectHost  string
	BaseURLRealDebrid  string
	BaseURLAllDebrid   string
	BaseURLPremiumize  string
	BaseURLTorBox      string
	BaseURLOffcloud    string

	SocksProxyAddrTorrentB string

	MetaFetcherGRPCAddr     string
	MetaFetcherCinemetaURL  string

	RateLimitPerMinute int
	ConcurrencyLimit   int

	// SecureMode, when true, makes the per-request-credential rule
	// (spec §7) non-overridable: CheckSecureMode turns the presence of any
	// debrid-key environment variable in disallowedCredentialEnvVars into
	// a startup error. Other environment variables are not affected.
	SecureMode bool

	EnvPrefix string
}

// Parse builds a Config from CLI flags, falling back to environment
// variables (prefixed by EnvPrefix) only for flags the caller didn't set
// explicitly — same precedence as the teacher's isArgSet check.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("autostream-gateway", flag.ContinueOnError)

	var (
		bindAddr   = fs.String("bindAddr", "0.0.0.0", "interface address to bind to")
		port       = fs.Int("port", 8080, "port to listen on")
		streamURL  = fs.String("streamURLAddr", "http://localhost:8080", "address embedded in self-hosted /play redirect URLs")
		logLevel   = fs.String("logLevel", "info", `log level: "debug", "info", "warn", "error"`)
		rootURL    = fs.String("rootURL", "", "redirect target for the root path")

		baseURLTorrentA   = fs.String("baseURLTorrentA", "https://apibay.org", "base URL for the JSON-API torrent indexer")
		baseURLTorrentB   = fs.String("baseURLTorrentB", "https://1337x.to", "base URL for the HTML-scrape torrent indexer")
		baseURLDirectHost = fs.String("baseURLDirectHost", "", "base URL for the direct-host indexer")
		baseURLRD         = fs.String("baseURLRealDebrid", "https://api.real-debrid.com", "base URL for RealDebrid")
		baseURLAD         = fs.String("baseURLAllDebrid", "https://api.alldebrid.com", "base URL for AllDebrid")
		baseURLPM         = fs.String("baseURLPremiumize", "https://www.premiumize.me/api", "base URL for Premiumize")
		baseURLTB         = fs.String("baseURLTorBox", "https://api.torbox.app", "base URL for TorBox")
		baseURLOC         = fs.String("baseURLOffcloud", "https://offcloud.com", "base URL for Offcloud")

		socksProxyAddrB = fs.String("socksProxyAddrTorrentB", "", "SOCKS5 proxy address for the HTML-scrape torrent indexer")

		metaGRPCAddr     = fs.String("metaFetcherGRPCAddr", "", "gRPC address of the title-metadata service")
		metaCinemetaURL  = fs.String("metaFetcherCinemetaURL", "https://v3-cinemeta.strem.io", "fallback HTTP base URL for title metadata")

		rateLimitPerMinute = fs.Int("rateLimitPerMinute", 100, "requests per client IP per 60s window")
		concurrencyLimit   = fs.Int("concurrencyLimit", 15, "max simultaneously in-flight listing computations")

		secureMode = fs.Bool("secureMode", false, "refuse to start when a debrid API key is set in the environment")
		envPrefix  = fs.String("envPrefix", "", "prefix for environment variable fallbacks")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	prefix := *envPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	set := func(name string) bool {
		found := false
		fs.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	envString := func(flagName, envName string, dst *string) error {
		if set(flagName) {
			return nil
		}
		if val, ok := os.LookupEnv(prefix + envName); ok {
			*dst = val
		}
		return nil
	}
	envInt := func(flagName, envName string, dst *int) error {
		if set(flagName) {
			return nil
		}
		val, ok := os.LookupEnv(prefix + envName)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("couldn't parse %s as int: %w", envName, err)
		}
		*dst = n
		return nil
	}

	for _, f := range []struct {
		flagName, envName string
		dst               *string
	}{
		{"bindAddr", "BIND_ADDR", bindAddr},
		{"streamURLAddr", "STREAM_URL_ADDR", streamURL},
		{"logLevel", "LOG_LEVEL", logLevel},
		{"rootURL", "ROOT_URL", rootURL},
		{"baseURLTorrentA", "BASE_URL_TORRENT_A", baseURLTorrentA},
		{"baseURLTorrentB", "BASE_URL_TORRENT_B", baseURLTorrentB},
		{"baseURLDirectHost", "BASE_URL_DIRECT_HOST", baseURLDirectHost},
		{"baseURLRealDebrid", "BASE_URL_REAL_DEBRID", baseURLRD},
		{"baseURLAllDebrid", "BASE_URL_ALL_DEBRID", baseURLAD},
		{"baseURLPremiumize", "BASE_URL_PREMIUMIZE", baseURLPM},
		{"baseURLTorBox", "BASE_URL_TORBOX", baseURLTB},
		{"baseURLOffcloud", "BASE_URL_OFFCLOUD", baseURLOC},
		{"socksProxyAddrTorrentB", "SOCKS_PROXY_ADDR_TORRENT_B", socksProxyAddrB},
		{"metaFetcherGRPCAddr", "META_FETCHER_GRPC_ADDR", metaGRPCAddr},
		{"metaFetcherCinemetaURL", "META_FETCHER_CINEMETA_URL", metaCinemetaURL},
	} {
		if err := envString(f.flagName, f.envName, f.dst); err != nil {
			return Config{}, err
		}
	}
	for _, f := range []struct {
		flagName, envName string
		dst               *int
	}{
		{"port", "PORT", port},
		{"rateLimitPerMinute", "RATE_LIMIT_PER_MINUTE", rateLimitPerMinute},
		{"concurrencyLimit", "CONCURRENCY_LIMIT", concurrencyLimit},
	} {
		if err := envInt(f.flagName, f.envName, f.dst); err != nil {
			return Config{}, err
		}
	}

	if !set("secureMode") {
		if val, ok := os.LookupEnv(prefix + "SECURE_MODE"); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Config{}, fmt.Errorf("couldn't parse SECURE_MODE as bool: %w", err)
			}
			*secureMode = b
		}
	}

	return Config{
		BindAddr:               *bindAddr,
		Port:                   *port,
		StreamURLAddr:          *streamURL,
		LogLevel:               *logLevel,
		RootURL:                *rootURL,
		BaseURLTorrentA:        *baseURLTorrentA,
		BaseURLTorrentB:        *baseURLTorrentB,
		BaseURLDirectHost:      *baseURLDirectHost,
		BaseURLRealDebrid:      *baseURLRD,
		BaseURLAllDebrid:       *baseURLAD,
		BaseURLPremiumize:      *baseURLPM,
		BaseURLTorBox:          *baseURLTB,
		BaseURLOffcloud:        *baseURLOC,
		SocksProxyAddrTorrentB: *socksProxyAddrB,
		MetaFetcherGRPCAddr:    *metaGRPCAddr,
		MetaFetcherCinemetaURL: *metaCinemetaURL,
		RateLimitPerMinute:     *rateLimitPerMinute,
		ConcurrencyLimit:       *concurrencyLimit,
		SecureMode:             *secureMode,
		EnvPrefix:              prefix,
	}, nil
}

// disallowedCredentialEnvVars lists the debrid-key-shaped environment
// variable names whose presence makes a SecureMode deployment refuse to
// start, closing off the fallback path spec.md §7 forbids in production.
var disallowedCredentialEnvVars = []string{
	"RD_API_KEY", "AD_API_KEY", "PM_API_KEY", "TB_API_KEY", "OC_API_KEY",
	"REALDEBRID_KEY", "ALLDEBRID_KEY", "PREMIUMIZE_KEY", "TORBOX_KEY", "OFFCLOUD_KEY",
}

// CheckSecureMode returns an error if SecureMode is on and any of the
// forbidden credential environment variables are set, refusing startup
// outright rather than silently ignoring them.
func (c Config) CheckSecureMode() error {
	if !c.SecureMode {
		return nil
	}
	for _, name := range disallowedCredentialEnvVars {
		if _, ok := os.LookupEnv(c.EnvPrefix + name); ok {
			return fmt.Errorf("secure mode is enabled but %s is set in the environment; debrid credentials must only be supplied per-request", c.EnvPrefix+name)
		}
	}
	return nil
}

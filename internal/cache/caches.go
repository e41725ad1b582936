package cache

import "time"

// Default capacities and TTLs for the three logical caches named in the
// data model (spec §3). Sizes are generous but bounded so that an adversary
// can't grow the process without limit.
const (
	ResponseCacheSize = 10_000
	ResponseCacheTTL  = time.Hour

	FileListCacheSize = 20_000
	FileListCacheTTL  = 24 * time.Hour

	UnlockedURLCacheSize = 20_000
	UnlockedURLCacheTTL  = time.Hour

	UpstreamMetaCacheSize = 20_000
	UpstreamMetaCacheTTL  = 6 * time.Hour

	ManifestProbeCacheTTL = 5 * time.Minute
)

// Set bundles the process-wide caches. Responses and ManifestProbes are used
// by the orchestrator and UpstreamMeta by the metafetcher; FileLists and
// UnlockedURLs are built here but no resolver or other package reads or
// writes them, so debrid file lists and unlocked URLs are not cached. It
// is constructed once at startup and threaded through
// every constructor explicitly (spec §9: "ambient singletons → explicit
// context"), never reached for via a package-level global.
type Set struct {
	// Responses caches final listing payloads keyed by a caller-built
	// string combining (pathname, provider-key-selection, fallback,
	// resolve-all).
	Responses *TTLLRU[string, ResponseEntry]

	// FileLists caches (api_key, hash) -> resolved file list metadata.
	FileLists *TTLLRU[string, []byte]

	// UnlockedURLs caches (api_key, hash, file_id) -> unlocked direct URL,
	// and for link-level providers (api_key, link_or_magnet) -> direct URL.
	UnlockedURLs *TTLLRU[string, string]

	// UpstreamMeta caches upstream metadata lookups (e.g. title
	// prettification results) keyed by content ID.
	UpstreamMeta *TTLLRU[string, []byte]

	// ManifestProbes records, per supplied debrid key, whether the most
	// recent user-info probe succeeded (not the key's validity forever --
	// just a short-lived plausibility cache so the manifest route doesn't
	// probe upstream on every single request for the same key).
	ManifestProbes ValidityCache
}

// ResponseEntry is the value stored in the final-response cache.
type ResponseEntry struct {
	Body []byte
}

// NewSet builds the default cache set. stop, when closed, terminates the
// background sweepers.
func NewSet(stop <-chan struct{}) (*Set, error) {
	responses, err := New[string, ResponseEntry](ResponseCacheSize, ResponseCacheTTL)
	if err != nil {
		return nil, err
	}
	fileLists, err := New[string, []byte](FileListCacheSize, FileListCacheTTL)
	if err != nil {
		return nil, err
	}
	unlockedURLs, err := New[string, string](UnlockedURLCacheSize, UnlockedURLCacheTTL)
	if err != nil {
		return nil, err
	}
	upstreamMeta, err := New[string, []byte](UpstreamMetaCacheSize, UpstreamMetaCacheTTL)
	if err != nil {
		return nil, err
	}

	responses.StartSweeper(10*time.Minute, stop)
	fileLists.StartSweeper(time.Hour, stop)
	unlockedURLs.StartSweeper(10*time.Minute, stop)
	upstreamMeta.StartSweeper(time.Hour, stop)

	return &Set{
		Responses:      responses,
		FileLists:      fileLists,
		UnlockedURLs:   unlockedURLs,
		UpstreamMeta:   upstreamMeta,
		ManifestProbes: NewInMemoryValidityCache(),
	}, nil
}

// Package stremio holds the wire types the orchestrator actually emits:
// the addon manifest and the stream listing response. Trimmed from
// pkg/stremio/types.go's full addon-SDK type set down to what spec §6
// names (no catalogs, no meta items — this gateway only ever serves a
// stream resource).
package stremio

// Manifest describes the addon's capabilities, served at /manifest.json.
// See https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/manifest.md
type Manifest struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Version       string         `json:"version"`
	ResourceItems []ResourceItem `json:"resources"`
	Types         []string       `json:"types"`
	Catalogs      []struct{}     `json:"catalogs"`
	IDprefixes    []string       `json:"idPrefixes,omitempty"`
	BehaviorHints BehaviorHints  `json:"behaviorHints,omitempty"`
}

type ResourceItem struct {
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	IDprefixes []string `json:"idPrefixes,omitempty"`
}

type BehaviorHints struct {
	Adult bool `json:"adult,omitempty"`
}

// StreamItem represents one playable stream candidate in a listing
// response.
// See https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/stream.md
type StreamItem struct {
	URL      string `json:"url,omitempty"`
	InfoHash string `json:"infoHash,omitempty"`

	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`

	FileIndex     *uint32              `json:"fileIdx,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamBehaviorHints struct {
	Filename     string        `json:"filename,omitempty"`
	ProxyHeaders *ProxyHeaders `json:"proxyHeaders,omitempty"`
}

type ProxyHeaders struct {
	Cookie string `json:"Cookie,omitempty"`
}

// ListingResponse is the body of GET /stream/{type}/{id}.json (spec §6).
type ListingResponse struct {
	Streams         []StreamItem `json:"streams"`
	CacheMaxAge     int          `json:"cacheMaxAge"`
	StaleRevalidate int          `json:"staleRevalidate"`
	StaleError      int          `json:"staleError"`
}

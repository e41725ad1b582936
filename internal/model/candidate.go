// Package model holds the central value of the pipeline: the candidate
// stream record produced by C4 and enriched by every later stage (spec §3).
package model

import "github.com/autostream/gateway/internal/classify"

// Origin is the closed set of upstream origins a candidate can come from.
type Origin string

const (
	OriginTorrentIndexA Origin = "torrent_index_A"
	OriginTorrentIndexB Origin = "torrent_index_B"
	OriginDirectHost    Origin = "direct_host"
)

// Candidate is one normalized search result before selection (the
// "candidate stream" of spec §3).
type Candidate struct {
	Origin Origin

	// Identity.
	InfoHash     string // 40 hex chars, optional
	FileIndex    *int   // optional, within a multi-file torrent
	Magnet       string // optional
	HTTPURL      string // optional
	ProxyHeaders map[string]string

	// Raw text, as produced by the upstream.
	Name        string
	Title       string
	Description string
	Filename    string

	// Structured fields the upstream may have set explicitly.
	StructuredSeeders int
	StructuredBytes   int64
	RequiresCookie    bool

	// Derived features, attached by C5.
	Features classify.Features

	// Derived score, attached by C7.
	Score           int
	ScoreBreakdown  map[string]int

	// set once C10 knows whether a debrid provider is active for this
	// request and rewrites torrent candidates into a /play redirect.
	ResolvedPlayURL string
}

// HasUsableIdentity reports the C4 postcondition: a candidate has either a
// usable URL, or an info_hash, or both.
func (c Candidate) HasUsableIdentity() bool {
	return c.HTTPURL != "" || c.InfoHash != ""
}

// Identity returns the value used to detect whether two candidates refer to
// the same content: info_hash if present, else the URL (spec §4.9).
func (c Candidate) Identity() string {
	if c.InfoHash != "" {
		return c.InfoHash
	}
	return c.HTTPURL
}

// CombinedText is the text C5 and C6 scan: name + title + description +
// optional filename.
func (c Candidate) CombinedText() string {
	return c.Name + " " + c.Title + " " + c.Description + " " + c.Filename
}

// Package debrid implements C9: the Resolver capability shared by every
// debrid provider, plus the season-pack detection and file-selection logic
// common to all five state machines. Grounded on the teacher's
// pkg/debrid/realdebrid/client.go GetStreamURL (upload -> poll -> pick file
// -> unlock -> finalize), generalized into a provider-agnostic shape per
// spec §9's "URL-parameter polymorphism of debrid providers -> a common
// interface".
package debrid

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/autostream/gateway/internal/httpclient"
)

// ProviderTag is the short tag used in the manifest name and in the
// deterministic priority order (spec §8: "AD > RD > PM > TB > OC").
type ProviderTag string

const (
	TagAllDebrid   ProviderTag = "AD"
	TagRealDebrid  ProviderTag = "RD"
	TagPremiumize  ProviderTag = "PM"
	TagTorBox      ProviderTag = "TB"
	TagOffcloud    ProviderTag = "OC"
)

// PriorityOrder is the deterministic tag priority used when more than one
// provider key is present in a request.
var PriorityOrder = []ProviderTag{TagAllDebrid, TagRealDebrid, TagPremiumize, TagTorBox, TagOffcloud}

// SeriesInfo is passed to Resolve when the caller knows it's resolving a
// specific episode out of a possible season pack.
type SeriesInfo struct {
	Season  int
	Episode int
}

// Options bundles everything a Resolve call needs beyond the hash/magnet
// and API key.
type Options struct {
	// FileIndex, when non-nil, is the caller-known file index to use
	// directly (from the candidate's FileIndex), taking priority over
	// season-pack detection.
	FileIndex *int
	Series    *SeriesInfo
	Remote    bool
	// Name is the torrent/job name as reported by the provider itself
	// (e.g. RealDebrid's torrent "filename", AllDebrid's magnet "filename"),
	// threaded in by each resolver after it learns it from the provider's
	// poll response -- not supplied by the caller. It feeds the
	// name-based season-pack detection criteria in IsSeasonPack/SelectFile.
	Name string
}

// Resolver is the per-provider capability: turn a hash or magnet into a
// direct URL, or return a classified failure.
type Resolver interface {
	Tag() ProviderTag
	Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts Options) (string, error)
}

// FailureKind is the taxonomy bubbled as "null" with an annotated internal
// reason (spec §4.10).
type FailureKind string

const (
	FailureAuthInvalid    FailureKind = "auth_invalid"
	FailureRateLimited    FailureKind = "provider_rate_limited"
	FailureTransient      FailureKind = "transient"
	FailureBlocked        FailureKind = "no_server"
	FailureNoFiles        FailureKind = "no_files"
	FailureFileMissing    FailureKind = "file_missing"
	FailureTimeout        FailureKind = "timeout"
)

// Failure is the typed error every resolver returns on a recognized failure
// mode, so callers (the play handler) can map it to the right HTTP status
// without string-matching.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Err.Error()
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// FileEntry is one file in a torrent's file list, enough to run season-pack
// detection and selection.
type FileEntry struct {
	ID    string
	Name  string
	Bytes int64
}

var (
	seasonEpisodePattern = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,2})`)
	seasonOnlyPattern    = regexp.MustCompile(`(?i)S(\d{1,2})(?:[^0-9]|$)`)
)

const seasonPackSizeThreshold = 25 * 1024 * 1024 * 1024 // 25 GiB

// IsSeasonPack applies spec §4.10's detection rule: name contains "complete"
// or "full season"; OR name matches Sxx but not SxxEyy; OR >= 3 files match
// SxxEyy; OR total size exceeds 25 GiB.
func IsSeasonPack(name string, files []FileEntry) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "complete") || strings.Contains(lower, "full season") {
		return true
	}
	if seasonOnlyPattern.MatchString(name) && !seasonEpisodePattern.MatchString(name) {
		return true
	}
	matchCount := 0
	var total int64
	for _, f := range files {
		if seasonEpisodePattern.MatchString(f.Name) {
			matchCount++
		}
		total += f.Bytes
	}
	if matchCount >= 3 {
		return true
	}
	if total > seasonPackSizeThreshold {
		return true
	}
	return false
}

// SelectFile applies the priority order from spec §4.10 step 3:
// (a) caller-supplied file index; (b) season-pack SxxEyy match when series
// metadata is supplied; (c) fallback to the largest file.
func SelectFile(files []FileEntry, opts Options) (FileEntry, bool) {
	if len(files) == 0 {
		return FileEntry{}, false
	}

	if opts.FileIndex != nil {
		idx := *opts.FileIndex
		for _, f := range files {
			if f.ID == strconv.Itoa(idx) {
				return f, true
			}
		}
		if idx >= 0 && idx < len(files) {
			return files[idx], true
		}
	}

	if opts.Series != nil && IsSeasonPack(opts.Name, files) {
		wanted := seasonEpisodeLabel(opts.Series.Season, opts.Series.Episode)
		for _, f := range files {
			if strings.Contains(strings.ToUpper(f.Name), wanted) {
				return f, true
			}
		}
	}

	return largestFile(files)
}

const finalizeTimeout = 8 * time.Second

// FinalizeURL issues a HEAD request to the unlocked URL, following
// redirects, and returns the final URL (spec §4.10 step 5). If the HEAD
// call itself fails, it returns rawURL unchanged -- a broken or slow HEAD
// endpoint shouldn't turn an otherwise-successful resolve into a failure.
func FinalizeURL(ctx context.Context, client *httpclient.Client, rawURL string) string {
	final, err := client.Head(ctx, rawURL, time.Now().Add(finalizeTimeout))
	if err != nil {
		return rawURL
	}
	return final
}

func largestFile(files []FileEntry) (FileEntry, bool) {
	var best FileEntry
	found := false
	for _, f := range files {
		if !found || f.Bytes > best.Bytes {
			best = f
			found = true
		}
	}
	return best, found
}

func seasonEpisodeLabel(season, episode int) string {
	return "S" + pad2(season) + "E" + pad2(episode)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

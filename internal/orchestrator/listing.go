package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/apierr"
	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/classify"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/device"
	"github.com/autostream/gateway/internal/filter"
	"github.com/autostream/gateway/internal/metafetcher"
	"github.com/autostream/gateway/internal/model"
	"github.com/autostream/gateway/internal/provider/directhost"
	"github.com/autostream/gateway/internal/reliability"
	"github.com/autostream/gateway/internal/score"
	"github.com/autostream/gateway/internal/selector"
	"github.com/autostream/gateway/internal/stremio"
	"github.com/autostream/gateway/internal/userdata"
)

var (
	movieIDPattern  = regexp.MustCompile(`^tt\d+$`)
	seriesIDPattern = regexp.MustCompile(`^(tt\d+):(\d+):(\d+)$`)
)

// Client names registered with internal/provider.Fanout, matching the
// `only` query parameter's literal enum (spec §6) so no translation table
// is needed between the two.
const (
	fanoutTorrentA   = "torrentio"
	fanoutTorrentB   = "tpb"
	fanoutDirectHost = "nuvio"
)

const (
	baseCacheMaxAge     = 3600
	baseStaleRevalidate = 1800
	baseStaleError      = 21600
	maxStreamsReturned  = 10
)

// handleListingCompat implements the `GET /stream/{id}.json` compatibility
// shim (spec §6): infer the type from the id shape and 302 to the typed
// route, preserving the query string.
func (s *Server) handleListingCompat(c *fiber.Ctx) error {
	id := c.Params("id")
	contentType := "movie"
	if strings.Contains(id, ":") || strings.Contains(id, "%3A") {
		contentType = "series"
	}
	target := "/stream/" + contentType + "/" + id
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}
	return c.Redirect(target, fiber.StatusFound)
}

// handleListing implements C10's main listing route (spec §4.11).
func (s *Server) handleListing(c *fiber.Ctx) error {
	contentType := c.Params("type")
	id := strings.TrimSuffix(c.Params("id"), ".json")

	if contentType != "movie" && contentType != "series" {
		return writeAPIErr(c, apierr.New(apierr.Validation, "type must be movie or series"))
	}
	var season, episode int
	imdbID := id
	if contentType == "movie" {
		if !movieIDPattern.MatchString(id) {
			return writeAPIErr(c, apierr.New(apierr.Validation, "invalid movie id"))
		}
	} else {
		m := seriesIDPattern.FindStringSubmatch(id)
		if m == nil {
			return writeAPIErr(c, apierr.New(apierr.Validation, "invalid series id"))
		}
		imdbID = m[1]
		season, _ = strconv.Atoi(m[2])
		episode, _ = strconv.Atoi(m[3])
	}

	q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return writeAPIErr(c, apierr.New(apierr.Validation, "invalid query string"))
	}
	opts, err := userdata.Parse(q)
	if err != nil {
		return writeAPIErr(c, apierr.New(apierr.Validation, err.Error()))
	}
	if q.Get("fallback") == "1" {
		opts.AdditionalStream = true
	}

	deviceClass := device.ClassOf(c.Get("User-Agent"))

	body, cacheHit := s.computeListing(c.Context(), listingParams{
		pathname:    "/stream/" + contentType + "/" + id,
		contentType: contentType,
		imdbID:      imdbID,
		season:      season,
		episode:     episode,
		deviceClass: deviceClass,
		opts:        opts,
	})
	if !cacheHit {
		s.schedulePreload(contentType, imdbID, season, episode, deviceClass, opts)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

type listingParams struct {
	pathname    string
	contentType string
	imdbID      string
	season      int
	episode     int
	deviceClass device.Class
	opts        userdata.Options
}

// computeListing runs the full C10 pipeline (steps 3-9 of spec §4.11),
// returning the marshaled response body and whether it came from cache.
func (s *Server) computeListing(ctx context.Context, p listingParams) ([]byte, bool) {
	providerTags, apiKeys := providerTagsAndKeys(p.opts)
	// The fallback/additionalstream flag changes the response, so it is
	// folded into the path component of the key.
	keyPath := p.pathname + "|fallback=" + strconv.FormatBool(p.opts.AdditionalStream)
	key := cache.ResponseKey(keyPath, p.imdbID, string(p.deviceClass), providerTags, apiKeys, p.opts.ResolveAll)

	if !p.opts.Debug {
		if entry, found := s.deps.Caches.Responses.Get(key); found {
			return entry.Body, true
		}
	}

	// Coalesce concurrent identical requests onto one computation so a
	// cache stampede doesn't fan out N times to every upstream provider,
	// the same purpose the teacher's redirectLock map serves.
	lock := s.inflightLock(key)
	lock.Lock()
	defer lock.Unlock()

	if !p.opts.Debug {
		if entry, found := s.deps.Caches.Responses.Get(key); found {
			return entry.Body, true
		}
	}

	body, maxPenalty := s.buildListing(ctx, p)

	ttl := scaledTTL(baseCacheMaxAge, maxPenalty)
	s.deps.Caches.Responses.SetTTL(key, cache.ResponseEntry{Body: body}, ttl)
	return body, false
}

func (s *Server) inflightLock(key string) *sync.Mutex {
	if existing, found := s.inflight.Get(key); found {
		return existing.(*sync.Mutex)
	}
	lock := &sync.Mutex{}
	s.inflight.SetDefault(key, lock)
	return lock
}

// scaledTTL implements Open Question #1's resolution (SPEC_FULL §13):
// shrink the cache TTL linearly with the worst reliability penalty
// observed among the candidates that made the final cut, floored at 60s.
func scaledTTL(baseSeconds, maxPenalty int) time.Duration {
	base := time.Duration(baseSeconds) * time.Second
	if maxPenalty <= 0 {
		return base
	}
	scaled := time.Duration(float64(base) * (1 - float64(maxPenalty)/float64(reliability.Ceiling)))
	if scaled < 60*time.Second {
		return 60 * time.Second
	}
	return scaled
}

// providerTagsAndKeys returns the present provider tags in fixed priority
// order (not map iteration order), so the cache key built from them
// (cache.ResponseKey) is deterministic for a given set of supplied keys.
func providerTagsAndKeys(opts userdata.Options) ([]string, map[string]string) {
	tags := make([]string, 0, len(opts.Keys))
	keys := make(map[string]string, len(opts.Keys))
	for _, tag := range debrid.PriorityOrder {
		key, ok := opts.Keys[tag]
		if !ok {
			continue
		}
		tags = append(tags, string(tag))
		keys[string(tag)] = key
	}
	return tags, keys
}

// buildListing runs the fan-out/classify/filter/score/select/finalize
// pipeline (spec §4.11 steps 4-9) and returns the marshaled response plus
// the maximum reliability penalty among the finalized candidates.
func (s *Server) buildListing(ctx context.Context, p listingParams) ([]byte, int) {
	candidates, err := s.deps.Providers.Find(ctx, p.imdbID, onlyList(p.opts))
	if err != nil {
		s.deps.Logger.Warn("every provider failed", zap.Error(err), zap.String("imdbID", p.imdbID))
	}

	candidates = directhost.WithCookie(candidates, p.opts.DirectHostCookie)

	for i := range candidates {
		candidates[i].Features = classify.Classify(
			candidates[i].Name, candidates[i].Title, candidates[i].Description, candidates[i].Filename,
			candidates[i].StructuredSeeders, candidates[i].StructuredBytes,
		)
	}

	candidates = filter.MaxSize(candidates, p.opts.MaxSizeBytes)
	candidates = filter.Blacklist(candidates, p.opts.Blacklist)
	if p.opts.LangStrict {
		candidates = filter.StrictLanguage(candidates, p.opts.LangPriority)
	}

	debridTag, debridKey, debridSelected := p.opts.SelectedProvider()

	if len(candidates) == 0 {
		resp := stremio.ListingResponse{
			Streams: []stremio.StreamItem{{
				Name:  "AutoStream",
				Title: "No streams available",
			}},
			CacheMaxAge:     60,
			StaleRevalidate: 60,
			StaleError:      baseStaleError,
		}
		b, _ := json.Marshal(resp)
		return b, 0
	}

	scoreIn := score.Input{
		Device:          p.deviceClass,
		DebridAvailable: debridSelected,
		CookiePresent:   p.opts.DirectHostCookie != "",
		HostReputation:  s.deps.HostRep,
	}
	for i := range candidates {
		in := scoreIn
		in.ReliabilityPenalty = s.deps.Reliability.Penalty(reliabilityHost(candidates[i]))
		sc, breakdown := score.Score(candidates[i], in)
		candidates[i].Score = sc
		candidates[i].ScoreBreakdown = breakdown
	}

	result := selector.Select(candidates)

	// Normally only the primary (+ secondary, if additionalstream is on)
	// are rewritten into /play links. resolveAll/debridAll expands this to
	// the full capped sorted list instead. It only changes how many
	// candidates are *offered* as click-time-resolvable; each /play request
	// runs its own resolve, and no semaphore caps how many resolves run at
	// once.
	chosen := make([]model.Candidate, 0, maxStreamsReturned)
	if p.opts.ResolveAll {
		chosen = append(chosen, result.Sorted...)
		if len(chosen) > maxStreamsReturned {
			chosen = chosen[:maxStreamsReturned]
		}
	} else {
		if result.Primary != nil {
			chosen = append(chosen, *result.Primary)
		}
		if result.Secondary != nil && p.opts.AdditionalStream {
			chosen = append(chosen, *result.Secondary)
		}
	}

	maxPenalty := 0
	streams := make([]stremio.StreamItem, 0, len(chosen))
	for _, cand := range chosen {
		if penalty := s.deps.Reliability.Penalty(reliabilityHost(cand)); penalty > maxPenalty {
			maxPenalty = penalty
		}
		streams = append(streams, s.finalizeStream(p, cand, debridSelected, debridTag, debridKey))
	}

	resp := stremio.ListingResponse{
		Streams:         streams,
		CacheMaxAge:     int(scaledTTL(baseCacheMaxAge, maxPenalty).Seconds()),
		StaleRevalidate: baseStaleRevalidate,
		StaleError:      baseStaleError,
	}
	b, _ := json.Marshal(resp)
	return b, maxPenalty
}

// reliabilityHost picks the host the reliability store tracks for a
// candidate: the direct URL's host for direct-host candidates, or empty for
// torrent candidates (no URL is known until a debrid resolve happens at
// click time, which reports its own host via /play).
func reliabilityHost(c model.Candidate) string {
	if c.HTTPURL == "" {
		return ""
	}
	return reliability.HostOf(c.HTTPURL)
}

func onlyList(opts userdata.Options) []string {
	if opts.Only != "" {
		return []string{opts.Only}
	}
	list := []string{fanoutTorrentA, fanoutTorrentB}
	if opts.IncludeDirectHost {
		list = append(list, fanoutDirectHost)
	}
	return list
}

// finalizeStream builds the wire StreamItem for one selected candidate
// (spec §4.11 steps 6-7): title/name beautification, quality normalization,
// cookie header attachment, and -- when a debrid key is active -- rewriting
// into a self-hosted /play redirect.
func (s *Server) finalizeStream(p listingParams, cand model.Candidate, debridSelected bool, debridTag debrid.ProviderTag, debridKey string) stremio.StreamItem {
	quality := qualityLabel(cand.Features.Resolution)
	title := s.titleFor(p, quality)

	name := "AutoStream"
	if p.opts.LabelOrigin {
		name = "[" + string(cand.Origin) + "] " + name
	}
	if debridSelected {
		name = name + " (" + string(debridTag) + ")"
	}

	item := stremio.StreamItem{Name: name, Title: title}

	switch {
	case cand.Origin == model.OriginDirectHost:
		item.URL = cand.HTTPURL
		if cookie, ok := cand.ProxyHeaders["Cookie"]; ok {
			item.BehaviorHints = &stremio.StreamBehaviorHints{
				Filename:     cand.Filename,
				ProxyHeaders: &stremio.ProxyHeaders{Cookie: cookie},
			}
		}
	case debridSelected && cand.InfoHash != "":
		item.URL = s.playURL(cand, p, debridTag, debridKey)
	default:
		item.InfoHash = cand.InfoHash
		if cand.FileIndex != nil {
			idx := uint32(*cand.FileIndex)
			item.FileIndex = &idx
		}
	}
	return item
}

// titleFor prettifies the content name via a short, best-effort metadata
// lookup (spec §6): if the fetcher is slow or fails, it falls back to the
// bare IMDb id rather than blocking or failing the listing response.
func (s *Server) titleFor(p listingParams, quality string) string {
	name := p.imdbID
	if s.deps.Metafetcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var fetched string
		var err error
		if p.contentType == "series" {
			var m metafetcher.Meta
			m, err = s.deps.Metafetcher.GetTVShow(ctx, p.imdbID, p.season, p.episode)
			fetched = m.Name
		} else {
			var m metafetcher.Meta
			m, err = s.deps.Metafetcher.GetMovie(ctx, p.imdbID)
			fetched = m.Name
		}
		if err == nil && fetched != "" {
			name = fetched
		}
	}
	if p.contentType == "series" {
		return fmt.Sprintf("%s — S%02dE%02d – %s", name, p.season, p.episode, quality)
	}
	return fmt.Sprintf("%s – %s", name, quality)
}

func qualityLabel(resolution int) string {
	switch {
	case resolution >= 4320:
		return "8K"
	case resolution >= 2160:
		return "4K"
	case resolution >= 1440:
		return "2K"
	case resolution >= 1080:
		return "1080p"
	case resolution >= 720:
		return "720p"
	case resolution >= 480:
		return "480p"
	default:
		return "SD"
	}
}

// playURL builds the self-hosted click-time redirect URL (spec §4.11 point
// 7, §4.12).
func (s *Server) playURL(cand model.Candidate, p listingParams, tag debrid.ProviderTag, key string) string {
	v := url.Values{}
	v.Set("ih", cand.InfoHash)
	if cand.FileIndex != nil {
		v.Set("idx", strconv.Itoa(*cand.FileIndex))
	}
	imdb := p.imdbID
	if p.contentType == "series" {
		imdb = fmt.Sprintf("%s:%d:%d", p.imdbID, p.season, p.episode)
	}
	v.Set("imdb", imdb)
	v.Set(providerAlias(tag), key)
	return strings.TrimRight(s.deps.StreamURLAddr, "/") + "/play?" + v.Encode()
}

func providerAlias(tag debrid.ProviderTag) string {
	switch tag {
	case debrid.TagAllDebrid:
		return "ad"
	case debrid.TagRealDebrid:
		return "rd"
	case debrid.TagPremiumize:
		return "pm"
	case debrid.TagTorBox:
		return "tb"
	case debrid.TagOffcloud:
		return "oc"
	default:
		return strings.ToLower(string(tag))
	}
}

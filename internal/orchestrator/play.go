package orchestrator

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/apierr"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/reliability"
)

var infoHashPattern = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)

// providerQueryKeys mirrors internal/userdata's per-provider query aliases,
// in priority order (spec §8: "AD > RD > PM > TB > OC"), so /play can find
// whichever provider key the listing handler embedded into the redirect URL.
var providerQueryKeys = map[debrid.ProviderTag]string{
	debrid.TagAllDebrid:  "ad",
	debrid.TagRealDebrid: "rd",
	debrid.TagPremiumize: "pm",
	debrid.TagTorBox:     "tb",
	debrid.TagOffcloud:   "oc",
}

const playCacheMaxAge = 3600

// handlePlay implements C11 (spec §4.12): resolve a torrent identity into a
// direct URL via the matching debrid provider, synchronously, and redirect.
// Unlike the listing route, this is the only place C9 is ever invoked.
func (s *Server) handlePlay(c *fiber.Ctx) error {
	ih := c.Query("ih")
	if !infoHashPattern.MatchString(ih) {
		return writeAPIErr(c, apierr.New(apierr.Validation, "ih must be a 40-character hex info hash"))
	}

	idxStr := c.Query("idx")
	var fileIndex *int
	if idxStr != "" {
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			return writeAPIErr(c, apierr.New(apierr.Validation, "idx must be a non-negative integer"))
		}
		fileIndex = &idx
	}

	imdb := c.Query("imdb")
	if imdb == "" {
		return writeAPIErr(c, apierr.New(apierr.Validation, "imdb is required"))
	}
	var series *debrid.SeriesInfo
	if m := seriesIDPattern.FindStringSubmatch(imdb); m != nil {
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		series = &debrid.SeriesInfo{Season: season, Episode: episode}
	} else if !movieIDPattern.MatchString(imdb) {
		return writeAPIErr(c, apierr.New(apierr.Validation, "imdb has an invalid shape"))
	}

	tag, key, ok := providerFromQuery(c)
	if !ok {
		return writeAPIErr(c, apierr.New(apierr.Validation, "a provider API key query parameter is required"))
	}

	resolver, ok := s.deps.Resolvers[tag]
	if !ok {
		return writeAPIErr(c, apierr.New(apierr.Validation, "unknown provider"))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	directURL, err := resolver.Resolve(ctx, ih, key, debrid.Options{FileIndex: fileIndex, Series: series})
	host := s.deps.DebridHosts[tag]
	if err != nil {
		var failure *debrid.Failure
		if errors.As(err, &failure) {
			s.deps.Reliability.OnFail(host)
			return writeAPIErr(c, apierr.Wrap(kindForFailure(failure.Kind), "could not resolve stream", failure))
		}
		s.deps.Reliability.OnFail(host)
		s.deps.Logger.Error("unclassified resolve failure", zap.Error(err), zap.String("provider", string(tag)))
		return writeAPIErr(c, apierr.Wrap(apierr.Internal, "could not resolve stream", err))
	}

	s.deps.Reliability.OnOK(reliability.HostOf(directURL))

	c.Set(fiber.HeaderCacheControl, "private, max-age="+strconv.Itoa(playCacheMaxAge))
	return c.Redirect(directURL, fiber.StatusFound)
}

func providerFromQuery(c *fiber.Ctx) (debrid.ProviderTag, string, bool) {
	for _, tag := range debrid.PriorityOrder {
		if v := c.Query(providerQueryKeys[tag]); v != "" {
			return tag, v, true
		}
	}
	return "", "", false
}

// kindForFailure maps C9's failure taxonomy onto the stable API error kinds
// of spec §7.
func kindForFailure(k debrid.FailureKind) apierr.Kind {
	switch k {
	case debrid.FailureAuthInvalid:
		return apierr.DebridAuthInvalid
	case debrid.FailureRateLimited:
		return apierr.RateLimited
	case debrid.FailureBlocked:
		return apierr.DebridBlocked
	case debrid.FailureNoFiles, debrid.FailureFileMissing:
		return apierr.DebridNoFiles
	case debrid.FailureTimeout:
		return apierr.UpstreamTimeout
	case debrid.FailureTransient:
		return apierr.DebridTransient
	default:
		return apierr.Internal
	}
}

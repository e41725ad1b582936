package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/device"
	"github.com/autostream/gateway/internal/userdata"
)

const preloadTimeout = 20 * time.Second

// schedulePreload is spec §4.11's best-effort preloading: when a listing
// request resolves to a specific series episode, warm the cache for the
// next episode in the background so the eventual request for it is a cache
// hit. It never blocks or fails the triggering request, and never chains
// into a preload of its own (preloadForNext never calls schedulePreload).
func (s *Server) schedulePreload(contentType, imdbID string, season, episode int, deviceClass device.Class, opts userdata.Options) {
	if contentType != "series" {
		return
	}
	nextEpisode := episode + 1
	go s.preloadForNext(contentType, imdbID, season, nextEpisode, deviceClass, opts)
}

func (s *Server) preloadForNext(contentType, imdbID string, season, episode int, deviceClass device.Class, opts userdata.Options) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("recovered panic during preload", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
	defer cancel()

	p := listingParams{
		pathname:    "/stream/" + contentType + "/" + fmt.Sprintf("%s:%d:%d", imdbID, season, episode),
		contentType: contentType,
		imdbID:      imdbID,
		season:      season,
		episode:     episode,
		deviceClass: deviceClass,
		opts:        opts,
	}
	// computeListing already no-ops when a fresh cache entry exists, so a
	// preload racing a real request for the same episode just re-populates
	// the same key harmlessly.
	s.computeListing(ctx, p)
}

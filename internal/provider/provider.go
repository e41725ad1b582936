// Package provider implements C4: fetching candidate streams from each
// upstream and normalizing them to the shared Candidate shape, fanning out
// concurrently across providers with an overall deadline. Grounded on the
// teacher's pkg/imdb2torrent/client.go FindMagnets: a goroutine per client,
// a shared timer plus a quickSkipTimer for slow providers, non-fatal
// per-provider failures, and info_hash-based deduplication -- generalized
// from a single MagnetSearcher shape to a full Candidate producer that
// covers both torrent and direct-host origins.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/model"
)

// Client is implemented by every upstream provider (the two torrent
// indexers and the direct-host indexer).
type Client interface {
	Find(ctx context.Context, contentID string) ([]model.Candidate, error)
	// IsSlow marks a provider that's known to be frequently slow, so the
	// fan-out gives it a shorter quick-skip deadline instead of the full
	// overall timeout, keeping the common case fast without starving it
	// entirely on an off day.
	IsSlow() bool
	Origin() model.Origin
}

// Fanout runs every registered client concurrently with the shared overall
// deadline plus per-slow-client quick-skip deadline, merging and
// deduplicating results by info_hash (falling back to URL for candidates
// with no info_hash). Results are merged in fixed registration order, not
// goroutine-completion order, so the merged list (and anything derived from
// its ordering downstream, like the selector's tie-breaks) is reproducible
// across runs regardless of which upstream answers first.
type Fanout struct {
	clients        map[string]Client
	order          []string
	timeout        time.Duration
	quickSkipAfter time.Duration
	logger         *zap.Logger
}

// NewFanout registers clients in the given order; Find's merged output
// preserves this order (spec §5's "merged stable ordering").
func NewFanout(clients map[string]Client, order []string, timeout, quickSkipAfter time.Duration, logger *zap.Logger) *Fanout {
	return &Fanout{clients: clients, order: order, timeout: timeout, quickSkipAfter: quickSkipAfter, logger: logger}
}

type namedClient struct {
	name   string
	client Client
}

// Find fans out to every client, respecting an "only" restriction when
// non-empty (spec §6's `only` query parameter), and returns the merged,
// deduplicated candidate list in registration order. It errors only if
// every enabled client errored; a straggler past its deadline contributes
// an empty result, not an error.
func (f *Fanout) Find(ctx context.Context, contentID string, only []string) ([]model.Candidate, error) {
	enabled := f.enabledClients(only)
	clientCount := len(enabled)
	if clientCount == 0 {
		return nil, nil
	}

	results := make([][]model.Candidate, clientCount)
	errs := make([]error, clientCount)

	timer := time.NewTimer(f.timeout)
	quickSkipTimer := time.NewTimer(f.quickSkipAfter)
	defer timer.Stop()
	defer quickSkipTimer.Stop()

	var wg sync.WaitGroup
	wg.Add(clientCount)
	for i, nc := range enabled {
		go func(i int, name string, client Client) {
			defer wg.Done()
			fields := []zap.Field{zap.String("contentID", contentID), zap.String("provider", name)}
			siteResChan := make(chan []model.Candidate, 1)
			siteErrChan := make(chan error, 1)
			go func() {
				start := time.Now()
				res, err := client.Find(ctx, contentID)
				if err != nil {
					f.logger.Warn("provider failed", append(fields, zap.Error(err))...)
					siteErrChan <- err
					return
				}
				duration := time.Since(start)
				f.logger.Debug("provider returned results", append(fields, zap.Int("count", len(res)), zap.Duration("duration", duration))...)
				siteResChan <- res
			}()

			timeoutChan := timer.C
			if client.IsSlow() {
				timeoutChan = quickSkipTimer.C
			}
			select {
			case res := <-siteResChan:
				results[i] = res
			case err := <-siteErrChan:
				errs[i] = err
			case <-timeoutChan:
				f.logger.Warn("provider timed out, treating as empty", fields...)
			}
		}(i, nc.name, nc.client)
	}
	wg.Wait()

	var combined []model.Candidate
	var merged error
	errCount := 0
	for i := range enabled {
		if errs[i] != nil {
			merged = multierr.Append(merged, errs[i])
			errCount++
			continue
		}
		combined = append(combined, results[i]...)
	}

	if errCount == clientCount {
		return nil, fmt.Errorf("every enabled provider failed: %w", merged)
	}

	return dedupe(combined), nil
}

func (f *Fanout) enabledClients(only []string) []namedClient {
	var onlySet map[string]bool
	if len(only) > 0 {
		onlySet = make(map[string]bool, len(only))
		for _, o := range only {
			onlySet[strings.ToLower(strings.TrimSpace(o))] = true
		}
	}
	out := make([]namedClient, 0, len(f.order))
	for _, name := range f.order {
		client, ok := f.clients[name]
		if !ok {
			continue
		}
		if onlySet != nil && !onlySet[strings.ToLower(name)] {
			continue
		}
		out = append(out, namedClient{name: name, client: client})
	}
	return out
}

func dedupe(candidates []model.Candidate) []model.Candidate {
	seen := map[string]bool{}
	out := candidates[:0]
	for _, c := range candidates {
		key := c.Identity()
		if key == "" {
			out = append(out, c)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// CreateMagnetURL builds a magnet URI the content-defined way (spec §9):
// always `magnet:?xt=urn:btih:<hex>`, with optional trackers deduplicated
// and capped to avoid pathological URIs.
func CreateMagnetURL(infoHash, displayName string, trackers []string) string {
	magnetURL := "magnet:?xt=urn:btih:" + infoHash
	if displayName != "" {
		magnetURL += "&dn=" + url.QueryEscape(displayName)
	}
	seen := map[string]bool{}
	count := 0
	const maxTrackers = 8
	for _, t := range trackers {
		if t == "" || seen[t] || count >= maxTrackers {
			continue
		}
		seen[t] = true
		count++
		magnetURL += "&tr=" + url.QueryEscape(t)
	}
	return magnetURL
}

// Package torrenta implements the torrent_index_A provider client: a
// JSON-API-backed torrent indexer. Grounded on the teacher's
// pkg/imdb2torrent/rarbg.go and tpb.go (gjson-based JSON parsing, trailing
// quality-string detection now delegated to internal/classify, magnet
// synthesis via internal/provider.CreateMagnetURL).
package torrenta

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/model"
	"github.com/autostream/gateway/internal/provider"
)

// Trackers appended to every magnet this provider synthesizes, mirroring
// the teacher's trackersTPB list.
var defaultTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://tracker.leechers-paradise.org:6969/announce",
	"udp://tracker.coppersurfer.tk:6969/announce",
	"udp://9.rarbg.to:2920/announce",
}

type Client struct {
	baseURL string
	http    *httpclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

func New(baseURL string, http *httpclient.Client, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{baseURL: baseURL, http: http, timeout: timeout, logger: logger}
}

func (c *Client) Origin() model.Origin { return model.OriginTorrentIndexA }
func (c *Client) IsSlow() bool         { return false }

// Find queries the indexer's JSON search endpoint for contentID (an IMDb
// ID, with an optional `:season:episode` suffix for series) and normalizes
// every hit into a Candidate.
func (c *Client) Find(ctx context.Context, contentID string) ([]model.Candidate, error) {
	reqURL := c.baseURL + "/q.php?q=" + contentID
	res, err := c.http.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      reqURL,
		Deadline: deadline(c.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("torrent_index_A request failed: %w", err)
	}

	hits := gjson.ParseBytes(res.Body).Array()
	if len(hits) == 0 {
		return nil, nil
	}

	candidates := make([]model.Candidate, 0, len(hits))
	for _, hit := range hits {
		infoHash := hit.Get("info_hash").String()
		if infoHash == "" {
			continue
		}
		name := hit.Get("name").String()
		magnet := provider.CreateMagnetURL(infoHash, name, defaultTrackers)
		candidates = append(candidates, model.Candidate{
			Origin:            model.OriginTorrentIndexA,
			InfoHash:          infoHash,
			Magnet:            magnet,
			Name:              name,
			StructuredSeeders: int(hit.Get("seeders").Int()),
			StructuredBytes:   hit.Get("size").Int(),
		})
	}
	return candidates, nil
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

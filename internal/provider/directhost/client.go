// Package directhost implements the direct-host indexer client: upstream
// entries are already direct HTTP URLs (no magnet/info_hash), some of which
// require a specific Cookie header to fetch (spec §4.5, §6). New relative
// to the teacher (which has no direct-host provider), grounded on the same
// HTTP-GET-plus-gjson idiom as internal/provider/torrenta.
package directhost

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/model"
)

type Client struct {
	baseURL string
	http    *httpclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

func New(baseURL string, http *httpclient.Client, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{baseURL: baseURL, http: http, timeout: timeout, logger: logger}
}

func (c *Client) Origin() model.Origin { return model.OriginDirectHost }
func (c *Client) IsSlow() bool         { return false }

// Find queries the direct-host indexer and normalizes each hit, recording
// whether its entry is marked as cookie-requiring. It attaches no Cookie
// header itself; WithCookie does that for the caller-supplied cookie.
func (c *Client) Find(ctx context.Context, contentID string) ([]model.Candidate, error) {
	reqURL := c.baseURL + "/search?imdb=" + contentID
	res, err := c.http.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      reqURL,
		Deadline: deadline(c.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("direct_host request failed: %w", err)
	}

	hits := gjson.ParseBytes(res.Body).Array()
	candidates := make([]model.Candidate, 0, len(hits))
	for _, hit := range hits {
		streamURL := hit.Get("url").String()
		if streamURL == "" {
			continue
		}
		requiresCookie := hit.Get("requiresCookie").Bool()
		cand := model.Candidate{
			Origin:          model.OriginDirectHost,
			HTTPURL:         streamURL,
			Name:            hit.Get("name").String(),
			Title:           hit.Get("title").String(),
			Description:     hit.Get("description").String(),
			RequiresCookie:  requiresCookie,
			StructuredBytes: hit.Get("size").Int(),
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// WithCookie attaches a Cookie header to every candidate that requires one,
// a finalize-time step rather than part of Find so that the same search
// result can be reused across requests with different caller-supplied
// cookies.
func WithCookie(candidates []model.Candidate, cookie string) []model.Candidate {
	if cookie == "" {
		return candidates
	}
	out := make([]model.Candidate, len(candidates))
	for i, c := range candidates {
		if c.RequiresCookie {
			headers := map[string]string{"Cookie": "ui=" + cookie}
			c.ProxyHeaders = headers
		}
		out[i] = c
	}
	return out
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// Package realdebrid adapts the teacher's pkg/debrid/realdebrid/client.go
// to the internal/debrid.Resolver interface, with an internal/cache
// ValidityCache for token probes instead of the original's bespoke
// token/availability caches, keeping the same upload -> select -> poll -> unlock state
// machine and error taxonomy.
package realdebrid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/httpclient"
)

type Options struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{BaseURL: "https://api.real-debrid.com", Timeout: 10 * time.Second}
}

type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	tokenCache cache.ValidityCache
	logger     *zap.Logger
}

func New(opts Options, httpClient *httpclient.Client, tokenCache cache.ValidityCache, logger *zap.Logger) *Client {
	return &Client{baseURL: opts.BaseURL, httpClient: httpClient, tokenCache: tokenCache, logger: logger}
}

func (c *Client) Tag() debrid.ProviderTag { return debrid.TagRealDebrid }

// TestToken validates apiToken against a live user-info probe, caching a
// positive result for a fixed five minutes (the same window as the
// manifest route's probe cache, per spec §4.11).
func (c *Client) TestToken(ctx context.Context, apiToken string) error {
	created, found, err := c.tokenCache.Get(apiToken)
	if err == nil && found && time.Since(created) < 5*time.Minute {
		return nil
	}
	_, err = c.get(ctx, c.baseURL+"/rest/1.0/user", apiToken)
	if err != nil {
		return debrid.NewFailure(debrid.FailureAuthInvalid, fmt.Errorf("token validation failed: %w", err))
	}
	_ = c.tokenCache.Set(apiToken)
	return nil
}

// Resolve runs the uniform state machine from spec §4.10 against
// RealDebrid: add magnet -> select file -> poll status -> unrestrict link.
func (c *Client) Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts debrid.Options) (string, error) {
	magnetURL := hashOrMagnet
	if !strings.HasPrefix(magnetURL, "magnet:") {
		magnetURL = "magnet:?xt=urn:btih:" + hashOrMagnet
	}

	data := url.Values{}
	data.Set("magnet", magnetURL)
	resBytes, err := c.post(ctx, c.baseURL+"/rest/1.0/torrents/addMagnet", apiKey, data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't add magnet")
	}
	torrentURL := gjson.GetBytes(resBytes, "uri").String()
	if torrentURL == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no torrent URL returned"))
	}

	resBytes, err = c.get(ctx, torrentURL, apiKey)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't fetch torrent info")
	}
	torrentID := gjson.GetBytes(resBytes, "id").String()
	if torrentID == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no torrent id in response"))
	}
	fileResults := gjson.GetBytes(resBytes, "files").Array()
	if len(fileResults) == 0 {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("no files in torrent"))
	}

	files := make([]debrid.FileEntry, len(fileResults))
	for i, fr := range fileResults {
		files[i] = debrid.FileEntry{
			ID:    strconv.FormatInt(fr.Get("id").Int(), 10),
			Name:  fr.Get("path").String(),
			Bytes: fr.Get("bytes").Int(),
		}
	}
	opts.Name = gjson.GetBytes(resBytes, "filename").String()
	picked, ok := debrid.SelectFile(files, opts)
	if !ok {
		return "", debrid.NewFailure(debrid.FailureFileMissing, errors.New("couldn't select a file"))
	}

	data = url.Values{}
	data.Set("files", picked.ID)
	if _, err := c.post(ctx, c.baseURL+"/rest/1.0/torrents/selectFiles/"+torrentID, apiKey, data); err != nil {
		return "", classifyHTTPErr(err, "couldn't select files for download")
	}

	deadline := time.Now().Add(12 * time.Second)
	const pollInterval = 1500 * time.Millisecond
	var downloadLink string
	for {
		resBytes, err = c.get(ctx, torrentURL, apiKey)
		if err != nil {
			return "", classifyHTTPErr(err, "couldn't poll torrent status")
		}
		status := gjson.GetBytes(resBytes, "status").String()
		switch status {
		case "magnet_error", "error", "dead":
			return "", debrid.NewFailure(debrid.FailureTransient, fmt.Errorf("bad torrent status: %s", status))
		case "virus":
			return "", debrid.NewFailure(debrid.FailureBlocked, errors.New("torrent flagged as virus"))
		case "downloaded":
			links := gjson.GetBytes(resBytes, "links").Array()
			if len(links) == 0 {
				return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("no links in downloaded torrent"))
			}
			downloadLink = links[0].String()
		}
		if downloadLink != "" {
			break
		}
		if time.Now().After(deadline) {
			return "", debrid.NewFailure(debrid.FailureTimeout, fmt.Errorf("torrent still %s after poll budget", status))
		}
		select {
		case <-ctx.Done():
			return "", debrid.NewFailure(debrid.FailureTimeout, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	data = url.Values{}
	data.Set("link", downloadLink)
	if opts.Remote {
		data.Set("remote", "1")
	}
	resBytes, err = c.post(ctx, c.baseURL+"/rest/1.0/unrestrict/link", apiKey, data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't unrestrict link")
	}
	streamURL := gjson.GetBytes(resBytes, "download").String()
	if streamURL == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no download URL in unrestrict response"))
	}
	return debrid.FinalizeURL(ctx, c.httpClient, streamURL), nil
}

func classifyHTTPErr(err error, context string) error {
	var he *httpclient.Error
	if errors.As(err, &he) {
		switch {
		case he.Status == http.StatusUnauthorized:
			return debrid.NewFailure(debrid.FailureAuthInvalid, fmt.Errorf("%s: %w", context, err))
		case he.Status == http.StatusForbidden:
			return debrid.NewFailure(debrid.FailureBlocked, fmt.Errorf("%s: %w", context, err))
		case he.Status == http.StatusTooManyRequests:
			return debrid.NewFailure(debrid.FailureRateLimited, fmt.Errorf("%s: %w", context, err))
		case he.Kind == httpclient.KindTimeout:
			return debrid.NewFailure(debrid.FailureTimeout, fmt.Errorf("%s: %w", context, err))
		}
	}
	return debrid.NewFailure(debrid.FailureTransient, fmt.Errorf("%s: %w", context, err))
}

func (c *Client) get(ctx context.Context, rawURL, apiToken string) ([]byte, error) {
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:    http.MethodGet,
		URL:       rawURL,
		Headers:   map[string]string{"Authorization": "Bearer " + apiToken},
		UserAgent: fakeBrowserUA(),
		Deadline:  time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) post(ctx context.Context, rawURL, apiToken string, data url.Values) ([]byte, error) {
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + apiToken,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body:      []byte(data.Encode()),
		UserAgent: fakeBrowserUA(),
		Deadline:  time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// fakeBrowserUA mirrors the teacher's rotating fake User-Agent, used
// because RealDebrid has been observed to block requests based on it.
func fakeBrowserUA() string {
	fakeVersion := strconv.Itoa(rand.Intn(10000))
	return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0." + fakeVersion + ".149 Safari/537.36"
}

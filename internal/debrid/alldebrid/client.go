// Package alldebrid adapts the teacher's pkg/debrid/alldebrid/client.go to
// the internal/debrid.Resolver interface, replacing its status/link-size
// heuristic with the shared internal/debrid.SelectFile season-pack logic.
package alldebrid

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
}

func DefaultOptions() Options {
	return Options{BaseURL: "https://api.alldebrid.com"}
}

type Client struct {
	baseURL     string
	httpClient  *httpclient.Client
	apiKeyCache cache.ValidityCache
	logger      *zap.Logger
}

func New(opts Options, httpClient *httpclient.Client, apiKeyCache cache.ValidityCache, logger *zap.Logger) *Client {
	return &Client{baseURL: opts.BaseURL, httpClient: httpClient, apiKeyCache: apiKeyCache, logger: logger}
}

func (c *Client) Tag() debrid.ProviderTag { return debrid.TagAllDebrid }

func (c *Client) TestToken(ctx context.Context, apiKey string) error {
	created, found, err := c.apiKeyCache.Get(apiKey)
	if err == nil && found && time.Since(created) < 24*time.Hour {
		return nil
	}
	resBytes, err := c.get(ctx, c.baseURL+"/v4/user", apiKey)
	if err != nil {
		return classifyHTTPErr(err, "couldn't fetch user info")
	}
	if gjson.GetBytes(resBytes, "status").String() != "success" {
		return debrid.NewFailure(debrid.FailureAuthInvalid, fmt.Errorf("%s", gjson.GetBytes(resBytes, "error.message").String()))
	}
	_ = c.apiKeyCache.Set(apiKey)
	return nil
}

func (c *Client) Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts debrid.Options) (string, error) {
	magnetURL := hashOrMagnet
	if !strings.HasPrefix(magnetURL, "magnet:") {
		magnetURL = "magnet:?xt=urn:btih:" + hashOrMagnet
	}

	data := url.Values{}
	data.Set("magnets[]", magnetURL)
	resBytes, err := c.post(ctx, c.baseURL+"/v4/magnet/upload", apiKey, data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't add magnet")
	}
	if gjson.GetBytes(resBytes, "status").String() != "success" {
		return "", classifyAPIErr(resBytes)
	}
	adID := gjson.GetBytes(resBytes, "data.magnets.0.id").String()
	if adID == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no magnet id in upload response"))
	}

	deadline := time.Now().Add(12 * time.Second)
	const pollInterval = 1500 * time.Millisecond
	var fileResults []gjson.Result
	for {
		resBytes, err = c.get(ctx, c.baseURL+"/v4/magnet/status?id="+adID, apiKey)
		if err != nil {
			return "", classifyHTTPErr(err, "couldn't poll magnet status")
		}
		if gjson.GetBytes(resBytes, "status").String() != "success" {
			return "", classifyAPIErr(resBytes)
		}
		fileResults = gjson.GetBytes(resBytes, "data.magnets.links").Array()
		if len(fileResults) > 0 {
			break
		}
		if time.Now().After(deadline) {
			return "", debrid.NewFailure(debrid.FailureTimeout, errors.New("magnet still has no links after poll budget"))
		}
		select {
		case <-ctx.Done():
			return "", debrid.NewFailure(debrid.FailureTimeout, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	files := make([]debrid.FileEntry, len(fileResults))
	for i, fr := range fileResults {
		files[i] = debrid.FileEntry{ID: strconv.Itoa(i), Name: fr.Get("filename").String(), Bytes: fr.Get("size").Int()}
	}
	opts.Name = gjson.GetBytes(resBytes, "data.magnets.filename").String()
	picked, ok := debrid.SelectFile(files, opts)
	if !ok {
		return "", debrid.NewFailure(debrid.FailureFileMissing, errors.New("couldn't select a file"))
	}
	link := fileResults[mustAtoi(picked.ID)].Get("link").String()
	if link == "" {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("selected file has no link"))
	}

	resBytes, err = c.get(ctx, c.baseURL+"/v4/link/unlock?link="+url.QueryEscape(link), apiKey)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't unlock link")
	}
	if gjson.GetBytes(resBytes, "status").String() != "success" {
		return "", classifyAPIErr(resBytes)
	}
	streamURL := gjson.GetBytes(resBytes, "data.link").String()
	if streamURL == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no download URL in unlock response"))
	}
	return debrid.FinalizeURL(ctx, c.httpClient, streamURL), nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func classifyAPIErr(resBytes []byte) error {
	errMsg := gjson.GetBytes(resBytes, "error.message").String()
	code := gjson.GetBytes(resBytes, "error.code").String()
	switch code {
	case "AUTH_BAD_APIKEY", "AUTH_MISSING_APIKEY", "AUTH_BLOCKED":
		return debrid.NewFailure(debrid.FailureAuthInvalid, errors.New(errMsg))
	case "MAGNET_MUST_BE_PREMIUM":
		return debrid.NewFailure(debrid.FailureBlocked, errors.New(errMsg))
	default:
		return debrid.NewFailure(debrid.FailureTransient, errors.New(errMsg))
	}
}

func classifyHTTPErr(err error, context string) error {
	var he *httpclient.Error
	if errors.As(err, &he) {
		switch {
		case he.Status == http.StatusUnauthorized:
			return debrid.NewFailure(debrid.FailureAuthInvalid, fmt.Errorf("%s: %w", context, err))
		case he.Status == http.StatusTooManyRequests:
			return debrid.NewFailure(debrid.FailureRateLimited, fmt.Errorf("%s: %w", context, err))
		case he.Kind == httpclient.KindTimeout:
			return debrid.NewFailure(debrid.FailureTimeout, fmt.Errorf("%s: %w", context, err))
		}
	}
	return debrid.NewFailure(debrid.FailureTransient, fmt.Errorf("%s: %w", context, err))
}

func (c *Client) get(ctx context.Context, rawURL, apiKey string) ([]byte, error) {
	if strings.Contains(rawURL, "?") {
		rawURL += "&agent=autostream&apikey=" + apiKey
	} else {
		rawURL += "?agent=autostream&apikey=" + apiKey
	}
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:    http.MethodGet,
		URL:       rawURL,
		UserAgent: fakeBrowserUA(),
		Deadline:  time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) post(ctx context.Context, rawURL, apiKey string, data url.Values) ([]byte, error) {
	rawURL += "?agent=autostream&apikey=" + apiKey
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		URL:       rawURL,
		Headers:   map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:      []byte(data.Encode()),
		UserAgent: fakeBrowserUA(),
		Deadline:  time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func fakeBrowserUA() string {
	fakeVersion := strconv.Itoa(rand.Intn(10000))
	return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0." + fakeVersion + ".149 Safari/537.36"
}

// Package premiumize adapts the teacher's pkg/debrid/premiumize/client.go
// to the internal/debrid.Resolver interface. Premiumize's /transfer/directdl
// resolves synchronously, so there is no poll loop, only select+return.
package premiumize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
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
	return Options{BaseURL: "https://www.premiumize.me/api"}
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

func (c *Client) Tag() debrid.ProviderTag { return debrid.TagPremiumize }

func (c *Client) TestToken(ctx context.Context, keyOrToken string) error {
	created, found, err := c.apiKeyCache.Get(keyOrToken)
	if err == nil && found && time.Since(created) < 24*time.Hour {
		return nil
	}
	resBytes, err := c.get(ctx, c.baseURL+"/account/info", keyOrToken)
	if err != nil {
		return classifyHTTPErr(err, "couldn't fetch account info")
	}
	if gjson.GetBytes(resBytes, "status").String() != "success" {
		return debrid.NewFailure(debrid.FailureAuthInvalid, fmt.Errorf("%s", gjson.GetBytes(resBytes, "message").String()))
	}
	_ = c.apiKeyCache.Set(keyOrToken)
	return nil
}

func (c *Client) Resolve(ctx context.Context, hashOrMagnet, keyOrToken string, opts debrid.Options) (string, error) {
	magnetURL := hashOrMagnet
	if len(magnetURL) < 7 || magnetURL[:7] != "magnet:" {
		magnetURL = "magnet:?xt=urn:btih:" + hashOrMagnet
	}

	data := url.Values{}
	data.Set("src", magnetURL)
	resBytes, err := c.post(ctx, c.baseURL+"/transfer/directdl", keyOrToken, data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't add magnet")
	}
	if gjson.GetBytes(resBytes, "status").String() != "success" {
		return "", debrid.NewFailure(debrid.FailureTransient, fmt.Errorf("%s", gjson.GetBytes(resBytes, "message").String()))
	}

	contentResults := gjson.GetBytes(resBytes, "content").Array()
	if len(contentResults) == 0 {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("no content in directdl response"))
	}
	files := make([]debrid.FileEntry, len(contentResults))
	for i, fr := range contentResults {
		files[i] = debrid.FileEntry{ID: strconv.Itoa(i), Name: fr.Get("path").String(), Bytes: fr.Get("size").Int()}
	}
	opts.Name = gjson.GetBytes(resBytes, "name").String()
	picked, ok := debrid.SelectFile(files, opts)
	if !ok {
		return "", debrid.NewFailure(debrid.FailureFileMissing, errors.New("couldn't select a file"))
	}
	idx, _ := strconv.Atoi(picked.ID)
	link := contentResults[idx].Get("link").String()
	if link == "" {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("selected file has no link"))
	}
	return debrid.FinalizeURL(ctx, c.httpClient, link), nil
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

func (c *Client) get(ctx context.Context, rawURL, keyOrToken string) ([]byte, error) {
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      rawURL + "?apikey=" + keyOrToken,
		Deadline: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) post(ctx context.Context, rawURL, keyOrToken string, data url.Values) ([]byte, error) {
	data.Set("apikey", keyOrToken)
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:   http.MethodPost,
		URL:      rawURL,
		Headers:  map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:     []byte(data.Encode()),
		Deadline: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

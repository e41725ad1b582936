// Package offcloud implements the Offcloud resolver. No teacher client
// exists for it; it is grounded on the same state machine as
// ../realdebrid/client.go (add -> poll -> pick file -> fetch link),
// adapted to Offcloud's documented cloud API (POST /api/cloud,
// GET /api/cloud/status, GET /api/cloud/explore/{id}).
package offcloud

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

	"github.com/autostream/gateway/internal/debrid"
	"github.com/autostream/gateway/internal/httpclient"
)

type Options struct {
	BaseURL string
}

func DefaultOptions() Options {
	return Options{BaseURL: "https://offcloud.com"}
}

type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	logger     *zap.Logger
}

func New(opts Options, httpClient *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{baseURL: opts.BaseURL, httpClient: httpClient, logger: logger}
}

func (c *Client) Tag() debrid.ProviderTag { return debrid.TagOffcloud }

func (c *Client) Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts debrid.Options) (string, error) {
	magnetURL := hashOrMagnet
	if len(magnetURL) < 7 || magnetURL[:7] != "magnet:" {
		magnetURL = "magnet:?xt=urn:btih:" + hashOrMagnet
	}

	data := url.Values{}
	data.Set("url", magnetURL)
	resBytes, err := c.post(ctx, c.baseURL+"/api/cloud?key="+url.QueryEscape(apiKey), data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't create cloud transfer")
	}
	requestID := gjson.GetBytes(resBytes, "requestId").String()
	if requestID == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no requestId in cloud response"))
	}

	deadline := time.Now().Add(12 * time.Second)
	const pollInterval = 1500 * time.Millisecond
	for {
		resBytes, err = c.get(ctx, c.baseURL+"/api/cloud/status?key="+url.QueryEscape(apiKey)+"&requestId="+url.QueryEscape(requestID))
		if err != nil {
			return "", classifyHTTPErr(err, "couldn't poll cloud status")
		}
		status := gjson.GetBytes(resBytes, "status."+requestID+".status").String()
		if status == "error" {
			return "", debrid.NewFailure(debrid.FailureTransient, errors.New("cloud transfer errored"))
		}
		if status == "downloaded" {
			break
		}
		if time.Now().After(deadline) {
			return "", debrid.NewFailure(debrid.FailureTimeout, fmt.Errorf("cloud transfer still %q after poll budget", status))
		}
		select {
		case <-ctx.Done():
			return "", debrid.NewFailure(debrid.FailureTimeout, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	resBytes, err = c.get(ctx, c.baseURL+"/api/cloud/explore/"+requestID)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't explore cloud contents")
	}
	fileResults := gjson.ParseBytes(resBytes).Array()
	if len(fileResults) == 0 {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("no files in cloud transfer"))
	}
	files := make([]debrid.FileEntry, len(fileResults))
	for i, fr := range fileResults {
		files[i] = debrid.FileEntry{ID: strconv.Itoa(i), Name: fr.String(), Bytes: 0}
	}
	// Offcloud's status/explore responses carry no overall job name, unlike
	// the other four providers' poll responses; fall back to the magnet's
	// own "dn" display-name parameter.
	opts.Name = magnetDisplayName(magnetURL)
	picked, ok := debrid.SelectFile(files, opts)
	if !ok {
		return "", debrid.NewFailure(debrid.FailureFileMissing, errors.New("couldn't select a file"))
	}

	streamURL := c.baseURL + "/cloud/download/" + requestID + "/" + url.PathEscape(picked.Name)
	return debrid.FinalizeURL(ctx, c.httpClient, streamURL), nil
}

// magnetDisplayName extracts the "dn" parameter from a magnet URI, if any.
func magnetDisplayName(magnetURL string) string {
	u, err := url.Parse(magnetURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("dn")
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

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      rawURL,
		Deadline: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) post(ctx context.Context, rawURL string, data url.Values) ([]byte, error) {
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

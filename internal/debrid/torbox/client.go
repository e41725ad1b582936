// Package torbox implements the TorBox resolver. TorBox has no teacher
// client to adapt; it is grounded on the same upload -> poll -> pick file
// -> request-download state machine as
// ../realdebrid/client.go, generalized from RealDebrid's actual wire shape
// to TorBox's documented API (POST /torrents/createtorrent,
// GET /torrents/mylist, GET /torrents/requestdl).
package torbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
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
	return Options{BaseURL: "https://api.torbox.app"}
}

type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	logger     *zap.Logger
}

func New(opts Options, httpClient *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{baseURL: opts.BaseURL, httpClient: httpClient, logger: logger}
}

func (c *Client) Tag() debrid.ProviderTag { return debrid.TagTorBox }

func (c *Client) Resolve(ctx context.Context, hashOrMagnet, apiKey string, opts debrid.Options) (string, error) {
	magnetURL := hashOrMagnet
	if len(magnetURL) < 7 || magnetURL[:7] != "magnet:" {
		magnetURL = "magnet:?xt=urn:btih:" + hashOrMagnet
	}

	data := url.Values{}
	data.Set("magnet", magnetURL)
	resBytes, err := c.post(ctx, c.baseURL+"/v1/api/torrents/createtorrent", apiKey, data)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't create torrent")
	}
	if !gjson.GetBytes(resBytes, "success").Bool() {
		return "", debrid.NewFailure(debrid.FailureTransient, fmt.Errorf("%s", gjson.GetBytes(resBytes, "detail").String()))
	}
	torrentID := gjson.GetBytes(resBytes, "data.torrent_id").String()
	if torrentID == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no torrent_id in create response"))
	}

	deadline := time.Now().Add(12 * time.Second)
	const pollInterval = 1500 * time.Millisecond
	var fileResults []gjson.Result
	for {
		resBytes, err = c.get(ctx, c.baseURL+"/v1/api/torrents/mylist?id="+torrentID, apiKey)
		if err != nil {
			return "", classifyHTTPErr(err, "couldn't poll torrent status")
		}
		if gjson.GetBytes(resBytes, "data.download_state").String() == "error" {
			return "", debrid.NewFailure(debrid.FailureTransient, errors.New("torrent entered error state"))
		}
		if gjson.GetBytes(resBytes, "data.download_finished").Bool() {
			fileResults = gjson.GetBytes(resBytes, "data.files").Array()
			break
		}
		if time.Now().After(deadline) {
			return "", debrid.NewFailure(debrid.FailureTimeout, errors.New("torrent not finished after poll budget"))
		}
		select {
		case <-ctx.Done():
			return "", debrid.NewFailure(debrid.FailureTimeout, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	if len(fileResults) == 0 {
		return "", debrid.NewFailure(debrid.FailureNoFiles, errors.New("no files in finished torrent"))
	}

	files := make([]debrid.FileEntry, len(fileResults))
	for i, fr := range fileResults {
		files[i] = debrid.FileEntry{ID: fr.Get("id").String(), Name: fr.Get("name").String(), Bytes: fr.Get("size").Int()}
	}
	opts.Name = gjson.GetBytes(resBytes, "data.name").String()
	picked, ok := debrid.SelectFile(files, opts)
	if !ok {
		return "", debrid.NewFailure(debrid.FailureFileMissing, errors.New("couldn't select a file"))
	}

	dlURL := c.baseURL + "/v1/api/torrents/requestdl?token=" + url.QueryEscape(apiKey) +
		"&torrent_id=" + url.QueryEscape(torrentID) + "&file_id=" + url.QueryEscape(picked.ID)
	resBytes, err = c.get(ctx, dlURL, apiKey)
	if err != nil {
		return "", classifyHTTPErr(err, "couldn't request download link")
	}
	streamURL := gjson.GetBytes(resBytes, "data").String()
	if streamURL == "" {
		return "", debrid.NewFailure(debrid.FailureTransient, errors.New("no download URL in requestdl response"))
	}
	return debrid.FinalizeURL(ctx, c.httpClient, streamURL), nil
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
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      rawURL,
		Headers:  map[string]string{"Authorization": "Bearer " + apiKey},
		Deadline: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) post(ctx context.Context, rawURL, apiKey string, data url.Values) ([]byte, error) {
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body:     []byte(data.Encode()),
		Deadline: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

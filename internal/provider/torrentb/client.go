// Package torrentb implements the torrent_index_B provider client: an
// HTML-scraped torrent indexer lacking a JSON API. Grounded on the
// teacher's pkg/imdb2torrent/1337x.go / ibit.go (goquery document
// traversal, per-result-page concurrent magnet fetch).
package torrentb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/model"
)

var magnetInfoHashPrefix = "btih:"

type Client struct {
	baseURL string
	http    *httpclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

func New(baseURL string, http *httpclient.Client, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{baseURL: baseURL, http: http, timeout: timeout, logger: logger}
}

func (c *Client) Origin() model.Origin { return model.OriginTorrentIndexB }
func (c *Client) IsSlow() bool         { return true } // multi-page scrape, genuinely slower than the JSON-API provider

// Find searches the indexer using query verbatim as the free-text search
// term and visits each result's detail page concurrently to pull the magnet
// link. The fan-out passes the same content ID it gives every provider (an
// IMDb id), not a display name.
func (c *Client) Find(ctx context.Context, query string) ([]model.Candidate, error) {
	searchURL := c.baseURL + "/category-search/" + url.QueryEscape(query) + "/Movies/1/"
	doc, err := c.getDoc(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var detailPageURLs []string
	doc.Find(".table-list tbody tr").Each(func(i int, s *goquery.Selection) {
		linkText := s.Find("a").Next().Text()
		if strings.Contains(linkText, "720p") || strings.Contains(linkText, "1080p") || strings.Contains(linkText, "2160p") {
			href, ok := s.Find("a").Next().Attr("href")
			if ok && href != "" {
				detailPageURLs = append(detailPageURLs, c.baseURL+href)
			}
		}
	})
	if len(detailPageURLs) == 0 {
		return nil, nil
	}

	type fetchResult struct {
		candidate model.Candidate
		ok        bool
	}
	resultChan := make(chan fetchResult, len(detailPageURLs))
	for _, pageURL := range detailPageURLs {
		go func(pageURL string) {
			doc, err := c.getDoc(ctx, pageURL)
			if err != nil {
				resultChan <- fetchResult{}
				return
			}
			magnet, ok := doc.Find(".box-info ul li").First().Find("a").Attr("href")
			if !ok || magnet == "" {
				resultChan <- fetchResult{}
				return
			}
			name := doc.Find("h1").First().Text()
			infoHash := extractInfoHash(magnet)
			if infoHash == "" {
				resultChan <- fetchResult{}
				return
			}
			resultChan <- fetchResult{
				candidate: model.Candidate{
					Origin:   model.OriginTorrentIndexB,
					InfoHash: infoHash,
					Magnet:   magnet,
					Name:     strings.TrimSpace(name),
				},
				ok: true,
			}
		}(pageURL)
	}

	var candidates []model.Candidate
	for i := 0; i < len(detailPageURLs); i++ {
		r := <-resultChan
		if r.ok {
			candidates = append(candidates, r.candidate)
		}
	}
	return candidates, nil
}

func extractInfoHash(magnet string) string {
	idx := strings.Index(magnet, magnetInfoHashPrefix)
	if idx == -1 {
		return ""
	}
	rest := magnet[idx+len(magnetInfoHashPrefix):]
	end := strings.IndexByte(rest, '&')
	if end == -1 {
		end = len(rest)
	}
	return strings.ToUpper(rest[:end])
}

func (c *Client) getDoc(ctx context.Context, reqURL string) (*goquery.Document, error) {
	res, err := c.http.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      reqURL,
		Deadline: deadline(c.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("torrent_index_B request to %s failed: %w", reqURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(res.Body)))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse HTML from %s: %w", reqURL, err)
	}
	return doc, nil
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

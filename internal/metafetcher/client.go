// Package metafetcher is the out-of-scope title-prettify collaborator
// named in spec.md §1 as an interface boundary the gateway calls through
// but does not implement the backing service for. Grounded on
// pkg/metafetcher/client.go's gRPC-first, HTTP-Cinemeta-fallback shape.
package metafetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/autostream/gateway/internal/cache"
	"github.com/autostream/gateway/internal/httpclient"
	"github.com/autostream/gateway/internal/metafetcher/metapb"
)

// Meta is the minimal title metadata the gateway needs to prettify a
// stream title: name and release year.
type Meta struct {
	Name string
	Year int
}

// Fetcher is the capability the orchestrator depends on; production code
// only ever sees this interface, never the concrete Client.
type Fetcher interface {
	GetMovie(ctx context.Context, imdbID string) (Meta, error)
	GetTVShow(ctx context.Context, imdbID string, season, episode int) (Meta, error)
}

var _ Fetcher = (*Client)(nil)

// Client tries a gRPC metadata service first, falling back to the public
// Cinemeta HTTP API when the gRPC client isn't configured or errors.
type Client struct {
	grpcClient  metapb.MetaFetcherClient
	conn        *grpc.ClientConn
	cinemetaURL string
	httpClient  *httpclient.Client
	metaCache   *cache.TTLLRU[string, []byte]
	logger      *zap.Logger
}

// Options configures Client. GRPCAddr and CinemetaBaseURL may both be set
// (gRPC tried first); at least one must be non-empty.
type Options struct {
	GRPCAddr       string
	CinemetaBaseURL string
}

func DefaultOptions() Options {
	return Options{CinemetaBaseURL: "https://v3-cinemeta.strem.io"}
}

func New(ctx context.Context, opts Options, httpClient *httpclient.Client, metaCache *cache.TTLLRU[string, []byte], logger *zap.Logger) (*Client, error) {
	if opts.GRPCAddr == "" && opts.CinemetaBaseURL == "" {
		return nil, fmt.Errorf("one of GRPCAddr or CinemetaBaseURL must be set")
	}

	c := &Client{cinemetaURL: opts.CinemetaBaseURL, httpClient: httpClient, metaCache: metaCache, logger: logger}
	if opts.GRPCAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		conn, err := grpc.DialContext(dialCtx, opts.GRPCAddr, grpc.WithInsecure(), grpc.WithBlock())
		if err != nil {
			return nil, fmt.Errorf("couldn't dial metadata gRPC server: %w", err)
		}
		c.conn = conn
		c.grpcClient = metapb.NewMetaFetcherClient(conn)
	}
	return c, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) GetMovie(ctx context.Context, imdbID string) (Meta, error) {
	if cached, found := c.metaCache.Get(imdbID); found {
		return decodeMeta(cached), nil
	}

	if c.grpcClient != nil {
		res, err := c.grpcClient.Get(ctx, &metapb.MetaRequest{Id: imdbID})
		if err == nil {
			m := Meta{Name: res.GetPrimaryTitle(), Year: int(res.GetStartYear())}
			c.metaCache.Set(imdbID, encodeMeta(m))
			return m, nil
		}
		c.logger.Debug("metadata gRPC call failed, falling back to Cinemeta", zap.Error(err), zap.String("imdbID", imdbID))
	}

	return c.getFromCinemeta(ctx, "movie", imdbID)
}

func (c *Client) GetTVShow(ctx context.Context, imdbID string, season, episode int) (Meta, error) {
	cacheKey := fmt.Sprintf("%s:%d:%d", imdbID, season, episode)
	if cached, found := c.metaCache.Get(cacheKey); found {
		return decodeMeta(cached), nil
	}

	if c.grpcClient != nil {
		res, err := c.grpcClient.Get(ctx, &metapb.MetaRequest{Id: imdbID})
		if err == nil {
			m := Meta{Name: res.GetPrimaryTitle(), Year: int(res.GetStartYear())}
			c.metaCache.Set(cacheKey, encodeMeta(m))
			return m, nil
		}
		c.logger.Debug("metadata gRPC call failed, falling back to Cinemeta", zap.Error(err), zap.String("imdbID", imdbID))
	}

	m, err := c.getFromCinemeta(ctx, "series", imdbID)
	if err == nil {
		c.metaCache.Set(cacheKey, encodeMeta(m))
	}
	return m, err
}

func (c *Client) getFromCinemeta(ctx context.Context, kind, imdbID string) (Meta, error) {
	reqURL := c.cinemetaURL + "/meta/" + kind + "/" + imdbID + ".json"
	res, err := c.httpClient.Do(ctx, httpclient.Request{
		Method:   http.MethodGet,
		URL:      reqURL,
		Deadline: time.Now().Add(3 * time.Second),
	})
	if err != nil {
		return Meta{}, fmt.Errorf("couldn't GET %s: %w", reqURL, err)
	}
	name := gjson.GetBytes(res.Body, "meta.name").String()
	if name == "" {
		return Meta{}, fmt.Errorf("couldn't find a title in Cinemeta response for %s", imdbID)
	}
	yearStr := gjson.GetBytes(res.Body, "meta.year").String()
	if len(yearStr) > 4 {
		yearStr = yearStr[:4]
	}
	year, _ := strconv.Atoi(yearStr)
	m := Meta{Name: name, Year: year}
	c.metaCache.Set(imdbID, encodeMeta(m))
	return m, nil
}

func encodeMeta(m Meta) []byte {
	return []byte(m.Name + "\x00" + strconv.Itoa(m.Year))
}

func decodeMeta(b []byte) Meta {
	s := string(b)
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			year, _ := strconv.Atoi(s[i+1:])
			return Meta{Name: s[:i], Year: year}
		}
	}
	return Meta{Name: s}
}

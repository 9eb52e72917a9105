// Package arcgis queries layers of an ArcGIS REST MapServer and decodes the
// returned features, including their point or polygon geometry.
package arcgis

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facility-registry/internal/fetcher"
)

const (
	// DefaultPageSize is the resultRecordCount sent with every query.
	DefaultPageSize = 1000
	// DefaultOutSR is the spatial reference requested for geometries (WGS 84).
	DefaultOutSR = 4326
)

// Querier fetches one page of features from a MapServer layer.
type Querier interface {
	Query(ctx context.Context, layer, offset int) (*QueryResponse, error)
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the number of records requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithOutSR sets the output spatial reference WKID.
func WithOutSR(wkid int) Option {
	return func(c *Client) {
		if wkid > 0 {
			c.outSR = wkid
		}
	}
}

// Client issues paged layer queries against one MapServer.
type Client struct {
	fetcher  fetcher.Fetcher
	baseURL  string
	pageSize int
	outSR    int
}

// NewClient creates a Client for the MapServer rooted at baseURL
// (e.g. https://host/arcgis/rest/services/Mapservices/Varme/MapServer).
func NewClient(f fetcher.Fetcher, baseURL string, opts ...Option) *Client {
	c := &Client{
		fetcher:  f,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: DefaultPageSize,
		outSR:    DefaultOutSR,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize returns the number of records requested per page.
func (c *Client) PageSize() int { return c.pageSize }

// QueryURL builds the query URL for a layer page.
func (c *Client) QueryURL(layer, offset int) string {
	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("outSR", strconv.Itoa(c.outSR))
	params.Set("f", "json")
	params.Set("resultRecordCount", strconv.Itoa(c.pageSize))
	params.Set("resultOffset", strconv.Itoa(offset))
	return c.baseURL + "/" + strconv.Itoa(layer) + "/query?" + params.Encode()
}

// Query fetches the page of layer starting at offset. A transport failure, a
// non-200 status and an error payload from the service all return an error;
// the latter as *ServiceError.
func (c *Client) Query(ctx context.Context, layer, offset int) (*QueryResponse, error) {
	body, err := c.fetcher.Download(ctx, c.QueryURL(layer, offset))
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: query layer %d offset %d", layer, offset)
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[QueryResponse](body)
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: decode layer %d offset %d", layer, offset)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp, nil
}

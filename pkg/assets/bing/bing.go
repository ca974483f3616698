// Package bing implements an asset provider backed by the Bing image search API
package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/image-labeler/pkg/assets"
	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

// ProviderName is the registry key of the Bing provider
const ProviderName = "bingImageSearch"

// DefaultEndpoint is the Bing image search v7 endpoint
const DefaultEndpoint = "https://api.cognitive.microsoft.com/bing/v7.0/images/search"

// AspectRatio filters search results by shape
type AspectRatio string

const (
	AspectAll    AspectRatio = "All"
	AspectSquare AspectRatio = "Square"
	AspectWide   AspectRatio = "Wide"
	AspectTall   AspectRatio = "Tall"
)

// Options configures the search
type Options struct {
	APIKey      string
	Query       string
	AspectRatio AspectRatio
	Endpoint    string
	Count       int
}

// Client is an asset provider returning image search results as assets
type Client struct {
	opts       Options
	httpClient *http.Client
}

// New validates options and creates a Client
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.Query == "" {
		return nil, fmt.Errorf("bing image search: apiKey and query are required: %w", errdefs.ErrInvalidArgument)
	}
	switch opts.AspectRatio {
	case "":
		opts.AspectRatio = AspectAll
	case AspectAll, AspectSquare, AspectWide, AspectTall:
	default:
		return nil, fmt.Errorf("bing image search: unknown aspect ratio %q: %w", opts.AspectRatio, errdefs.ErrInvalidArgument)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Count <= 0 {
		opts.Count = 50
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FromOptions builds a Client from connection options
func FromOptions(opts types.ProviderOptions) (*Client, error) {
	return New(Options{
		APIKey:      opts.String("apiKey"),
		Query:       opts.String("query"),
		AspectRatio: AspectRatio(opts.String("aspectRatio")),
		Endpoint:    opts.String("endpoint"),
		Count:       opts.Int("count", 0),
	})
}

// AssetRegistration describes the provider for the asset registry
func AssetRegistration() assets.Registration {
	return assets.Registration{
		Name:        ProviderName,
		DisplayName: "Bing Image Search",
		Description: "Use images returned by a Bing image search query",
		Factory: func(opts types.ProviderOptions) (assets.Provider, error) {
			return FromOptions(opts)
		},
	}
}

type searchResponse struct {
	Value []struct {
		ContentURL string `json:"contentUrl"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
	} `json:"value"`
}

// GetAssets runs the configured query. containerName is ignored.
func (c *Client) GetAssets(ctx context.Context, _ string) ([]types.Asset, error) {
	q := url.Values{}
	q.Set("q", c.opts.Query)
	q.Set("aspect", string(c.opts.AspectRatio))
	q.Set("count", fmt.Sprint(c.opts.Count))

	reqURL := c.opts.Endpoint
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + q.Encode()
	} else {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing image search: %w: %v", errdefs.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bing image search returned status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), errdefs.ErrConnection)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := make([]types.Asset, 0, len(result.Value))
	for _, v := range result.Value {
		if v.ContentURL == "" {
			continue
		}
		a := assets.CreateFromPath(v.ContentURL)
		if a.Type == types.AssetTypeUnknown {
			// search results are images even when the URL has no extension
			a.Type = types.AssetTypeImage
		}
		if v.Width > 0 && v.Height > 0 {
			a.Size = &types.Size{Width: v.Width, Height: v.Height}
		}
		out = append(out, a)
	}
	return out, nil
}

var _ assets.Provider = (*Client)(nil)

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

// DefaultUserAgent is sent with every asset download
const DefaultUserAgent = "Image-Labeler/1.0"

// FrameExtractor produces the encoded image of a single video frame
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, video types.Asset, timestamp float64) ([]byte, error)
}

// Fetcher loads the binary content of assets from URLs or the local disk
type Fetcher struct {
	client    *http.Client
	frames    FrameExtractor
	userAgent string
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for remote assets
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// WithFrameExtractor enables fetching video-frame assets
func WithFrameExtractor(x FrameExtractor) FetcherOption {
	return func(f *Fetcher) { f.frames = x }
}

// NewFetcher creates a Fetcher with a 30 second HTTP timeout
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the bytes behind asset. Video frames are delegated to the
// FrameExtractor; without one they fail with ErrUnsupported.
func (f *Fetcher) Fetch(ctx context.Context, asset types.Asset) ([]byte, error) {
	if asset.Type == types.AssetTypeVideoFrame {
		if f.frames == nil || asset.Parent == nil {
			return nil, fmt.Errorf("fetch frame %s: no frame extractor configured: %w", asset.Name, errdefs.ErrUnsupported)
		}
		return f.frames.ExtractFrame(ctx, *asset.Parent, asset.Timestamp)
	}
	return f.FetchPath(ctx, asset.Path)
}

// FetchPath loads http(s) URLs, file:// URLs and plain file paths
func (f *Fetcher) FetchPath(ctx context.Context, p string) ([]byte, error) {
	switch {
	case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
		return f.fetchURL(ctx, p)
	case strings.HasPrefix(p, "file://"):
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL %s: %w", p, errdefs.ErrInvalidArgument)
		}
		return readFile(u.Path)
	case p == "":
		return nil, fmt.Errorf("asset has no path: %w", errdefs.ErrInvalidArgument)
	default:
		return readFile(p)
	}
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", p, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w: %v", rawURL, errdefs.ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("download %s: %w", rawURL, errdefs.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download %s: HTTP %d: %w", rawURL, resp.StatusCode, errdefs.ErrConnection)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset data: %w", err)
	}
	return data, nil
}

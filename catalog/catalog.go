// Package catalog fetches the tree of installable images published as an
// os_list JSON document. Entries may defer their children to a separate
// subitems_url document; Fetch resolves those recursively with bounded
// concurrency.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

// ErrTooDeep is returned when subitem resolution exceeds the configured
// depth limit, which guards against cyclic catalogs.
var ErrTooDeep = errors.New("catalog: subitem nesting too deep")

const (
	defaultConcurrency = 4
	defaultMaxDepth    = 8
)

// Image describes one selectable entry in the catalog.
type Image struct {
	// Name is the display name.
	Name string `json:"name"`

	// Description is optional human-readable detail.
	Description string `json:"description"`

	// URL locates the downloadable archive.
	URL string `json:"url"`

	// ExtractSHA256 is the hex digest of the decompressed image, when the
	// catalog publishes one.
	ExtractSHA256 string `json:"extract_sha256"`

	// DownloadSHA256 is the hex digest of the downloaded archive, when the
	// catalog publishes one.
	DownloadSHA256 string `json:"image_download_sha256"`

	// ExtractSize is the decompressed image size in bytes, or zero when
	// unpublished. Compressed formats without a trustworthy size header
	// rely on this value.
	ExtractSize int64 `json:"extract_size"`

	// DownloadSize is the archive size in bytes, or zero when unpublished.
	DownloadSize int64 `json:"image_download_size"`

	// SubitemsURL points at a nested os_list document, for entries that
	// group further choices.
	SubitemsURL string `json:"subitems_url"`

	// Subitems holds the resolved children, inline or fetched from
	// SubitemsURL.
	Subitems []Image `json:"subitems"`
}

// ImageDigest returns the expected digest of the decompressed image.
func (img Image) ImageDigest() (digest.Digest, bool) {
	return encodedDigest(img.ExtractSHA256)
}

// ArchiveDigest returns the expected digest of the downloaded archive.
func (img Image) ArchiveDigest() (digest.Digest, bool) {
	return encodedDigest(img.DownloadSHA256)
}

func encodedDigest(encoded string) (digest.Digest, bool) {
	if encoded == "" {
		return "", false
	}
	dgst := digest.NewDigestFromEncoded(digest.SHA256, encoded)
	if dgst.Validate() != nil {
		return "", false
	}
	return dgst, true
}

// Client fetches and resolves catalogs.
type Client struct {
	httpClient  *http.Client
	concurrency int
	maxDepth    int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for catalog requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithConcurrency bounds the number of subitem documents fetched in
// parallel. Values <= 0 keep the default.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a catalog client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		concurrency: defaultConcurrency,
		maxDepth:    defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the os_list document at url and resolves all subitem
// documents into a fully populated tree.
func (c *Client) Fetch(ctx context.Context, url string) ([]Image, error) {
	images, err := c.fetchList(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := c.resolveSubitems(ctx, images, 0); err != nil {
		return nil, err
	}
	return images, nil
}

func (c *Client) fetchList(ctx context.Context, url string) ([]Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog %s: unexpected status %s", url, resp.Status)
	}

	var doc struct {
		OSList []Image `json:"os_list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", url, err)
	}
	return doc.OSList, nil
}

// resolveSubitems fetches one level of subitem documents concurrently,
// then recurses into the children.
func (c *Client) resolveSubitems(ctx context.Context, images []Image, depth int) error {
	if depth >= c.maxDepth {
		return ErrTooDeep
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range images {
		if images[i].SubitemsURL == "" || len(images[i].Subitems) > 0 {
			continue
		}
		g.Go(func() error {
			subitems, err := c.fetchList(gctx, images[i].SubitemsURL)
			if err != nil {
				return err
			}
			images[i].Subitems = subitems
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range images {
		if len(images[i].Subitems) == 0 {
			continue
		}
		if err := c.resolveSubitems(ctx, images[i].Subitems, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Find walks the tree depth-first and returns the first entry whose Name
// equals name.
func Find(images []Image, name string) (Image, bool) {
	for _, img := range images {
		if img.Name == name {
			return img, true
		}
		if found, ok := Find(img.Subitems, name); ok {
			return found, true
		}
	}
	return Image{}, false
}

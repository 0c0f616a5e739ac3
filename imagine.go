// Package imagine downloads OS images, caches them with tamper-evident
// hash sidecars, and writes them to block devices.
//
// The pipeline is: download the published archive over HTTP (hashing while
// writing), extract the contained image through the format-appropriate
// decompressor (hashing again), and stream the image onto the target
// device. Each cached artifact carries a digest sidecar, so reruns skip
// any step whose output already matches the catalog's expected digest.
//
// Install an image end to end:
//
//	inst, err := imagine.NewInstaller(imagine.WithCacheDir("/var/tmp/imagine"))
//	if err != nil {
//	    return err
//	}
//	err = inst.Install(ctx, img, "/dev/sdX")
//
// Image selection and device enumeration live in the catalog and device
// subpackages; this package only moves and verifies bytes.
package imagine

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/imagine-pi/imagine/hashcache"
	"github.com/imagine-pi/imagine/stream"
	"github.com/imagine-pi/imagine/transfer"
)

// Sentinel errors re-exported from the subpackages that produce them.
var (
	// ErrAborted is the outcome of a cooperative cancellation.
	ErrAborted = transfer.ErrAborted

	// ErrUnsupportedFormat is returned for an archive extension with no
	// extraction strategy.
	ErrUnsupportedFormat = stream.ErrUnsupportedFormat

	// ErrNotFound is returned when an expected cached file is absent.
	ErrNotFound = hashcache.ErrNotFound
)

const (
	defaultCacheDir = "/var/tmp/imagine"

	downloadSubdir = "download"
	imageSubdir    = "images"
)

// Installer coordinates the download, extract, and write pipeline against
// a local cache directory. It drives one transfer at a time.
type Installer struct {
	cacheDir   string
	httpClient *http.Client
	chunkSize  int
	interval   time.Duration
	progress   ProgressFunc
	complete   CompleteFunc
}

// Option configures an Installer.
type Option func(*Installer)

// WithCacheDir sets the cache root. Downloaded archives are kept under
// <dir>/download, extracted images under <dir>/images.
func WithCacheDir(dir string) Option {
	return func(i *Installer) {
		if dir != "" {
			i.cacheDir = dir
		}
	}
}

// WithHTTPClient sets the client used for archive downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithChunkSize sets the transfer chunk size. Values <= 0 keep the
// default.
func WithChunkSize(n int) Option {
	return func(i *Installer) {
		if n > 0 {
			i.chunkSize = n
		}
	}
}

// WithProgressInterval sets the minimum time between progress samples.
func WithProgressInterval(d time.Duration) Option {
	return func(i *Installer) {
		i.interval = d
	}
}

// WithProgress sets the callback receiving staged progress samples.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Installer) {
		i.progress = fn
	}
}

// WithOnStageComplete sets the callback invoked after each stage's final
// sample.
func WithOnStageComplete(fn CompleteFunc) Option {
	return func(i *Installer) {
		i.complete = fn
	}
}

// NewInstaller creates an Installer and ensures the cache directories
// exist.
func NewInstaller(opts ...Option) (*Installer, error) {
	i := &Installer{
		cacheDir:   defaultCacheDir,
		httpClient: http.DefaultClient,
		chunkSize:  transfer.DefaultChunkSize,
		interval:   transfer.DefaultInterval,
	}
	for _, opt := range opts {
		opt(i)
	}
	for _, dir := range []string{i.downloadDir(), i.imageDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return i, nil
}

func (i *Installer) downloadDir() string {
	return filepath.Join(i.cacheDir, downloadSubdir)
}

func (i *Installer) imageDir() string {
	return filepath.Join(i.cacheDir, imageSubdir)
}

// engine builds a transfer engine whose progress events carry the given
// stage.
func (i *Installer) engine(stage Stage) *transfer.Engine {
	opts := []transfer.Option{
		transfer.WithChunkSize(i.chunkSize),
		transfer.WithInterval(i.interval),
	}
	if i.progress != nil {
		opts = append(opts, transfer.WithProgress(func(s transfer.Sample) {
			i.progress(stage, s)
		}))
	}
	if i.complete != nil {
		opts = append(opts, transfer.WithOnComplete(func() {
			i.complete(stage)
		}))
	}
	return transfer.New(opts...)
}

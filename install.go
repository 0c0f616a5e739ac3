package imagine

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/imagine-pi/imagine/catalog"
	"github.com/imagine-pi/imagine/hashcache"
	"github.com/imagine-pi/imagine/stream"
)

// Install ensures a verified image for img is in the local cache, then
// writes it to the device at devicePath and syncs.
func (i *Installer) Install(ctx context.Context, img catalog.Image, devicePath string) error {
	imagePath, err := i.EnsureImage(ctx, img)
	if err != nil {
		return err
	}
	return i.WriteImage(ctx, imagePath, devicePath)
}

// EnsureImage returns the path of a cached image whose content is trusted
// for img, downloading and extracting as needed. When the catalog carries
// an expected image digest and the cached image validates against it, both
// the download and the extraction are skipped.
func (i *Installer) EnsureImage(ctx context.Context, img catalog.Image) (string, error) {
	archiveName, err := archiveNameFor(img.URL)
	if err != nil {
		return "", err
	}
	imagePath := filepath.Join(i.imageDir(), imageNameFor(archiveName))

	if dgst, ok := img.ImageDigest(); ok {
		valid, err := hashcache.IsValid(imagePath, dgst)
		if err != nil {
			return "", err
		}
		if valid {
			return imagePath, nil
		}
	}

	archivePath, err := i.EnsureArchive(ctx, img)
	if err != nil {
		return "", err
	}
	if err := i.Extract(ctx, archivePath, imagePath, img.ExtractSize); err != nil {
		return "", err
	}
	return imagePath, nil
}

// EnsureArchive returns the path of a cached archive whose content is
// trusted for img, downloading it when the cache misses. The download sink
// hashes while writing, so the sidecar never requires a read-back pass.
func (i *Installer) EnsureArchive(ctx context.Context, img catalog.Image) (string, error) {
	archiveName, err := archiveNameFor(img.URL)
	if err != nil {
		return "", err
	}
	archivePath := filepath.Join(i.downloadDir(), archiveName)

	if dgst, ok := img.ArchiveDigest(); ok {
		valid, err := hashcache.IsValid(archivePath, dgst)
		if err != nil {
			return "", err
		}
		if valid {
			return archivePath, nil
		}
	}

	src := stream.NewHTTPSource(img.URL, stream.WithClient(i.httpClient))
	sink := hashcache.NewHashingSink(stream.NewFileSink(archivePath), archivePath)
	if _, err := i.engine(StageDownloading).Transfer(ctx, src, sink); err != nil {
		return "", err
	}
	return archivePath, nil
}

// Extract decompresses the image out of a cached archive into imagePath.
// The extraction strategy is chosen by the archive's extension;
// expectedSize feeds formats whose headers carry no trustworthy
// decompressed size (zero means unknown).
func (i *Installer) Extract(ctx context.Context, archivePath, imagePath string, expectedSize int64) error {
	size := expectedSize
	if size <= 0 {
		size = stream.SizeUnknown
	}
	src, err := stream.OpenArchiveMember(archivePath, filepath.Base(imagePath), size)
	if err != nil {
		return err
	}
	sink := hashcache.NewHashingSink(stream.NewFileSink(imagePath), imagePath)
	_, err = i.engine(StageExtracting).Transfer(ctx, src, sink)
	return err
}

// WriteImage streams a cached image onto the device at devicePath and
// flushes the kernel's write cache before closing it.
func (i *Installer) WriteImage(ctx context.Context, imagePath, devicePath string) error {
	src := stream.NewFileSource(imagePath)
	sink := stream.NewFileSink(devicePath, stream.WithSyncOnClose(true))
	_, err := i.engine(StageWriting).Transfer(ctx, src, sink)
	return err
}

// archiveNameFor derives the cached archive filename from a download URL.
func archiveNameFor(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return path.Base(u.Path), nil
}

// imageNameFor derives the cached image filename from the archive name:
// the compression extension is stripped and a single .img suffix applied,
// so both name.img.xz and name.zip map to name.img.
func imageNameFor(archiveName string) string {
	base := strings.TrimSuffix(archiveName, filepath.Ext(archiveName))
	if strings.HasSuffix(base, ".img") {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base + ".img"
}

// Command imagine downloads an OS image from a release catalog and writes
// it to a removable block device, reusing verified cached artifacts when
// possible.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/imagine-pi/imagine"
	"github.com/imagine-pi/imagine/catalog"
	"github.com/imagine-pi/imagine/device"
)

const defaultCatalogURL = "https://downloads.raspberrypi.org/os_list_imagingutility.json"

type config struct {
	catalogURL  string
	imageName   string
	deviceName  string
	outputPath  string
	cacheDir    string
	listImages  bool
	listDevices bool
}

func main() {
	var cfg config
	pflag.StringVar(&cfg.catalogURL, "catalog", defaultCatalogURL, "catalog URL listing installable images")
	pflag.StringVar(&cfg.imageName, "image", "", "catalog name of the image to install")
	pflag.StringVar(&cfg.deviceName, "device", "", "target block device name, e.g. sdb")
	pflag.StringVar(&cfg.outputPath, "output", "", "write the image to a file instead of a device")
	pflag.StringVar(&cfg.cacheDir, "cache-dir", "/var/tmp/imagine", "cache directory for archives and images")
	pflag.BoolVar(&cfg.listImages, "list-images", false, "list catalog images and exit")
	pflag.BoolVar(&cfg.listDevices, "list-devices", false, "list unmounted block devices and exit")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, imagine.ErrAborted) {
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "imagine:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	if cfg.listDevices {
		return printDevices(ctx)
	}

	images, err := catalog.NewClient().Fetch(ctx, cfg.catalogURL)
	if err != nil {
		return err
	}
	if cfg.listImages {
		printImages(images, 0)
		return nil
	}

	if cfg.imageName == "" {
		return errors.New("--image is required (use --list-images to see choices)")
	}
	img, ok := catalog.Find(images, cfg.imageName)
	if !ok {
		return fmt.Errorf("image %q not found in catalog", cfg.imageName)
	}

	target, err := resolveTarget(ctx, cfg)
	if err != nil {
		return err
	}

	render := newRenderer(os.Stderr)
	inst, err := imagine.NewInstaller(
		imagine.WithCacheDir(cfg.cacheDir),
		imagine.WithProgress(render.sample),
		imagine.WithOnStageComplete(render.clear),
	)
	if err != nil {
		return err
	}

	fmt.Printf("installing %s on %s\n", img.Name, target)
	if err := inst.Install(ctx, img, target); err != nil {
		return err
	}
	fmt.Printf("image %s installed on %s\n", img.Name, target)
	return nil
}

// resolveTarget picks the write destination: an explicit output file, or a
// block device that must be unmounted and requires root.
func resolveTarget(ctx context.Context, cfg config) (string, error) {
	if cfg.outputPath != "" {
		return cfg.outputPath, nil
	}
	if cfg.deviceName == "" {
		return "", errors.New("--device or --output is required")
	}
	if os.Geteuid() != 0 {
		return "", errors.New("writing to a device requires root")
	}
	d, err := device.Find(ctx, cfg.deviceName)
	if err != nil {
		return "", err
	}
	if d.HasMounts() {
		return "", fmt.Errorf("device %s has mounted filesystems", d.Name)
	}
	return d.DevicePath(), nil
}

func printDevices(ctx context.Context) error {
	devices, err := device.List(ctx)
	if err != nil {
		return err
	}
	selectable := device.Selectable(devices)
	if len(selectable) == 0 {
		fmt.Println("no unmounted storage devices available")
		return nil
	}
	for _, d := range selectable {
		fmt.Printf("%-12s %10s  %s\n", d.Name, humanize.IBytes(uint64(d.Size)), d.DevicePath())
	}
	return nil
}

func printImages(images []catalog.Image, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, img := range images {
		if len(img.Subitems) > 0 {
			fmt.Printf("%s%s:\n", indent, img.Name)
			printImages(img.Subitems, depth+1)
			continue
		}
		fmt.Printf("%s%s\n", indent, img.Name)
	}
}

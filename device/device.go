// Package device enumerates block devices via lsblk and reports their
// mount state, so callers can refuse to image a disk that is in use.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// ErrNotFound is returned when no block device matches the requested name.
var ErrNotFound = errors.New("device: not found")

// Device is one lsblk block device, possibly with partition children.
type Device struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Size       int64    `json:"size"`
	Type       string   `json:"type"`
	MountPoint string   `json:"mountpoint"`
	Removable  bool     `json:"rm"`
	Children   []Device `json:"children"`
}

// DevicePath returns the writable device node. Older lsblk versions omit
// the path column, in which case it is derived from the name.
func (d Device) DevicePath() string {
	if d.Path != "" {
		return d.Path
	}
	return "/dev/" + d.Name
}

// HasMounts reports whether the device or any of its children is mounted.
func (d Device) HasMounts() bool {
	if d.MountPoint != "" {
		return true
	}
	for _, child := range d.Children {
		if child.HasMounts() {
			return true
		}
	}
	return false
}

// List enumerates block devices using `lsblk -JOb` (JSON output, all
// columns, sizes in bytes).
func List(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "lsblk", "-JOb").Output()
	if err != nil {
		return nil, fmt.Errorf("device: lsblk: %w", err)
	}
	return parseList(out)
}

// Find returns the listed device with the given name.
func Find(ctx context.Context, name string) (Device, error) {
	devices, err := List(ctx)
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Selectable filters devices down to disks with no mounted filesystems.
func Selectable(devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if d.Type != "" && d.Type != "disk" {
			continue
		}
		if d.HasMounts() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func parseList(data []byte) ([]Device, error) {
	var doc struct {
		BlockDevices []Device `json:"blockdevices"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("device: parse lsblk output: %w", err)
	}
	return doc.BlockDevices, nil
}

package imagine

import "github.com/imagine-pi/imagine/transfer"

// Stage identifies which transfer of the install pipeline is running.
type Stage uint8

const (
	// StageDownloading indicates the archive is being fetched over HTTP.
	StageDownloading Stage = iota

	// StageExtracting indicates the image is being decompressed from the
	// cached archive.
	StageExtracting

	// StageWriting indicates the image is being written to the target
	// device.
	StageWriting
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageDownloading:
		return "downloading"
	case StageExtracting:
		return "extracting"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives throttled progress samples tagged with the stage
// that produced them.
type ProgressFunc func(Stage, transfer.Sample)

// CompleteFunc is invoked once per stage after its final sample, so a
// renderer can clear an in-place progress indicator.
type CompleteFunc func(Stage)

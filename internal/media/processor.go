// Package media drives the external media toolchain. The contract is
// narrow: given ordered input file paths and an output path, produce a
// concatenated/trimmed/extracted output file or fail nonzero.
package media

import "context"

// Processor defines the media operations the multi-clip flow needs.
// Implementations shell out to ffmpeg or a compatible tool.
type Processor interface {
	// Concat concatenates video files into a single output, preserving
	// input order. A fast stream copy is attempted first with a
	// re-encoding fallback for incompatible codecs.
	Concat(ctx context.Context, inputs []string, output string) error

	// TrimToDuration re-muxes a video cut to the given total duration in
	// seconds.
	TrimToDuration(ctx context.Context, input, output string, seconds float64) error

	// ExtractLastFrame writes the final frame of a video to an image
	// file, for chaining a clip into the next job's interpolation input.
	ExtractLastFrame(ctx context.Context, videoPath, imagePath string) error

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}

// Package request builds validated generation request bodies. All
// validation runs before any network call so bad input never reaches the
// service.
package request

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mpallares/veoctl/internal/veo"
)

// Static errors for request validation.
var (
	// ErrLastImageWithoutImage is returned when a last-frame image is set
	// without a primary image. Interpolation needs both ends.
	ErrLastImageWithoutImage = errors.New("request: last image requires a primary image")
	// ErrImageRefAmbiguous is returned when an image reference carries both
	// a remote URI and a local path.
	ErrImageRefAmbiguous = errors.New("request: image reference must be either a URI or a local path, not both")
	// ErrImageRefEmpty is returned when an image reference carries neither
	// a remote URI nor a local path.
	ErrImageRefEmpty = errors.New("request: image reference is empty")
)

// validate is shared across Build calls; validator.Validate is safe for
// concurrent use.
var validate = validator.New()

// ImageRef references an input image. Exactly one of URI and Path is set:
// a URI passes through to the service as a storage reference, a Path is a
// local file read fully into memory and inlined as base64.
type ImageRef struct {
	URI  string
	Path string
}

// GenerationParameters holds the tunable generation parameters.
type GenerationParameters struct {
	DurationSeconds  int    `validate:"oneof=4 6 8"`
	AspectRatio      string `validate:"oneof=16:9 9:16 1:1"`
	Resolution       string `validate:"oneof=720p 1080p"`
	GenerateAudio    bool
	PersonGeneration string `validate:"oneof=allow_all allow_adult dont_allow"`
	// OutputLocation is the storage prefix or object path the service
	// writes the artifact to. Empty means the service picks its own
	// location and the flow cannot poll for completion.
	OutputLocation string
	// Seed is optional; nil lets the service randomize.
	Seed *int
}

// Defaults returns the default generation parameters.
func Defaults() GenerationParameters {
	return GenerationParameters{
		DurationSeconds:  8,
		AspectRatio:      "16:9",
		Resolution:       "720p",
		GenerateAudio:    true,
		PersonGeneration: "allow_adult",
	}
}

// GenerationRequest is an immutable description of one job.
type GenerationRequest struct {
	Prompt         string `validate:"required"`
	NegativePrompt string
	Image          *ImageRef
	LastImage      *ImageRef
	Parameters     GenerationParameters
}

// Validate checks the request without touching the filesystem or network.
func (r GenerationRequest) Validate() error {
	if r.LastImage != nil && r.Image == nil {
		return ErrLastImageWithoutImage
	}
	for _, ref := range []*ImageRef{r.Image, r.LastImage} {
		if ref == nil {
			continue
		}
		if ref.URI != "" && ref.Path != "" {
			return ErrImageRefAmbiguous
		}
		if ref.URI == "" && ref.Path == "" {
			return ErrImageRefEmpty
		}
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	return nil
}

// Build validates the request and produces the wire body. Local image files
// are loaded entirely into process memory before transmission; very large
// inputs cost accordingly. Building twice from the same request yields
// structurally identical bodies.
func Build(r GenerationRequest) (veo.PredictRequest, error) {
	if err := r.Validate(); err != nil {
		return veo.PredictRequest{}, err
	}

	instance := veo.Instance{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
	}

	var err error
	if instance.Image, err = resolveMedia(r.Image); err != nil {
		return veo.PredictRequest{}, err
	}
	if instance.LastFrame, err = resolveMedia(r.LastImage); err != nil {
		return veo.PredictRequest{}, err
	}

	return veo.PredictRequest{
		Instances: []veo.Instance{instance},
		Parameters: veo.Parameters{
			SampleCount:      1,
			DurationSeconds:  r.Parameters.DurationSeconds,
			AspectRatio:      r.Parameters.AspectRatio,
			Resolution:       r.Parameters.Resolution,
			GenerateAudio:    r.Parameters.GenerateAudio,
			PersonGeneration: r.Parameters.PersonGeneration,
			StorageURI:       r.Parameters.OutputLocation,
			Seed:             r.Parameters.Seed,
		},
	}, nil
}

// resolveMedia turns an image reference into wire media. URIs pass through;
// local paths are read and base64-inlined.
func resolveMedia(ref *ImageRef) (*veo.Media, error) {
	if ref == nil {
		return nil, nil
	}

	if ref.URI != "" {
		return &veo.Media{
			URI:      ref.URI,
			MimeType: mimeTypeFor(ref.URI),
		}, nil
	}

	data, err := os.ReadFile(ref.Path) // #nosec G304 - user-supplied input path
	if err != nil {
		return nil, fmt.Errorf("request: read image %s: %w", ref.Path, err)
	}

	return &veo.Media{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(data),
		MimeType:           mimeTypeFor(ref.Path),
	}, nil
}

// mimeTypeFor maps a file name to an image MIME type by extension.
func mimeTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

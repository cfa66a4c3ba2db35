// Package veo provides an HTTP client for a Veo-style long-running
// video generation API.
package veo

// PredictRequest is the request body for the model's predictLongRunning endpoint.
type PredictRequest struct {
	Instances  []Instance `json:"instances"`
	Parameters Parameters `json:"parameters"`
}

// Instance describes a single generation input.
type Instance struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	// Image is the primary input image. When present the job runs in
	// image-to-video mode.
	Image *Media `json:"image,omitempty"`
	// LastFrame is the secondary input image used for interpolation.
	// Only meaningful together with Image.
	LastFrame *Media `json:"lastFrame,omitempty"`
}

// Media references an image either by storage URI or as inline base64 bytes.
// Exactly one of URI and BytesBase64Encoded is set.
type Media struct {
	URI                string `json:"gcsUri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

// Parameters carries the generation parameters. Numeric fields are
// numeric-typed so the encoded body never ships numbers as strings.
type Parameters struct {
	SampleCount      int    `json:"sampleCount"`
	DurationSeconds  int    `json:"durationSeconds"`
	AspectRatio      string `json:"aspectRatio"`
	Resolution       string `json:"resolution,omitempty"`
	GenerateAudio    bool   `json:"generateAudio"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	StorageURI       string `json:"storageUri,omitempty"`
	Seed             *int   `json:"seed,omitempty"`
}

// predictResponse is the response from the predictLongRunning endpoint.
// A successful submission carries only the operation name.
type predictResponse struct {
	Name  string        `json:"name"`
	Error *ServiceError `json:"error,omitempty"`
}

// ServiceError is the error object embedded in service responses.
type ServiceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Operation mirrors the long-running operation resource returned by the
// fetchPredictOperation endpoint. The flow does not rely on it for
// completion detection; it exists as a manual fallback.
type Operation struct {
	Name  string        `json:"name"`
	Done  bool          `json:"done"`
	Error *ServiceError `json:"error,omitempty"`
}

// fetchOperationRequest is the request body for fetchPredictOperation.
type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

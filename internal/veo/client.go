package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Static errors for Veo client operations.
var (
	// ErrProjectIDRequired is returned when the project ID is not provided.
	ErrProjectIDRequired = errors.New("veo: project ID is required")
	// ErrTokenNotSet is returned when no bearer token source is available.
	ErrTokenNotSet = errors.New("veo: VEO_ACCESS_TOKEN environment variable is not set")
	// ErrNoOperationName is returned when a successful-looking submit
	// response contains no operation name.
	ErrNoOperationName = errors.New("veo: submit failed: no operation name returned")
	// ErrSubmitFailed is returned when the submit operation fails.
	ErrSubmitFailed = errors.New("veo: submit failed")
	// ErrOperationNameRequired is returned when the operation name is not provided.
	ErrOperationNameRequired = errors.New("veo: operation name is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("veo: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("veo: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("veo: request failed")
	// ErrEmptyToken is returned when a token command produces no output.
	ErrEmptyToken = errors.New("veo: token command produced an empty token")
)

// TokenSource issues a bearer credential per call. It is treated as an
// opaque, always-available collaborator.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields the given token.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

// CommandTokenSource returns a TokenSource that obtains a fresh bearer
// token by running a shell command, e.g. "gcloud auth print-access-token".
// The command runs on every call so short-lived tokens stay valid across
// a long polling run.
func CommandTokenSource(command string) TokenSource {
	return &commandToken{command: command}
}

type commandToken struct {
	command string
}

func (c *commandToken) Token(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", c.command).Output() // #nosec G204 - command comes from the user's own configuration
	if err != nil {
		return "", fmt.Errorf("veo: token command: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// Client defines the interface for interacting with the generation service.
type Client interface {
	// Submit sends a generation job and returns the operation name, an
	// opaque full resource path.
	Submit(ctx context.Context, req PredictRequest) (operationName string, err error)

	// FetchOperation queries the status endpoint for an operation. The
	// endpoint is known to be unreliable for the identifiers the service
	// issues; callers should prefer watching the output storage location.
	FetchOperation(ctx context.Context, operationName string) (Operation, error)

	// StatusHint renders the manual status-check instruction shown to the
	// user when the flow does not poll on their behalf.
	StatusHint(operationName string) string
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	projectID   string
	region      string
	model       string
	baseURL     string
	tokens      TokenSource
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(hc *HTTPClient) {
		hc.tokens = ts
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the generation API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithModel sets the model identifier.
func WithModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		hc.model = model
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new generation service HTTP client. The bearer token
// can be set via WithTokenSource. If not provided, a static token is read
// from the environment variable VEO_ACCESS_TOKEN. The project ID must be
// provided.
func NewClient(projectID, region string, opts ...ClientOption) (*HTTPClient, error) {
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	if region == "" {
		region = "us-central1"
	}

	c := &HTTPClient{
		projectID:   projectID,
		region:      region,
		model:       "veo-3.0-generate-preview",
		baseURL:     fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", region),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	// Apply options first to allow WithTokenSource to set the source
	for _, opt := range opts {
		opt(c)
	}

	// If no token source was set via option, try environment variable
	if c.tokens == nil {
		if token := os.Getenv("VEO_ACCESS_TOKEN"); token != "" {
			c.tokens = StaticTokenSource(token)
		}
	}

	if c.tokens == nil {
		return nil, ErrTokenNotSet
	}

	return c, nil
}

// modelURL builds the URL for a verb on the configured model resource.
func (c *HTTPClient) modelURL(verb string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.projectID, c.region, c.model, verb)
}

// Submit sends a generation job and returns the operation name.
func (c *HTTPClient) Submit(ctx context.Context, req PredictRequest) (string, error) {
	// Apply defaults if not set
	if req.Parameters.SampleCount == 0 {
		req.Parameters.SampleCount = 1
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("veo: marshal request: %w", err)
	}

	var resp predictResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.modelURL("predictLongRunning"), bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Name == "" {
		if resp.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error.Message)
		}
		return "", ErrNoOperationName
	}

	return resp.Name, nil
}

// FetchOperation queries the status endpoint for an operation.
func (c *HTTPClient) FetchOperation(ctx context.Context, operationName string) (Operation, error) {
	if operationName == "" {
		return Operation{}, ErrOperationNameRequired
	}

	bodyBytes, err := json.Marshal(fetchOperationRequest{OperationName: operationName})
	if err != nil {
		return Operation{}, fmt.Errorf("veo: marshal request: %w", err)
	}

	var op Operation
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.modelURL("fetchPredictOperation"), bodyBytes, &op); err != nil {
		return Operation{}, err
	}

	return op, nil
}

// StatusHint renders the manual status-check instruction for an operation.
func (c *HTTPClient) StatusHint(operationName string) string {
	return fmt.Sprintf("POST %s with body {\"operationName\": %q} to check the job status manually",
		c.modelURL("fetchPredictOperation"), operationName)
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		// Check if error is retryable
		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("veo: obtain token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		// Other errors surface the raw service payload and are not retried
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

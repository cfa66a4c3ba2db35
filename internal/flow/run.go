// Package flow orchestrates a generation job end to end: validate, submit,
// watch the output location, download, and optionally clean up remote
// state. One invocation handles exactly one job; the multi-clip Sequence
// runs several of these over a worker pool.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpallares/veoctl/internal/poller"
	"github.com/mpallares/veoctl/internal/request"
	"github.com/mpallares/veoctl/internal/storage"
	"github.com/mpallares/veoctl/internal/veo"
)

// RunOptions carries per-invocation orchestration flags.
type RunOptions struct {
	// DownloadPath is the local path to download the artifact to. Empty
	// means no download. Requires an output location in the request, since
	// completion is detected by watching that location.
	DownloadPath string
	// DeleteAfterDownload removes the artifact and its containing remote
	// directory after a successful download. Best effort; failure is a
	// warning, not an error.
	DeleteAfterDownload bool
}

// RunResult is the outcome of one job run.
type RunResult struct {
	// OperationName is the opaque resource path the service returned.
	OperationName string
	// StatusHint is the manual status-check instruction for the operation.
	StatusHint string
	// Polled reports whether the output location was watched at all.
	Polled bool
	// Outcome is the polling outcome. Only meaningful when Polled is true.
	Outcome poller.Outcome
	// LocalPath is where the artifact was downloaded, if requested.
	LocalPath string
	// CleanupWarning is set when delete-after-download failed.
	CleanupWarning error
}

// Runner executes single generation jobs.
type Runner struct {
	client veo.Client
	store  storage.ObjectStore
	poller *poller.Poller
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(client veo.Client, store storage.ObjectStore, p *poller.Poller, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client: client,
		store:  store,
		poller: p,
		logger: logger,
	}
}

// Run executes one job. All validation happens before the submission call;
// after submission there is no automatic resubmission, so a failed job is
// never silently retried into a duplicate billable one.
func (r *Runner) Run(ctx context.Context, req request.GenerationRequest, opts RunOptions) (*RunResult, error) {
	if opts.DownloadPath != "" && req.Parameters.OutputLocation == "" {
		return nil, &ConfigError{
			Field: "download target",
			Err:   errors.New("an output storage location is required to watch for the artifact"),
		}
	}

	var loc storage.Location
	if req.Parameters.OutputLocation != "" {
		var err error
		loc, err = storage.Parse(req.Parameters.OutputLocation)
		if err != nil {
			return nil, &ConfigError{Field: "output location", Err: err}
		}
	}

	body, err := request.Build(req)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	operationName, err := r.client.Submit(ctx, body)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	result := &RunResult{
		OperationName: operationName,
		StatusHint:    r.client.StatusHint(operationName),
	}

	r.logger.Info("job submitted",
		slog.String("operation", operationName),
		slog.String("output_location", req.Parameters.OutputLocation),
	)

	if loc.IsZero() {
		// No location to watch; the user checks status manually.
		r.logger.Info("no output location configured, skipping completion polling")
		return result, nil
	}

	outcome, err := r.poller.Wait(ctx, loc)
	if err != nil {
		return result, err
	}
	result.Polled = true
	result.Outcome = outcome

	if outcome.State == poller.StateTimedOut {
		return result, fmt.Errorf("%w (waited %s for %s)",
			ErrPollTimeout, poller.FormatElapsed(outcome.Elapsed), loc)
	}

	if opts.DownloadPath == "" {
		return result, nil
	}

	// Re-verify the object right before transfer. The listing may have
	// seen a transient or partial object.
	artifact := outcome.Artifact.Location
	if _, err := r.store.Stat(ctx, artifact); err != nil {
		listing, _ := r.store.List(ctx, artifact.Parent(), "")
		return result, &TransferError{Location: artifact, Listing: listing, Err: err}
	}

	if err := r.store.Download(ctx, artifact, opts.DownloadPath); err != nil {
		return result, &TransferError{Location: artifact, Err: err}
	}
	result.LocalPath = opts.DownloadPath

	r.logger.Info("artifact downloaded",
		slog.String("from", artifact.String()),
		slog.String("to", opts.DownloadPath),
	)

	if opts.DeleteAfterDownload {
		if err := r.store.DeleteAll(ctx, loc); err != nil {
			result.CleanupWarning = &CleanupError{Location: loc, Err: err}
			r.logger.Warn("remote cleanup failed",
				slog.String("location", loc.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/mpallares/veoctl/internal/media"
	"github.com/mpallares/veoctl/internal/request"
)

// JobRunner runs one generation job. Runner implements it; tests substitute
// a stub.
type JobRunner interface {
	Run(ctx context.Context, req request.GenerationRequest, opts RunOptions) (*RunResult, error)
}

// ClipJob pairs one clip's request with its orchestration options. Every
// clip needs its own output location and download path so the clips can be
// stitched locally afterwards.
type ClipJob struct {
	Request request.GenerationRequest
	Options RunOptions
}

// Sequence generates independent clips over a bounded worker pool and
// stitches them in their original order. Clips share no state, so
// generation may overlap; concatenation waits for all of them.
type Sequence struct {
	runner  JobRunner
	media   media.Processor
	workers int
	logger  *slog.Logger
}

// NewSequence creates a Sequence. workers bounds how many clip jobs run
// concurrently; values below 1 mean fully sequential.
func NewSequence(runner JobRunner, processor media.Processor, workers int, logger *slog.Logger) *Sequence {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequence{
		runner:  runner,
		media:   processor,
		workers: workers,
		logger:  logger,
	}
}

func validateClipJobs(jobs []ClipJob) error {
	if len(jobs) == 0 {
		return &ConfigError{Field: "clips", Err: errors.New("no clip jobs provided")}
	}
	for i, job := range jobs {
		if job.Options.DownloadPath == "" {
			return &ConfigError{
				Field: fmt.Sprintf("clip %d", i+1),
				Err:   errors.New("stitching requires a download path for every clip"),
			}
		}
	}
	return nil
}

// Generate runs every clip job and returns the local clip paths in the
// same order as the jobs. The first failure cancels the remaining jobs.
func (s *Sequence) Generate(ctx context.Context, jobs []ClipJob) ([]string, error) {
	if err := validateClipJobs(jobs); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Results are indexed by clip position so prompt order survives
	// whatever order the workers finish in.
	paths := make([]string, len(jobs))
	sem := make(chan struct{}, s.workers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job ClipJob) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			s.logger.Info("generating clip",
				slog.Int("clip", i+1),
				slog.Int("total", len(jobs)),
			)

			result, err := s.runner.Run(ctx, job.Request, job.Options)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("clip %d: %w", i+1, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			paths[i] = result.LocalPath
		}(i, job)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// GenerateChained runs the clip jobs strictly in order, extracting each
// clip's final frame and feeding it forward as the next clip's starting
// image so the sequence cuts continuously. Chaining is inherently
// sequential; the worker bound does not apply.
func (s *Sequence) GenerateChained(ctx context.Context, jobs []ClipJob) ([]string, error) {
	if err := validateClipJobs(jobs); err != nil {
		return nil, err
	}

	paths := make([]string, len(jobs))
	for i, job := range jobs {
		if i > 0 {
			frame := paths[i-1] + ".last.jpg"
			if err := s.media.ExtractLastFrame(ctx, paths[i-1], frame); err != nil {
				return nil, fmt.Errorf("clip %d: extract previous clip's last frame: %w", i+1, err)
			}
			job.Request.Image = &request.ImageRef{Path: frame}
			job.Request.LastImage = nil
		}

		s.logger.Info("generating clip",
			slog.Int("clip", i+1),
			slog.Int("total", len(jobs)),
			slog.Bool("chained", i > 0),
		)

		result, err := s.runner.Run(ctx, job.Request, job.Options)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", i+1, err)
		}
		paths[i] = result.LocalPath
	}
	return paths, nil
}

// Stitch concatenates the ordered clip paths into output. When
// totalSeconds is positive the result is trimmed to that fixed total
// duration and the output is probed to confirm its length.
func (s *Sequence) Stitch(ctx context.Context, clipPaths []string, output string, totalSeconds float64) error {
	if totalSeconds <= 0 {
		return s.media.Concat(ctx, clipPaths, output)
	}

	joined := output + ".joined.mp4"
	if err := s.media.Concat(ctx, clipPaths, joined); err != nil {
		return err
	}
	defer func() { _ = os.Remove(joined) }()

	if err := s.media.TrimToDuration(ctx, joined, output, totalSeconds); err != nil {
		return err
	}

	actual, err := s.media.Duration(ctx, output)
	if err != nil {
		s.logger.Warn("could not probe stitched duration",
			slog.String("output", output),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if math.Abs(actual-totalSeconds) > 0.5 {
		s.logger.Warn("stitched duration deviates from requested total",
			slog.Float64("requested_seconds", totalSeconds),
			slog.Float64("actual_seconds", actual),
		)
	}
	return nil
}

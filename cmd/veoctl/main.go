// Package main provides the veoctl command-line entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/mpallares/veoctl/internal/bootstrap"
	"github.com/mpallares/veoctl/internal/config"
	"github.com/mpallares/veoctl/internal/flow"
	"github.com/mpallares/veoctl/internal/poller"
	"github.com/mpallares/veoctl/internal/request"
)

var (
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	fail    = color.New(color.FgRed)
)

func main() {
	if err := run(); err != nil {
		var cfgErr *flow.ConfigError
		if errors.As(err, &cfgErr) {
			fail.Fprintf(os.Stderr, "error: %v\n\n", err)
			flag.Usage()
			os.Exit(2)
		}
		fail.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type cliArgs struct {
	prompts        stringList
	negativePrompt string
	image          string
	imageURI       string
	lastImage      string
	lastImageURI   string
	duration       int
	aspectRatio    string
	resolution     string
	audio          bool
	personPolicy   string
	seed           string
	output         string
	save           string
	deleteAfter    bool
	stitchOut      string
	totalDuration  float64
	chain          bool
	status         string
}

func parseArgs() *cliArgs {
	args := &cliArgs{}
	defaults := request.Defaults()

	flag.Var(&args.prompts, "prompt", "generation prompt (repeat for a multi-clip sequence)")
	flag.StringVar(&args.negativePrompt, "negative-prompt", "", "things the video should not contain")
	flag.StringVar(&args.image, "image", "", "local image file to animate (loaded fully into memory)")
	flag.StringVar(&args.imageURI, "image-uri", "", "remote image reference to animate")
	flag.StringVar(&args.lastImage, "last-image", "", "local image for the final frame (interpolation; requires an image)")
	flag.StringVar(&args.lastImageURI, "last-image-uri", "", "remote image reference for the final frame")
	flag.IntVar(&args.duration, "duration", defaults.DurationSeconds, "clip duration in seconds (4, 6 or 8)")
	flag.StringVar(&args.aspectRatio, "aspect-ratio", defaults.AspectRatio, "aspect ratio (16:9, 9:16 or 1:1)")
	flag.StringVar(&args.resolution, "resolution", defaults.Resolution, "resolution (720p or 1080p)")
	flag.BoolVar(&args.audio, "audio", defaults.GenerateAudio, "generate audio")
	flag.StringVar(&args.personPolicy, "person-generation", defaults.PersonGeneration, "person generation policy (allow_all, allow_adult or dont_allow)")
	flag.StringVar(&args.seed, "seed", "", "integer seed (empty for service-side randomness)")
	flag.StringVar(&args.output, "output", "", "storage location the service writes to, e.g. s3://bucket/out/")
	flag.StringVar(&args.save, "save", "", "local path to download the artifact to (requires -output)")
	flag.BoolVar(&args.deleteAfter, "delete-after", false, "delete the remote artifact after a successful download")
	flag.StringVar(&args.stitchOut, "stitch-out", "", "output file for the stitched multi-clip sequence")
	flag.Float64Var(&args.totalDuration, "total-duration", 0, "trim the stitched sequence to this many seconds (0 keeps full length)")
	flag.BoolVar(&args.chain, "chain", false, "feed each clip's last frame into the next clip as its starting image (runs clips sequentially)")
	flag.StringVar(&args.status, "status", "", "check the status of an operation name and exit")
	flag.Parse()

	return args
}

func run() error {
	// A missing .env is fine; explicit environment wins either way.
	_ = godotenv.Load()

	args := parseArgs()

	cfg, err := config.Load()
	if err != nil {
		return &flow.ConfigError{Err: err}
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	if args.status != "" {
		return runStatus(ctx, deps, args.status)
	}

	reqs, err := buildRequests(args)
	if err != nil {
		return err
	}

	if len(reqs) > 1 {
		return runSequence(ctx, cfg, deps, args, reqs)
	}
	return runSingle(ctx, deps, args, reqs[0])
}

// buildRequests maps the CLI surface onto generation requests, one per
// prompt. Everything here fails before any network call.
func buildRequests(args *cliArgs) ([]request.GenerationRequest, error) {
	if len(args.prompts) == 0 {
		return nil, &flow.ConfigError{Field: "prompt", Err: errors.New("at least one -prompt is required")}
	}

	image, err := imageRef(args.image, args.imageURI, "image")
	if err != nil {
		return nil, err
	}
	lastImage, err := imageRef(args.lastImage, args.lastImageURI, "last-image")
	if err != nil {
		return nil, err
	}

	var seed *int
	if args.seed != "" {
		n, err := strconv.Atoi(args.seed)
		if err != nil {
			return nil, &flow.ConfigError{Field: "seed", Err: fmt.Errorf("%q is not an integer", args.seed)}
		}
		seed = &n
	}

	params := request.GenerationParameters{
		DurationSeconds:  args.duration,
		AspectRatio:      args.aspectRatio,
		Resolution:       args.resolution,
		GenerateAudio:    args.audio,
		PersonGeneration: args.personPolicy,
		OutputLocation:   args.output,
		Seed:             seed,
	}

	reqs := make([]request.GenerationRequest, 0, len(args.prompts))
	for _, prompt := range args.prompts {
		req := request.GenerationRequest{
			Prompt:         prompt,
			NegativePrompt: args.negativePrompt,
			Image:          image,
			LastImage:      lastImage,
			Parameters:     params,
		}
		if err := req.Validate(); err != nil {
			return nil, &flow.ConfigError{Err: err}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// imageRef builds an image reference from the local/remote flag pair.
func imageRef(path, uri, field string) (*request.ImageRef, error) {
	if path == "" && uri == "" {
		return nil, nil
	}
	if path != "" && uri != "" {
		return nil, &flow.ConfigError{
			Field: field,
			Err:   fmt.Errorf("-%s and -%s-uri are mutually exclusive", field, field),
		}
	}
	return &request.ImageRef{Path: path, URI: uri}, nil
}

func runSingle(ctx context.Context, deps *bootstrap.Dependencies, args *cliArgs, req request.GenerationRequest) error {
	result, err := deps.Runner.Run(ctx, req, flow.RunOptions{
		DownloadPath:        args.save,
		DeleteAfterDownload: args.deleteAfter,
	})
	if err != nil {
		return err
	}

	report(result)
	return nil
}

func runSequence(ctx context.Context, cfg *config.Config, deps *bootstrap.Dependencies, args *cliArgs, reqs []request.GenerationRequest) error {
	if args.output == "" {
		return &flow.ConfigError{Field: "output", Err: errors.New("a storage location prefix is required for a multi-clip sequence")}
	}
	if args.stitchOut == "" {
		return &flow.ConfigError{Field: "stitch-out", Err: errors.New("an output file is required for a multi-clip sequence")}
	}

	workDir := filepath.Join(cfg.WorkDir, uuid.NewString())
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	base := strings.TrimSuffix(args.output, "/")
	jobs := make([]flow.ClipJob, len(reqs))
	for i, req := range reqs {
		clipID := uuid.NewString()
		// Each clip gets its own remote prefix so the poller never sees a
		// neighbour's artifact.
		req.Parameters.OutputLocation = fmt.Sprintf("%s/clip-%s/", base, clipID)
		jobs[i] = flow.ClipJob{
			Request: req,
			Options: flow.RunOptions{
				DownloadPath:        filepath.Join(workDir, fmt.Sprintf("clip-%02d-%s.mp4", i+1, clipID)),
				DeleteAfterDownload: args.deleteAfter,
			},
		}
	}

	var clipPaths []string
	var err error
	if args.chain {
		clipPaths, err = deps.Sequence.GenerateChained(ctx, jobs)
	} else {
		clipPaths, err = deps.Sequence.Generate(ctx, jobs)
	}
	if err != nil {
		return err
	}

	if err := deps.Sequence.Stitch(ctx, clipPaths, args.stitchOut, args.totalDuration); err != nil {
		return err
	}
	removeWorkDir(workDir)

	success.Fprintf(os.Stderr, "stitched %d clips\n", len(clipPaths))
	fmt.Println(args.stitchOut)
	return nil
}

// removeWorkDir best-effort removes the per-run scratch directory.
func removeWorkDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		warn.Fprintf(os.Stderr, "warning: could not remove work directory %s: %v\n", path, err)
	}
}

// runStatus queries the status endpoint once for the given operation.
func runStatus(ctx context.Context, deps *bootstrap.Dependencies, operationName string) error {
	op, err := deps.Client.FetchOperation(ctx, operationName)
	if err != nil {
		return err
	}
	if op.Error != nil {
		return fmt.Errorf("operation failed: %w", op.Error)
	}
	if op.Done {
		success.Fprintln(os.Stderr, "operation complete")
	} else {
		fmt.Fprintln(os.Stderr, "operation still running")
	}
	return nil
}

// report prints the outcome of a single job run.
func report(result *flow.RunResult) {
	if !result.Polled {
		success.Fprintln(os.Stderr, "job submitted")
		fmt.Fprintf(os.Stderr, "operation: %s\n", result.OperationName)
		fmt.Fprintf(os.Stderr, "%s\n", result.StatusHint)
		return
	}

	success.Fprintf(os.Stderr, "done in %s (%d attempts)\n",
		poller.FormatElapsed(result.Outcome.Elapsed), result.Outcome.Attempts)
	if result.CleanupWarning != nil {
		warn.Fprintf(os.Stderr, "warning: %v\n", result.CleanupWarning)
	}

	if result.LocalPath != "" {
		fmt.Println(result.LocalPath)
	} else {
		fmt.Println(result.Outcome.Artifact.Location.String())
	}
}

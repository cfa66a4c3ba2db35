// Package bootstrap provides dependency initialization for veoctl.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpallares/veoctl/internal/config"
	"github.com/mpallares/veoctl/internal/flow"
	"github.com/mpallares/veoctl/internal/media"
	"github.com/mpallares/veoctl/internal/poller"
	"github.com/mpallares/veoctl/internal/storage"
	"github.com/mpallares/veoctl/internal/veo"
)

// Dependencies holds all initialized collaborators for the CLI.
type Dependencies struct {
	Client    veo.Client
	Store     storage.ObjectStore
	Poller    *poller.Poller
	Runner    *flow.Runner
	Sequence  *flow.Sequence
	Processor media.Processor
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	tokens := veo.StaticTokenSource(cfg.AccessToken)
	if cfg.AccessTokenCommand != "" {
		tokens = veo.CommandTokenSource(cfg.AccessTokenCommand)
	}

	clientOpts := []veo.ClientOption{
		veo.WithModel(cfg.Model),
		veo.WithTokenSource(tokens),
	}
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, veo.WithBaseURL(cfg.APIBaseURL))
	}

	client, err := veo.NewClient(cfg.ProjectID, cfg.Region, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:          cfg.StoreRegion,
		Endpoint:        cfg.StoreEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}

	p := poller.New(store,
		poller.WithInterval(cfg.PollInterval),
		poller.WithMaxAttempts(cfg.PollMaxAttempts),
		poller.WithLogger(logger),
	)

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)
	runner := flow.NewRunner(client, store, p, logger)
	sequence := flow.NewSequence(runner, processor, cfg.MaxConcurrentClips, logger)

	return &Dependencies{
		Client:    client,
		Store:     store,
		Poller:    p,
		Runner:    runner,
		Sequence:  sequence,
		Processor: processor,
	}, nil
}

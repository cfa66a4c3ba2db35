package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// S3Config holds the configuration for the S3 object store.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Store implements ObjectStore on top of S3. Bucket names come from the
// Location, not the store, so one store serves any bucket the credentials
// can reach.
type S3Store struct {
	client *s3.Client
}

// NewS3Store creates a new S3Store instance.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{client: s3.NewFromConfig(awsCfg, clientOpts...)}, nil
}

// NewS3StoreFromClient creates an S3Store around an existing client.
func NewS3StoreFromClient(client *s3.Client) *S3Store {
	return &S3Store{client: client}
}

// List returns the objects under loc whose keys end in ext, in S3 listing
// order. For an object location this degrades to an existence check.
func (s *S3Store) List(ctx context.Context, loc Location, ext string) ([]Object, error) {
	if loc.Kind == KindObject {
		obj, err := s.Stat(ctx, loc)
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []Object{obj}, nil
	}

	prefix := loc.Key
	if prefix != "" {
		prefix += "/"
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", loc, err)
		}

		matches := lo.Filter(page.Contents, func(o types.Object, _ int) bool {
			return strings.HasSuffix(aws.ToString(o.Key), ext)
		})
		for _, o := range matches {
			objects = append(objects, Object{
				Location: Location{
					Scheme: loc.Scheme,
					Bucket: loc.Bucket,
					Key:    aws.ToString(o.Key),
					Kind:   KindObject,
				},
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}

	return objects, nil
}

// Stat checks that an object exists and returns its metadata.
func (s *S3Store) Stat(ctx context.Context, loc Location) (Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Object{}, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
		}
		return Object{}, fmt.Errorf("stat %s: %w", loc, err)
	}

	return Object{
		Location:     loc,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Download copies an object to a local file path.
func (s *S3Store) Download(ctx context.Context, loc Location, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", loc, err)
	}
	defer func() { _ = out.Body.Close() }()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create download directory: %w", err)
		}
	}

	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304 - destination chosen by the user
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("write %s: %w", localPath, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("close %s: %w", localPath, err)
	}

	return nil
}

// DeleteAll removes every object under loc. Per-object failures are
// aggregated so the caller sees everything that was left behind.
func (s *S3Store) DeleteAll(ctx context.Context, loc Location) error {
	var keys []string
	if loc.Kind == KindObject {
		keys = []string{loc.Key}
	} else {
		objects, err := s.List(ctx, loc, "")
		if err != nil {
			return err
		}
		for _, o := range objects {
			keys = append(keys, o.Location.Key)
		}
	}

	if len(keys) == 0 {
		return nil
	}

	var errs *multierror.Error
	// DeleteObjects accepts at most 1000 keys per call
	for len(keys) > 0 {
		batch := keys
		if len(batch) > 1000 {
			batch = batch[:1000]
		}
		keys = keys[len(batch):]

		ids := make([]types.ObjectIdentifier, len(batch))
		for i, k := range batch {
			ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(loc.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("delete under %s: %w", loc, err))
			continue
		}
		for _, e := range out.Errors {
			errs = multierror.Append(errs, fmt.Errorf("delete %s/%s: %s",
				loc.Bucket, aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	return errs.ErrorOrNil()
}

// Compile-time check that S3Store implements ObjectStore.
var _ ObjectStore = (*S3Store)(nil)

// Package staging publishes local video copies at URLs the vision provider
// can fetch.
package staging

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/source"
	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/fsutil"
)

// Backend names accepted by staging.backend.
const (
	BackendNone = "none"
	BackendS3   = "s3"
)

// DefaultURLLifetime is how long a presigned URL stays valid.
const DefaultURLLifetime = time.Hour

// Passthrough reuses the original URL. It cannot publish local files.
type Passthrough struct{}

// Stage implements core.BlobStager.
func (Passthrough) Stage(_ context.Context, h *core.LocalHandle) (string, error) {
	if h == nil {
		return "", core.ErrValidation(core.CodeInvalidSource, "nothing to stage")
	}
	if source.IsRemote(h.Origin) {
		return h.Origin, nil
	}
	return "", core.ErrValidation(core.CodeInvalidSource,
		fmt.Sprintf("local file %s needs a staging backend; set staging.backend to s3", h.Path))
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectPresigner signs GET URLs.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is the part of a presigned request the stager needs.
type PresignedRequest struct {
	URL string
}

type presignAdapter struct {
	client *s3.PresignClient
}

func (p presignAdapter) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// S3Stager uploads local copies to a bucket and returns either a public
// URL or a presigned GET URL.
type S3Stager struct {
	putter    ObjectPutter
	presigner ObjectPresigner
	bucket    string
	prefix    string
	publicURL string
	lifetime  time.Duration
	newKey    func() string
}

// S3Options configures an S3Stager.
type S3Options struct {
	Bucket    string
	Prefix    string
	PublicURL string
	Lifetime  time.Duration
}

// NewS3Stager creates a stager over explicit clients.
func NewS3Stager(putter ObjectPutter, presigner ObjectPresigner, opts S3Options) (*S3Stager, error) {
	if opts.Bucket == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "staging.bucket is required for the s3 backend")
	}
	prefix := opts.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	lifetime := opts.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultURLLifetime
	}
	return &S3Stager{
		putter:    putter,
		presigner: presigner,
		bucket:    opts.Bucket,
		prefix:    prefix,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		lifetime:  lifetime,
		newKey:    func() string { return uuid.NewString() },
	}, nil
}

// Stage uploads the file and returns its URL.
func (s *S3Stager) Stage(ctx context.Context, h *core.LocalHandle) (string, error) {
	if h == nil || h.Path == "" {
		return "", core.ErrValidation(core.CodeInvalidSource, "nothing to stage")
	}
	f, err := fsutil.OpenScoped(h.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", h.Path, err)
	}
	defer f.Close()

	key := s.prefix + s.newKey() + strings.ToLower(filepath.Ext(h.Path))
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if h.ContentType != "" {
		in.ContentType = aws.String(h.ContentType)
	}
	if h.Size > 0 {
		in.ContentLength = aws.Int64(h.Size)
	}
	if _, err := s.putter.PutObject(ctx, in); err != nil {
		return "", core.ErrNetwork(fmt.Sprintf("uploading to s3://%s/%s: %v", s.bucket, key, err)).WithCause(err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = s.lifetime
	})
	if err != nil {
		return "", fmt.Errorf("presigning s3://%s/%s: %w", s.bucket, key, err)
	}
	return req.URL, nil
}

// New builds the stager selected by cfg.
func New(ctx context.Context, cfg config.StagingConfig) (core.BlobStager, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return Passthrough{}, nil
	case BackendS3:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		if cfg.Profile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		return NewS3Stager(client, presignAdapter{client: s3.NewPresignClient(client)}, S3Options{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			PublicURL: cfg.PublicURL,
		})
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("unknown staging backend %q", cfg.Backend))
	}
}

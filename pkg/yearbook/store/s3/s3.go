// Package s3 provides an S3-compatible object store backend. Page
// assets are private bucket objects; cover art intended for open
// distribution is uploaded with a public-read ACL and served from a
// CDN base URL. Protected delivery goes either through presigned GET
// URLs or, when a transformation (watermark, resize) is requested,
// through HMAC-signed transformation-gateway URLs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/classfolio/yearbook/pkg/yearbook"
	"github.com/classfolio/yearbook/pkg/yearbook/store/rasterize"
	"github.com/classfolio/yearbook/pkg/yearbook/urlsign"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	PublicBaseURL  string // CDN base for public-read objects
	GatewayBaseURL string // Base URL of the image transformation gateway
	GatewaySecret  string // HMAC secret shared with the gateway

	MaxRetries int // Upload/delete attempts before giving up (default: 3)
}

// Backend is an S3-compatible implementation of the yearbook.ObjectStore
// interface.
type Backend struct {
	client        *s3.Client
	uploader      *manager.Uploader
	presignClient *s3.PresignClient
	rasterizer    rasterize.Rasterizer
	signer        *urlsign.Signer
	config        Config
}

// New creates a new S3-compatible storage backend.
func New(config Config, rasterizer rasterize.Rasterizer) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 3
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	var signer *urlsign.Signer
	if config.GatewaySecret != "" {
		signer = urlsign.New([]byte(config.GatewaySecret),
			urlsign.WithDefaultTTL(time.Duration(config.PresignDuration)*time.Second))
	}

	return &Backend{
		client:        client,
		uploader:      manager.NewUploader(client),
		presignClient: s3.NewPresignClient(client),
		rasterizer:    rasterizer,
		signer:        signer,
		config:        config,
	}, nil
}

// Upload uploads one artifact to the bucket.
func (b *Backend) Upload(ctx context.Context, artifact yearbook.Artifact, folder string, opts yearbook.UploadOptions) (*yearbook.StoredObject, error) {
	key := objectKey(folder, artifact.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
		Body:   artifact.Reader,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	} else if artifact.ContentType != "" {
		input.ContentType = aws.String(artifact.ContentType)
	}
	if opts.Public {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if err := b.withRetry(ctx, func() error {
		_, err := b.uploader.Upload(ctx, input)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return b.stored(key), nil
}

// UploadPages buffers the source document to local disk, rasterizes it
// page by page, and uploads the raw source plus one PNG per page. On
// failure the partial extraction is returned alongside the error so the
// caller can release what did make it up.
func (b *Backend) UploadPages(ctx context.Context, artifact yearbook.Artifact, folder string) (*yearbook.PageExtraction, error) {
	ext := &yearbook.PageExtraction{}

	tmp, err := os.CreateTemp("", "source-*.pdf")
	if err != nil {
		return ext, fmt.Errorf("buffer source document: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, artifact.Reader); err != nil {
		return ext, fmt.Errorf("%w: %v", yearbook.ErrSourceUnreadable, err)
	}

	count, err := b.rasterizer.PageCount(ctx, tmp.Name())
	if err != nil {
		return ext, fmt.Errorf("%w: %v", yearbook.ErrSourceUnreadable, err)
	}

	source, err := os.Open(tmp.Name())
	if err != nil {
		return ext, fmt.Errorf("reopen source document: %w", err)
	}
	defer source.Close()

	sourceObj, err := b.Upload(ctx, yearbook.Artifact{
		Reader:      source,
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
	}, folder, yearbook.UploadOptions{})
	if err != nil {
		return ext, err
	}
	ext.SourceKey = sourceObj.Key

	for i := 0; i < count; i++ {
		page, err := os.CreateTemp("", "page-*.png")
		if err != nil {
			return ext, fmt.Errorf("buffer page %d: %w", i, err)
		}

		obj, err := b.uploadRenderedPage(ctx, tmp.Name(), i, page, folder)
		page.Close()
		os.Remove(page.Name())
		if err != nil {
			return ext, err
		}

		ext.Pages = append(ext.Pages, yearbook.ExtractedPage{StoredObject: *obj, Index: i})
	}

	return ext, nil
}

func (b *Backend) uploadRenderedPage(ctx context.Context, sourcePath string, index int, page *os.File, folder string) (*yearbook.StoredObject, error) {
	if err := b.rasterizer.RenderPage(ctx, sourcePath, index, page); err != nil {
		return nil, fmt.Errorf("%w: %v", yearbook.ErrSourceUnreadable, err)
	}
	if _, err := page.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind page %d: %w", index, err)
	}

	return b.Upload(ctx, yearbook.Artifact{
		Reader:      page,
		Filename:    fmt.Sprintf("page-%d.png", index),
		ContentType: "image/png",
	}, folder, yearbook.UploadOptions{})
}

// Delete removes one object from the bucket. Deleting an object that no
// longer exists is not an error; the bool reports whether anything was
// actually removed.
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object: %w", err)
	}

	if err := b.withRetry(ctx, func() error {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.config.Bucket),
			Key:    aws.String(key),
		})
		return err
	}); err != nil {
		return false, fmt.Errorf("failed to delete from S3: %w", err)
	}

	return true, nil
}

// SignedURL mints a time-limited URL for a private object. Requests that
// need a transformation go through the gateway signer; plain requests
// get a presigned S3 GET.
func (b *Backend) SignedURL(ctx context.Context, key string, opts yearbook.SignOptions) (string, error) {
	if opts.Watermark || opts.Width > 0 || opts.Height > 0 {
		if b.signer == nil || b.config.GatewayBaseURL == "" {
			return "", errors.New("transformation gateway is not configured")
		}
		return b.signer.Sign(strings.TrimRight(b.config.GatewayBaseURL, "/"), key, urlsign.Params{
			TTL:       opts.TTL,
			Watermark: opts.Watermark,
			Width:     opts.Width,
			Height:    opts.Height,
		})
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Duration(b.config.PresignDuration) * time.Second
	}

	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.config.Bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String("inline"),
	}, func(po *s3.PresignOptions) {
		po.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return result.URL, nil
}

// withRetry runs op up to MaxRetries times. Exhausted retries surface as
// a store-unavailable condition.
func (b *Backend) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < b.config.MaxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", yearbook.ErrStoreUnavailable, err)
}

func (b *Backend) stored(key string) *yearbook.StoredObject {
	publicURL := key
	if b.config.PublicBaseURL != "" {
		publicURL = strings.TrimRight(b.config.PublicBaseURL, "/") + "/" + key
	}

	endpoint := b.config.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", b.config.Bucket, b.config.Region)
		return &yearbook.StoredObject{
			URL:       publicURL,
			SecureURL: endpoint + "/" + key,
			Key:       key,
		}
	}

	return &yearbook.StoredObject{
		URL:       publicURL,
		SecureURL: strings.TrimRight(endpoint, "/") + "/" + b.config.Bucket + "/" + key,
		Key:       key,
	}
}

func objectKey(folder, filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i:]
	}
	return fmt.Sprintf("%s/%s%s", folder, uuid.New(), ext)
}

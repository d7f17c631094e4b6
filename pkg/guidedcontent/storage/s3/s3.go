package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// PublicBaseURL overrides the URL objects are served under, e.g. a CDN
	// in front of the bucket. Defaults to the bucket's own URL.
	PublicBaseURL string

	// SkipACL leaves MakePublic a no-op, for buckets made public by policy.
	SkipACL bool

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the guidedcontent.BlobStore interface
type Backend struct {
	client        *s3.Client
	bucket        string
	presignClient *s3.PresignClient
	publicBase    string
	config        Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Configure S3 client options
	var s3Options []func(*s3.Options)

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:        client,
		bucket:        config.Bucket,
		presignClient: s3.NewPresignClient(client),
		publicBase:    publicBase(config),
		config:        config,
	}

	// Create bucket if requested
	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

func publicBase(config Config) string {
	switch {
	case config.PublicBaseURL != "":
		return strings.TrimSuffix(config.PublicBaseURL, "/")
	case config.Endpoint != "" && config.UsePathStyle:
		return strings.TrimSuffix(config.Endpoint, "/") + "/" + config.Bucket
	case config.Endpoint != "":
		u, err := url.Parse(config.Endpoint)
		if err == nil && u.Host != "" {
			return u.Scheme + "://" + config.Bucket + "." + u.Host
		}
		return strings.TrimSuffix(config.Endpoint, "/") + "/" + config.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region)
	}
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) && errorCode(err) != "NoSuchBucket" {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}

	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		switch errorCode(err) {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Write uploads the content of r to S3
func (b *Backend) Write(ctx context.Context, key string, r io.Reader, mimeType string) (*guidedcontent.BlobHandle, error) {
	uploader := manager.NewUploader(b.client)
	body := &countingReader{r: r}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	}
	b.applySSE(input)

	if _, err := uploader.Upload(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return &guidedcontent.BlobHandle{Key: key, MimeType: mimeType, Size: body.n}, nil
}

// MakePublic grants public-read on the object. Buckets with ACLs disabled
// are assumed to be public by policy.
func (b *Backend) MakePublic(ctx context.Context, h *guidedcontent.BlobHandle) error {
	if b.config.SkipACL {
		return nil
	}
	_, err := b.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(h.Key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		switch errorCode(err) {
		case "AccessControlListNotSupported":
			return nil
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("object %s: %w", h.Key, guidedcontent.ErrNotFound)
		}
		return fmt.Errorf("failed to make object public: %w", err)
	}
	return nil
}

// PublicURL returns the public URL of the object
func (b *Backend) PublicURL(h *guidedcontent.BlobHandle) string {
	segments := strings.Split(h.Key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return b.publicBase + "/" + strings.Join(segments, "/")
}

// KeyFor returns the object key addressed by one of this backend's public URLs.
func (b *Backend) KeyFor(publicURL string) (string, error) {
	rest, ok := strings.CutPrefix(publicURL, b.publicBase+"/")
	if !ok || rest == "" {
		return "", fmt.Errorf("%s: %w", publicURL, guidedcontent.ErrForeignURL)
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("%s: %w", publicURL, guidedcontent.ErrForeignURL)
	}
	return key, nil
}

// Delete deletes the object addressed by url from S3
func (b *Backend) Delete(ctx context.Context, url string) error {
	key, err := b.KeyFor(url)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errorCode(err) == "NoSuchKey" {
			return fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
		}
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// PresignUpload returns a presigned PUT URL for key. The client must send
// the same Content-Type header.
func (b *Backend) PresignUpload(ctx context.Context, key, mimeType string, ttl time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	}
	b.applySSE(input)

	result, err := b.presignClient.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}
	return result.URL, nil
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

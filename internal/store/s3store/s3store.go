// Package s3store keeps each session as a JSON object in an S3 bucket.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

const extension = ".json"

// API is the subset of *s3.Client the backend calls.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config selects the bucket and, optionally, a non-AWS endpoint.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var _ store.Backend = (*Backend)(nil)

// Backend implements store.Backend on S3 objects.
type Backend struct {
	client API
	bucket string
	prefix string
}

// New builds an S3 client from the default AWS chain plus cfg overrides.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient uses an existing client.
func NewWithClient(client API, bucket, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *Backend) key(id string) string {
	return b.prefix + id + extension
}

// Load fetches and decodes one object.
func (b *Backend) Load(ctx context.Context, id string) (*chat.Session, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get object for session %s", id)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read object for session %s", id)
	}

	var session chat.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	return &session, nil
}

// Save puts the whole record; S3 replaces objects atomically.
func (b *Backend) Save(ctx context.Context, session *chat.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode session %s", session.ID)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key(session.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrapf(err, "put object for session %s", session.ID)
	}
	return nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is
// checked first to report a missing session.
func (b *Backend) Delete(ctx context.Context, id string) error {
	key := aws.String(b.key(id))
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: key}); err != nil {
		if isNotFound(err) {
			return store.ErrNotFound
		}
		return errors.Wrapf(err, "head object for session %s", id)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: key}); err != nil {
		return errors.Wrapf(err, "delete object for session %s", id)
	}
	return nil
}

// List walks every object under the prefix and loads it.
func (b *Backend) List(ctx context.Context) ([]chat.Summary, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})

	summaries := []chat.Summary{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list session objects")
		}
		for _, obj := range page.Contents {
			id, ok := b.idFromKey(aws.ToString(obj.Key))
			if !ok {
				continue
			}
			session, err := b.Load(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				// deleted between list and get
				continue
			}
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, session.Summary())
		}
	}
	return summaries, nil
}

// Close is a no-op; the SDK client holds no open resources.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) idFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, b.prefix) || !strings.HasSuffix(key, extension) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, b.prefix), extension)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

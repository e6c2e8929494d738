// Package s3source serves chunked transfers straight from S3 by handing out
// pre-signed GET URLs as locators.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/NamanBalaji/bsfetch/internal/locator"
	"github.com/NamanBalaji/bsfetch/internal/logger"
)

const DefaultPresignExpiry = time.Hour

var (
	ErrInvalidURI     = errors.New("invalid S3 URI (want s3://bucket/key)")
	ErrObjectNotFound = errors.New("S3 object not found")
	ErrPresignFailed  = errors.New("failed to presign S3 request")
)

type headAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options select the AWS credentials and signing behavior.
type Options struct {
	Profile       string
	Region        string
	PresignExpiry time.Duration
}

// Object is what a transfer needs to know about an S3 object.
type Object struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	AcceptRanges bool
	LastModified time.Time
}

// Name returns the last element of the key.
func (o Object) Name() string {
	if i := strings.LastIndexByte(o.Key, '/'); i >= 0 {
		return o.Key[i+1:]
	}

	return o.Key
}

type Source struct {
	head    headAPI
	presign presignAPI
	expiry  time.Duration
	now     func() time.Time
}

// New loads the shared AWS config for opts.Profile and builds a Source.
func New(ctx context.Context, opts Options) (*Source, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
	}

	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return newSource(client, s3.NewPresignClient(client), opts.PresignExpiry), nil
}

func newSource(head headAPI, presign presignAPI, expiry time.Duration) *Source {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	return &Source{
		head:    head,
		presign: presign,
		expiry:  expiry,
		now:     time.Now,
	}
}

// Stat issues a HeadObject for bucket/key.
func (s *Source) Stat(ctx context.Context, bucket, key string) (Object, error) {
	out, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return Object{}, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}

		return Object{}, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}

	obj := Object{
		Bucket:       bucket,
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		AcceptRanges: out.AcceptRanges == nil || aws.ToString(out.AcceptRanges) == "bytes",
		LastModified: aws.ToTime(out.LastModified),
	}

	logger.Debugf("Stat s3://%s/%s: size=%d etag=%s", bucket, key, obj.Size, obj.ETag)

	return obj, nil
}

// Refresher presigns a GET for bucket/key each time it is called.
func (s *Source) Refresher(bucket, key string) locator.Refresher {
	return locator.RefresherFunc(func(ctx context.Context) (locator.Locator, error) {
		issued := s.now()

		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			return locator.Locator{}, fmt.Errorf("%w: %w", ErrPresignFailed, err)
		}

		return locator.Locator{URL: req.URL, ExpiresAt: issued.Add(s.expiry)}, nil
	})
}

// ParseURI splits "s3://bucket/key" into bucket and key.
func ParseURI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}

	return bucket, key, nil
}

// Package storage issues time-boxed signed URLs for an S3-compatible object
// store. The server never proxies file bytes; clients talk to the store
// directly with the grants minted here.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var signedURLsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "merchantdesk_signed_urls_total",
		Help: "Signed URLs issued, by operation and result.",
	},
	[]string{"op", "result"},
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Grant is a signed request the client replays against the object store.
// Header lists the headers that were signed and must be sent verbatim.
type Grant struct {
	URL       string
	Method    string
	Header    http.Header
	ExpiresIn time.Duration
}

// Presigner mints upload and download grants for a single object key.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*Grant, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (*Grant, error)
}

// Options configures the S3 client.
type Options struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	UsePathStyle bool
}

// S3Presigner is a Presigner backed by aws-sdk-go-v2.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
}

// NewS3Presigner builds the presign client once; it is safe for concurrent use.
func NewS3Presigner(ctx context.Context, o Options) (*S3Presigner, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	})

	return &S3Presigner{client: newS3PresignClient(client), bucket: o.Bucket}, nil
}

// PresignUpload grants a single PUT of key. The grant carries
// If-None-Match: * so an existing object is never overwritten.
func (p *S3Presigner) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*Grant, error) {
	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		signedURLsTotal.WithLabelValues("upload", "error").Inc()
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	signedURLsTotal.WithLabelValues("upload", "ok").Inc()
	return &Grant{URL: req.URL, Method: req.Method, Header: req.SignedHeader, ExpiresIn: ttl}, nil
}

func (p *S3Presigner) PresignDownload(ctx context.Context, key string, ttl time.Duration) (*Grant, error) {
	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		signedURLsTotal.WithLabelValues("download", "error").Inc()
		return nil, fmt.Errorf("presign get %s: %w", key, err)
	}

	signedURLsTotal.WithLabelValues("download", "ok").Inc()
	return &Grant{URL: req.URL, Method: req.Method, Header: req.SignedHeader, ExpiresIn: ttl}, nil
}

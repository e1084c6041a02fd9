// Package s3 lists object keys from an S3-compatible bucket for a partcat
// connector.
//
// It supports AWS S3, MinIO, LocalStack, Cloudflare R2, and other
// S3-compatible object stores. Only ListObjectsV2 is used; partcat never
// reads object payloads.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/justapithecus/partcat/partcat"
)

// API defines the subset of the S3 client interface used by the lister.
// This enables testing with mock implementations.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 lister.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all listings. Listed keys are
	// returned relative to it. A trailing slash is added if missing.
	Prefix string

	// PageSize caps keys per ListObjectsV2 call. Zero uses the service default.
	PageSize int32
}

// Lister implements partcat.Lister over an S3-compatible bucket.
type Lister struct {
	client   API
	bucket   string
	prefix   string
	pageSize int32
}

// New creates an S3 lister with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	lister, err := s3lister.New(client, s3lister.Config{Bucket: "my-bucket"})
func New(client API, cfg Config) (*Lister, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("s3: page size %d is negative", cfg.PageSize)
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Lister{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   prefix,
		pageSize: cfg.PageSize,
	}, nil
}

// List returns all keys under the given prefix, relative to the configured
// prefix. Pagination is handled automatically.
//
// A missing bucket is partcat.ErrNotFound and a denied listing is
// partcat.ErrPermissionDenied. An escaping prefix is partcat.ErrInvalidPath.
func (l *Lister) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix, err := l.validatePrefix(prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	var continuationToken *string

	for {
		in := &s3.ListObjectsV2Input{
			Bucket:            aws.String(l.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: continuationToken,
		}
		if l.pageSize > 0 {
			in.MaxKeys = aws.Int32(l.pageSize)
		}
		out, err := l.client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("s3: list objects in %q: %w", l.bucket, classify(err))
		}

		for _, obj := range out.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			keys = append(keys, strings.TrimPrefix(*obj.Key, l.prefix))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	return keys, nil
}

// validatePrefix validates and returns the full prefix for list operations.
func (l *Lister) validatePrefix(prefix string) (string, error) {
	if prefix == "" {
		return l.prefix, nil
	}

	cleaned := path.Clean(prefix)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", partcat.ErrInvalidPath
	}
	if cleaned == "." {
		return l.prefix, nil
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if strings.HasSuffix(prefix, "/") {
		cleaned += "/"
	}

	return l.prefix + cleaned, nil
}

// classify maps listing failures onto partcat sentinels, keeping the cause.
func classify(err error) error {
	switch {
	case isNotFound(err):
		return errors.Join(partcat.ErrNotFound, err)
	case isAccessDenied(err):
		return errors.Join(partcat.ErrPermissionDenied, err)
	default:
		return err
	}
}

func isNotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound" || code == "404"
	}
	return false
}

func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "403", "AllAccessDisabled":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusForbidden
	}
	return false
}

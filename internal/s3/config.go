// Package s3 builds S3 clients for the partcat command and examples.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region. Defaults to the SDK's resolution chain.
	Region string

	// Endpoint is an optional custom endpoint URL.
	// Used for S3-compatible services (MinIO, LocalStack, R2).
	// Example: "http://localhost:4566" for LocalStack.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted style.
	// Required for some S3-compatible services (e.g., LocalStack, MinIO with default config).
	UsePathStyle bool

	// Profile selects a shared config profile.
	Profile string

	// Credentials are the AWS credentials to use.
	// If nil, uses the default credential chain.
	Credentials aws.CredentialsProvider
}

// NewClient creates a new S3 client with the given configuration.
//
// For LocalStack:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:4566",
//	    UsePathStyle: true,
//	    Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Preset returns the client configuration for a named backend: "aws",
// "localstack", "minio", or "r2". For "r2", endpoint must carry the account
// endpoint. Static keys, when given, replace the default credential chain.
func Preset(name, endpoint, accessKeyID, secretAccessKey string) (ClientConfig, error) {
	var cfg ClientConfig
	switch name {
	case "", "aws":
		cfg.Endpoint = endpoint
	case "localstack":
		cfg = ClientConfig{
			Region:       "us-east-1",
			Endpoint:     "http://localhost:4566",
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
		}
	case "minio":
		cfg = ClientConfig{
			Region:       "us-east-1",
			Endpoint:     "http://localhost:9000",
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider("minioadmin", "minioadmin", ""),
		}
	case "r2":
		if endpoint == "" {
			return ClientConfig{}, fmt.Errorf("s3: preset r2 requires an endpoint")
		}
		cfg = ClientConfig{Region: "auto", Endpoint: endpoint}
	default:
		return ClientConfig{}, fmt.Errorf("s3: unknown preset %q", name)
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if accessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}
	return cfg, nil
}

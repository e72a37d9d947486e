package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Load resolves the AWS configuration for the given settings using the
// SDK's default credential chain.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	if err := cfg.Validate(); err != nil {
		return aws.Config{}, err
	}

	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if the caller set one.
	// Let the SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

// ClientBuilder constructs a service client from a resolved AWS config.
type ClientBuilder[T any] func(config aws.Config) *T

// Factory creates an AWS service client on the first call to Factory.Get
// and returns that instance on any subsequent calls, so one resolved
// aws.Config fans out to shared service clients.
//
// The Factory is not goroutine safe, but the returned AWS clients are
// (per AWS documentation).
type Factory[T any] struct {
	builder  ClientBuilder[T]
	instance *T
}

// NewFactory returns a Factory that builds clients with builder.
func NewFactory[T any](builder ClientBuilder[T]) *Factory[T] {
	return &Factory[T]{builder: builder}
}

// Get returns the cached client, building it on first use.
func (f *Factory[T]) Get(awsConfig aws.Config) *T {
	if f.instance == nil {
		f.instance = f.builder(awsConfig)
	}
	return f.instance
}

// Adapters for the service clients this tool talks to. They exist because
// the NewFromConfig functions have a second, varg argument of different
// types for the different services.

var ECSClientBuilder = func(config aws.Config) *ecs.Client {
	return ecs.NewFromConfig(config)
}

var LogsClientBuilder = func(config aws.Config) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(config)
}

var S3ClientBuilder = func(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

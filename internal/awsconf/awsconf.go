// Package awsconf builds AWS SDK configuration and Bedrock clients.
//
// Region and credentials resolve in this order: an explicit profile, the
// standard AWS environment variables, then the default shared profile.
package awsconf

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Options selects the AWS profile and region. Empty fields fall back to the
// SDK's default resolution chain.
type Options struct {
	Profile string
	Region  string
}

func (o Options) loadOptions() []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if o.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(o.Profile))
	}
	if o.Region != "" {
		opts = append(opts, awsconfig.WithRegion(o.Region))
	}
	return opts
}

// Load resolves an aws.Config. A config without a region is an error because
// Bedrock endpoints are regional.
func Load(ctx context.Context, o Options) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, o.loadOptions()...)
	if err != nil {
		if o.Profile != "" {
			return aws.Config{}, errors.Wrapf(err, "load aws config for profile %q", o.Profile)
		}
		return aws.Config{}, errors.Wrap(err, "load aws config")
	}
	if cfg.Region == "" {
		return aws.Config{}, errors.Errorf("no aws region configured; pass --region, set AWS_REGION, or add a region to the profile")
	}
	return cfg, nil
}

// NewRuntimeClient returns the data-plane client used for InvokeModel and Converse.
func NewRuntimeClient(cfg aws.Config) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(cfg)
}

// NewControlPlaneClient returns the client used for model listing.
func NewControlPlaneClient(cfg aws.Config) *bedrock.Client {
	return bedrock.NewFromConfig(cfg)
}

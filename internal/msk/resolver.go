// Package msk resolves bootstrap brokers and IAM signing credentials for
// Amazon MSK clusters.
package msk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	saslaws "github.com/twmb/franz-go/pkg/sasl/aws"
)

// ErrNoBrokers is returned when the cluster reports no usable broker list.
var ErrNoBrokers = errors.New("no bootstrap brokers returned for cluster")

// BootstrapAPI is the part of the MSK API the resolver needs.
type BootstrapAPI interface {
	GetBootstrapBrokers(ctx context.Context, in *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error)
}

// Resolver looks up the broker list of one MSK cluster.
type Resolver struct {
	api        BootstrapAPI
	clusterARN string
	preferIAM  bool
}

// NewResolver returns a Resolver for clusterARN. With preferIAM the SASL/IAM
// listener list is tried before the TLS and plaintext lists.
func NewResolver(api BootstrapAPI, clusterARN string, preferIAM bool) *Resolver {
	return &Resolver{api: api, clusterARN: clusterARN, preferIAM: preferIAM}
}

// Resolve returns the bootstrap brokers of the cluster.
func (r *Resolver) Resolve(ctx context.Context) ([]string, error) {
	out, err := r.api.GetBootstrapBrokers(ctx, &kafka.GetBootstrapBrokersInput{
		ClusterArn: aws.String(r.clusterARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bootstrap brokers for %s: %w", r.clusterARN, err)
	}

	candidates := []struct {
		listener string
		value    *string
	}{
		{"tls", out.BootstrapBrokerStringTls},
		{"plaintext", out.BootstrapBrokerString},
	}
	if r.preferIAM {
		candidates = append([]struct {
			listener string
			value    *string
		}{{"sasl_iam", out.BootstrapBrokerStringSaslIam}}, candidates...)
	}

	for _, c := range candidates {
		if brokers := splitBrokers(aws.ToString(c.value)); len(brokers) > 0 {
			slog.Debug("resolved MSK bootstrap brokers", "cluster", r.clusterARN, "listener", c.listener, "brokers", len(brokers))
			return brokers, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoBrokers, r.clusterARN)
}

func splitBrokers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadAWSConfig loads the default credential chain for region, optionally
// pinned to a named shared-config profile.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewClient returns an MSK API client for cfg.
func NewClient(cfg aws.Config) *kafka.Client {
	return kafka.NewFromConfig(cfg)
}

// IAMAuth returns a franz-go AWS_MSK_IAM credential source backed by the
// credentials of cfg. Credentials are retrieved per connection so refreshed
// session tokens are picked up.
func IAMAuth(cfg aws.Config, userAgent string) func(context.Context) (saslaws.Auth, error) {
	return func(ctx context.Context) (saslaws.Auth, error) {
		if cfg.Credentials == nil {
			return saslaws.Auth{}, errors.New("no AWS credentials configured")
		}
		creds, err := cfg.Credentials.Retrieve(ctx)
		if err != nil {
			return saslaws.Auth{}, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
		}
		return saslaws.Auth{
			AccessKey:    creds.AccessKeyID,
			SecretKey:    creds.SecretAccessKey,
			SessionToken: creds.SessionToken,
			UserAgent:    userAgent,
		}, nil
	}
}

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/kafkalens/internal/config"
	"github.com/ppiankov/kafkalens/internal/kafka"
	"github.com/ppiankov/kafkalens/internal/msk"
)

// kafkaConfig maps the loaded config onto connection settings.
func kafkaConfig(cfg *config.Config) kafka.Config {
	kcfg := kafka.Config{
		BootstrapServers: cfg.BootstrapServers,
		ClientID:         cfg.ClientID,
		QueryTimeout:     time.Duration(cfg.Timeout),
		PeekTimeout:      time.Duration(cfg.PeekTimeout),
	}

	if cfg.UsesTLS() {
		kcfg.TLSEnabled = true
		kcfg.TLSCAFile = cfg.SSLCAFile
		kcfg.TLSCertFile = cfg.SSLCertFile
		kcfg.TLSKeyFile = cfg.SSLKeyFile
	} else if cfg.SSLCAFile != "" || cfg.SSLCertFile != "" {
		slog.Debug("ignoring ssl_* settings", "security_protocol", cfg.SecurityProtocol)
	}

	if cfg.UsesSASL() {
		kcfg.AuthMechanism = cfg.SASLMechanism
		kcfg.Username = cfg.SASLUsername
		kcfg.Password = cfg.SASLPassword
	}

	return kcfg
}

// openSession connects to the cluster described by cfg. Managed clusters are
// resolved through the MSK API; IAM authentication signs with the same AWS
// credentials.
func openSession(ctx context.Context, cfg *config.Config) (session, error) {
	kcfg := kafkaConfig(cfg)

	var resolve kafka.BootstrapResolver
	arn := cfg.ManagedClusterARN()
	iam := kcfg.AuthMechanism == config.MechanismAWSMSKIAM

	if arn != "" || iam {
		awsCfg, err := msk.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSProfile)
		if err != nil {
			return nil, err
		}
		if iam {
			kcfg.IAMAuth = msk.IAMAuth(awsCfg, cfg.ClientID)
		}
		if arn != "" {
			slog.Debug("resolving bootstrap servers from MSK", "cluster_arn", arn, "region", cfg.AWSRegion)
			resolve = msk.NewResolver(msk.NewClient(awsCfg), arn, iam).Resolve
		}
	}

	s := kafka.NewSession(kcfg, resolve)
	if err := s.Connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

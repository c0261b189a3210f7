package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is the config path used when --config is not given.
	DefaultFileName = "config.yml"

	DefaultBootstrapServers  = "localhost:9092"
	DefaultAWSRegion         = "us-west-2"
	DefaultClientID          = "kafka-lens"
	DefaultLagThreshold      = 1000
	DefaultStaleConsumerDays = 30
	DefaultUnusedTopicDays   = 90
	DefaultTimeout           = 10 * time.Second
	DefaultPeekTimeout       = 5 * time.Second
)

// Security protocols, named the way Kafka clients name them.
const (
	ProtocolPlaintext     = "PLAINTEXT"
	ProtocolSSL           = "SSL"
	ProtocolSASLPlaintext = "SASL_PLAINTEXT"
	ProtocolSASLSSL       = "SASL_SSL"
)

// SASL mechanisms.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismScramSHA512 = "SCRAM-SHA-512"
	MechanismAWSMSKIAM   = "AWS_MSK_IAM"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything loaded from config.yml.
type Config struct {
	MSKClusterARN    string   `yaml:"msk_cluster_arn"`
	ClusterARN       string   `yaml:"cluster_arn"`
	AWSRegion        string   `yaml:"aws_region"`
	AWSProfile       string   `yaml:"aws_profile"`
	BootstrapServers Servers  `yaml:"bootstrap_servers"`
	SecurityProtocol string   `yaml:"security_protocol"`
	SASLMechanism    string   `yaml:"sasl_mechanism"`
	SASLUsername     string   `yaml:"sasl_plain_username"`
	SASLPassword     string   `yaml:"sasl_plain_password"`
	SSLCAFile        string   `yaml:"ssl_cafile"`
	SSLCertFile      string   `yaml:"ssl_certfile"`
	SSLKeyFile       string   `yaml:"ssl_keyfile"`
	ClientID         string   `yaml:"client_id"`
	LagThreshold     *int64   `yaml:"lag_threshold"`
	StaleDays        *int     `yaml:"stale_consumer_days"`
	UnusedDays       *int     `yaml:"unused_topic_days"`
	Timeout          Duration `yaml:"timeout"`
	PeekTimeout      Duration `yaml:"peek_timeout"`
}

// Servers accepts either a comma-separated string or a YAML list.
type Servers []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Servers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = splitServers(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		var out []string
		for _, item := range items {
			out = append(out, splitServers(item)...)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: bootstrap_servers must be a string or a list", node.Line)
	}
}

// String joins the servers back into the comma-separated form.
func (s Servers) String() string {
	return strings.Join(s, ",")
}

// Duration is a time.Duration decoded from Go duration syntax ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: parse duration: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadFromPath reads, decodes, defaults and validates the config at path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML config data. ${VAR} references in string values are
// expanded from the environment before decoding.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	expanded := expandEnv(strings.TrimPrefix(string(data), "\uFEFF"))
	if strings.TrimSpace(expanded) != "" {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.SecurityProtocol = strings.ToUpper(strings.TrimSpace(c.SecurityProtocol))
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = ProtocolPlaintext
	}
	c.SASLMechanism = strings.ToUpper(strings.TrimSpace(c.SASLMechanism))
	if c.AWSRegion == "" {
		c.AWSRegion = DefaultAWSRegion
	}
	if len(c.BootstrapServers) == 0 {
		c.BootstrapServers = splitServers(DefaultBootstrapServers)
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.LagThreshold == nil {
		v := int64(DefaultLagThreshold)
		c.LagThreshold = &v
	}
	if c.StaleDays == nil {
		v := DefaultStaleConsumerDays
		c.StaleDays = &v
	}
	if c.UnusedDays == nil {
		v := DefaultUnusedTopicDays
		c.UnusedDays = &v
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.PeekTimeout == 0 {
		c.PeekTimeout = Duration(DefaultPeekTimeout)
	}
}

// Validate checks enum and range fields.
func (c *Config) Validate() error {
	switch c.SecurityProtocol {
	case ProtocolPlaintext, ProtocolSSL, ProtocolSASLPlaintext, ProtocolSASLSSL:
	default:
		return fmt.Errorf("%w: unsupported security_protocol %q", ErrInvalidConfig, c.SecurityProtocol)
	}

	switch c.SASLMechanism {
	case "", MechanismPlain, MechanismScramSHA256, MechanismScramSHA512, MechanismAWSMSKIAM:
	default:
		return fmt.Errorf("%w: unsupported sasl_mechanism %q", ErrInvalidConfig, c.SASLMechanism)
	}

	if (c.SSLCertFile == "") != (c.SSLKeyFile == "") {
		return fmt.Errorf("%w: ssl_certfile and ssl_keyfile must be provided together", ErrInvalidConfig)
	}
	if c.LagThreshold != nil && *c.LagThreshold < 0 {
		return fmt.Errorf("%w: lag_threshold must not be negative", ErrInvalidConfig)
	}
	if c.StaleDays != nil && *c.StaleDays < 0 {
		return fmt.Errorf("%w: stale_consumer_days must not be negative", ErrInvalidConfig)
	}
	if c.UnusedDays != nil && *c.UnusedDays < 0 {
		return fmt.Errorf("%w: unused_topic_days must not be negative", ErrInvalidConfig)
	}
	if c.Timeout < 0 || c.PeekTimeout < 0 {
		return fmt.Errorf("%w: timeout and peek_timeout must not be negative", ErrInvalidConfig)
	}

	return nil
}

// ManagedClusterARN returns the MSK cluster ARN, cluster_arn winning over
// msk_cluster_arn. Empty means static bootstrap servers are used.
func (c *Config) ManagedClusterARN() string {
	if arn := strings.TrimSpace(c.ClusterARN); arn != "" {
		return arn
	}
	return strings.TrimSpace(c.MSKClusterARN)
}

// UsesTLS reports whether connections are encrypted. MSK IAM listeners are
// TLS-only.
func (c *Config) UsesTLS() bool {
	return c.SecurityProtocol == ProtocolSSL ||
		c.SecurityProtocol == ProtocolSASLSSL ||
		c.SASLMechanism == MechanismAWSMSKIAM
}

// UsesSASL reports whether a SASL mechanism applies to the connection.
func (c *Config) UsesSASL() bool {
	if c.SASLMechanism == "" {
		return false
	}
	// IAM is selected by the mechanism alone.
	return c.SASLMechanism == MechanismAWSMSKIAM ||
		c.SecurityProtocol == ProtocolSASLPlaintext ||
		c.SecurityProtocol == ProtocolSASLSSL
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references only, so a literal "$" in a password
// survives.
func expandEnv(text string) string {
	return envRef.ReplaceAllStringFunc(text, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func splitServers(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

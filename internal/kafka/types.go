package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	saslaws "github.com/twmb/franz-go/pkg/sasl/aws"
)

// InternalTopicPrefix marks broker-owned topics such as __consumer_offsets.
const InternalTopicPrefix = "__"

// IsInternalTopic reports whether topic is broker-owned.
func IsInternalTopic(topic string) bool {
	return strings.HasPrefix(topic, InternalTopicPrefix)
}

// TopicPartition identifies one partition of a topic.
type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// ClusterSnapshot is the broker and replication state read for a health check.
type ClusterSnapshot struct {
	ClusterID     string
	TotalBrokers  int
	OnlineBrokers int
	ControllerID  int32
	Partitions    []PartitionReplicas
	FetchedAt     time.Time
}

// PartitionReplicas holds the replica and in-sync replica sets of a partition.
type PartitionReplicas struct {
	Topic     string
	Partition int32
	Replicas  []int32
	ISR       []int32
}

// UnderReplicated reports whether fewer replicas are in sync than assigned.
func (p PartitionReplicas) UnderReplicated() bool {
	return len(p.ISR) < len(p.Replicas)
}

// CommittedOffset is a group's committed position on one partition.
// CommittedAt is zero when the commit time could not be determined.
type CommittedOffset struct {
	Offset      int64
	CommittedAt time.Time
}

// GroupOffsets holds every committed offset of one consumer group. An empty
// Offsets map means the group has no commits.
type GroupOffsets struct {
	GroupID string
	Offsets map[TopicPartition]CommittedOffset
}

// Partitions returns the partitions the group has committed to.
func (g GroupOffsets) Partitions() []TopicPartition {
	out := make([]TopicPartition, 0, len(g.Offsets))
	for tp := range g.Offsets {
		out = append(out, tp)
	}
	return out
}

// EndOffsets maps a partition to its latest written offset (high watermark).
type EndOffsets map[TopicPartition]int64

// StartOffsets maps a partition to its earliest retained offset.
type StartOffsets map[TopicPartition]int64

// Config holds the connection settings of a Session.
type Config struct {
	BootstrapServers []string
	ClientID         string
	TLSEnabled       bool
	TLSCertFile      string
	TLSKeyFile       string
	TLSCAFile        string
	AuthMechanism    string // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512, AWS_MSK_IAM
	Username         string
	Password         string
	QueryTimeout     time.Duration
	PeekTimeout      time.Duration

	// IAMAuth supplies signing credentials for AWS_MSK_IAM.
	IAMAuth func(ctx context.Context) (saslaws.Auth, error)
}

// Package analyzer turns cluster metadata into health, lag, staleness and
// usage verdicts.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// Cluster is everything the analyzers need from a Kafka cluster.
type Cluster interface {
	DescribeCluster(ctx context.Context) (kafka.ClusterSnapshot, error)
	ListTopics(ctx context.Context) ([]string, error)
	TopicPartitions(ctx context.Context, topic string) ([]int32, error)
	ListGroups(ctx context.Context) ([]string, error)
	FetchGroupOffsets(ctx context.Context, group string) (kafka.GroupOffsets, error)
	CommitTimestamps(ctx context.Context, group string) (map[kafka.TopicPartition]time.Time, error)
	EndOffsets(ctx context.Context, topics ...string) (kafka.EndOffsets, error)
	StartOffsets(ctx context.Context, topics ...string) (kafka.StartOffsets, error)
	LastRecordTimestamp(ctx context.Context, tp kafka.TopicPartition, end int64) (time.Time, bool, error)
	DeleteGroup(ctx context.Context, group string) error
	DeleteTopic(ctx context.Context, topic string) error
}

const (
	SubjectGroup = "group"
	SubjectTopic = "topic"
)

// Warning records an item a scan could not judge. The scan carries on.
type Warning struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("Could not check %s '%s': %s", w.Kind, w.Name, w.Message)
}

var (
	// ErrMissingEndOffset means a committed partition has no end offset.
	ErrMissingEndOffset = errors.New("end offset unavailable")
	// ErrUnknownCommitTime means a group has commits but none carry a time.
	ErrUnknownCommitTime = errors.New("commit time unknown")
)

// AgeDays returns how many days before now t was.
func AgeDays(now, t time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

// FormatAge renders an age the way reports show it, e.g. "120.0 days old".
func FormatAge(days float64) string {
	return fmt.Sprintf("%.1f days old", days)
}

func daysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// stopped reports whether the scan context is done. Per-item failures caused
// by cancellation end the scan instead of becoming warnings.
func stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}

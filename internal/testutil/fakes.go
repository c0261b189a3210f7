package testutil

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// FakeCluster is an in-memory cluster with configurable responses. Per-item
// errors are keyed by group or topic name.
type FakeCluster struct {
	Snapshot    kafka.ClusterSnapshot
	Topics      map[string][]int32
	Groups      map[string]map[kafka.TopicPartition]int64
	CommitTimes map[string]map[kafka.TopicPartition]time.Time
	Ends        kafka.EndOffsets
	Starts      kafka.StartOffsets
	LastRecords map[kafka.TopicPartition]time.Time

	Err        error
	GroupErrs  map[string]error
	TopicErrs  map[string]error
	CommitErrs map[string]error
	DeleteErr  error
	PingErr    error

	DeletedGroup  []string
	DeletedTopic  []string
	Peeks         []kafka.TopicPartition
	ConsumerPings int
	Closed        bool
}

func NewFakeCluster() *FakeCluster {
	return &FakeCluster{
		Topics:      map[string][]int32{},
		Groups:      map[string]map[kafka.TopicPartition]int64{},
		CommitTimes: map[string]map[kafka.TopicPartition]time.Time{},
		Ends:        kafka.EndOffsets{},
		Starts:      kafka.StartOffsets{},
		LastRecords: map[kafka.TopicPartition]time.Time{},
		GroupErrs:   map[string]error{},
		TopicErrs:   map[string]error{},
		CommitErrs:  map[string]error{},
	}
}

func (f *FakeCluster) DescribeCluster(_ context.Context) (kafka.ClusterSnapshot, error) {
	return f.Snapshot, f.Err
}

func (f *FakeCluster) ListTopics(_ context.Context) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	names := make([]string, 0, len(f.Topics))
	for name := range f.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeCluster) TopicPartitions(_ context.Context, topic string) ([]int32, error) {
	if err := f.TopicErrs[topic]; err != nil {
		return nil, err
	}
	parts, ok := f.Topics[topic]
	if !ok {
		return nil, fmt.Errorf("topic %s not found", topic)
	}
	return parts, nil
}

func (f *FakeCluster) ListGroups(_ context.Context) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	names := make([]string, 0, len(f.Groups))
	for name := range f.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeCluster) FetchGroupOffsets(_ context.Context, group string) (kafka.GroupOffsets, error) {
	if err := f.GroupErrs[group]; err != nil {
		return kafka.GroupOffsets{}, err
	}
	out := kafka.GroupOffsets{GroupID: group, Offsets: map[kafka.TopicPartition]kafka.CommittedOffset{}}
	for tp, off := range f.Groups[group] {
		out.Offsets[tp] = kafka.CommittedOffset{Offset: off}
	}
	return out, nil
}

func (f *FakeCluster) CommitTimestamps(_ context.Context, group string) (map[kafka.TopicPartition]time.Time, error) {
	if err := f.CommitErrs[group]; err != nil {
		return nil, err
	}
	return f.CommitTimes[group], nil
}

func (f *FakeCluster) EndOffsets(_ context.Context, topics ...string) (kafka.EndOffsets, error) {
	out := kafka.EndOffsets{}
	for tp, off := range f.Ends {
		for _, t := range topics {
			if tp.Topic == t {
				out[tp] = off
			}
		}
	}
	return out, nil
}

func (f *FakeCluster) StartOffsets(_ context.Context, topics ...string) (kafka.StartOffsets, error) {
	out := kafka.StartOffsets{}
	for tp, off := range f.Starts {
		for _, t := range topics {
			if tp.Topic == t {
				out[tp] = off
			}
		}
	}
	return out, nil
}

func (f *FakeCluster) LastRecordTimestamp(_ context.Context, tp kafka.TopicPartition, _ int64) (time.Time, bool, error) {
	f.Peeks = append(f.Peeks, tp)
	ts, ok := f.LastRecords[tp]
	return ts, ok, nil
}

func (f *FakeCluster) DeleteGroup(_ context.Context, group string) error {
	f.DeletedGroup = append(f.DeletedGroup, group)
	return f.DeleteErr
}

func (f *FakeCluster) DeleteTopic(_ context.Context, topic string) error {
	f.DeletedTopic = append(f.DeletedTopic, topic)
	return f.DeleteErr
}

func (f *FakeCluster) PingConsumer(_ context.Context) error {
	f.ConsumerPings++
	return f.PingErr
}

func (f *FakeCluster) Close() { f.Closed = true }

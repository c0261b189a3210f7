package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf16"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// ConsumerOffsetsTopic is the broker's commit log.
const ConsumerOffsetsTopic = "__consumer_offsets"

// commitLog memoizes the commit times decoded from each __consumer_offsets
// partition it has read during a run.
type commitLog struct {
	partitionCount int32
	read           map[int32]map[string]map[TopicPartition]time.Time
}

func newCommitLog() *commitLog {
	return &commitLog{read: make(map[int32]map[string]map[TopicPartition]time.Time)}
}

func (c *commitLog) timestamps(ctx context.Context, admin *kadm.Client, cl *kgo.Client, group string, idle time.Duration) (map[TopicPartition]time.Time, error) {
	if c.partitionCount == 0 {
		details, err := admin.ListTopics(ctx, ConsumerOffsetsTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", ConsumerOffsetsTopic, err)
		}
		td, ok := details[ConsumerOffsetsTopic]
		if !ok || td.Err != nil || len(td.Partitions) == 0 {
			return nil, fmt.Errorf("%s is not readable", ConsumerOffsetsTopic)
		}
		c.partitionCount = int32(len(td.Partitions))
	}

	partition := groupPartition(group, c.partitionCount)
	groups, ok := c.read[partition]
	if !ok {
		var err error
		groups, err = c.load(ctx, admin, cl, partition, idle)
		if err != nil {
			return nil, err
		}
		c.read[partition] = groups
	}

	out := make(map[TopicPartition]time.Time, len(groups[group]))
	for tp, ts := range groups[group] {
		out[tp] = ts
	}
	return out, nil
}

func (c *commitLog) load(ctx context.Context, admin *kadm.Client, cl *kgo.Client, partition int32, idle time.Duration) (map[string]map[TopicPartition]time.Time, error) {
	ends, err := admin.ListEndOffsets(ctx, ConsumerOffsetsTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s end offsets: %w", ConsumerOffsetsTopic, err)
	}
	end, ok := ends.Lookup(ConsumerOffsetsTopic, partition)
	if !ok || end.Err != nil {
		return nil, fmt.Errorf("no end offset for %s/%d", ConsumerOffsetsTopic, partition)
	}

	groups := make(map[string]map[TopicPartition]time.Time)
	if end.Offset == 0 {
		return groups, nil
	}

	start := time.Now()
	tp := TopicPartition{Topic: ConsumerOffsetsTopic, Partition: partition}
	records := 0
	err = readPartition(ctx, cl, tp, kgo.NewOffset().AtStart(), end.Offset, idle, func(r *kgo.Record) {
		records++
		applyCommitRecord(groups, r.Key, r.Value)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tp, err)
	}
	slog.Debug("read commit log partition", "partition", partition, "records", records, "groups", len(groups), "duration", time.Since(start))

	return groups, nil
}

// applyCommitRecord folds one commit-log record into groups. Group metadata
// records and undecodable records are ignored; a tombstone removes the
// commit.
func applyCommitRecord(groups map[string]map[TopicPartition]time.Time, key, value []byte) {
	var k kmsg.OffsetCommitKey
	if err := k.ReadFrom(key); err != nil || k.Version > 1 {
		return
	}
	tp := TopicPartition{Topic: k.Topic, Partition: k.Partition}

	if len(value) == 0 {
		if commits, ok := groups[k.Group]; ok {
			delete(commits, tp)
		}
		return
	}

	var v kmsg.OffsetCommitValue
	if err := v.ReadFrom(value); err != nil {
		return
	}

	commits, ok := groups[k.Group]
	if !ok {
		commits = make(map[TopicPartition]time.Time)
		groups[k.Group] = commits
	}
	commits[tp] = time.UnixMilli(v.CommitTimestamp)
}

// groupPartition returns the commit-log partition the broker assigns group to.
func groupPartition(group string, partitions int32) int32 {
	return (javaStringHash(group) & 0x7fffffff) % partitions
}

// javaStringHash is java.lang.String#hashCode over the UTF-16 code units of s.
func javaStringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

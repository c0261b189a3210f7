package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kafkalens/internal/kafka"
	"github.com/ppiankov/kafkalens/internal/testutil"
)

func tp(topic string, partition int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: topic, Partition: partition}
}

func groupOffsets(group string, offsets map[kafka.TopicPartition]int64) kafka.GroupOffsets {
	out := kafka.GroupOffsets{GroupID: group, Offsets: map[kafka.TopicPartition]kafka.CommittedOffset{}}
	for p, o := range offsets {
		out.Offsets[p] = kafka.CommittedOffset{Offset: o}
	}
	return out
}

func TestComputeLagThreshold(t *testing.T) {
	offsets := groupOffsets("g1", map[kafka.TopicPartition]int64{tp("topicA", 0): 100})
	ends := kafka.EndOffsets{tp("topicA", 0): 350}

	normal, err := ComputeLag(offsets, ends, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(250), normal.TotalLag)
	assert.False(t, normal.HighLag)

	high, err := ComputeLag(offsets, ends, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(250), high.TotalLag)
	assert.True(t, high.HighLag)
}

func TestComputeLagClampsAndIgnores(t *testing.T) {
	offsets := groupOffsets("g", map[kafka.TopicPartition]int64{
		tp("a", 0): 500,
		tp("a", 1): 10,
		tp("b", 0): -1,
	})
	ends := kafka.EndOffsets{tp("a", 0): 480, tp("a", 1): 15}

	got, err := ComputeLag(offsets, ends, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.TotalLag)
	require.Len(t, got.Partitions, 2)
	assert.Equal(t, int64(0), got.Partitions[0].Lag)
	assert.Equal(t, int64(5), got.Partitions[1].Lag)
}

func TestComputeLagMissingEnd(t *testing.T) {
	offsets := groupOffsets("g", map[kafka.TopicPartition]int64{tp("a", 0): 1})

	_, err := ComputeLag(offsets, kafka.EndOffsets{}, 10)
	require.ErrorIs(t, err, ErrMissingEndOffset)
}

func TestScanLag(t *testing.T) {
	fc := testutil.NewFakeCluster()
	fc.Groups["zeta"] = map[kafka.TopicPartition]int64{tp("orders", 0): 0}
	fc.Groups["alpha"] = map[kafka.TopicPartition]int64{tp("orders", 0): 100, tp("orders", 1): 900}
	fc.Groups["empty"] = map[kafka.TopicPartition]int64{}
	fc.Groups["broken"] = map[kafka.TopicPartition]int64{tp("orders", 0): 1}
	fc.Groups["vanished"] = map[kafka.TopicPartition]int64{tp("gone", 0): 1}
	fc.GroupErrs["broken"] = errors.New("coordinator not available")
	fc.Ends[tp("orders", 0)] = 2000
	fc.Ends[tp("orders", 1)] = 1000

	report, err := ScanLag(context.Background(), fc, 1000)
	require.NoError(t, err)

	require.Len(t, report.Groups, 2)
	assert.Equal(t, "alpha", report.Groups[0].GroupID)
	assert.Equal(t, int64(2000), report.Groups[0].TotalLag)
	assert.True(t, report.Groups[0].HighLag)
	assert.Equal(t, "zeta", report.Groups[1].GroupID)
	assert.Equal(t, 2, report.HighLagCount())

	require.Len(t, report.Warnings, 2)
	assert.Equal(t, "broken", report.Warnings[0].Name)
	assert.Equal(t, "vanished", report.Warnings[1].Name)
	assert.Contains(t, report.Warnings[1].String(), "Could not check group 'vanished'")
}

func TestScanLagListFailure(t *testing.T) {
	fc := testutil.NewFakeCluster()
	fc.Err = errors.New("not controller")

	_, err := ScanLag(context.Background(), fc, 1000)
	require.Error(t, err)
}

func TestScanLagCancelled(t *testing.T) {
	fc := testutil.NewFakeCluster()
	fc.Groups["g"] = map[kafka.TopicPartition]int64{tp("orders", 0): 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ScanLag(ctx, fc, 1000)
	require.ErrorIs(t, err, context.Canceled)
}

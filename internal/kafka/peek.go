package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// peekLast positions a direct consumer at end-1 on tp and returns the
// timestamp of the record found there.
func peekLast(ctx context.Context, cl *kgo.Client, tp TopicPartition, end int64, idle time.Duration) (time.Time, bool, error) {
	var (
		ts    time.Time
		found bool
	)
	err := readPartition(ctx, cl, tp, kgo.NewOffset().At(end-1), end, idle, func(r *kgo.Record) {
		if r.Timestamp.After(ts) {
			ts = r.Timestamp
		}
		found = true
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, found, nil
}

// readPartition feeds fn every record of tp from the given offset until the
// record at until-1 has been seen, or until a poll yields nothing for idle.
// The partition is unassigned again before returning.
func readPartition(ctx context.Context, cl *kgo.Client, tp TopicPartition, from kgo.Offset, until int64, idle time.Duration, fn func(*kgo.Record)) error {
	cl.AddConsumePartitions(map[string]map[int32]kgo.Offset{
		tp.Topic: {tp.Partition: from},
	})
	defer cl.RemoveConsumePartitions(map[string][]int32{
		tp.Topic: {tp.Partition},
	})

	for {
		pollCtx, cancel := context.WithTimeout(ctx, idle)
		fetches := cl.PollFetches(pollCtx)
		cancel()

		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return kgo.ErrClientClosed
		}

		var fetchErr error
		fetches.EachError(func(_ string, _ int32, err error) {
			if fetchErr == nil && !errors.Is(err, context.DeadlineExceeded) {
				fetchErr = err
			}
		})
		if fetchErr != nil {
			return fetchErr
		}

		if fetches.NumRecords() == 0 {
			return nil
		}

		done := false
		fetches.EachRecord(func(r *kgo.Record) {
			if r.Topic != tp.Topic || r.Partition != tp.Partition {
				return
			}
			fn(r)
			if r.Offset >= until-1 {
				done = true
			}
		})
		if done {
			return nil
		}
	}
}

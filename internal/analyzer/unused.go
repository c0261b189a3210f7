package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// UnusedTopic is a topic whose newest record is older than the threshold.
type UnusedTopic struct {
	Topic        string    `json:"topic"`
	Reason       string    `json:"reason"`
	LastActivity time.Time `json:"last_activity"`
	AgeDays      float64   `json:"age_days"`
}

// UnusedReport is the result of an unused-topic scan.
type UnusedReport struct {
	ThresholdDays int           `json:"threshold_days"`
	TopicsChecked int           `json:"topics_checked"`
	Topics        []UnusedTopic `json:"unused_topics"`
	// Empty lists topics skipped because no partition holds a record.
	Empty    []string  `json:"empty_topics,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ClassifyUnused decides whether topic is unused from the last-record times
// of its partitions. It returns false when there is no timestamp at all:
// an empty topic is not an abandoned one.
func ClassifyUnused(topic string, lastRecords []time.Time, days int, now time.Time) (UnusedTopic, bool) {
	var latest time.Time
	for _, ts := range lastRecords {
		if ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() || !latest.Before(daysAgo(now, days)) {
		return UnusedTopic{}, false
	}

	age := AgeDays(now, latest)
	return UnusedTopic{
		Topic:        topic,
		Reason:       FormatAge(age),
		LastActivity: latest,
		AgeDays:      age,
	}, true
}

// ScanUnused peeks the last record of every non-empty partition of every
// non-internal topic, in sorted order, and classifies each topic.
func ScanUnused(ctx context.Context, c Cluster, days int, now time.Time) (UnusedReport, error) {
	report := UnusedReport{ThresholdDays: days, Topics: []UnusedTopic{}}

	topics, err := c.ListTopics(ctx)
	if err != nil {
		return report, err
	}
	sort.Strings(topics)

	for _, topic := range topics {
		if stopped(ctx) {
			return report, ctx.Err()
		}
		if kafka.IsInternalTopic(topic) {
			continue
		}

		lastRecords, err := topicActivity(ctx, c, topic)
		if err != nil {
			if stopped(ctx) {
				return report, ctx.Err()
			}
			slog.Debug("usage check failed", "topic", topic, "error", err)
			report.Warnings = append(report.Warnings, Warning{Kind: SubjectTopic, Name: topic, Message: err.Error()})
			continue
		}

		report.TopicsChecked++
		if len(lastRecords) == 0 {
			report.Empty = append(report.Empty, topic)
			continue
		}
		if verdict, unused := ClassifyUnused(topic, lastRecords, days, now); unused {
			report.Topics = append(report.Topics, verdict)
		}
	}

	return report, nil
}

// topicActivity returns the last-record time of each partition of topic that
// still holds records.
func topicActivity(ctx context.Context, c Cluster, topic string) ([]time.Time, error) {
	partitions, err := c.TopicPartitions(ctx, topic)
	if err != nil {
		return nil, err
	}
	ends, err := c.EndOffsets(ctx, topic)
	if err != nil {
		return nil, err
	}
	starts, err := c.StartOffsets(ctx, topic)
	if err != nil {
		return nil, err
	}

	var out []time.Time
	for _, p := range partitions {
		tp := kafka.TopicPartition{Topic: topic, Partition: p}
		end, ok := ends[tp]
		if !ok {
			return nil, fmt.Errorf("%w for %s", ErrMissingEndOffset, tp)
		}
		if end <= 0 || starts[tp] >= end {
			continue
		}

		ts, found, err := c.LastRecordTimestamp(ctx, tp, end)
		if err != nil {
			return nil, fmt.Errorf("peek %s: %w", tp, err)
		}
		if found {
			out = append(out, ts)
		} else {
			slog.Debug("no record within peek timeout", "partition", tp.String(), "end", end)
		}
	}
	return out, nil
}

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// PartitionLag is one partition's share of a group's lag.
type PartitionLag struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Committed int64  `json:"committed"`
	End       int64  `json:"end"`
	Lag       int64  `json:"lag"`
}

// GroupLag is the total lag of one consumer group.
type GroupLag struct {
	GroupID    string         `json:"group_id"`
	TotalLag   int64          `json:"total_lag"`
	HighLag    bool           `json:"high_lag"`
	Partitions []PartitionLag `json:"partitions"`
}

// LagReport is the result of a lag scan.
type LagReport struct {
	Threshold int64      `json:"threshold"`
	Groups    []GroupLag `json:"groups"`
	Warnings  []Warning  `json:"warnings,omitempty"`
}

// HighLagCount returns how many groups exceed the threshold.
func (r LagReport) HighLagCount() int {
	n := 0
	for _, g := range r.Groups {
		if g.HighLag {
			n++
		}
	}
	return n
}

// ComputeLag sums max(0, end-committed) over the committed partitions of
// offsets. Partitions without a commit (negative offset) are ignored. Every
// remaining partition must have an end offset.
func ComputeLag(offsets kafka.GroupOffsets, ends kafka.EndOffsets, threshold int64) (GroupLag, error) {
	gl := GroupLag{GroupID: offsets.GroupID, Partitions: []PartitionLag{}}

	for _, tp := range sortedPartitions(offsets.Partitions()) {
		committed := offsets.Offsets[tp].Offset
		if committed < 0 {
			continue
		}
		end, ok := ends[tp]
		if !ok {
			return GroupLag{}, fmt.Errorf("%w for %s", ErrMissingEndOffset, tp)
		}

		lag := max(end-committed, 0)
		gl.TotalLag += lag
		gl.Partitions = append(gl.Partitions, PartitionLag{
			Topic:     tp.Topic,
			Partition: tp.Partition,
			Committed: committed,
			End:       end,
			Lag:       lag,
		})
	}

	gl.HighLag = gl.TotalLag > threshold
	return gl, nil
}

// ScanLag computes the lag of every consumer group in sorted order. Groups
// without commits are left out; groups that fail are reported as warnings.
func ScanLag(ctx context.Context, c Cluster, threshold int64) (LagReport, error) {
	report := LagReport{Threshold: threshold, Groups: []GroupLag{}}

	groups, err := c.ListGroups(ctx)
	if err != nil {
		return report, err
	}
	sort.Strings(groups)

	warn := func(group string, err error) {
		slog.Debug("lag check failed", "group", group, "error", err)
		report.Warnings = append(report.Warnings, Warning{Kind: SubjectGroup, Name: group, Message: err.Error()})
	}

	for _, group := range groups {
		if stopped(ctx) {
			return report, ctx.Err()
		}

		offsets, err := c.FetchGroupOffsets(ctx, group)
		if err != nil {
			if stopped(ctx) {
				return report, ctx.Err()
			}
			warn(group, err)
			continue
		}
		if !hasCommits(offsets) {
			continue
		}

		ends, err := c.EndOffsets(ctx, committedTopics(offsets)...)
		if err != nil {
			if stopped(ctx) {
				return report, ctx.Err()
			}
			warn(group, err)
			continue
		}

		gl, err := ComputeLag(offsets, ends, threshold)
		if err != nil {
			warn(group, err)
			continue
		}
		report.Groups = append(report.Groups, gl)
	}

	return report, nil
}

func hasCommits(offsets kafka.GroupOffsets) bool {
	for _, o := range offsets.Offsets {
		if o.Offset >= 0 {
			return true
		}
	}
	return false
}

func committedTopics(offsets kafka.GroupOffsets) []string {
	seen := make(map[string]struct{})
	var topics []string
	for tp, o := range offsets.Offsets {
		if o.Offset < 0 {
			continue
		}
		if _, ok := seen[tp.Topic]; ok {
			continue
		}
		seen[tp.Topic] = struct{}{}
		topics = append(topics, tp.Topic)
	}
	sort.Strings(topics)
	return topics
}

func sortedPartitions(tps []kafka.TopicPartition) []kafka.TopicPartition {
	sort.Slice(tps, func(i, j int) bool {
		if tps[i].Topic != tps[j].Topic {
			return tps[i].Topic < tps[j].Topic
		}
		return tps[i].Partition < tps[j].Partition
	})
	return tps
}

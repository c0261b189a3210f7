package analyzer

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// ReasonNoCommits marks a group that never committed an offset.
const ReasonNoCommits = "No commits"

// StaleGroup is a consumer group that has not committed recently.
type StaleGroup struct {
	GroupID    string     `json:"group_id"`
	Reason     string     `json:"reason"`
	LastCommit *time.Time `json:"last_commit,omitempty"`
	AgeDays    float64    `json:"age_days,omitempty"`
}

// StaleReport is the result of a staleness scan.
type StaleReport struct {
	ThresholdDays int          `json:"threshold_days"`
	// GroupsChecked counts groups that got a verdict; warned groups are not
	// included.
	GroupsChecked int          `json:"groups_checked"`
	Groups        []StaleGroup `json:"stale_groups"`
	Warnings      []Warning    `json:"warnings,omitempty"`
}

// ClassifyStale decides whether a group is stale. A group with no committed
// offset (none at all, or only -1 placeholders) is always stale. Otherwise
// the newest commit time across its committed partitions must be older than
// days. ErrUnknownCommitTime is returned when the group
// has offsets but no commit carries a time.
func ClassifyStale(offsets kafka.GroupOffsets, days int, now time.Time) (StaleGroup, bool, error) {
	if !hasCommits(offsets) {
		return StaleGroup{GroupID: offsets.GroupID, Reason: ReasonNoCommits}, true, nil
	}

	var latest time.Time
	for _, o := range offsets.Offsets {
		if o.Offset < 0 {
			continue
		}
		if o.CommittedAt.After(latest) {
			latest = o.CommittedAt
		}
	}
	if latest.IsZero() {
		return StaleGroup{}, false, ErrUnknownCommitTime
	}

	if !latest.Before(daysAgo(now, days)) {
		return StaleGroup{}, false, nil
	}

	age := AgeDays(now, latest)
	return StaleGroup{
		GroupID:    offsets.GroupID,
		Reason:     FormatAge(age),
		LastCommit: &latest,
		AgeDays:    age,
	}, true, nil
}

// ScanStale classifies every consumer group in sorted order.
func ScanStale(ctx context.Context, c Cluster, days int, now time.Time) (StaleReport, error) {
	report := StaleReport{ThresholdDays: days, Groups: []StaleGroup{}}

	groups, err := c.ListGroups(ctx)
	if err != nil {
		return report, err
	}
	sort.Strings(groups)

	warn := func(group string, err error) {
		slog.Debug("staleness check failed", "group", group, "error", err)
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

		if hasCommits(offsets) {
			times, err := c.CommitTimestamps(ctx, group)
			if err != nil {
				if stopped(ctx) {
					return report, ctx.Err()
				}
				warn(group, err)
				continue
			}
			for tp, o := range offsets.Offsets {
				if ts, ok := times[tp]; ok {
					o.CommittedAt = ts
					offsets.Offsets[tp] = o
				}
			}
		}

		verdict, stale, err := ClassifyStale(offsets, days, now)
		if err != nil {
			warn(group, err)
			continue
		}
		report.GroupsChecked++
		if stale {
			report.Groups = append(report.Groups, verdict)
		}
	}

	return report, nil
}

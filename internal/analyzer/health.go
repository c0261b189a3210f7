package analyzer

import (
	"context"
	"fmt"

	"github.com/ppiankov/kafkalens/internal/kafka"
)

// HealthStatus is the overall verdict of a health check.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
)

// UnderReplicatedPartition is a partition with fewer in-sync replicas than
// assigned replicas.
type UnderReplicatedPartition struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Replicas  int    `json:"replicas"`
	ISR       int    `json:"isr"`
}

// HealthReport is the result of classifying a ClusterSnapshot.
type HealthReport struct {
	Status               HealthStatus               `json:"status"`
	ClusterID            string                     `json:"cluster_id,omitempty"`
	OnlineBrokers        int                        `json:"online_brokers"`
	TotalBrokers         int                        `json:"total_brokers"`
	ControllerID         int32                      `json:"controller_id"`
	PartitionsChecked    int                        `json:"partitions_checked"`
	UnderReplicatedCount int                        `json:"under_replicated_count"`
	UnderReplicated      []UnderReplicatedPartition `json:"under_replicated,omitempty"`
}

// Healthy reports whether every broker is online and nothing is
// under-replicated.
func (r HealthReport) Healthy() bool {
	return r.Status == HealthHealthy
}

// BrokerRatio renders online over total brokers, e.g. "2/3".
func (r HealthReport) BrokerRatio() string {
	return fmt.Sprintf("%d/%d", r.OnlineBrokers, r.TotalBrokers)
}

// ClassifyHealth derives the health verdict of snap. Internal topics never
// count towards under-replication.
func ClassifyHealth(snap kafka.ClusterSnapshot) HealthReport {
	report := HealthReport{
		ClusterID:     snap.ClusterID,
		OnlineBrokers: snap.OnlineBrokers,
		TotalBrokers:  snap.TotalBrokers,
		ControllerID:  snap.ControllerID,
	}

	for _, p := range snap.Partitions {
		if kafka.IsInternalTopic(p.Topic) {
			continue
		}
		report.PartitionsChecked++
		if p.UnderReplicated() {
			report.UnderReplicated = append(report.UnderReplicated, UnderReplicatedPartition{
				Topic:     p.Topic,
				Partition: p.Partition,
				Replicas:  len(p.Replicas),
				ISR:       len(p.ISR),
			})
		}
	}
	report.UnderReplicatedCount = len(report.UnderReplicated)

	if report.OnlineBrokers == report.TotalBrokers && report.UnderReplicatedCount == 0 {
		report.Status = HealthHealthy
	} else {
		report.Status = HealthDegraded
	}
	return report
}

// CheckHealth fetches a snapshot from c and classifies it.
func CheckHealth(ctx context.Context, c Cluster) (HealthReport, error) {
	snap, err := c.DescribeCluster(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	return ClassifyHealth(snap), nil
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// BootstrapResolver returns the seed brokers to connect to. It is called at
// most once per Session.
type BootstrapResolver func(ctx context.Context) ([]string, error)

// StaticBootstrap resolves to a fixed broker list.
func StaticBootstrap(servers []string) BootstrapResolver {
	return func(context.Context) ([]string, error) {
		return servers, nil
	}
}

// Session owns the connections of one CLI invocation. The admin and consumer
// clients are created on first use and released by Close.
type Session struct {
	cfg     Config
	resolve BootstrapResolver

	seeds    []string
	client   *kgo.Client
	admin    *kadm.Client
	consumer *kgo.Client

	topics  kadm.TopicDetails
	commits *commitLog
}

// NewSession creates a Session. When resolve is nil the configured
// BootstrapServers are used.
func NewSession(cfg Config, resolve BootstrapResolver) *Session {
	if resolve == nil {
		resolve = StaticBootstrap(cfg.BootstrapServers)
	}
	return &Session{
		cfg:     cfg,
		resolve: resolve,
		commits: newCommitLog(),
	}
}

// Connect opens the admin connection and verifies the cluster answers.
func (s *Session) Connect(ctx context.Context) error {
	_, err := s.adminClient(ctx)
	return err
}

// Close closes whichever connections were opened.
func (s *Session) Close() {
	if s.consumer != nil {
		s.consumer.Close()
		s.consumer = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.admin = nil
	}
}

func (s *Session) seedBrokers(ctx context.Context) ([]string, error) {
	if s.seeds != nil {
		return s.seeds, nil
	}
	seeds, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, errors.New("no bootstrap servers resolved")
	}
	slog.Debug("resolved bootstrap servers", "servers", seeds)
	s.seeds = seeds
	return seeds, nil
}

func (s *Session) adminClient(ctx context.Context) (*kadm.Client, error) {
	if s.admin != nil {
		return s.admin, nil
	}

	seeds, err := s.seedBrokers(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := clientOpts(s.cfg, seeds)
	if err != nil {
		return nil, err
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	pingCtx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	slog.Debug("connected to cluster", "seeds", len(seeds), "duration", time.Since(start))

	s.client = client
	s.admin = kadm.NewClient(client)
	return s.admin, nil
}

// consumerClient returns the direct consumer used for peeks and commit-log
// reads. It never joins a group, so it never commits.
func (s *Session) consumerClient(ctx context.Context) (*kgo.Client, error) {
	if s.consumer != nil {
		return s.consumer, nil
	}

	seeds, err := s.seedBrokers(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := clientOpts(s.cfg, seeds)
	if err != nil {
		return nil, err
	}

	consumer, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	s.consumer = consumer
	return consumer, nil
}

// PingConsumer opens the consumer connection and checks that it reaches a
// broker.
func (s *Session) PingConsumer(ctx context.Context) error {
	consumer, err := s.consumerClient(ctx)
	if err != nil {
		return err
	}

	pingCtx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	if err := consumer.Ping(pingCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: consumer: %w", ErrConnect, err)
	}
	return nil
}

// DescribeCluster reads brokers, the controller and the replica state of every
// non-internal partition.
func (s *Session) DescribeCluster(ctx context.Context) (ClusterSnapshot, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return ClusterSnapshot{}, err
	}

	meta, err := admin.Metadata(ctx)
	if err != nil {
		return ClusterSnapshot{}, fmt.Errorf("failed to fetch cluster metadata: %w", err)
	}

	snap := ClusterSnapshot{
		ClusterID:     meta.Cluster,
		OnlineBrokers: len(meta.Brokers),
		ControllerID:  meta.Controller,
		FetchedAt:     time.Now(),
	}

	known := make(map[int32]struct{}, len(meta.Brokers))
	for _, b := range meta.Brokers {
		known[b.NodeID] = struct{}{}
	}

	for _, td := range meta.Topics.Sorted() {
		if IsInternalTopic(td.Topic) {
			continue
		}
		if td.Err != nil {
			slog.Warn("skipping topic with metadata error", "topic", td.Topic, "error", td.Err)
			continue
		}
		for _, pd := range td.Partitions.Sorted() {
			for _, id := range pd.Replicas {
				known[id] = struct{}{}
			}
			snap.Partitions = append(snap.Partitions, PartitionReplicas{
				Topic:     td.Topic,
				Partition: pd.Partition,
				Replicas:  slices.Clone(pd.Replicas),
				ISR:       slices.Clone(pd.ISR),
			})
		}
	}
	snap.TotalBrokers = len(known)

	return snap, nil
}

// ListTopics returns the sorted names of all non-internal topics.
func (s *Session) ListTopics(ctx context.Context) ([]string, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return nil, err
	}

	details, err := admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	s.topics = details

	names := make([]string, 0, len(details))
	for name := range details {
		if IsInternalTopic(name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// TopicPartitions returns the sorted partition ids of topic.
func (s *Session) TopicPartitions(ctx context.Context, topic string) ([]int32, error) {
	td, ok := s.topics[topic]
	if !ok {
		admin, err := s.adminClient(ctx)
		if err != nil {
			return nil, err
		}
		details, err := admin.ListTopics(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to describe topic %s: %w", topic, err)
		}
		if td, ok = details[topic]; !ok {
			return nil, fmt.Errorf("topic %s not found", topic)
		}
	}
	if td.Err != nil {
		return nil, fmt.Errorf("failed to describe topic %s: %w", topic, td.Err)
	}
	return td.Partitions.Numbers(), nil
}

// ListGroups returns the sorted ids of all consumer groups.
func (s *Session) ListGroups(ctx context.Context) ([]string, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := admin.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumer groups: %w", err)
	}
	return groups.Groups(), nil
}

// FetchGroupOffsets returns every committed offset of group. Commit times are
// not filled in; see CommitTimestamps.
func (s *Session) FetchGroupOffsets(ctx context.Context, group string) (GroupOffsets, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return GroupOffsets{}, err
	}

	resp, err := admin.FetchOffsets(ctx, group)
	if err != nil {
		return GroupOffsets{}, fmt.Errorf("failed to fetch offsets for group %s: %w", group, err)
	}

	out := GroupOffsets{GroupID: group, Offsets: make(map[TopicPartition]CommittedOffset)}
	for topic, partitions := range resp {
		for partition, or := range partitions {
			if or.Err != nil {
				return GroupOffsets{}, fmt.Errorf("failed to fetch offset for %s/%d in group %s: %w", topic, partition, group, or.Err)
			}
			out.Offsets[TopicPartition{Topic: topic, Partition: partition}] = CommittedOffset{Offset: or.At}
		}
	}
	return out, nil
}

// CommitTimestamps returns when group last committed each partition, read
// from the broker's commit log.
func (s *Session) CommitTimestamps(ctx context.Context, group string) (map[TopicPartition]time.Time, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return nil, err
	}
	consumer, err := s.consumerClient(ctx)
	if err != nil {
		return nil, err
	}
	return s.commits.timestamps(ctx, admin, consumer, group, s.idleTimeout())
}

// EndOffsets returns the high watermark of every partition of topics.
// Partitions the broker could not answer for are left out.
func (s *Session) EndOffsets(ctx context.Context, topics ...string) (EndOffsets, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return nil, err
	}
	listed, err := admin.ListEndOffsets(ctx, topics...)
	if err != nil {
		return nil, fmt.Errorf("failed to list end offsets: %w", err)
	}
	return EndOffsets(flattenListed(listed)), nil
}

// StartOffsets returns the earliest retained offset of every partition of
// topics.
func (s *Session) StartOffsets(ctx context.Context, topics ...string) (StartOffsets, error) {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return nil, err
	}
	listed, err := admin.ListStartOffsets(ctx, topics...)
	if err != nil {
		return nil, fmt.Errorf("failed to list start offsets: %w", err)
	}
	return StartOffsets(flattenListed(listed)), nil
}

func flattenListed(listed kadm.ListedOffsets) map[TopicPartition]int64 {
	out := make(map[TopicPartition]int64)
	listed.Each(func(lo kadm.ListedOffset) {
		if lo.Err != nil {
			slog.Debug("partition offset unavailable", "topic", lo.Topic, "partition", lo.Partition, "error", lo.Err)
			return
		}
		out[TopicPartition{Topic: lo.Topic, Partition: lo.Partition}] = lo.Offset
	})
	return out
}

// LastRecordTimestamp reads the record just below end on tp. ok is false when
// nothing arrived within the peek timeout.
func (s *Session) LastRecordTimestamp(ctx context.Context, tp TopicPartition, end int64) (time.Time, bool, error) {
	if end <= 0 {
		return time.Time{}, false, nil
	}
	consumer, err := s.consumerClient(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	return peekLast(ctx, consumer, tp, end, s.idleTimeout())
}

// DeleteGroup deletes a consumer group.
func (s *Session) DeleteGroup(ctx context.Context, group string) error {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return err
	}
	resp, err := admin.DeleteGroup(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to delete group %s: %w", group, err)
	}
	if resp.Err != nil {
		return fmt.Errorf("failed to delete group %s: %w", group, resp.Err)
	}
	return nil
}

// DeleteTopic deletes a topic.
func (s *Session) DeleteTopic(ctx context.Context, topic string) error {
	admin, err := s.adminClient(ctx)
	if err != nil {
		return err
	}
	resps, err := admin.DeleteTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topic, err)
	}
	resp, ok := resps[topic]
	if !ok {
		return fmt.Errorf("failed to delete topic %s: no response from broker", topic)
	}
	if resp.Err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (s *Session) idleTimeout() time.Duration {
	if s.cfg.PeekTimeout > 0 {
		return s.cfg.PeekTimeout
	}
	return 5 * time.Second
}

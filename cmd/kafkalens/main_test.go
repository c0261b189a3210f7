package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/config"
	"github.com/ppiankov/kafkalens/internal/kafka"
	"github.com/ppiankov/kafkalens/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	app       *app
	cluster   *testutil.FakeCluster
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	connected *config.Config
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()

	h := &harness{
		cluster: testutil.NewFakeCluster(),
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	h.app = newApp(strings.NewReader(stdin), h.stdout, h.stderr)
	h.app.now = func() time.Time { return fixedNow }
	h.app.connect = func(_ context.Context, cfg *config.Config) (session, error) {
		h.connected = cfg
		return h.cluster, nil
	}
	return h
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func (h *harness) run(t *testing.T, args ...string) int {
	t.Helper()
	return h.app.run(context.Background(), append(args, "--no-color"))
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.Snapshot = kafka.ClusterSnapshot{
		ClusterID:     "lkc-1",
		TotalBrokers:  3,
		OnlineBrokers: 3,
		ControllerID:  2,
		Partitions: []kafka.PartitionReplicas{
			{Topic: "orders", Partition: 0, Replicas: []int32{1, 2, 3}, ISR: []int32{1, 2, 3}},
		},
	}

	code := h.run(t, "health-check", "--config", writeConfig(t, "bootstrap_servers: localhost:9092\n"))
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, h.stderr.String())
	}

	out := h.stdout.String()
	for _, want := range []string{"Cluster Health Report:", "Brokers Found: 3/3 Online", "Controller ID: 2", "Cluster is healthy!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !h.cluster.Closed {
		t.Errorf("expected session to be closed")
	}
}

func TestHealthCheckFetchErrorIsReported(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.Err = errors.New("metadata request failed")

	code := h.run(t, "health-check", "--config", writeConfig(t, ""))
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(h.stdout.String(), "Error during health check: metadata request failed") {
		t.Fatalf("unexpected output:\n%s", h.stdout.String())
	}
}

func TestScanConnectionLossExitsFailure(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.Err = fmt.Errorf("%w: broker went away", kafka.ErrConnect)

	code := h.run(t, "health-check", "--config", writeConfig(t, ""))
	if code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(h.stderr.String(), "Error:") {
		t.Fatalf("expected error on stderr, got %q", h.stderr.String())
	}
}

func TestCheckLagThreshold(t *testing.T) {
	setup := func() *harness {
		h := newHarness(t, "")
		tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
		h.cluster.Topics["orders"] = []int32{0}
		h.cluster.Groups["billing"] = map[kafka.TopicPartition]int64{tp: 100}
		h.cluster.Ends[tp] = 600
		return h
	}
	cfgPath := writeConfig(t, "lag_threshold: 1000\n")

	t.Run("config threshold", func(t *testing.T) {
		h := setup()
		if code := h.run(t, "check-lag", "--config", cfgPath); code != ExitSuccess {
			t.Fatalf("exit code = %d", code)
		}
		out := h.stdout.String()
		if strings.Contains(out, "(HIGH LAG)") {
			t.Fatalf("did not expect high lag with threshold 1000:\n%s", out)
		}
		if !strings.Contains(out, "billing: 500 messages") {
			t.Fatalf("missing lag line:\n%s", out)
		}
	})

	t.Run("flag overrides config", func(t *testing.T) {
		h := setup()
		if code := h.run(t, "check-lag", "--config", cfgPath, "--threshold", "100"); code != ExitSuccess {
			t.Fatalf("exit code = %d", code)
		}
		out := h.stdout.String()
		if !strings.Contains(out, "(HIGH LAG)") || !strings.Contains(out, "1 consumer group(s) have high lag!") {
			t.Fatalf("expected high lag:\n%s", out)
		}
	})

	t.Run("negative flag", func(t *testing.T) {
		h := setup()
		if code := h.run(t, "check-lag", "--config", cfgPath, "--threshold", "-1"); code != ExitFailure {
			t.Fatalf("exit code = %d, want %d", code, ExitFailure)
		}
		if h.connected != nil {
			t.Fatalf("should not connect with an invalid flag")
		}
	})
}

func TestStaleConsumersJSON(t *testing.T) {
	h := newHarness(t, "")
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	h.cluster.Groups["abandoned"] = map[kafka.TopicPartition]int64{}
	h.cluster.Groups["active"] = map[kafka.TopicPartition]int64{tp: 10}
	h.cluster.CommitTimes["active"] = map[kafka.TopicPartition]time.Time{tp: fixedNow.Add(-time.Hour)}

	code := h.run(t, "find", "stale-consumers", "--config", writeConfig(t, ""), "--output", "json", "--days", "7")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, h.stderr.String())
	}

	var report analyzer.StaleReport
	if err := json.Unmarshal(h.stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, h.stdout.String())
	}
	if report.ThresholdDays != 7 || report.GroupsChecked != 2 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if len(report.Groups) != 1 || report.Groups[0].GroupID != "abandoned" || report.Groups[0].Reason != analyzer.ReasonNoCommits {
		t.Fatalf("unexpected stale groups: %+v", report.Groups)
	}
}

func TestUnusedTopics(t *testing.T) {
	h := newHarness(t, "")
	old := kafka.TopicPartition{Topic: "legacy", Partition: 0}
	h.cluster.Topics["legacy"] = []int32{0}
	h.cluster.Ends[old] = 50
	h.cluster.Starts[old] = 0
	h.cluster.LastRecords[old] = fixedNow.Add(-120 * 24 * time.Hour)

	code := h.run(t, "find", "unused-topics", "--config", writeConfig(t, "unused_topic_days: 90\n"))
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, h.stderr.String())
	}
	out := h.stdout.String()
	if !strings.Contains(out, "Found 1 unused topics:") || !strings.Contains(out, "legacy: 120.0 days old") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestDeleteGroupPrompt(t *testing.T) {
	cases := []struct {
		name        string
		stdin       string
		args        []string
		wantDeleted bool
		wantOutput  string
	}{
		{name: "confirmed", stdin: "y\n", wantDeleted: true, wantOutput: "Successfully deleted consumer group 'billing'."},
		{name: "upper case", stdin: "Y\n", wantDeleted: true, wantOutput: "Successfully deleted consumer group 'billing'."},
		{name: "empty answer", stdin: "\n", wantOutput: "Operation cancelled."},
		{name: "no input", stdin: "", wantOutput: "Operation cancelled."},
		{name: "yes flag", args: []string{"--yes"}, wantDeleted: true, wantOutput: "Successfully deleted"},
	}

	cfgPath := writeConfig(t, "")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.stdin)
			args := append([]string{"delete", "group", "billing", "--config", cfgPath}, tc.args...)

			if code := h.run(t, args...); code != ExitSuccess {
				t.Fatalf("exit code = %d, stderr = %s", code, h.stderr.String())
			}
			if got := len(h.cluster.DeletedGroup) == 1; got != tc.wantDeleted {
				t.Fatalf("deleted = %v, want %v", h.cluster.DeletedGroup, tc.wantDeleted)
			}
			if !strings.Contains(h.stdout.String(), tc.wantOutput) {
				t.Fatalf("output missing %q:\n%s", tc.wantOutput, h.stdout.String())
			}
		})
	}
}

func TestDeletePromptGoesToStderr(t *testing.T) {
	h := newHarness(t, "n\n")

	if code := h.run(t, "delete", "topic", "orders", "--config", writeConfig(t, "")); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(h.stderr.String(), "Are you sure you want to delete topic 'orders'? This cannot be undone. [y/N]: ") {
		t.Fatalf("unexpected prompt: %q", h.stderr.String())
	}
	if len(h.cluster.DeletedTopic) != 0 {
		t.Fatalf("topic should not be deleted: %v", h.cluster.DeletedTopic)
	}
}

func TestDeleteTopicFailureExitsSuccess(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.DeleteErr = errors.New("TOPIC_AUTHORIZATION_FAILED")

	if code := h.run(t, "delete", "topic", "orders", "--yes", "--config", writeConfig(t, "")); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(h.stdout.String(), "Error deleting topic: TOPIC_AUTHORIZATION_FAILED") {
		t.Fatalf("unexpected output:\n%s", h.stdout.String())
	}
}

func TestDeleteRequiresName(t *testing.T) {
	h := newHarness(t, "")
	if code := h.run(t, "delete", "group", "--config", writeConfig(t, "")); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if h.connected != nil {
		t.Fatalf("should not connect without a name")
	}
}

func TestMissingConfigFile(t *testing.T) {
	h := newHarness(t, "")
	missing := filepath.Join(t.TempDir(), "absent.yml")

	if code := h.run(t, "health-check", "--config", missing); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(h.stderr.String(), "not found") {
		t.Fatalf("unexpected stderr: %q", h.stderr.String())
	}
	if h.connected != nil {
		t.Fatalf("should not connect without config")
	}
}

func TestConnectError(t *testing.T) {
	h := newHarness(t, "")
	h.app.connect = func(context.Context, *config.Config) (session, error) {
		return nil, fmt.Errorf("%w: dial tcp 127.0.0.1:9092: connection refused", kafka.ErrConnect)
	}

	if code := h.run(t, "check-lag", "--config", writeConfig(t, "")); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(h.stderr.String(), "connection refused") {
		t.Fatalf("unexpected stderr: %q", h.stderr.String())
	}
	if h.stdout.Len() != 0 {
		t.Fatalf("expected no report output, got %q", h.stdout.String())
	}
}

func TestCancelledContext(t *testing.T) {
	h := newHarness(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.cluster.Err = context.Canceled

	code := h.app.run(ctx, []string{"health-check", "--no-color", "--config", writeConfig(t, "")})
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(h.stdout.String(), cancelledMessage) {
		t.Fatalf("expected cancellation message, got %q", h.stdout.String())
	}
	if h.stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %q", h.stderr.String())
	}
}

func TestCancelledContextJSONKeepsStdoutClean(t *testing.T) {
	h := newHarness(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.cluster.Err = context.Canceled

	code := h.app.run(ctx, []string{"check-lag", "--no-color", "--output", "json", "--config", writeConfig(t, "")})
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, ExitSuccess)
	}
	if h.stdout.Len() != 0 {
		t.Fatalf("expected empty stdout, got %q", h.stdout.String())
	}
	if !strings.Contains(h.stderr.String(), cancelledMessage) {
		t.Fatalf("expected cancellation message on stderr, got %q", h.stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t, "")
	if code := h.run(t, "version"); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(h.stdout.String(), "version: "+Version) {
		t.Fatalf("unexpected output: %q", h.stdout.String())
	}
}

func TestKafkaConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
bootstrap_servers: "b1:9096,b2:9096"
security_protocol: SASL_SSL
sasl_mechanism: SCRAM-SHA-512
sasl_plain_username: svc
sasl_plain_password: secret
ssl_cafile: /etc/ca.pem
timeout: 3s
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	kcfg := kafkaConfig(cfg)
	if len(kcfg.BootstrapServers) != 2 || kcfg.BootstrapServers[1] != "b2:9096" {
		t.Fatalf("unexpected servers: %v", kcfg.BootstrapServers)
	}
	if !kcfg.TLSEnabled || kcfg.TLSCAFile != "/etc/ca.pem" {
		t.Fatalf("expected TLS with CA file, got %+v", kcfg)
	}
	if kcfg.AuthMechanism != "SCRAM-SHA-512" || kcfg.Username != "svc" || kcfg.Password != "secret" {
		t.Fatalf("unexpected SASL settings: %+v", kcfg)
	}
	if kcfg.QueryTimeout != 3*time.Second {
		t.Fatalf("QueryTimeout = %v, want 3s", kcfg.QueryTimeout)
	}
}

func TestKafkaConfigPlaintextIgnoresTLSFiles(t *testing.T) {
	cfg, err := config.Parse([]byte("ssl_cafile: /etc/ca.pem\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	kcfg := kafkaConfig(cfg)
	if kcfg.TLSEnabled || kcfg.TLSCAFile != "" || kcfg.AuthMechanism != "" {
		t.Fatalf("expected plaintext settings, got %+v", kcfg)
	}
}

func TestTestConnection(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.Snapshot = kafka.ClusterSnapshot{ClusterID: "lkc-1", TotalBrokers: 3, OnlineBrokers: 3}

	if code := h.run(t, "test-connection", "--config", writeConfig(t, "")); code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, h.stderr.String())
	}
	out := h.stdout.String()
	for _, want := range []string{"Testing connection...", "Admin client: connected", "Brokers: 3", "Consumer client: connected", "Connection successful!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if h.cluster.ConsumerPings != 1 {
		t.Errorf("consumer pings = %d, want 1", h.cluster.ConsumerPings)
	}
	if !h.cluster.Closed {
		t.Errorf("expected session to be closed")
	}
}

func TestTestConnectionConsumerFailure(t *testing.T) {
	h := newHarness(t, "")
	h.cluster.Snapshot = kafka.ClusterSnapshot{TotalBrokers: 1, OnlineBrokers: 1}
	h.cluster.PingErr = fmt.Errorf("%w: consumer: %w", kafka.ErrConnect, context.DeadlineExceeded)

	if code := h.run(t, "test-connection", "--config", writeConfig(t, "")); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "Consumer client: failed") || !strings.Contains(out, "Hint: the cluster did not answer in time") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if h.stderr.Len() != 0 {
		t.Fatalf("failure should only be rendered once, stderr = %q", h.stderr.String())
	}
}

func TestTestConnectionUnreachable(t *testing.T) {
	h := newHarness(t, "")
	h.app.connect = func(context.Context, *config.Config) (session, error) {
		return nil, fmt.Errorf("%w: dial tcp 127.0.0.1:9092: connection refused", kafka.ErrConnect)
	}

	code := h.run(t, "test-connection", "--config", writeConfig(t, ""), "--output", "json")
	if code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}

	var report analyzer.ConnectionReport
	if err := json.Unmarshal(h.stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, h.stdout.String())
	}
	if report.AdminConnected || !strings.Contains(report.Error, "connection refused") || report.Hint != analyzer.DefaultConnectionHint {
		t.Fatalf("unexpected report: %+v", report)
	}
}

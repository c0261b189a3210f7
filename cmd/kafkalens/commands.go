package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/config"
	"github.com/ppiankov/kafkalens/internal/guard"
	"github.com/ppiankov/kafkalens/internal/kafka"
	"github.com/ppiankov/kafkalens/internal/logging"
	"github.com/ppiankov/kafkalens/internal/reporter"
)

func (a *app) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kafkalens",
		Short:         "kafkalens inspects and maintains Kafka clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(a.opts.verbose)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", config.DefaultFileName, "Path to configuration file")
	flags.StringVar(&a.opts.output, "output", reporter.FormatText, "Output format (text|json)")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(a.newTestConnectionCmd())
	cmd.AddCommand(a.newHealthCheckCmd())
	cmd.AddCommand(a.newCheckLagCmd())
	cmd.AddCommand(a.newFindCmd())
	cmd.AddCommand(a.newDeleteCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "version: %s\n", Version); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "commit:  %s\n", GitCommit); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "date:    %s\n", BuildDate); err != nil {
				return err
			}
			return nil
		},
	}
}

// invocation is what every cluster command needs once flags are parsed.
type invocation struct {
	cfg     *config.Config
	rep     reporter.Reporter
	cluster session
}

// prepare loads the config and builds the reporter.
func (a *app) prepare(cmd *cobra.Command) (*config.Config, reporter.Reporter, error) {
	cfg, err := loadConfig(a.opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	rep, err := reporter.New(a.opts.output, cmd.OutOrStdout(), !a.opts.noColor)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rep, nil
}

// begin prepares and connects. The caller must Close the returned cluster.
func (a *app) begin(cmd *cobra.Command) (*invocation, error) {
	cfg, rep, err := a.prepare(cmd)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cluster, err := a.connect(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("session ready", "duration", time.Since(start))

	return &invocation{cfg: cfg, rep: rep, cluster: cluster}, nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file '%s' not found: %w", path, err)
		}
		return nil, err
	}
	slog.Debug("loaded config", "path", path)
	return cfg, nil
}

// scanFailed renders a scan-level error. Cancellation and lost connections
// are returned so the process exits accordingly; anything else is reported
// and the command succeeds.
func scanFailed(ctx context.Context, rep reporter.Reporter, action string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, kafka.ErrConnect) {
		return err
	}
	return rep.Failure(ctx, action, err)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}

	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return false
	}

	return flag.Changed
}

func (a *app) newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify the admin and consumer connections to the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rep, err := a.prepare(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := rep.Begin(ctx, "Testing connection"); err != nil {
				return err
			}

			cluster, err := a.connect(ctx, cfg)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if rerr := rep.Connection(ctx, analyzer.ConnectionFailed(err)); rerr != nil {
					return rerr
				}
				return reportedError{err: err}
			}
			defer cluster.Close()

			report, err := analyzer.CheckConnection(ctx, cluster)
			if err != nil {
				return err
			}
			if err := rep.Connection(ctx, report); err != nil {
				return err
			}
			if !report.OK() {
				return reportedError{err: errors.New(report.Error)}
			}
			return nil
		},
	}
}

func (a *app) newHealthCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health-check",
		Short: "Check broker availability and partition replication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.begin(cmd)
			if err != nil {
				return err
			}
			defer inv.cluster.Close()

			ctx := cmd.Context()
			if err := inv.rep.Begin(ctx, "Checking cluster health"); err != nil {
				return err
			}
			report, err := analyzer.CheckHealth(ctx, inv.cluster)
			if err != nil {
				return scanFailed(ctx, inv.rep, "health check", err)
			}
			return inv.rep.Health(ctx, report)
		},
	}
}

func (a *app) newCheckLagCmd() *cobra.Command {
	var threshold int64

	cmd := &cobra.Command{
		Use:   "check-lag",
		Short: "Report consumer group lag against a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagChanged(cmd, "threshold") && threshold < 0 {
				return errors.New("--threshold must not be negative")
			}

			inv, err := a.begin(cmd)
			if err != nil {
				return err
			}
			defer inv.cluster.Close()

			if !flagChanged(cmd, "threshold") {
				threshold = *inv.cfg.LagThreshold
			}

			ctx := cmd.Context()
			if err := inv.rep.Begin(ctx, "Checking consumer group lag"); err != nil {
				return err
			}
			start := time.Now()
			report, err := analyzer.ScanLag(ctx, inv.cluster, threshold)
			if err != nil {
				return scanFailed(ctx, inv.rep, "lag check", err)
			}
			slog.Debug("lag check completed", "groups", len(report.Groups), "warnings", len(report.Warnings), "duration", time.Since(start))
			return inv.rep.Lag(ctx, report)
		},
	}

	cmd.Flags().Int64Var(&threshold, "threshold", config.DefaultLagThreshold, "Lag above which a group is flagged")
	return cmd
}

func (a *app) newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find unused resources",
	}
	cmd.AddCommand(a.newStaleConsumersCmd())
	cmd.AddCommand(a.newUnusedTopicsCmd())
	return cmd
}

func (a *app) newStaleConsumersCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stale-consumers",
		Short: "Find consumer groups that have not committed recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagChanged(cmd, "days") && days < 0 {
				return errors.New("--days must not be negative")
			}

			inv, err := a.begin(cmd)
			if err != nil {
				return err
			}
			defer inv.cluster.Close()

			if !flagChanged(cmd, "days") {
				days = *inv.cfg.StaleDays
			}

			ctx := cmd.Context()
			if err := inv.rep.Begin(ctx, "Finding stale consumer groups"); err != nil {
				return err
			}
			start := time.Now()
			report, err := analyzer.ScanStale(ctx, inv.cluster, days, a.now())
			if err != nil {
				return scanFailed(ctx, inv.rep, "stale consumer search", err)
			}
			slog.Debug("stale consumer search completed", "checked", report.GroupsChecked, "stale", len(report.Groups), "duration", time.Since(start))
			return inv.rep.Stale(ctx, report)
		},
	}

	cmd.Flags().IntVar(&days, "days", config.DefaultStaleConsumerDays, "Days without a commit before a group is stale")
	return cmd
}

func (a *app) newUnusedTopicsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "unused-topics",
		Short: "Find topics that have not received records recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagChanged(cmd, "days") && days < 0 {
				return errors.New("--days must not be negative")
			}

			inv, err := a.begin(cmd)
			if err != nil {
				return err
			}
			defer inv.cluster.Close()

			if !flagChanged(cmd, "days") {
				days = *inv.cfg.UnusedDays
			}

			ctx := cmd.Context()
			if err := inv.rep.Begin(ctx, "Finding unused topics"); err != nil {
				return err
			}
			start := time.Now()
			report, err := analyzer.ScanUnused(ctx, inv.cluster, days, a.now())
			if err != nil {
				return scanFailed(ctx, inv.rep, "unused topic search", err)
			}
			slog.Debug("unused topic search completed", "checked", report.TopicsChecked, "unused", len(report.Topics), "empty", len(report.Empty), "duration", time.Since(start))
			return inv.rep.Unused(ctx, report)
		},
	}

	cmd.Flags().IntVar(&days, "days", config.DefaultUnusedTopicDays, "Days without new records before a topic is unused")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete resources",
	}
	cmd.AddCommand(a.newDeleteResourceCmd("group", guard.KindGroup, "Delete a consumer group"))
	cmd.AddCommand(a.newDeleteResourceCmd("topic", guard.KindTopic, "Delete a topic"))
	return cmd
}

func (a *app) newDeleteResourceCmd(use string, kind guard.Kind, short string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.begin(cmd)
			if err != nil {
				return err
			}
			defer inv.cluster.Close()

			var confirmer guard.Confirmer = guard.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
			if yes {
				confirmer = guard.AlwaysConfirm{}
			}

			ctx := cmd.Context()
			d, err := guard.Run(ctx, kind, args[0], confirmer, inv.cluster)
			if err != nil {
				return err
			}
			return inv.rep.Deletion(ctx, d)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

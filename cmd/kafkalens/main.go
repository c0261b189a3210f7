package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ppiankov/kafkalens/internal/analyzer"
	"github.com/ppiankov/kafkalens/internal/config"
	"github.com/ppiankov/kafkalens/internal/kafka"
	"github.com/ppiankov/kafkalens/internal/logging"
	"github.com/ppiankov/kafkalens/internal/reporter"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Exit codes. Interrupts and declined deletions are not failures.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

const cancelledMessage = "Operation cancelled by user."

func main() {
	logging.Init(false)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdin, os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// session is a connected cluster that must be closed when the command ends.
type session interface {
	analyzer.Cluster
	PingConsumer(ctx context.Context) error
	Close()
}

// reportedError is a failure the reporter has already rendered. It still
// fails the process.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

type globalOptions struct {
	configPath string
	output     string
	noColor    bool
	verbose    bool
}

type app struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
	connect func(ctx context.Context, cfg *config.Config) (session, error)
	opts    globalOptions
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
		connect: openSession,
	}
}

func (a *app) run(ctx context.Context, args []string) int {
	cmd := a.newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	a.renderExit(err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitSuccess
	default:
		return ExitFailure
	}
}

func (a *app) renderExit(err error) {
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		w := a.stdout
		if strings.EqualFold(strings.TrimSpace(a.opts.output), reporter.FormatJSON) {
			w = a.stderr
		}
		s := reporter.NewStyles(w, !a.opts.noColor)
		_, _ = fmt.Fprintf(w, "\n%s\n", s.Warn(cancelledMessage))
		return
	}

	slog.Debug("command failed", "error", err)
	var reported reportedError
	if errors.As(err, &reported) {
		return
	}
	s := reporter.NewStyles(a.stderr, !a.opts.noColor)
	_, _ = fmt.Fprintf(a.stderr, "%s\n", s.Bad("Error: "+err.Error()))
	if hint := kafka.Hint(err); hint != "" {
		_, _ = fmt.Fprintf(a.stderr, "Hint: %s\n", hint)
	}
}

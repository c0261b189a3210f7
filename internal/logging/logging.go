package logging

import (
	"io"
	"log/slog"
	"os"

	chlog "github.com/charmbracelet/log"
)

// Init configures the process-wide default slog logger.
func Init(verbose bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose)))
}

// NewHandler returns a charmbracelet handler writing to w. Warnings and errors
// only, unless verbose.
func NewHandler(w io.Writer, verbose bool) *chlog.Logger {
	level := chlog.WarnLevel
	if verbose {
		level = chlog.DebugLevel
	}

	l := chlog.NewWithOptions(w, chlog.Options{
		Level:           level,
		ReportTimestamp: verbose,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
	return l
}

// Package logging defines a Logger interface (a logrus.FieldLogger plus a
// pipe-backed io.Writer) used for tunnel diagnostics: every host's stderr
// stream is drained into a Logger, line-prefixed with the host identity.
package logging

import (
	"bufio"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface every package in this module accepts: a
// logrus.FieldLogger (so WithField/WithError/Info/Warn/... all work) plus
// a Writer() escape hatch for callers that need an io.Writer instead of
// structured calls.
type Logger interface {
	logrus.FieldLogger
	Writer() *io.PipeWriter
}

// entryLogger wraps a *logrus.Entry (or Logger) to satisfy Writer() via
// logrus's built-in WriterLevel.
type entryLogger struct {
	*logrus.Entry
}

func (l entryLogger) Writer() *io.PipeWriter {
	return l.Entry.WriterLevel(logrus.InfoLevel)
}

// New wraps a *logrus.Logger as a Logger.
func New(base *logrus.Logger) Logger {
	return entryLogger{Entry: logrus.NewEntry(base)}
}

// NewHostPrefixWriter returns an io.Writer that logs each line written to
// it through log, tagged with the host field, for draining a tunnel
// child's stderr. It is line-buffered: a write containing no
// newline is held until one arrives or the writer is closed by its
// caller reaching EOF on the source (io.Copy stops calling Write at EOF,
// so a trailing partial line is flushed by the underlying bufio.Scanner
// only once more data or a final newline arrives — acceptable here since
// stderr diagnostics are logged best-effort, not byte-exact).
func NewHostPrefixWriter(log Logger, host string) io.Writer {
	pr, pw := io.Pipe()
	scoped := log.WithField("host", host)
	go func() {
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			scoped.Info(scanner.Text())
		}
	}()
	return pw
}

package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Severity classifies a diagnostic line the way clinical programmers expect
// to read a processing log.
type Severity string

const (
	SeverityNote    Severity = "NOTE"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// sink is the shared destination behind every component logger: the live
// stream, an optional append-only run log file, and the severity counters.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	file   *os.File
	debug  bool
	counts map[Severity]int
}

// Logger emits severity-prefixed diagnostics for one component. Derive
// per-component loggers with For; they share the sink and its counters.
type Logger struct {
	s         *sink
	component string
}

// New creates the root logger. logFile may be empty; when set, every line is
// also appended there so a run leaves an auditable trace next to its output.
func New(out io.Writer, logFile string, debug bool) (*Logger, error) {
	s := &sink{
		out:    out,
		debug:  debug,
		counts: make(map[Severity]int),
	}

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		s.file = file
	}

	return &Logger{s: s, component: "deid"}, nil
}

// For returns a logger that prefixes its lines with the given component name.
func (l *Logger) For(component string) *Logger {
	return &Logger{s: l.s, component: component}
}

func (l *Logger) emit(sev Severity, format string, args ...any) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	l.s.counts[sev]++
	line := fmt.Sprintf("%s: (%s) %s\n", sev, l.component, fmt.Sprintf(format, args...))
	fmt.Fprint(l.s.out, line)
	if l.s.file != nil {
		l.s.file.WriteString(line)
	}
}

// Notef records an informational diagnostic.
func (l *Logger) Notef(format string, args ...any) {
	l.emit(SeverityNote, format, args...)
}

// Warnf records a non-fatal condition.
func (l *Logger) Warnf(format string, args ...any) {
	l.emit(SeverityWarning, format, args...)
}

// Errorf records a fatal condition. The caller decides when to abort.
func (l *Logger) Errorf(format string, args ...any) {
	l.emit(SeverityError, format, args...)
}

// Debugf records a trace line, emitted only when debug mode is on. Debug
// lines are not counted.
func (l *Logger) Debugf(format string, args ...any) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if !l.s.debug {
		return
	}
	line := fmt.Sprintf("DEBUG: (%s) %s\n", l.component, fmt.Sprintf(format, args...))
	fmt.Fprint(l.s.out, line)
	if l.s.file != nil {
		l.s.file.WriteString(line)
	}
}

// Counts returns how many notes, warnings, and errors have been emitted.
func (l *Logger) Counts() (notes, warnings, errors int) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.counts[SeverityNote], l.s.counts[SeverityWarning], l.s.counts[SeverityError]
}

// Close closes the run log file, if any.
func (l *Logger) Close() error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if l.s.file != nil {
		err := l.s.file.Close()
		l.s.file = nil
		return err
	}
	return nil
}

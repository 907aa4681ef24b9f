package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger receives formatted debug lines.
type Logger interface {
	Printf(format string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Printf(string, ...any) {}

// NullLogger discards everything.
func NullLogger() Logger { return nullLogger{} }

// WriterLogger writes timestamped lines to an io.Writer as they arrive.
type WriterLogger struct {
	dest   io.Writer
	prefix string
	lock   sync.Mutex
}

func NewWriterLogger(dest io.Writer, prefix string) *WriterLogger {
	return &WriterLogger{dest: dest, prefix: prefix}
}

func (l *WriterLogger) Printf(format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	writeLine(l.dest, l.prefix, time.Now(), fmt.Sprintf(format, args...))
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger buffers lines so a test case's request and response can
// be shown only when the case needs explaining.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(format string, args ...any) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append(CapturedOutput(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Messages returns the captured text without timestamps.
func (output CapturedOutput) Messages() []string {
	ret := make([]string, len(output))
	for i, m := range output {
		ret[i] = m.Message
	}
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		writeLine(dest, prefix, m.Time, m.Message)
	}
}

// writeLine prefixes every line of a multi-line message.
func writeLine(dest io.Writer, prefix string, t time.Time, message string) {
	stamp := t.Format(timestampFormat)
	for _, line := range strings.Split(strings.TrimRight(message, "\n"), "\n") {
		fmt.Fprintf(dest, "%s[%s] %s\n", prefix, stamp, line)
	}
}

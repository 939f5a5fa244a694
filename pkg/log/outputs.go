package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes log entries to stdout, or stderr for errors when configured.
type ConsoleOutput struct {
	mu            sync.Mutex
	useStderr     bool
	errorToStderr bool
	writer        io.Writer
}

// ConsoleOutputOption is a function that configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// NewConsoleOutput creates a console output.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{}
	for _, option := range options {
		option(o)
	}
	return o
}

// WithStderr sends every entry to stderr.
func WithStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.useStderr = true
	}
}

// WithErrorToStderr sends error and fatal entries to stderr.
func WithErrorToStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorToStderr = true
	}
}

// WithCustomWriter redirects all entries to w.
func WithCustomWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.writer = w
	}
}

// Write writes the log entry to the console.
func (o *ConsoleOutput) Write(entry *Entry, formattedEntry []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var w io.Writer = os.Stdout
	switch {
	case o.writer != nil:
		w = o.writer
	case o.useStderr:
		w = os.Stderr
	case o.errorToStderr && entry.Level >= ErrorLevel:
		w = os.Stderr
	}

	_, err := w.Write(formattedEntry)
	return err
}

// Close implements the Output interface but does nothing for console output.
func (o *ConsoleOutput) Close() error {
	return nil
}

// NullOutput discards all entries.
type NullOutput struct{}

// NewNullOutput creates an output that discards every entry.
func NewNullOutput() *NullOutput { return &NullOutput{} }

func (o *NullOutput) Write(*Entry, []byte) error { return nil }
func (o *NullOutput) Close() error               { return nil }

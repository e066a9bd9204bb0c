// Package capture implements the per-execution output capture resource.
//
// While capturing, writes to the capture's stdout land in a bounded buffer
// that is attached to the test result. Reading the capture's stdin means the
// test went interactive; capture is then disabled for the rest of the scope
// and further output goes straight to the real stdout.
package capture

import (
	"io"
	"sync"
)

const defaultMaxBytes = 5 * 1024 * 1024

// Option configures a Capture.
type Option func(*Capture)

// WithMaxBytes bounds the captured output; older bytes are dropped first.
func WithMaxBytes(n int) Option {
	return func(c *Capture) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// OnInteractive registers fn to run once when stdin is first read while
// capturing.
func OnInteractive(fn func()) Option {
	return func(c *Capture) {
		c.onInteractive = fn
	}
}

// Capture is the output capture of one test execution.
type Capture struct {
	passthrough   io.Writer
	stdin         io.Reader
	maxBytes      int
	onInteractive func()

	mu        sync.Mutex
	capturing bool
	closed    bool
	contents  []byte
	truncated bool
	warnings  []string
	disable   sync.Once
}

// New creates a capture. When enabled is false every write passes through
// from the start.
func New(enabled bool, passthrough io.Writer, stdin io.Reader, opts ...Option) *Capture {
	if passthrough == nil {
		passthrough = io.Discard
	}
	c := &Capture{
		passthrough: passthrough,
		stdin:       stdin,
		capturing:   enabled,
		maxBytes:    defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Write implements io.Writer for the capture's stdout.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	if !c.capturing || c.closed {
		c.mu.Unlock()
		return c.passthrough.Write(p)
	}
	defer c.mu.Unlock()

	c.contents = append(c.contents, p...)
	if len(c.contents) > c.maxBytes {
		c.contents = c.contents[len(c.contents)-c.maxBytes:]
		c.truncated = true
	}
	return len(p), nil
}

// Stdout is the sink test bodies and fixtures write to.
func (c *Capture) Stdout() io.Writer {
	return c
}

// Stdin returns a reader over the real standard input. The first read
// disables capture.
func (c *Capture) Stdin() io.Reader {
	return stdinReader{c}
}

type stdinReader struct {
	c *Capture
}

func (r stdinReader) Read(p []byte) (int, error) {
	r.c.Disable()
	if r.c.stdin == nil {
		return 0, io.EOF
	}
	return r.c.stdin.Read(p)
}

// Disable stops capturing for the rest of the scope. It cannot be undone.
func (c *Capture) Disable() {
	c.disable.Do(func() {
		c.mu.Lock()
		wasCapturing := c.capturing && !c.closed
		c.capturing = false
		c.mu.Unlock()

		if wasCapturing && c.onInteractive != nil {
			c.onInteractive()
		}
	})
}

// Warn records a warning raised during the execution.
func (c *Capture) Warn(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, message)
}

// Warnings returns the recorded warnings in order.
func (c *Capture) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Output returns the captured output.
func (c *Capture) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.contents)
}

// Truncated reports whether older output was dropped.
func (c *Capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Close ends the scope. Later writes pass through.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Package stdio provides the stdio transport adapter: newline-delimited
// JSON-RPC on stdin/stdout, one implicit session per process.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/internal/port/inbound"
	"github.com/fortemi/matric-mcp/internal/service"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// StdioTransport is the inbound adapter serving one local client over
// stdin/stdout. The trust boundary is the process invocation itself; the
// backend credential is the process-wide API key, so no per-request
// authentication happens here.
type StdioTransport struct {
	dispatcher *service.Dispatcher
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer

	writeMu sync.Mutex
	wg      sync.WaitGroup

	// sess is the process's single session, created on the first
	// initialize request. Only the read loop goroutine assigns it.
	sess *session.Session
}

// Option is a functional option for configuring StdioTransport.
type Option func(*StdioTransport)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *StdioTransport) {
		t.logger = logger
	}
}

// WithIO overrides stdin/stdout. Used by tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(t *StdioTransport) {
		t.in = in
		t.out = out
	}
}

// NewStdioTransport creates a stdio transport over the given dispatcher.
func NewStdioTransport(dispatcher *service.Dispatcher, opts ...Option) *StdioTransport {
	t := &StdioTransport{
		dispatcher: dispatcher,
		logger:     slog.Default(),
		in:         os.Stdin,
		out:        os.Stdout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start reads newline-delimited JSON-RPC messages until EOF or context
// cancellation. Dispatch is concurrent so one slow backend call does not
// stall the read loop; stdout writes are serialized.
func (t *StdioTransport) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 256*1024) // 256KB initial
	scanner.Buffer(buf, 1024*1024)   // 1MB max

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		raw := append([]byte(nil), line...)

		var probe struct {
			Method string          `json:"method"`
			ID     json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			t.writeLine(mcp.NewError(nil, mcp.CodeParseError, "Parse error"))
			continue
		}

		if t.sess == nil {
			if probe.Method != "initialize" {
				if probe.ID != nil {
					t.writeLine(mcp.NewError(probe.ID, mcp.CodeNotInitialized, "Server not initialized"))
				}
				continue
			}

			sess, err := t.dispatcher.Sessions().Create(ctx, session.TransportStdio, nil)
			if err != nil {
				t.logger.Error("failed to create session", "error", err)
				t.writeLine(mcp.NewError(probe.ID, mcp.CodeInternal, "Internal error"))
				continue
			}
			t.sess = sess
			t.logger.Info("session created", "session_id", sess.ID, "transport", sess.Transport)

			// Handled inline so the session exists before any later line
			// is dispatched.
			if resp := t.dispatcher.Dispatch(ctx, sess, raw); resp != nil {
				t.writeLine(resp)
			}
			continue
		}

		t.wg.Add(1)
		go func(sess *session.Session, raw []byte) {
			defer t.wg.Done()
			if resp := t.dispatcher.Dispatch(ctx, sess, raw); resp != nil {
				t.writeLine(resp)
			}
		}(t.sess, raw)
	}

	t.wg.Wait()

	if t.sess != nil {
		_ = t.dispatcher.Sessions().Terminate(context.WithoutCancel(ctx), t.sess.ID)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// writeLine writes one JSON message followed by a newline. Serialized so
// concurrent dispatches never interleave bytes on stdout.
func (t *StdioTransport) writeLine(msg []byte) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, _ = t.out.Write(msg)
	_, _ = t.out.Write([]byte("\n"))
}

// Close gracefully shuts down the transport. Outstanding dispatches are
// awaited by Start; nothing else to release.
func (t *StdioTransport) Close() error {
	return nil
}

// Compile-time check that StdioTransport implements the inbound port.
var _ inbound.Transport = (*StdioTransport)(nil)

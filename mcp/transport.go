package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Transport moves raw JSON-RPC frames between client and server.
type Transport interface {
	// Receive blocks until the next frame arrives. io.EOF means the peer is gone.
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, msg *Message) error
	Close() error
}

// StdioTransport frames messages as one JSON document per line.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

var _ Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a line-delimited transport over r and w.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// Receive returns the next non-blank line. Context cancellation is not observed
// while blocked on the reader.
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := t.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Send writes msg followed by a newline.
func (t *StdioTransport) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	body = append(body, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(body); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close is a no-op; the process owns stdin and stdout.
func (t *StdioTransport) Close() error {
	return nil
}

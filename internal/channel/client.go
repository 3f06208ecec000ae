package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/mpetters/framepipe/internal/codec"
	"github.com/mpetters/framepipe/internal/frame"
)

// Client drives the parent side of a framed duplex channel: one request
// frame out, one response frame back, strictly alternating.
type Client struct {
	mu     sync.Mutex
	reader *frame.Reader
	out    *bufio.Writer
	limits frame.Limits
}

// NewClient wraps the parent ends of a duplex byte stream. The Client
// assumes exclusive ownership of both; interleaved writers would corrupt
// framing.
func NewClient(in io.Reader, out io.Writer, limits frame.Limits) *Client {
	return &Client{
		reader: frame.NewReader(in, limits),
		out:    bufio.NewWriter(out),
		limits: limits,
	}
}

// Call sends one Message and blocks for the single response frame.
func (c *Client) Call(ctx context.Context, msg codec.Message) (codec.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := codec.Encode(msg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := frame.WriteFrame(c.out, payload, c.limits); err != nil {
		return nil, fmt.Errorf("channel: write request: %w", err)
	}
	if err := c.out.Flush(); err != nil {
		return nil, fmt.Errorf("channel: flush request: %w", err)
	}

	n, err := c.reader.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("channel: read response length: %w", err)
	}
	resp, err := c.reader.ReadPayload(n)
	if err != nil {
		return nil, fmt.Errorf("channel: read response payload: %w", err)
	}
	return codec.Decode(resp)
}

// SendEmpty writes a zero-length frame, the sentinel that asks the peer to
// respond once and end its session.
func (c *Client) SendEmpty() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := frame.WriteFrame(c.out, nil, c.limits); err != nil {
		return fmt.Errorf("channel: write empty frame: %w", err)
	}
	return c.out.Flush()
}

// ReadResponse blocks for one response frame without sending a request,
// pairing with SendEmpty.
func (c *Client) ReadResponse() (codec.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.reader.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("channel: read response length: %w", err)
	}
	resp, err := c.reader.ReadPayload(n)
	if err != nil {
		return nil, fmt.Errorf("channel: read response payload: %w", err)
	}
	return codec.Decode(resp)
}

// Spawn starts a subprocess speaking the framing protocol on its
// stdin/stdout and returns a Client wired to it. The child's stderr passes
// through to this process so its diagnostics stay off the frame stream.
// Supervision and restart are the caller's concern.
func Spawn(ctx context.Context, limits frame.Limits, name string, args ...string) (*Client, *exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("channel: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, nil, fmt.Errorf("channel: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, nil, fmt.Errorf("channel: start %s: %w", name, err)
	}
	return NewClient(stdout, stdin, limits), cmd, nil
}

package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpetters/framepipe/internal/codec"
	"github.com/mpetters/framepipe/internal/frame"
	"github.com/mpetters/framepipe/internal/observability"
)

var (
	ErrHandlerFailed = errors.New("channel: handler failed")
	ErrWriteFailed   = errors.New("channel: response write failed")
)

// Handler is the injected business logic: one decoded Message in, one
// Message out. The channel never inspects either side.
type Handler func(ctx context.Context, msg codec.Message) (codec.Message, error)

// State is the session lifecycle position.
type State int

const (
	StateAwaitingLength State = iota
	StateAwaitingPayload
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingLength:
		return "awaiting_length"
	case StateAwaitingPayload:
		return "awaiting_payload"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config controls one channel session.
type Config struct {
	// Name labels logs and metrics for this session.
	Name string
	// Limits bounds inbound and outbound payload sizes.
	Limits frame.Limits
	// RespondOnHandlerError turns handler failures into an error-shaped
	// response Message instead of ending the session. Off by default:
	// the transport has no recovery strategy of its own.
	RespondOnHandlerError bool
	Logger                zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Name:   "stdio",
		Limits: frame.DefaultLimits(),
		Logger: zerolog.Nop(),
	}
}

// Channel runs one framed duplex session. It exclusively owns its streams
// for the whole session; concurrent access would corrupt framing.
type Channel struct {
	cfg     Config
	reader  *frame.Reader
	out     *bufio.Writer
	handler Handler
	state   State
	log     zerolog.Logger
}

func New(in io.Reader, out io.Writer, handler Handler, cfg Config) *Channel {
	if cfg.Name == "" {
		cfg.Name = "stdio"
	}
	return &Channel{
		cfg:     cfg,
		reader:  frame.NewReader(in, cfg.Limits),
		out:     bufio.NewWriter(out),
		handler: handler,
		state:   StateAwaitingLength,
		log:     cfg.Logger.With().Str("session", cfg.Name).Logger(),
	}
}

// State reports the session's current lifecycle position.
func (c *Channel) State() State {
	return c.state
}

// Run drives the session until the input stream closes, the empty-payload
// sentinel fires, ctx is canceled, or a fatal error ends it.
//
// Each iteration reads one request frame, decodes it, dispatches the
// handler, and writes one flushed response frame before reading again, so
// responses are never pipelined or reordered. A zero-length payload emits a
// single diagnostic response and then ends the session, matching the
// reference behavior; see the package notes if continuous operation is
// wanted instead.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.state = StateTerminated
			c.endSession("canceled")
			return err
		}

		c.state = StateAwaitingLength
		n, err := c.reader.ReadLength()
		if errors.Is(err, io.EOF) {
			c.state = StateTerminated
			c.log.Debug().Msg("input stream closed")
			c.endSession("clean_eof")
			return nil
		}
		if err != nil {
			return c.fail("read length", err)
		}

		c.state = StateAwaitingPayload
		if n == 0 {
			return c.respondSentinel()
		}

		payload, err := c.reader.ReadPayload(n)
		if err != nil {
			return c.fail("read payload", err)
		}
		observability.RecordFrameRead(c.cfg.Name, len(payload))

		msg, err := codec.Decode(payload)
		if err != nil {
			return c.fail("decode payload", err)
		}

		start := time.Now()
		resp, herr := c.handler(ctx, msg)
		observability.RecordHandlerDispatch(c.cfg.Name, time.Since(start))
		if herr != nil {
			if !c.cfg.RespondOnHandlerError {
				return c.failWith("dispatch", fmt.Errorf("%w: %v", ErrHandlerFailed, herr))
			}
			c.log.Warn().Err(herr).Msg("handler failed, responding with error shape")
			resp = map[string]any{"error": herr.Error()}
		}

		encoded, err := codec.Encode(resp)
		if err != nil {
			return c.fail("encode response", err)
		}
		if err := c.writeResponse(encoded); err != nil {
			return c.failWith("write response", err)
		}
	}
}

// respondSentinel handles the zero-length payload: one well-formed
// diagnostic frame, then termination.
func (c *Channel) respondSentinel() error {
	observability.RecordFrameRead(c.cfg.Name, 0)
	payload, err := codec.EncodeSentinel()
	if err != nil {
		return c.fail("encode sentinel", err)
	}
	if err := c.writeResponse(payload); err != nil {
		return c.failWith("write sentinel", err)
	}
	c.state = StateTerminated
	c.log.Info().Msg("empty payload received, ending session")
	c.endSession("empty_payload")
	return nil
}

// writeResponse frames, writes and flushes one response so the parent
// observes it without delay.
func (c *Channel) writeResponse(payload []byte) error {
	if err := frame.WriteFrame(c.out, payload, c.cfg.Limits); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := c.out.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	observability.RecordFrameWritten(c.cfg.Name, len(payload))
	return nil
}

func (c *Channel) fail(op string, err error) error {
	return c.failWith(op, fmt.Errorf("channel: %s: %w", op, err))
}

// failWith is fail for errors that already carry the channel namespace.
func (c *Channel) failWith(op string, err error) error {
	c.state = StateFailed
	c.log.Error().Err(err).Str("op", op).Msg("session failed")
	c.endSession("error")
	return err
}

func (c *Channel) endSession(outcome string) {
	observability.RecordSessionEnd(c.cfg.Name, outcome)
}

package channel

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/mpetters/framepipe/internal/codec"
	"github.com/mpetters/framepipe/internal/frame"
	"github.com/mpetters/framepipe/internal/testutil/testlog"
)

func mustRequestFrame(t *testing.T, msg codec.Message) []byte {
	t.Helper()
	payload, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf, payload, frame.DefaultLimits()); err != nil {
		t.Fatalf("frame request: %v", err)
	}
	return buf.Bytes()
}

func decodeResponses(t *testing.T, wire []byte) []codec.Message {
	t.Helper()
	buf := bytes.NewReader(wire)
	var out []codec.Message
	for buf.Len() > 0 {
		payload, err := frame.ReadFrame(buf, frame.DefaultLimits())
		if err != nil {
			t.Fatalf("read response frame: %v", err)
		}
		msg, err := codec.Decode(payload)
		if err != nil {
			t.Fatalf("decode response: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		t.Fatalf("not an integer: %T", v)
		return 0
	}
}

func TestEchoRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := bytes.NewReader(mustRequestFrame(t, map[string]any{"a": 1}))
	var out bytes.Buffer

	ch := New(in, &out, EchoHandler, DefaultConfig())
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ch.State() != StateTerminated {
		t.Fatalf("unexpected state: %v", ch.State())
	}

	responses := decodeResponses(t, out.Bytes())
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	m, ok := responses[0].(map[string]any)
	if !ok {
		t.Fatalf("unexpected response type: %T", responses[0])
	}
	if got := asInt64(t, m["a"]); got != 1 {
		t.Fatalf("echo mismatch: %d", got)
	}
}

func TestSequencingPreservesOrder(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	in.Write(mustRequestFrame(t, map[string]any{"seq": "first"}))
	in.Write(mustRequestFrame(t, map[string]any{"seq": "second"}))
	var out bytes.Buffer

	ch := New(&in, &out, EchoHandler, DefaultConfig())
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out.Bytes())
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	first := responses[0].(map[string]any)
	second := responses[1].(map[string]any)
	if first["seq"] != "first" || second["seq"] != "second" {
		t.Fatalf("responses reordered: %v then %v", first["seq"], second["seq"])
	}
}

func TestCleanEOFTerminatesSilently(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	ch := New(bytes.NewReader(nil), &out, EchoHandler, DefaultConfig())
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ch.State() != StateTerminated {
		t.Fatalf("unexpected state: %v", ch.State())
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestEmptyPayloadSentinelEndsSession(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	var zero [frame.PrefixLen]byte
	in.Write(zero[:])
	// A frame after the sentinel must never be consumed or answered.
	in.Write(mustRequestFrame(t, map[string]any{"after": true}))
	var out bytes.Buffer

	ch := New(&in, &out, EchoHandler, DefaultConfig())
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ch.State() != StateTerminated {
		t.Fatalf("unexpected state: %v", ch.State())
	}

	responses := decodeResponses(t, out.Bytes())
	if len(responses) != 1 {
		t.Fatalf("expected exactly 1 response, got %d", len(responses))
	}
	if responses[0] != codec.SentinelEmptyPayload {
		t.Fatalf("unexpected sentinel response: %v", responses[0])
	}
	if in.Len() == 0 {
		t.Fatalf("session read past the sentinel frame")
	}
}

func TestTruncatedPayloadIsFatalWithNoOutput(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	var prefix [frame.PrefixLen]byte
	binary.LittleEndian.PutUint32(prefix[:], 10)
	in.Write(prefix[:])
	in.Write([]byte{1, 2, 3})
	var out bytes.Buffer

	ch := New(&in, &out, EchoHandler, DefaultConfig())
	err := ch.Run(context.Background())
	if !errors.Is(err, frame.ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
	if ch.State() != StateFailed {
		t.Fatalf("unexpected state: %v", ch.State())
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestTruncatedPrefixIsFatal(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	ch := New(bytes.NewReader([]byte{9, 0}), &out, EchoHandler, DefaultConfig())
	err := ch.Run(context.Background())
	if !errors.Is(err, frame.ErrTruncatedLength) {
		t.Fatalf("expected ErrTruncatedLength, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestDecodeFailureIsFatalWithNoOutput(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	// 0xc1 is never valid msgpack.
	if err := frame.WriteFrame(&in, []byte{0xc1}, frame.DefaultLimits()); err != nil {
		t.Fatalf("frame garbage: %v", err)
	}
	var out bytes.Buffer

	ch := New(&in, &out, EchoHandler, DefaultConfig())
	err := ch.Run(context.Background())
	if !errors.Is(err, codec.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestHandlerFailureIsFatalByDefault(t *testing.T) {
	testlog.Start(t)
	in := bytes.NewReader(mustRequestFrame(t, "boom"))
	var out bytes.Buffer

	failing := func(context.Context, codec.Message) (codec.Message, error) {
		return nil, fmt.Errorf("business logic exploded")
	}
	ch := New(in, &out, failing, DefaultConfig())
	err := ch.Run(context.Background())
	if !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestHandlerFailureRespondPolicyContinues(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	in.Write(mustRequestFrame(t, "boom"))
	in.Write(mustRequestFrame(t, "fine"))
	var out bytes.Buffer

	handler := func(_ context.Context, msg codec.Message) (codec.Message, error) {
		if msg == "boom" {
			return nil, fmt.Errorf("rejected")
		}
		return msg, nil
	}
	cfg := DefaultConfig()
	cfg.RespondOnHandlerError = true

	ch := New(&in, &out, handler, cfg)
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out.Bytes())
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	first, ok := responses[0].(map[string]any)
	if !ok || first["error"] != "rejected" {
		t.Fatalf("unexpected error response: %v", responses[0])
	}
	if responses[1] != "fine" {
		t.Fatalf("session did not continue after handler error: %v", responses[1])
	}
}

func TestCanceledContextStopsSession(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	in := bytes.NewReader(mustRequestFrame(t, "pending"))
	ch := New(in, &out, EchoHandler, DefaultConfig())
	if err := ch.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

func TestOversizedDeclaredLengthIsRejectedBeforeRead(t *testing.T) {
	testlog.Start(t)
	var in bytes.Buffer
	var prefix [frame.PrefixLen]byte
	binary.LittleEndian.PutUint32(prefix[:], 1<<20)
	in.Write(prefix[:])
	var out bytes.Buffer

	cfg := DefaultConfig()
	cfg.Limits = frame.Limits{MaxPayloadBytes: 1024}
	ch := New(&in, &out, EchoHandler, cfg)
	err := ch.Run(context.Background())
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", out.Len())
	}
}

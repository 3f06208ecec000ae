package codec

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := map[string]any{
		"symbol": "BTCUSDT",
		"ready":  true,
		"note":   nil,
	}
	b, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("unexpected decoded type: %T", out)
	}
	if got["symbol"] != "BTCUSDT" || got["ready"] != true || got["note"] != nil {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeIsStableForIdenticalBytes(t *testing.T) {
	b, err := Encode([]any{"a", "b", "c"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	first, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical bytes decoded differently: %v vs %v", first, second)
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSentinelDecodesToFixedString(t *testing.T) {
	b, err := EncodeSentinel()
	if err != nil {
		t.Fatalf("encode sentinel: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode sentinel: %v", err)
	}
	if out != SentinelEmptyPayload {
		t.Fatalf("unexpected sentinel: %v", out)
	}
}

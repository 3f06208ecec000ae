// Package frame owns the wire framing primitives.
//
// Ownership boundary:
// - length-prefix encode/decode
// - payload size limits
//
// One frame is a 4-byte unsigned little-endian length followed by exactly
// that many payload bytes. A zero length is a valid empty payload, not
// end-of-stream.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const PrefixLen = 4

var (
	ErrTruncatedLength  = errors.New("frame: truncated length prefix")
	ErrTruncatedPayload = errors.New("frame: truncated payload")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	// MaxPayloadBytes caps a single payload. Zero means unlimited,
	// which keeps the full uint32 length range usable.
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 0}
}

func (l Limits) allows(n uint64) bool {
	return l.MaxPayloadBytes == 0 || n <= l.MaxPayloadBytes
}

// Reader decodes frames from a stream in two phases, length then payload,
// so callers can track which phase a failure belongs to.
type Reader struct {
	r      io.Reader
	limits Limits
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{r: r, limits: limits}
}

// ReadLength reads the 4-byte prefix and returns the declared payload
// length. A clean end-of-stream before any prefix byte returns io.EOF;
// closure mid-prefix returns ErrTruncatedLength. Oversized declarations are
// rejected here, before any payload allocation.
func (rd *Reader) ReadLength() (uint32, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(rd.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrTruncatedLength
		}
		return 0, err
	}

	n := binary.LittleEndian.Uint32(prefix[:])
	if !rd.limits.allows(uint64(n)) {
		return 0, ErrPayloadTooLarge
	}
	return n, nil
}

// ReadPayload reads exactly n payload bytes. Closure before n bytes arrive
// returns ErrTruncatedPayload; nothing beyond n is ever read.
func (rd *Reader) ReadPayload(n uint32) ([]byte, error) {
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(rd.r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncatedPayload
			}
			return nil, err
		}
	}
	return payload, nil
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	rd := NewReader(r, limits)
	n, err := rd.ReadLength()
	if err != nil {
		return nil, err
	}
	return rd.ReadPayload(n)
}

// WriteFrame writes payload to w as one frame. The prefix is only written
// once the payload has passed the size check, so a rejected frame leaves the
// stream untouched.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	n := uint64(len(payload))
	if !limits.allows(n) || n > uint64(^uint32(0)) {
		return ErrPayloadTooLarge
	}

	var prefix [PrefixLen]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(n))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if n > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

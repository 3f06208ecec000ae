package channel

import (
	"context"

	"github.com/mpetters/framepipe/internal/codec"
)

// EchoHandler returns its input unchanged. It is the placeholder wired into
// the binary until real payload logic replaces it, and the pass-through used
// by transport tests.
func EchoHandler(_ context.Context, msg codec.Message) (codec.Message, error) {
	return msg, nil
}

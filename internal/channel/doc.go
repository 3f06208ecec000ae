// Package channel owns the framed duplex session loop.
//
// Ownership boundary:
// - session state machine and read/dispatch/respond loop
// - handler contract
// - parent-side client over a spawned child's pipes
//
// The channel is a symmetric, synchronous request/response transport over
// two byte streams. Payload semantics belong entirely to the injected
// handler; the channel only frames, decodes, dispatches and re-frames.
package channel

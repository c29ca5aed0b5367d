package comm

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit the 2-byte length field.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrShortRead indicates the stream supplied fewer bytes than announced.
	ErrShortRead = errors.New("short read")
	// ErrNoData is returned by non-blocking streams when nothing is buffered.
	ErrNoData = errors.New("no data available")
	// ErrChecksum indicates the CRC of a received frame mismatches.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknownType indicates the frame carries an unknown packet type.
	ErrUnknownType = errors.New("unknown packet type")
	// ErrTimeout indicates a frame was not completed in time.
	ErrTimeout = errors.New("frame timeout")
	// ErrNack indicates the peer rejected the request.
	ErrNack = errors.New("nack")
	// ErrNoReply indicates no reply received from peer.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrClosed indicates the stream has been closed.
	ErrClosed = errors.New("closed")
)

// ShortReadError reports a Receive which couldn't read all announced bytes.
type ShortReadError struct {
	Requested int
	Delivered int
	Err       error
}

// Error implements error.
func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read: %d of %d bytes: %v", e.Delivered, e.Requested, e.Err)
}

// Unwrap returns the underlying stream error.
func (e *ShortReadError) Unwrap() error {
	if e.Err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return e.Err
}

// Is makes errors.Is(err, ErrShortRead) true.
func (e *ShortReadError) Is(target error) bool {
	return target == ErrShortRead
}

// ChecksumError wraps the expected and actual CRC of a rejected frame.
type ChecksumError struct {
	ID       PacketID
	Expected uint16
	Actual   uint16
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("packet %d: checksum mismatch: expected %04x, got %04x", e.ID, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrChecksum) true.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

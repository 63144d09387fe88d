// Package stream recovers Content-Length-framed JSON-RPC messages out of a
// byte stream that can deliver them in arbitrary chunks.
//
// It does not read from any particular source itself; callers hand it a
// ReadFunc, which lets the same splitter serve a real file descriptor, a
// test fixture, or anything else that behaves like a system read(2) call.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ReadFunc mirrors a system read(2) call: it fills buf with whatever bytes
// are immediately available and returns how many. Zero means a clean end
// of stream; a negative value means the underlying source failed.
type ReadFunc func(buf []byte) int

// Processor is called once per complete frame recovered from the stream.
// header and body are views into the splitter's internal buffer and are
// only valid for the duration of the call -- callers that need to keep the
// data must copy it.
type Processor func(header, body []byte)

// Distinguished PullFrom outcomes. Use errors.Is to test for these; the
// concrete error may carry additional context via %w wrapping.
var (
	// ErrFailedPrecondition means PullFrom was called before a Processor
	// was registered with SetProcessor.
	ErrFailedPrecondition = errors.New("stream: message processor not set")

	// ErrUnavailable is returned unwrapped as the "good" non-ok outcome:
	// the stream ended cleanly with no partial frame left pending. A
	// failed read (negative return) is reported as ErrUnavailable wrapped
	// with the value read returned.
	ErrUnavailable = errors.New("stream: unavailable (end of stream)")

	// ErrDataLoss means the stream ended while a partial frame was still
	// buffered -- the session was truncated mid-message.
	ErrDataLoss = errors.New("stream: data loss (truncated frame)")

	// ErrInvalidHeader means a header block was complete but did not carry
	// a parseable Content-Length. This is not recoverable: the byte offset
	// of the next frame can no longer be trusted.
	ErrInvalidHeader = errors.New("stream: invalid header")
)

const (
	endHeaderMarker     = "\r\n\r\n"
	contentLengthHeader = "Content-Length: "
	headerContextLimit  = 256
)

// Splitter recovers complete (header, body) frames from a read buffer of
// fixed capacity. One call to PullFrom performs exactly one read.
type Splitter struct {
	buf     []byte
	pending []byte // view into buf, the unconsumed tail kept from the last pull

	processor Processor

	statsTotalBytesRead uint64
	statsLargestBody    uint64
}

// New returns a Splitter backed by a read buffer of readBufferSize bytes.
// The buffer must be larger than the largest frame expected on the wire;
// the reference deployment uses 1 MiB.
func New(readBufferSize int) *Splitter {
	return &Splitter{buf: make([]byte, readBufferSize)}
}

// SetProcessor registers the callback invoked for each complete frame.
// Must be called before the first PullFrom.
func (s *Splitter) SetProcessor(p Processor) {
	s.processor = p
}

// StatTotalBytesRead returns the cumulative number of bytes read so far.
func (s *Splitter) StatTotalBytesRead() uint64 { return s.statsTotalBytesRead }

// StatLargestBodySeen returns the size in bytes of the largest body seen
// so far.
func (s *Splitter) StatLargestBodySeen() uint64 { return s.statsLargestBody }

// PullFrom calls read exactly once, then extracts and dispatches every
// complete frame now available in the internal buffer, retaining any
// incomplete tail for the next call.
//
// Returns nil as long as the stream can keep being pulled from. A non-nil
// error is one of ErrFailedPrecondition (no processor set), ErrUnavailable
// (clean end, or wrapped on a failed read), ErrDataLoss (truncated), or
// ErrInvalidHeader (corrupted framing, not retryable).
func (s *Splitter) PullFrom(read ReadFunc) error {
	if s.processor == nil {
		return ErrFailedPrecondition
	}
	return s.readInput(read)
}

func (s *Splitter) readInput(read ReadFunc) error {
	begin := 0
	if len(s.pending) > 0 {
		// The leftover lives in the same buffer we're about to read into,
		// so shift it down to the start first.
		begin = copy(s.buf, s.pending)
	}

	n := read(s.buf[begin:])
	if n <= 0 {
		if n < 0 {
			return fmt.Errorf("%w: read() returned %d", ErrUnavailable, n)
		}
		if begin == 0 {
			return ErrUnavailable
		}
		return fmt.Errorf("%w: %d bytes still pending", ErrDataLoss, begin)
	}
	s.statsTotalBytesRead += uint64(n)

	data := s.buf[:begin+n]
	remaining, err := s.processContained(data)
	if err != nil {
		return err
	}
	s.pending = remaining
	return nil
}

// processContained dispatches every complete frame found in data and
// returns whatever incomplete tail remains.
func (s *Splitter) processContained(data []byte) ([]byte, error) {
	for len(data) > 0 {
		bodyOffset, bodySize, err := parseHeader(data)
		if err != nil {
			limit := len(data)
			if limit > headerContextLimit {
				limit = headerContextLimit
			}
			return nil, fmt.Errorf("%w: %v. %q", ErrInvalidHeader, err, data[:limit])
		}
		if bodyOffset < 0 {
			return data, nil // header incomplete, wait for more bytes
		}

		messageSize := bodyOffset + bodySize
		if messageSize > len(data) {
			return data, nil // body incomplete, wait for more bytes
		}

		header := data[:bodyOffset]
		body := data[bodyOffset:messageSize]
		s.processor(header, body)
		if size := uint64(len(body)); size > s.statsLargestBody {
			s.statsLargestBody = size
		}

		data = data[messageSize:]
	}
	return data, nil
}

// parseHeader searches data for the header terminator and a Content-Length
// line. It returns bodyOffset == -1 (no error) if the header is not yet
// complete, or a non-nil error if the header is complete but malformed.
//
// The Content-Length search does not verify it starts at the beginning of
// a line -- a documented shortcut carried over from the reference
// implementation.
func parseHeader(data []byte) (bodyOffset, bodySize int, err error) {
	end := bytes.Index(data, []byte(endHeaderMarker))
	if end < 0 {
		return -1, 0, nil
	}

	headerContent := data[:end]
	found := bytes.Index(headerContent, []byte(contentLengthHeader))
	if found < 0 {
		return 0, 0, fmt.Errorf("no %q header", strings.TrimSpace(contentLengthHeader))
	}

	value := headerContent[found+len(contentLengthHeader):]
	if nl := bytes.IndexAny(value, "\r\n"); nl >= 0 {
		value = value[:nl]
	}
	size, convErr := strconv.Atoi(strings.TrimSpace(string(value)))
	if convErr != nil {
		return 0, 0, fmt.Errorf("malformed Content-Length value %q: %w", value, convErr)
	}

	return end + len(endHeaderMarker), size, nil
}

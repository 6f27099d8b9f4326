package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes bounds a single buffered line.
const DefaultMaxLineBytes = 4 << 20

// ErrLineTooLong is returned when a line exceeds the decoder's limit
// without a newline.
var ErrLineTooLong = errors.New("sse: line too long")

// Decoder reads events from an io.Reader. The sequence is lazy and can be
// consumed only once.
type Decoder struct {
	r       io.Reader
	parser  Parser
	queue   []Event
	chunk   []byte
	eof     bool
	maxLine int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       r,
		chunk:   make([]byte, 4096),
		maxLine: DefaultMaxLineBytes,
	}
}

// SetMaxLineBytes overrides DefaultMaxLineBytes.
func (d *Decoder) SetMaxLineBytes(n int) {
	if n > 0 {
		d.maxLine = n
	}
}

// Next returns the next event. It returns io.EOF once the stream has
// ended, either at end of input or after the [DONE] terminator has been
// delivered.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	for {
		if len(d.queue) > 0 {
			ev := d.queue[0]
			d.queue = d.queue[1:]
			return ev, nil
		}
		if d.eof || d.parser.Terminated() {
			return Event{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		default:
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.queue = append(d.queue, d.parser.Feed(d.chunk[:n])...)
			if d.parser.Pending() > d.maxLine {
				return Event{}, ErrLineTooLong
			}
		}
		if errors.Is(err, io.EOF) {
			d.eof = true
			d.queue = append(d.queue, d.parser.Flush()...)
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("sse: read stream: %w", err)
		}
	}
}

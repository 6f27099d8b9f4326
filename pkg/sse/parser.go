// Package sse decodes server-sent event streams into data frames.
//
// Only "data:" lines carry payloads. Other fields (event, id, retry),
// comments and blank lines are ignored. The literal payload [DONE] ends
// the stream.
package sse

import "bytes"

// DoneMarker is the payload that terminates a stream.
const DoneMarker = "[DONE]"

var dataPrefix = []byte("data:")

// Event is one decoded frame: either a data payload or the terminator.
type Event struct {
	// Data is the raw payload following "data:", without the optional
	// single leading space. Nil when Done is set.
	Data []byte

	// Done marks the [DONE] terminator.
	Done bool
}

// Parser is the incremental line splitter behind Decoder. It holds the
// bytes of the current incomplete line between calls to Feed and stops
// producing events once a terminator was seen.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	buf        []byte
	terminated bool
}

// Feed appends chunk to the pending buffer and returns the events from
// every line completed by it. A trailing partial line stays buffered.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.terminated {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var events []Event
	cursor := 0
	for cursor < len(p.buf) {
		i := bytes.IndexByte(p.buf[cursor:], '\n')
		if i < 0 {
			break
		}
		line := p.buf[cursor : cursor+i]
		cursor += i + 1

		if ev, ok := p.line(line); ok {
			events = append(events, ev)
			if ev.Done {
				break
			}
		}
	}

	if p.terminated {
		p.buf = nil
		return events
	}

	// Retain the leftover at the front of the buffer.
	n := copy(p.buf, p.buf[cursor:])
	p.buf = p.buf[:n]
	return events
}

// Flush processes the leftover line when the stream ends without a
// final newline.
func (p *Parser) Flush() []Event {
	if p.terminated || len(p.buf) == 0 {
		p.buf = nil
		return nil
	}
	line := p.buf
	p.buf = nil
	if ev, ok := p.line(line); ok {
		return []Event{ev}
	}
	return nil
}

// Terminated reports whether the [DONE] marker has been seen.
func (p *Parser) Terminated() bool { return p.terminated }

// Pending returns the number of buffered bytes of the incomplete line.
func (p *Parser) Pending() int { return len(p.buf) }

func (p *Parser) line(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}

	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return Event{}, false
	}

	if string(bytes.TrimSpace(payload)) == DoneMarker {
		p.terminated = true
		return Event{Done: true}, true
	}

	// The buffer is reused on the next Feed.
	data := make([]byte, len(payload))
	copy(data, payload)
	return Event{Data: data}, true
}

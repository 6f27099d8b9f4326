package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

const finishFrame = "data: {\"event\":\"workflow.finish\",\"data\":{\"output\":\"X\"}}\n\n"

func TestParser_EverySplitPoint(t *testing.T) {
	for split := 0; split <= len(finishFrame); split++ {
		var p Parser
		events := p.Feed([]byte(finishFrame[:split]))
		events = append(events, p.Feed([]byte(finishFrame[split:]))...)
		events = append(events, p.Flush()...)

		if len(events) != 1 {
			t.Fatalf("split %d: expected 1 event, got %d", split, len(events))
		}

		var payload struct {
			Data struct {
				Output string `json:"output"`
			} `json:"data"`
		}
		if err := json.Unmarshal(events[0].Data, &payload); err != nil {
			t.Fatalf("split %d: payload is not JSON: %v", split, err)
		}
		if payload.Data.Output != "X" {
			t.Errorf("split %d: output = %q, want X", split, payload.Data.Output)
		}
	}
}

func TestParser_IgnoresNonDataLines(t *testing.T) {
	stream := ": keep-alive\n" +
		"id: 1\n" +
		"event: Message\n" +
		"retry: 1000\n" +
		"data:\n" +
		"data: {\"a\":1}\r\n" +
		"\r\n" +
		"data:{\"b\":2}\n"

	var p Parser
	got := p.Feed([]byte(stream))

	want := []Event{
		{Data: []byte(`{"a":1}`)},
		{Data: []byte(`{"b":2}`)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_DoneTerminates(t *testing.T) {
	var p Parser
	got := p.Feed([]byte("data: {\"a\":1}\ndata: [DONE]\ndata: {\"late\":true}\n"))

	want := []Event{{Data: []byte(`{"a":1}`)}, {Done: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if !p.Terminated() {
		t.Error("expected parser to be terminated")
	}
	if more := p.Feed([]byte("data: {\"x\":1}\n")); len(more) != 0 {
		t.Errorf("expected no events after terminator, got %d", len(more))
	}
}

func TestParser_FlushLeftover(t *testing.T) {
	var p Parser
	if events := p.Feed([]byte("data: {\"tail\":true}")); len(events) != 0 {
		t.Fatalf("partial line must not be emitted, got %d events", len(events))
	}
	if p.Pending() == 0 {
		t.Fatal("expected partial line to be retained")
	}

	events := p.Flush()
	if len(events) != 1 || string(events[0].Data) != `{"tail":true}` {
		t.Errorf("unexpected flush result: %+v", events)
	}
	if p.Pending() != 0 {
		t.Errorf("expected empty buffer after flush, got %d bytes", p.Pending())
	}
}

func TestDecoder_OneByteReads(t *testing.T) {
	stream := "data: not-json\n\n" + finishFrame + "data: [DONE]\n\n"
	dec := NewDecoder(iotest.OneByteReader(strings.NewReader(stream)))

	var events []Event
	for {
		ev, err := dec.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if string(events[0].Data) != "not-json" {
		t.Errorf("first event = %q, want raw bad frame", events[0].Data)
	}
	if !events[2].Done {
		t.Error("expected final event to be the terminator")
	}
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	dec := NewDecoder(iotest.ErrReader(boom))

	_, err := dec.Next(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestDecoder_LineTooLong(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: " + strings.Repeat("x", 64)))
	dec.SetMaxLineBytes(16)

	_, err := dec.Next(context.Background())
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("expected ErrLineTooLong, got %v", err)
	}
}

func TestDecoder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec := NewDecoder(strings.NewReader(finishFrame))
	if _, err := dec.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

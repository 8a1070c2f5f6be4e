package events

import (
	"encoding/json"
	"testing"
)

func TestEventJSONShape(t *testing.T) {
	b, err := json.Marshal(Final("hello there"))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(b) != `{"type":"final","text":"hello there"}` {
		t.Fatalf("unexpected final payload: %s", b)
	}

	b, err = json.Marshal(Audio([]byte{0x01, 0x02}))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(b) != `{"type":"audio","b64":"AQI="}` {
		t.Fatalf("unexpected audio payload: %s", b)
	}
}

func TestEventOmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(Event{Type: TypeAck, Text: "Message received"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(b) != `{"type":"ack","text":"Message received"}` {
		t.Fatalf("expected b64 omitted: %s", b)
	}
}

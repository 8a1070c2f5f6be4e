// Package events defines the closed set of outbound events a session
// sends to its client.
package events

import "encoding/base64"

type Type string

const (
	TypeFinal     Type = "final"
	TypeAssistant Type = "assistant"
	TypeAudio     Type = "audio"
	TypeAck       Type = "ack"
	TypeError     Type = "error"
)

// Event is one JSON-tagged message on the client connection. Text carries
// transcript/assistant/ack/error payloads; B64 carries synthesized audio.
type Event struct {
	Type Type   `json:"type"`
	Text string `json:"text,omitempty"`
	B64  string `json:"b64,omitempty"`
}

func Final(text string) Event {
	return Event{Type: TypeFinal, Text: text}
}

func Assistant(text string) Event {
	return Event{Type: TypeAssistant, Text: text}
}

func Audio(payload []byte) Event {
	return Event{Type: TypeAudio, B64: base64.StdEncoding.EncodeToString(payload)}
}

func Ack(text string) Event {
	return Event{Type: TypeAck, Text: text}
}

func Error(text string) Event {
	return Event{Type: TypeError, Text: text}
}

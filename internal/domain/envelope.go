package domain

import "encoding/json"

// Kind discriminates envelopes on the wire (the "type" field).
type Kind string

const (
	KindJoin    Kind = "join"
	KindMessage Kind = "message"
	KindSystem  Kind = "system"
	KindPing    Kind = "ping"
	KindPong    Kind = "pong"
	KindTime    Kind = "time"
)

const (
	DefaultDisplayName = "Guest"
	MaxNameLength      = 16
	MaxTextLength      = 200
)

// Envelope is the tagged message unit exchanged with clients.
// Only the fields relevant to Type are populated; the rest are omitted on encode.
type Envelope struct {
	Type Kind `json:"type"`
	*TimeSnapshot
	Name       string          `json:"name,omitempty"`
	Text       string          `json:"text,omitempty"`
	ClientTime json.RawMessage `json:"clientTime,omitempty"`
	ServerTime int64           `json:"serverTime,omitempty"`
}

func TimeEnvelope(snapshot TimeSnapshot) Envelope {
	return Envelope{Type: KindTime, TimeSnapshot: &snapshot}
}

func SystemEnvelope(text string) Envelope {
	return Envelope{Type: KindSystem, Text: text}
}

func ChatEnvelope(name, text string) Envelope {
	return Envelope{Type: KindMessage, Name: name, Text: text}
}

func PongEnvelope(serverTime int64, clientTime json.RawMessage) Envelope {
	return Envelope{Type: KindPong, ServerTime: serverTime, ClientTime: clientTime}
}

// Package protocol encodes and decodes the JSON envelopes exchanged with chat clients.
//
// Decode validates per-kind fields and normalises them (names coerced and truncated, message
// text trimmed). Envelopes of unknown kinds decode without error so callers can ignore them.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/chatrelay/internal/domain"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
)

type inbound struct {
	Type       domain.Kind     `json:"type"`
	Name       json.RawMessage `json:"name"`
	Text       json.RawMessage `json:"text"`
	ClientTime json.RawMessage `json:"clientTime"`
}

// Decode parses raw bytes into a validated envelope.
// Malformed input yields a decode error, invalid fields a validation error.
func Decode(raw []byte) (domain.Envelope, error) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return domain.Envelope{}, apperrors.DecodeError(err)
	}

	env := domain.Envelope{Type: in.Type}

	switch in.Type {
	case domain.KindJoin:
		env.Name = TruncateRunes(coerceString(in.Name), domain.MaxNameLength)
	case domain.KindMessage:
		text, err := requireString(in.Text)
		if err != nil {
			return domain.Envelope{}, err
		}
		text = strings.TrimSpace(text)
		if err := checkTextLength(text); err != nil {
			return domain.Envelope{}, err
		}
		env.Text = text
	case domain.KindSystem:
		text, err := requireString(in.Text)
		if err != nil {
			return domain.Envelope{}, err
		}
		if err := checkTextLength(text); err != nil {
			return domain.Envelope{}, err
		}
		env.Text = text
	case domain.KindPing:
		if !isAbsent(in.ClientTime) {
			env.ClientTime = in.ClientTime
		}
	}

	return env, nil
}

// Encode serialises an envelope. Output is deterministic for equal envelopes.
func Encode(env domain.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	return data, nil
}

// TruncateRunes cuts s to at most n characters.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// coerceString turns any JSON value into its string form: strings are unquoted,
// other values keep their compact literal text. Absent and null become "".
func coerceString(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}

func requireString(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", apperrors.ValidationError("text is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apperrors.ValidationError("text must be a string")
	}
	return s, nil
}

func checkTextLength(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return apperrors.ValidationError("text is empty")
	}
	if n > domain.MaxTextLength {
		return apperrors.ValidationError("text too long").WithContext("length", n)
	}
	return nil
}

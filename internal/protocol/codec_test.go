package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pscheid92/chatrelay/internal/domain"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", "{", `[1,2]`, `{"type":5}`} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, "input %q", raw)
		assert.Equal(t, apperrors.TypeDecode, apperrors.TypeOf(err), "input %q", raw)
		assert.True(t, apperrors.IsDropped(err))
	}
}

func TestDecode_Join(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string name", `{"type":"join","name":"Bob"}`, "Bob"},
		{"absent name", `{"type":"join"}`, ""},
		{"null name", `{"type":"join","name":null}`, ""},
		{"numeric name", `{"type":"join","name":42}`, "42"},
		{"bool name", `{"type":"join","name":true}`, "true"},
		{"long name", `{"type":"join","name":"ThisNameIsWayTooLongForTheLimit"}`, "ThisNameIsWayToo"},
		{"multibyte name", `{"type":"join","name":"ÄÖÜäöüßÄÖÜäöüßÄÖÜ"}`, "ÄÖÜäöüßÄÖÜäöüßÄÖ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, domain.KindJoin, env.Type)
			assert.Equal(t, tt.want, env.Name)
		})
	}
}

func TestDecode_Message(t *testing.T) {
	env, err := Decode([]byte(`{"type":"message","text":"  hi there  "}`))
	require.NoError(t, err)
	assert.Equal(t, domain.KindMessage, env.Type)
	assert.Equal(t, "hi there", env.Text)
}

func TestDecode_MessageRejected(t *testing.T) {
	tests := map[string]string{
		"missing text":  `{"type":"message"}`,
		"empty text":    `{"type":"message","text":""}`,
		"blank text":    `{"type":"message","text":"    "}`,
		"non-string":    `{"type":"message","text":123}`,
		"too long text": `{"type":"message","text":"` + strings.Repeat("a", 201) + `"}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
		})
	}
}

func TestDecode_MessageAtLimit(t *testing.T) {
	text := strings.Repeat("ü", 200)
	env, err := Decode([]byte(`{"type":"message","text":"` + text + `"}`))
	require.NoError(t, err)
	assert.Equal(t, text, env.Text)
}

func TestDecode_SystemKeepsWhitespace(t *testing.T) {
	env, err := Decode([]byte(`{"type":"system","text":"  server restart  "}`))
	require.NoError(t, err)
	assert.Equal(t, "  server restart  ", env.Text)

	_, err = Decode([]byte(`{"type":"system","text":"` + strings.Repeat("x", 201) + `"}`))
	assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
}

func TestDecode_Ping(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping","clientTime":1700000000123}`))
	require.NoError(t, err)
	assert.Equal(t, domain.KindPing, env.Type)
	assert.JSONEq(t, `1700000000123`, string(env.ClientTime))

	env, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Nil(t, env.ClientTime)
}

func TestDecode_UnknownKindIsNotAnError(t *testing.T) {
	env, err := Decode([]byte(`{"type":"typing","who":"Bob"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Kind("typing"), env.Type)
}

func TestEncode_Time(t *testing.T) {
	snap := domain.TimeSnapshot{Year: 2025, Month: 3, Day: 1, Hour: 12, Minute: 5, Second: 9, Unix: 1740830709, Season: domain.SeasonSpring}

	data, err := Encode(domain.TimeEnvelope(snap))
	require.NoError(t, err)

	assert.Equal(t, `{"type":"time","year":2025,"month":3,"day":1,"hour":12,"minute":5,"second":9,"unix":1740830709,"season":1}`, string(data))
}

func TestEncode_Chat(t *testing.T) {
	data, err := Encode(domain.ChatEnvelope("Bob", "hi"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"message","name":"Bob","text":"hi"}`, string(data))

	data, err = Encode(domain.SystemEnvelope("Bob joined the chat"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"system","text":"Bob joined the chat"}`, string(data))
}

func TestEncode_PongEchoesClientTime(t *testing.T) {
	data, err := Encode(domain.PongEnvelope(1700000000999, json.RawMessage(`"abc"`)))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong","clientTime":"abc","serverTime":1700000000999}`, string(data))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 16))
	assert.Equal(t, "", TruncateRunes("", 16))
	assert.Equal(t, "ThisNameIsWayToo", TruncateRunes("ThisNameIsWayTooLongForTheLimit", 16))
	assert.Equal(t, "日本", TruncateRunes("日本語", 2))
}

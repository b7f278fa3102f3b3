package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeServerEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev ServerEvent)
	}{
		{
			name:  "session created",
			frame: `{"type":"session.created","event_id":"ev_1","session":{"id":"sess_1","voice":"alloy"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(SessionCreatedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Session.ID != "sess_1" || e.Session.Voice != "alloy" {
					t.Errorf("session = %+v", e.Session)
				}
			},
		},
		{
			name:  "speech started",
			frame: `{"type":"input_audio_buffer.speech_started","audio_start_ms":1280,"item_id":"item_u1"}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(SpeechStartedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.AudioStartMS != 1280 {
					t.Errorf("audio_start_ms = %d", e.AudioStartMS)
				}
			},
		},
		{
			name:  "audio delta",
			frame: `{"type":"response.audio.delta","response_id":"resp_1","item_id":"item_1","delta":"AAAA"}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(AudioDeltaEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.ResponseID != "resp_1" || e.Delta != "AAAA" {
					t.Errorf("delta = %+v", e)
				}
			},
		},
		{
			name:  "response done with status",
			frame: `{"type":"response.done","response":{"id":"resp_1","status":"cancelled"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(ResponseDoneEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Response.ID != "resp_1" || e.Response.Status != "cancelled" {
					t.Errorf("response = %+v", e.Response)
				}
			},
		},
		{
			name:  "item created",
			frame: `{"type":"conversation.item.created","item":{"id":"item_a1","type":"message","role":"assistant"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(ItemCreatedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Item.ID != "item_a1" || e.Item.Role != "assistant" {
					t.Errorf("item = %+v", e.Item)
				}
			},
		},
		{
			name:  "input transcription completed",
			frame: `{"type":"conversation.item.input_audio_transcription.completed","item_id":"item_u1","transcript":"hello there"}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(InputTranscriptionCompletedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Transcript != "hello there" {
					t.Errorf("transcript = %q", e.Transcript)
				}
			},
		},
		{
			name:  "error",
			frame: `{"type":"error","error":{"type":"invalid_request_error","code":"missing_field","message":"bad"}}`,
			check: func(t *testing.T, ev ServerEvent) {
				e, ok := ev.(ErrorEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Error.Code != "missing_field" {
					t.Errorf("error = %+v", e.Error)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeServerEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestDecodeUnknownEventPreservesFrame(t *testing.T) {
	frame := `{"type":"rate_limits.updated","rate_limits":[{"name":"requests"}]}`
	ev, err := DecodeServerEvent([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	unknown, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("got %T, want UnknownEvent", ev)
	}
	if unknown.Type != "rate_limits.updated" {
		t.Errorf("type = %q", unknown.Type)
	}
	if string(unknown.Raw) != frame {
		t.Errorf("raw frame not preserved: %s", unknown.Raw)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{{{`},
		{"missing type", `{"event_id":"ev_1"}`},
		{"wrong payload shape", `{"type":"response.audio.delta","response_id":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeServerEvent([]byte(tt.frame)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTruncateMarshalsRequiredFields(t *testing.T) {
	msg := ClientItemTruncate{
		EventID:      "ev_1",
		Type:         ClientEventItemTruncate,
		ItemID:       "item_a1",
		ContentIndex: 0,
		AudioEndMS:   1500,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "conversation.item.truncate" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["item_id"] != "item_a1" {
		t.Errorf("item_id = %v", decoded["item_id"])
	}
	// content_index and audio_end_ms must always be present, even when
	// zero, because the server requires them.
	if _, ok := decoded["content_index"]; !ok {
		t.Error("content_index missing")
	}
	if decoded["audio_end_ms"] != float64(1500) {
		t.Errorf("audio_end_ms = %v", decoded["audio_end_ms"])
	}
}

func TestResponseCancelCarriesResponseID(t *testing.T) {
	msg := ClientResponseCancel{
		Type:       ClientEventResponseCancel,
		ResponseID: "resp_1",
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["response_id"] != "resp_1" {
		t.Errorf("response_id = %v", decoded["response_id"])
	}
}

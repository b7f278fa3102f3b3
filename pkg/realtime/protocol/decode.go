package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeServerEvent decodes one inbound text frame into a typed event.
// Frames with an unrecognized type tag decode to UnknownEvent; a
// malformed frame returns an error and should be skipped, not treated
// as fatal to the connection.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("event frame missing type")
	}

	switch typ {
	case ServerEventSessionCreated:
		var ev SessionCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventSessionUpdated:
		var ev SessionUpdatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventSpeechStarted:
		var ev SpeechStartedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventSpeechStopped:
		var ev SpeechStoppedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventItemCreated:
		var ev ItemCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventResponseCreated:
		var ev ResponseCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventAudioDelta:
		var ev AudioDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventAudioTranscriptDelta:
		var ev AudioTranscriptDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventTextDelta:
		var ev TextDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventAudioDone:
		var ev AudioDoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventTextDone:
		var ev TextDoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventOutputItemDone:
		var ev OutputItemDoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventResponseDone:
		var ev ResponseDoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventInputTranscriptionCompleted:
		var ev InputTranscriptionCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	case ServerEventError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ev, nil
	default:
		return UnknownEvent{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}

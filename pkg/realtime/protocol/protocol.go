// Package protocol defines the typed wire events exchanged with the
// OpenAI Realtime API over the live websocket, plus the decoder that
// turns inbound frames into a closed set of event variants.
package protocol

import "encoding/json"

// Client event type tags.
const (
	ClientEventSessionUpdate  = "session.update"
	ClientEventAudioAppend    = "input_audio_buffer.append"
	ClientEventResponseCancel = "response.cancel"
	ClientEventResponseCreate = "response.create"
	ClientEventItemTruncate   = "conversation.item.truncate"
)

// Server event type tags.
const (
	ServerEventSessionCreated              = "session.created"
	ServerEventSessionUpdated              = "session.updated"
	ServerEventSpeechStarted               = "input_audio_buffer.speech_started"
	ServerEventSpeechStopped               = "input_audio_buffer.speech_stopped"
	ServerEventItemCreated                 = "conversation.item.created"
	ServerEventResponseCreated             = "response.created"
	ServerEventAudioDelta                  = "response.audio.delta"
	ServerEventAudioTranscriptDelta        = "response.audio_transcript.delta"
	ServerEventTextDelta                   = "response.text.delta"
	ServerEventAudioDone                   = "response.audio.done"
	ServerEventTextDone                    = "response.text.done"
	ServerEventOutputItemDone              = "response.output_item.done"
	ServerEventResponseDone                = "response.done"
	ServerEventInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	ServerEventError                       = "error"
)

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// Session describes the negotiated session record. The same shape is
// used for the session.update payload (id and model omitted) and for
// the server's session.created/session.updated payloads.
type Session struct {
	ID                string         `json:"id,omitempty"`
	Model             string         `json:"model,omitempty"`
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
}

// ConversationItem is an entry in the shared transcript.
type ConversationItem struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
}

// ResponseInfo identifies a server-generated response and its status.
type ResponseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// ErrorDetail carries a server-reported error payload.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
}

// ClientSessionUpdate configures the session after session.created.
type ClientSessionUpdate struct {
	EventID string  `json:"event_id,omitempty"`
	Type    string  `json:"type"`
	Session Session `json:"session"`
}

// ClientAudioAppend streams one encoded PCM block to the input buffer.
type ClientAudioAppend struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

// ClientResponseCancel asks the server to stop generating a response.
type ClientResponseCancel struct {
	EventID    string `json:"event_id,omitempty"`
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
}

// ResponseConfig shapes an explicitly requested response.
type ResponseConfig struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Voice        string   `json:"voice,omitempty"`
}

// ClientResponseCreate requests a response when the protocol needs
// explicit turn finalization.
type ClientResponseCreate struct {
	EventID  string          `json:"event_id,omitempty"`
	Type     string          `json:"type"`
	Response *ResponseConfig `json:"response,omitempty"`
}

// ClientItemTruncate retroactively shortens an assistant item to the
// audio the user actually heard.
type ClientItemTruncate struct {
	EventID      string `json:"event_id,omitempty"`
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
}

// ServerEvent is implemented by every decoded inbound event variant.
type ServerEvent interface {
	serverEventType() string
}

type SessionCreatedEvent struct {
	EventID string  `json:"event_id,omitempty"`
	Session Session `json:"session"`
}

func (e SessionCreatedEvent) serverEventType() string { return ServerEventSessionCreated }

type SessionUpdatedEvent struct {
	Session Session `json:"session"`
}

func (e SessionUpdatedEvent) serverEventType() string { return ServerEventSessionUpdated }

// SpeechStartedEvent signals server VAD detected the user speaking.
type SpeechStartedEvent struct {
	AudioStartMS int64  `json:"audio_start_ms"`
	ItemID       string `json:"item_id,omitempty"`
}

func (e SpeechStartedEvent) serverEventType() string { return ServerEventSpeechStarted }

// SpeechStoppedEvent signals server VAD detected end of user speech.
type SpeechStoppedEvent struct {
	AudioEndMS int64  `json:"audio_end_ms"`
	ItemID     string `json:"item_id,omitempty"`
}

func (e SpeechStoppedEvent) serverEventType() string { return ServerEventSpeechStopped }

type ItemCreatedEvent struct {
	Item ConversationItem `json:"item"`
}

func (e ItemCreatedEvent) serverEventType() string { return ServerEventItemCreated }

type ResponseCreatedEvent struct {
	Response ResponseInfo `json:"response"`
}

func (e ResponseCreatedEvent) serverEventType() string { return ServerEventResponseCreated }

// AudioDeltaEvent carries one encoded PCM fragment of assistant speech.
type AudioDeltaEvent struct {
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Delta        string `json:"delta"`
}

func (e AudioDeltaEvent) serverEventType() string { return ServerEventAudioDelta }

type AudioTranscriptDeltaEvent struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta"`
}

func (e AudioTranscriptDeltaEvent) serverEventType() string { return ServerEventAudioTranscriptDelta }

type TextDeltaEvent struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta"`
}

func (e TextDeltaEvent) serverEventType() string { return ServerEventTextDelta }

type AudioDoneEvent struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id,omitempty"`
}

func (e AudioDoneEvent) serverEventType() string { return ServerEventAudioDone }

type TextDoneEvent struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (e TextDoneEvent) serverEventType() string { return ServerEventTextDone }

type OutputItemDoneEvent struct {
	ResponseID string           `json:"response_id"`
	Item       ConversationItem `json:"item"`
}

func (e OutputItemDoneEvent) serverEventType() string { return ServerEventOutputItemDone }

type ResponseDoneEvent struct {
	Response ResponseInfo `json:"response"`
}

func (e ResponseDoneEvent) serverEventType() string { return ServerEventResponseDone }

type InputTranscriptionCompletedEvent struct {
	ItemID     string `json:"item_id,omitempty"`
	Transcript string `json:"transcript"`
}

func (e InputTranscriptionCompletedEvent) serverEventType() string {
	return ServerEventInputTranscriptionCompleted
}

type ErrorEvent struct {
	Error ErrorDetail `json:"error"`
}

func (e ErrorEvent) serverEventType() string { return ServerEventError }

// UnknownEvent preserves a frame whose type tag is not recognized.
// Unknown events are never fatal; the session records each distinct
// type once and drops the frame.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) serverEventType() string { return e.Type }

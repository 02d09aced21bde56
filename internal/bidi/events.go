package bidi

import (
	"encoding/json"
	"slices"
)

// AudioFormat identifies the encoding of an audio payload.
type AudioFormat string

const (
	FormatPCM AudioFormat = "pcm"
	FormatWAV AudioFormat = "wav"
)

// Valid reports whether the format is one the speech model accepts.
func (f AudioFormat) Valid() bool {
	return f == FormatPCM || f == FormatWAV
}

// validSampleRates lists the sample rates the speech model accepts.
//
//nolint:gochecknoglobals // fixed model capability table
var validSampleRates = []int{16000, 24000, 48000}

// DefaultSampleRate is substituted for any rate outside validSampleRates.
const DefaultSampleRate = 16000

// ValidSampleRate reports whether rate is accepted by the speech model.
func ValidSampleRate(rate int) bool {
	return slices.Contains(validSampleRates, rate)
}

// Role identifies the speaker of a transcript.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// InputEvent is one turn of user input flowing toward the model.
// It is a sealed union: TextInput or AudioInput.
type InputEvent interface {
	inputEvent()
}

// TextInput carries a text turn verbatim.
type TextInput struct {
	Text string
}

// AudioInput carries one decoded audio chunk.
type AudioInput struct {
	Data       []byte
	Format     AudioFormat
	SampleRate int
	Channels   int
}

func (TextInput) inputEvent()  {}
func (AudioInput) inputEvent() {}

// OutputEvent is one event produced by the model runtime and delivered
// to the client. It is a sealed union over the variants below; each
// variant maps to exactly one outbound transport message.
type OutputEvent interface {
	outputEvent()
}

// ConnectionStart signals that the model connection is live.
type ConnectionStart struct{}

// ConnectionClose signals that the model connection has ended.
type ConnectionClose struct{}

// ResponseStart marks the beginning of one model response.
type ResponseStart struct{}

// ResponseComplete marks the end of one model response.
type ResponseComplete struct {
	StopReason string
}

// Transcript carries recognized or generated speech text.
type Transcript struct {
	Text  string
	Role  Role
	Final bool
}

// AudioDelta carries one chunk of synthesized audio.
type AudioDelta struct {
	Data       []byte
	Format     AudioFormat
	SampleRate int
	Channels   int
}

// ToolUse notifies that the model invoked a tool.
type ToolUse struct {
	CallID string
	Tool   string
	Input  json.RawMessage
	// Content is a short rendering of the invocation for the client.
	Content string
}

// ErrorEvent surfaces a model-side failure to the client.
type ErrorEvent struct {
	Message string
}

func (ConnectionStart) outputEvent()  {}
func (ConnectionClose) outputEvent()  {}
func (ResponseStart) outputEvent()    {}
func (ResponseComplete) outputEvent() {}
func (Transcript) outputEvent()       {}
func (AudioDelta) outputEvent()       {}
func (ToolUse) outputEvent()          {}
func (ErrorEvent) outputEvent()       {}

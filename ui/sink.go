// Package ui defines the narrow rendering boundary the chat backends talk
// to: streamed message bubbles, tool steps and audio playback. Everything a
// frontend must provide lives behind Sink; the package also ships a console
// implementation for the example programs and for tests.
package ui

type MessageKind string

const (
	MessageKindAgent MessageKind = "agent_message"
	MessageKindUser  MessageKind = "user_message"
	MessageKindError MessageKind = "error_message"
)

// Message is a handle to one streamed bubble. StreamToken appends a delta;
// Finalize closes the bubble and must be called exactly once.
type Message interface {
	StreamToken(token string) error
	Finalize() error
}

// Step renders one tool invocation: name, structured input, then either a
// structured output or an error output.
type Step interface {
	SetInput(input string) error
	SetOutput(output string) error
	MarkError()
	Finalize() error
}

// Sink is the full render surface consumed by both flows. Implementations
// must be safe for concurrent use: the dispatcher, the user message handler
// and detached tool tasks all render through one Sink.
type Sink interface {
	// NewMessage opens a streamed bubble for the given author and kind.
	NewMessage(author string, kind MessageKind) (Message, error)

	// Notify renders a complete one-shot message.
	Notify(author string, kind MessageKind, content string) error

	// PlayAudioChunk forwards one raw pcm16 frame tagged with its track id.
	// Chunks tagged with an interrupted track are dropped silently.
	PlayAudioChunk(trackID string, frame []byte) error

	// InterruptAudio stops playback and invalidates the current track.
	InterruptAudio() error

	// NewStep opens a tool step display.
	NewStep(name string) (Step, error)
}

package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/bt-bridge/agent-chat/ui"
)

// PendingToolCall accumulates streamed argument fragments for one call id
// until the done event delivers the authoritative argument string. An
// entry whose done event never arrives stays for the session's lifetime;
// that leak is bounded by the number of tool calls.
type PendingToolCall struct {
	CallId    string
	Name      string
	ItemId    string
	Arguments string // verbatim concatenation of fragments, arrival order
}

// TurnState holds the per-session turn-taking flags. It is mutated by the
// dispatcher, by the user message handler (barge-in) and by tool-execution
// callbacks, so every access goes through the mutex.
type TurnState struct {
	mu sync.Mutex

	generating       bool
	playing          bool
	textStreamLocked bool
	trackID          string

	agentMsg ui.Message
	userMsg  ui.Message

	pending map[string]*PendingToolCall
}

func NewTurnState() *TurnState {
	return &TurnState{
		trackID: uuid.NewString(),
		pending: make(map[string]*PendingToolCall),
	}
}

func (s *TurnState) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

func (s *TurnState) SetGenerating(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = v
}

func (s *TurnState) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *TurnState) SetPlaying(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = v
}

func (s *TurnState) TextStreamLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textStreamLocked
}

func (s *TurnState) SetTextStreamLocked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textStreamLocked = v
}

func (s *TurnState) TrackID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackID
}

// RotateTrack replaces the track id so late audio chunks from a cancelled
// response become distinguishable, and returns the new id.
func (s *TurnState) RotateTrack() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackID = uuid.NewString()
	return s.trackID
}

func (s *TurnState) AgentMessage() ui.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentMsg
}

func (s *TurnState) SetAgentMessage(msg ui.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentMsg = msg
}

// TakeAgentMessage clears and returns the open agent message, if any.
func (s *TurnState) TakeAgentMessage() ui.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.agentMsg
	s.agentMsg = nil
	return msg
}

func (s *TurnState) UserMessage() ui.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userMsg
}

func (s *TurnState) SetUserMessage(msg ui.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userMsg = msg
}

// TakeUserMessage clears and returns the open user message, if any.
func (s *TurnState) TakeUserMessage() ui.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.userMsg
	s.userMsg = nil
	return msg
}

// AppendToolCallDelta appends one argument fragment, creating the entry on
// first sight of the call id. Name and item id are captured when present.
func (s *TurnState) AppendToolCallDelta(callID, name, itemID, delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.pending[callID]
	if !ok {
		call = &PendingToolCall{CallId: callID}
		s.pending[callID] = call
	}
	if name != "" {
		call.Name = name
	}
	if itemID != "" {
		call.ItemId = itemID
	}
	call.Arguments += delta
}

// TakePendingToolCall removes and returns the entry for callID, or nil.
func (s *TurnState) TakePendingToolCall(callID string) *PendingToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.pending[callID]
	if !ok {
		return nil
	}
	delete(s.pending, callID)
	return call
}

func (s *TurnState) PendingToolCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

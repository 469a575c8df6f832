package realtime

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/tools"
	"github.com/bt-bridge/agent-chat/ui"
)

const agentAuthor = "agent"

// Dispatcher is the session state machine. It classifies each inbound
// event and mutates TurnState accordingly. Events arrive strictly in
// order from the connection's receive task; only tool executions run
// concurrently with the loop, as detached tasks joined on teardown.
type Dispatcher struct {
	logger    shared.LoggerAdapter
	state     *TurnState
	sink      ui.Sink
	transport Transport
	registry  *tools.Registry

	ctx    context.Context
	toolWG sync.WaitGroup
}

func NewDispatcher(
	ctx context.Context,
	logger shared.LoggerAdapter,
	state *TurnState,
	sink ui.Sink,
	transport Transport,
	registry *tools.Registry,
) (*Dispatcher, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if sink == nil {
		return nil, shared.ErrNoSink
	}
	if state == nil || transport == nil || registry == nil {
		return nil, shared.ErrNoConfig
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Dispatcher{
		logger:    logger,
		state:     state,
		sink:      sink,
		transport: transport,
		registry:  registry,
		ctx:       ctx,
	}, nil
}

// State exposes the turn flags for the surrounding agent (barge-in).
func (d *Dispatcher) State() *TurnState {
	return d.state
}

// Wait joins all outstanding tool-execution tasks.
func (d *Dispatcher) Wait() {
	d.toolWG.Wait()
}

// HandleEvent implements EventHandler.
func (d *Dispatcher) HandleEvent(event *ServerEvent) {
	switch event.Type {
	case ServerEventTypeResponseOutputTextDelta:
		p := event.Param.(*ServerEventParamOutputTextDelta)
		d.handleAgentTextDelta(p.Delta)

	case ServerEventTypeResponseOutputAudioTranscriptDelta:
		p := event.Param.(*ServerEventParamOutputAudioTranscriptDelta)
		d.handleAgentTranscriptDelta(p.Delta)

	case ServerEventTypeResponseOutputTextDone, ServerEventTypeResponseOutputAudioTranscriptDone:
		d.finalizeAgentMessage()

	case ServerEventTypeResponseOutputAudioDelta:
		p := event.Param.(*ServerEventParamOutputAudioDelta)
		d.handleAgentAudioDelta(p.Delta)

	case ServerEventTypeResponseOutputAudioDone:
		// Playback state is cleared on response.done.

	case ServerEventTypeConversationItemInputAudioTranscriptionDelta:
		p := event.Param.(*ServerEventParamInputAudioTranscriptionDelta)
		d.handleUserTranscriptionDelta(p.Delta)

	case ServerEventTypeConversationItemInputAudioTranscriptionCompleted:
		p := event.Param.(*ServerEventParamInputAudioTranscriptionCompleted)
		d.handleUserTranscriptionCompleted(p.Transcript)

	case ServerEventTypeConversationItemInputAudioTranscriptionFailed:
		d.handleUserTranscriptionFailed()

	case ServerEventTypeResponseFunctionCallArgumentsDelta:
		p := event.Param.(*ServerEventParamFunctionCallArgumentsDelta)
		if p.CallId != "" {
			d.state.AppendToolCallDelta(p.CallId, "", p.ItemId, p.Delta)
		}

	case ServerEventTypeResponseFunctionCallArgumentsDone:
		p := event.Param.(*ServerEventParamFunctionCallArgumentsDone)
		d.handleFunctionCallDone(p)

	case ServerEventTypeResponseDone:
		d.handleResponseDone()

	case ServerEventTypeError:
		p := event.Param.(*ServerEventParamError)
		d.handleErrorEvent(p.Error())

	default:
		if event.IsError() {
			d.handleErrorEvent(string(event.Type))
			return
		}
		d.logger.Trace("ignoring event", zap.String("type", string(event.Type)))
	}
}

// handleAgentTextDelta locks the text stream: when the model streams real
// text, the audio transcript becomes redundant and is suppressed.
func (d *Dispatcher) handleAgentTextDelta(delta string) {
	if delta == "" {
		return
	}
	d.state.SetTextStreamLocked(true)
	d.streamAgentText(delta)
}

// handleAgentTranscriptDelta is the fallback for audio-only turns.
func (d *Dispatcher) handleAgentTranscriptDelta(delta string) {
	if delta == "" || d.state.TextStreamLocked() {
		return
	}
	d.streamAgentText(delta)
}

func (d *Dispatcher) streamAgentText(delta string) {
	msg := d.state.AgentMessage()
	if msg == nil {
		var err error
		msg, err = d.sink.NewMessage(agentAuthor, ui.MessageKindAgent)
		if err != nil {
			d.logger.Error("opening agent message", err)
			return
		}
		d.state.SetAgentMessage(msg)
	}
	if err := msg.StreamToken(delta); err != nil {
		d.logger.Error("streaming agent token", err)
	}
}

func (d *Dispatcher) finalizeAgentMessage() {
	if msg := d.state.TakeAgentMessage(); msg != nil {
		if err := msg.Finalize(); err != nil {
			d.logger.Error("finalizing agent message", err)
		}
	}
}

func (d *Dispatcher) handleAgentAudioDelta(raw string) {
	if raw == "" {
		return
	}
	frame, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		d.logger.Error("decoding audio delta", err)
		return
	}
	if !d.state.Playing() {
		d.state.SetPlaying(true)
	}
	if err := d.sink.PlayAudioChunk(d.state.TrackID(), frame); err != nil {
		d.logger.Error("forwarding audio chunk", err)
	}
}

func (d *Dispatcher) handleUserTranscriptionDelta(delta string) {
	if delta == "" {
		return
	}
	msg := d.state.UserMessage()
	if msg == nil {
		var err error
		msg, err = d.sink.NewMessage("user", ui.MessageKindUser)
		if err != nil {
			d.logger.Error("opening user message", err)
			return
		}
		d.state.SetUserMessage(msg)
	}
	if err := msg.StreamToken(delta); err != nil {
		d.logger.Error("streaming user token", err)
	}
}

// handleUserTranscriptionCompleted finalizes the open stream, or renders a
// one-shot bubble when completion arrived without any preceding deltas.
func (d *Dispatcher) handleUserTranscriptionCompleted(transcript string) {
	if msg := d.state.TakeUserMessage(); msg != nil {
		if err := msg.Finalize(); err != nil {
			d.logger.Error("finalizing user message", err)
		}
		return
	}
	if strings.TrimSpace(transcript) == "" {
		return
	}
	if err := d.sink.Notify("user", ui.MessageKindUser, transcript); err != nil {
		d.logger.Error("rendering user transcript", err)
	}
}

func (d *Dispatcher) handleUserTranscriptionFailed() {
	if msg := d.state.TakeUserMessage(); msg != nil {
		if err := msg.Finalize(); err != nil {
			d.logger.Error("finalizing user message", err)
		}
	}
}

func (d *Dispatcher) handleFunctionCallDone(p *ServerEventParamFunctionCallArgumentsDone) {
	if p.CallId == "" {
		return
	}
	pending := d.state.TakePendingToolCall(p.CallId)

	// The done event carries the authoritative name and full argument
	// string; the accumulated fragments are the fallback.
	name := p.Name
	arguments := p.Arguments
	if pending != nil {
		if name == "" {
			name = pending.Name
		}
		if arguments == "" {
			arguments = pending.Arguments
		}
	}

	// Detached: a tool may run far longer than turn latency and must not
	// stall the event loop.
	d.toolWG.Add(1)
	go d.executeToolCall(p.CallId, name, arguments)
}

func (d *Dispatcher) handleResponseDone() {
	d.state.SetGenerating(false)
	d.state.SetPlaying(false)
	d.state.SetTextStreamLocked(false)
	d.finalizeAgentMessage()
}

func (d *Dispatcher) handleErrorEvent(detail string) {
	d.state.SetGenerating(false)
	d.state.SetTextStreamLocked(false)
	d.logger.Error("realtime error event", nil, zap.String("detail", detail))
	d.finalizeAgentMessage()
	if msg := d.state.TakeUserMessage(); msg != nil {
		if err := msg.Finalize(); err != nil {
			d.logger.Error("finalizing user message", err)
		}
	}
}

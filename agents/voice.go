package agents

import (
	"context"
	"encoding/base64"

	"github.com/bytedance/sonic"
	oairt "github.com/openai/openai-go/v3/realtime"
	"go.uber.org/zap"

	rt "github.com/bt-bridge/agent-chat/realtime"
	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/tools"
	"github.com/bt-bridge/agent-chat/ui"
)

// VoiceConfig carries everything needed to bring up one realtime session.
type VoiceConfig struct {
	Conn    rt.ConnConfig
	Session *oairt.RealtimeSessionCreateRequestParam
}

// sessionConn is what VoiceAgent needs from the connection. rt.Conn
// implements it; tests substitute a fake.
type sessionConn interface {
	rt.Transport
	Done() <-chan struct{}
	Close() error
}

// VoiceAgent owns one realtime session: the duplex connection, the turn
// state and the dispatcher consuming inbound events. User input enters
// through HandleUserText and HandleUserAudio.
type VoiceAgent struct {
	logger     shared.LoggerAdapter
	conn       sessionConn
	dispatcher *rt.Dispatcher
	state      *rt.TurnState
	sink       ui.Sink
}

// SpawnVoiceAgent dials the endpoint, pushes the session configuration with
// the registry's tool declarations injected, and starts the receive task.
func SpawnVoiceAgent(
	ctx context.Context,
	logger shared.LoggerAdapter,
	cfg VoiceConfig,
	sink ui.Sink,
	registry *tools.Registry,
) (a *VoiceAgent, err error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if sink == nil {
		return nil, shared.ErrNoSink
	}
	if cfg.Session == nil || registry == nil {
		return nil, shared.ErrNoConfig
	}

	conn, err := rt.Dial(ctx, logger, cfg.Conn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	state := rt.NewTurnState()
	dispatcher, err := rt.NewDispatcher(ctx, logger, state, sink, conn, registry)
	if err != nil {
		return nil, err
	}
	if err = conn.RegisterEventHandler(dispatcher.HandleEvent); err != nil {
		return nil, err
	}
	if err = conn.Start(); err != nil {
		return nil, err
	}

	session, err := sessionPayload(cfg.Session, registry)
	if err != nil {
		return nil, err
	}
	if err = conn.UpdateSession(session); err != nil {
		return nil, err
	}
	logger.Info("voice agent spawned", zap.Int("tools", len(registry.Definitions())))

	return &VoiceAgent{
		logger:     logger,
		conn:       conn,
		dispatcher: dispatcher,
		state:      state,
		sink:       sink,
	}, nil
}

// sessionPayload flattens the typed session config into the wire map and
// injects the tool declarations.
func sessionPayload(cfg *oairt.RealtimeSessionCreateRequestParam, registry *tools.Registry) (map[string]any, error) {
	data, err := sonic.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	session := map[string]any{}
	if err := sonic.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if defs := registry.Definitions(); len(defs) > 0 {
		session["tools"] = defs
		session["tool_choice"] = "auto"
	}
	return session, nil
}

// HandleUserText submits one typed user message. When a response is still
// generating or audio is still playing, it is barged in on first: the
// response is cancelled best-effort, playback stops, the audio track
// rotates and the half-finished agent bubble is closed. Only then is the
// new message appended and a fresh response requested.
func (a *VoiceAgent) HandleUserText(text string) error {
	if a.state.Generating() || a.state.Playing() {
		a.bargeIn()
	}

	if err := a.conn.CreateConversationItem(map[string]any{
		"type": "message",
		"role": "user",
		"content": []map[string]any{
			{"type": "input_text", "text": text},
		},
	}); err != nil {
		return err
	}
	if err := a.conn.CreateResponse(map[string]any{}); err != nil {
		return err
	}
	a.state.SetGenerating(true)
	return nil
}

func (a *VoiceAgent) bargeIn() {
	// The cancel may race a response that just finished server-side; the
	// resulting error event is expected and swallowed.
	if err := a.conn.CancelResponse(); err != nil {
		a.logger.Debug("cancelling response failed", zap.Error(err))
	}
	if err := a.sink.InterruptAudio(); err != nil {
		a.logger.Error("interrupting audio", err)
	}
	trackID := a.state.RotateTrack()
	a.state.SetGenerating(false)
	a.state.SetPlaying(false)
	a.state.SetTextStreamLocked(false)
	if msg := a.state.TakeAgentMessage(); msg != nil {
		if err := msg.Finalize(); err != nil {
			a.logger.Error("finalizing interrupted message", err)
		}
	}
	a.logger.Info("barged in on active response", zap.String("track_id", trackID))
}

// HandleUserAudio forwards one raw pcm16 frame from the user's microphone.
func (a *VoiceAgent) HandleUserAudio(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	return a.conn.AppendInputAudio(base64.StdEncoding.EncodeToString(frame))
}

// State exposes the turn flags, mainly for tests and diagnostics.
func (a *VoiceAgent) State() *rt.TurnState {
	return a.state
}

// Done closes when the connection is torn down or fails.
func (a *VoiceAgent) Done() <-chan struct{} {
	return a.conn.Done()
}

// Close tears the session down: close the connection first so no new tool
// calls arrive, then join outstanding tool tasks.
func (a *VoiceAgent) Close() error {
	err := a.conn.Close()
	a.dispatcher.Wait()
	return err
}

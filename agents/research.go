// Package agents wires the building blocks into the two chat backends: a
// poll-based deep-research agent and a realtime voice agent. Both render
// through ui.Sink and are driven by user messages from the surrounding
// program.
package agents

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/bt-bridge/agent-chat/research"
	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/ui"
)

const researchAuthor = "deep-research"

const busyNotice = "⏳ A research run is already in progress. Please wait for it to finish before sending a new request."

// ResearchAgent drives one long-running research request per user message:
// create the run, narrate its progress onto a status message, then render
// the final result. One vendor-side thread is kept per session so follow-up
// questions share conversation history.
type ResearchAgent struct {
	logger   shared.LoggerAdapter
	client   research.Client
	guard    *research.RunGuard
	poller   *research.Poller
	renderer *research.Renderer
	sink     ui.Sink
	agentID  string

	mu      sync.Mutex
	threads map[string]string // session id -> thread id
}

func NewResearchAgent(
	logger shared.LoggerAdapter,
	client research.Client,
	poller *research.Poller,
	sink ui.Sink,
	agentID string,
) (*ResearchAgent, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if client == nil {
		return nil, shared.ErrNoConfig
	}
	if sink == nil {
		return nil, shared.ErrNoSink
	}
	if agentID == "" {
		return nil, shared.ErrNoAgentID
	}
	if poller == nil {
		poller = research.NewPoller(client, logger, 0, 0)
	}
	return &ResearchAgent{
		logger:   logger,
		client:   client,
		guard:    research.NewRunGuard(),
		poller:   poller,
		renderer: research.NewRenderer(client, logger),
		sink:     sink,
		agentID:  agentID,
		threads:  make(map[string]string),
	}, nil
}

// HandleUserMessage runs one research request end to end. It blocks until
// the run reaches a terminal state or times out; a second request for the
// same session while one is in flight gets a busy notice instead.
func (a *ResearchAgent) HandleUserMessage(ctx context.Context, sessionID, text string) error {
	if runID, busy := a.guard.ActiveRun(sessionID); busy {
		a.logger.Info(
			"rejecting concurrent research request",
			zap.String("session_id", sessionID),
			zap.String("active_run_id", runID),
		)
		return a.sink.Notify(researchAuthor, ui.MessageKindAgent, busyNotice)
	}

	threadID, err := a.threadFor(ctx, sessionID)
	if err != nil {
		a.notifyError("Error creating conversation thread", err)
		return err
	}

	if err := a.client.CreateMessage(ctx, threadID, research.RoleUser, text); err != nil {
		a.notifyError("Error sending message to the research agent", err)
		return err
	}

	run, err := a.client.CreateRun(ctx, threadID, a.agentID)
	if err != nil {
		a.notifyError("Error starting research run", err)
		return err
	}

	handle, err := a.guard.TryStart(sessionID, run.ID)
	if err != nil {
		if errors.Is(err, shared.ErrRunAlreadyActive) {
			return a.sink.Notify(researchAuthor, ui.MessageKindAgent, busyNotice)
		}
		return err
	}
	defer handle.End()

	a.logger.Info(
		"research run started",
		zap.String("session_id", sessionID),
		zap.String("thread_id", threadID),
		zap.String("run_id", run.ID),
	)

	status, err := a.sink.NewMessage(researchAuthor, ui.MessageKindAgent)
	if err != nil {
		return err
	}
	if err := status.StreamToken("🔍 Researching..."); err != nil {
		a.logger.Warn("streaming status header failed", zap.Error(err))
	}
	a.poller.Run(ctx, threadID, run.ID, status)
	if err := status.Finalize(); err != nil {
		a.logger.Warn("finalizing status message failed", zap.Error(err))
	}

	result, err := a.sink.NewMessage(researchAuthor, ui.MessageKindAgent)
	if err != nil {
		return err
	}
	a.renderer.Render(ctx, threadID, result)
	if err := result.Finalize(); err != nil {
		a.logger.Warn("finalizing result message failed", zap.Error(err))
	}
	return nil
}

// threadFor returns the session's vendor-side thread, creating it on the
// first request.
func (a *ResearchAgent) threadFor(ctx context.Context, sessionID string) (string, error) {
	a.mu.Lock()
	if threadID, ok := a.threads[sessionID]; ok {
		a.mu.Unlock()
		return threadID, nil
	}
	a.mu.Unlock()

	threadID, err := a.client.CreateThread(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Concurrent first requests may race; keep whichever thread landed
	// first so the session history stays in one place.
	if existing, ok := a.threads[sessionID]; ok {
		return existing, nil
	}
	a.threads[sessionID] = threadID
	return threadID, nil
}

func (a *ResearchAgent) notifyError(msg string, err error) {
	a.logger.Error(msg, err)
	if nerr := a.sink.Notify(researchAuthor, ui.MessageKindError, "❌ "+msg+": "+err.Error()); nerr != nil {
		a.logger.Error("rendering error notice", nerr)
	}
}

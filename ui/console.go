package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/bt-bridge/agent-chat/shared"
	"github.com/bt-bridge/agent-chat/tools"
	"go.uber.org/zap"
)

const audioBufferWindow = 2 * time.Second

// ConsoleSink renders messages and steps through a shared.Printer and
// collects agent audio in a bounded AudioBuffer. It owns the stale-track
// rule: after InterruptAudio, chunks tagged with the interrupted track id
// are dropped, so late frames from a cancelled response never play.
type ConsoleSink struct {
	logger  shared.LoggerAdapter
	printer *shared.Printer
	audio   *AudioBuffer

	mu      sync.Mutex
	current string
	dead    map[string]struct{}
}

var _ Sink = (*ConsoleSink)(nil)

func NewConsoleSink(logger shared.LoggerAdapter, printer *shared.Printer, sampleRate, channels int) (*ConsoleSink, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if printer == nil {
		return nil, shared.ErrNoSink
	}
	return &ConsoleSink{
		logger:  logger,
		printer: printer,
		audio:   NewAudioBuffer(tools.FrameBytes(audioBufferWindow, sampleRate, channels)),
		dead:    make(map[string]struct{}),
	}, nil
}

// AudioOut exposes the playback buffer for whatever drains it.
func (s *ConsoleSink) AudioOut() *AudioBuffer {
	return s.audio
}

func (s *ConsoleSink) NewMessage(author string, kind MessageKind) (Message, error) {
	return &consoleMessage{sink: s, author: author, kind: kind}, nil
}

func (s *ConsoleSink) Notify(author string, kind MessageKind, content string) error {
	prefix := author
	if kind == MessageKindError {
		prefix = author + " [error]"
	}
	return s.printer.Writeln(fmt.Sprintf("%s> %s", prefix, content), 0)
}

func (s *ConsoleSink) PlayAudioChunk(trackID string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dead[trackID]; ok {
		s.logger.Trace("dropping stale audio chunk", zap.String("track_id", trackID))
		return nil
	}
	s.current = trackID
	if dropped := s.audio.Write(frame); dropped > 0 {
		s.logger.Trace("audio buffer overflow", zap.Int("dropped_bytes", dropped))
	}
	return nil
}

func (s *ConsoleSink) InterruptAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		s.dead[s.current] = struct{}{}
		s.current = ""
	}
	s.audio.Reset()
	return nil
}

func (s *ConsoleSink) NewStep(name string) (Step, error) {
	if err := s.printer.Writeln(fmt.Sprintf("[tool] %s", name), 0); err != nil {
		return nil, err
	}
	return &consoleStep{sink: s, name: name}, nil
}

type consoleMessage struct {
	sink    *ConsoleSink
	author  string
	kind    MessageKind
	mu      sync.Mutex
	started bool
	done    bool
}

func (m *consoleMessage) StreamToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	if !m.started {
		m.started = true
		if err := m.sink.printer.WriteRaw(m.author + "> "); err != nil {
			return err
		}
	}
	return m.sink.printer.WriteRaw(token)
}

func (m *consoleMessage) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	m.done = true
	if !m.started {
		return nil
	}
	return m.sink.printer.WriteRaw("\n")
}

type consoleStep struct {
	sink    *ConsoleSink
	name    string
	mu      sync.Mutex
	failed  bool
	done    bool
}

func (st *consoleStep) SetInput(input string) error {
	return st.sink.printer.Writeln("input: "+input, 1)
}

func (st *consoleStep) SetOutput(output string) error {
	st.mu.Lock()
	failed := st.failed
	st.mu.Unlock()
	if failed {
		return st.sink.printer.Writeln("error: "+output, 1)
	}
	return st.sink.printer.Writeln("output: "+output, 1)
}

func (st *consoleStep) MarkError() {
	st.mu.Lock()
	st.failed = true
	st.mu.Unlock()
}

func (st *consoleStep) Finalize() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return nil
	}
	st.done = true
	return st.sink.printer.Writeln(fmt.Sprintf("[tool] %s done", st.name), 0)
}

package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bt-bridge/agent-chat/shared"
)

type bufferHook struct {
	strings.Builder
}

func (*bufferHook) Close() error { return nil }

func newTestConsoleSink(t *testing.T) (*ConsoleSink, *bufferHook) {
	t.Helper()
	hook := new(bufferHook)
	printer, err := shared.NewPrinter("  ", hook)
	require.NoError(t, err)
	sink, err := NewConsoleSink(shared.NewNopLogger(), printer, 24000, 1)
	require.NoError(t, err)
	return sink, hook
}

func TestConsoleSinkMessageStreaming(t *testing.T) {
	sink, hook := newTestConsoleSink(t)

	msg, err := sink.NewMessage("agent", MessageKindAgent)
	require.NoError(t, err)
	require.NoError(t, msg.StreamToken("Hel"))
	require.NoError(t, msg.StreamToken("lo"))
	require.NoError(t, msg.Finalize())

	assert.Equal(t, "agent> Hello\n", hook.String())

	// Tokens after finalization are ignored, as is a second finalize.
	require.NoError(t, msg.StreamToken("late"))
	require.NoError(t, msg.Finalize())
	assert.Equal(t, "agent> Hello\n", hook.String())
}

func TestConsoleSinkEmptyMessageLeavesNoTrace(t *testing.T) {
	sink, hook := newTestConsoleSink(t)

	msg, err := sink.NewMessage("agent", MessageKindAgent)
	require.NoError(t, err)
	require.NoError(t, msg.Finalize())

	assert.Empty(t, hook.String())
}

func TestConsoleSinkNotify(t *testing.T) {
	sink, hook := newTestConsoleSink(t)

	require.NoError(t, sink.Notify("user", MessageKindUser, "hi"))
	require.NoError(t, sink.Notify("agent", MessageKindError, "boom"))

	out := hook.String()
	assert.Contains(t, out, "user> hi\n")
	assert.Contains(t, out, "agent [error]> boom\n")
}

func TestConsoleSinkStaleTrackDropped(t *testing.T) {
	sink, _ := newTestConsoleSink(t)

	require.NoError(t, sink.PlayAudioChunk("track-1", []byte{1, 2}))
	assert.Equal(t, 2, sink.AudioOut().Len())

	require.NoError(t, sink.InterruptAudio())
	assert.Equal(t, 0, sink.AudioOut().Len())

	// Late chunks from the interrupted track never reach the buffer.
	require.NoError(t, sink.PlayAudioChunk("track-1", []byte{3, 4}))
	assert.Equal(t, 0, sink.AudioOut().Len())

	// A fresh track plays normally.
	require.NoError(t, sink.PlayAudioChunk("track-2", []byte{5, 6}))
	assert.Equal(t, 2, sink.AudioOut().Len())
}

func TestConsoleSinkInterruptBeforeAnyAudio(t *testing.T) {
	sink, _ := newTestConsoleSink(t)

	require.NoError(t, sink.InterruptAudio())
	require.NoError(t, sink.PlayAudioChunk("track-1", []byte{1}))
	assert.Equal(t, 1, sink.AudioOut().Len())
}

func TestConsoleSinkStep(t *testing.T) {
	sink, hook := newTestConsoleSink(t)

	step, err := sink.NewStep("get_weather")
	require.NoError(t, err)
	require.NoError(t, step.SetInput("location: Tokyo"))
	require.NoError(t, step.SetOutput(`{"weather":"sunny"}`))
	require.NoError(t, step.Finalize())

	out := hook.String()
	assert.Contains(t, out, "[tool] get_weather\n")
	assert.Contains(t, out, "  input: location: Tokyo\n")
	assert.Contains(t, out, `  output: {"weather":"sunny"}`)
	assert.Contains(t, out, "[tool] get_weather done\n")
}

func TestConsoleSinkStepError(t *testing.T) {
	sink, hook := newTestConsoleSink(t)

	step, err := sink.NewStep("search_database")
	require.NoError(t, err)
	step.MarkError()
	require.NoError(t, step.SetOutput("unknown function: search_database"))
	require.NoError(t, step.Finalize())

	assert.Contains(t, hook.String(), "  error: unknown function: search_database\n")
}

package realtime

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerEventUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, e *ServerEvent)
	}{
		{
			name: "Text delta",
			data: `{"type":"response.output_text.delta","event_id":"ev-1","response_id":"resp-1","item_id":"item-1","delta":"Hello"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeResponseOutputTextDelta, e.Type)
				assert.Equal(t, "ev-1", e.EventId)
				p := e.Param.(*ServerEventParamOutputTextDelta)
				assert.Equal(t, "Hello", p.Delta)
				assert.Equal(t, "item-1", p.ItemId)
			},
		},
		{
			name: "Function call arguments delta",
			data: `{"type":"response.function_call_arguments.delta","call_id":"call-1","item_id":"item-9","delta":"{\"loc"}`,
			check: func(t *testing.T, e *ServerEvent) {
				p := e.Param.(*ServerEventParamFunctionCallArgumentsDelta)
				assert.Equal(t, "call-1", p.CallId)
				assert.Equal(t, `{"loc`, p.Delta)
			},
		},
		{
			name: "Function call arguments done",
			data: `{"type":"response.function_call_arguments.done","call_id":"call-1","name":"get_weather","arguments":"{\"location\":\"Tokyo\"}"}`,
			check: func(t *testing.T, e *ServerEvent) {
				p := e.Param.(*ServerEventParamFunctionCallArgumentsDone)
				assert.Equal(t, "get_weather", p.Name)
				assert.Equal(t, `{"location":"Tokyo"}`, p.Arguments)
			},
		},
		{
			name: "Error with nested shape",
			data: `{"type":"error","error":{"type":"invalid_request_error","code":"bad_session","message":"no session"}}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.True(t, e.IsError())
				p := e.Param.(*ServerEventParamError)
				assert.Equal(t, "no session (bad_session)", p.Error())
			},
		},
		{
			name: "User transcription completed",
			data: `{"type":"conversation.item.input_audio_transcription.completed","item_id":"item-2","transcript":"hi there"}`,
			check: func(t *testing.T, e *ServerEvent) {
				p := e.Param.(*ServerEventParamInputAudioTranscriptionCompleted)
				assert.Equal(t, "hi there", p.Transcript)
			},
		},
		{
			name: "Unknown kind is kept raw",
			data: `{"type":"rate_limits.updated","rate_limits":[{"name":"requests"}]}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventType("rate_limits.updated"), e.Type)
				assert.False(t, e.IsError())
				p := e.Param.(*ServerEventParamRaw)
				assert.Contains(t, p.Fields, "rate_limits")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := new(ServerEvent)
			require.NoError(t, event.UnmarshalJSON([]byte(tt.data)))
			tt.check(t, event)
		})
	}
}

func TestServerEventUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "Missing type", data: `{"delta":"x"}`},
		{name: "Error without message", data: `{"type":"error","error":{"code":"x"}}`},
		{name: "Audio delta without payload", data: `{"type":"response.output_audio.delta","item_id":"i"}`},
		{name: "Function call delta without call id", data: `{"type":"response.function_call_arguments.delta","delta":"x"}`},
		{name: "Not json", data: `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := new(ServerEvent)
			assert.Error(t, event.UnmarshalJSON([]byte(tt.data)))
		})
	}
}

func TestServerEventIsError(t *testing.T) {
	assert.True(t, (&ServerEvent{Type: ServerEventTypeError}).IsError())
	assert.True(t, (&ServerEvent{Type: "invalid_request.error"}).IsError())
	assert.False(t, (&ServerEvent{Type: ServerEventTypeResponseDone}).IsError())
}

func TestClientEventMarshal(t *testing.T) {
	tests := []struct {
		name     string
		event    *ClientEvent
		expected map[string]any
	}{
		{
			name: "Conversation item create",
			event: &ClientEvent{
				EventId: "ev-9",
				Type:    ClientEventTypeConversationItemCreate,
				Param: &ClientEventParamConversationItemCreate{
					Item: map[string]any{"type": "message", "role": "user"},
				},
			},
			expected: map[string]any{
				"type":     "conversation.item.create",
				"event_id": "ev-9",
				"item":     map[string]any{"type": "message", "role": "user"},
			},
		},
		{
			name: "Response create without body",
			event: &ClientEvent{
				Type:  ClientEventTypeResponseCreate,
				Param: &ClientEventParamResponseCreate{},
			},
			expected: map[string]any{"type": "response.create"},
		},
		{
			name: "Response cancel",
			event: &ClientEvent{
				Type:  ClientEventTypeResponseCancel,
				Param: &ClientEventParamResponseCancel{},
			},
			expected: map[string]any{"type": "response.cancel"},
		},
		{
			name: "Audio append",
			event: &ClientEvent{
				Type:  ClientEventTypeInputAudioBufferAppend,
				Param: &ClientEventParamInputAudioBufferAppend{Audio: "cGNt"},
			},
			expected: map[string]any{"type": "input_audio_buffer.append", "audio": "cGNt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.event.MarshalJSON()
			require.NoError(t, err)
			got := map[string]any{}
			require.NoError(t, sonic.Unmarshal(data, &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClientEventMarshalRejectsIncomplete(t *testing.T) {
	_, err := (&ClientEvent{Param: &ClientEventParamResponseCancel{}}).MarshalJSON()
	assert.Error(t, err)

	_, err = (&ClientEvent{Type: ClientEventTypeResponseCancel}).MarshalJSON()
	assert.Error(t, err)
}

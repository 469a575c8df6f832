package realtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

type EventType string

type ServerEventType EventType

type ClientEventType EventType

// Server event types handled by the dispatcher. Anything else on the wire
// is carried as a raw event and ignored.
const (
	ServerEventTypeError                                            ServerEventType = "error"
	ServerEventTypeSessionCreated                                   ServerEventType = "session.created"
	ServerEventTypeSessionUpdated                                   ServerEventType = "session.updated"
	ServerEventTypeConversationItemInputAudioTranscriptionDelta     ServerEventType = "conversation.item.input_audio_transcription.delta"
	ServerEventTypeConversationItemInputAudioTranscriptionCompleted ServerEventType = "conversation.item.input_audio_transcription.completed"
	ServerEventTypeConversationItemInputAudioTranscriptionFailed    ServerEventType = "conversation.item.input_audio_transcription.failed"
	ServerEventTypeResponseCreated                                  ServerEventType = "response.created"
	ServerEventTypeResponseDone                                     ServerEventType = "response.done"
	ServerEventTypeResponseOutputTextDelta                          ServerEventType = "response.output_text.delta"
	ServerEventTypeResponseOutputTextDone                           ServerEventType = "response.output_text.done"
	ServerEventTypeResponseOutputAudioTranscriptDelta               ServerEventType = "response.output_audio_transcript.delta"
	ServerEventTypeResponseOutputAudioTranscriptDone                ServerEventType = "response.output_audio_transcript.done"
	ServerEventTypeResponseOutputAudioDelta                         ServerEventType = "response.output_audio.delta"
	ServerEventTypeResponseOutputAudioDone                          ServerEventType = "response.output_audio.done"
	ServerEventTypeResponseFunctionCallArgumentsDelta               ServerEventType = "response.function_call_arguments.delta"
	ServerEventTypeResponseFunctionCallArgumentsDone                ServerEventType = "response.function_call_arguments.done"
)

// Client event types
const (
	ClientEventTypeSessionUpdate          ClientEventType = "session.update"
	ClientEventTypeInputAudioBufferAppend ClientEventType = "input_audio_buffer.append"
	ClientEventTypeConversationItemCreate ClientEventType = "conversation.item.create"
	ClientEventTypeResponseCreate         ClientEventType = "response.create"
	ClientEventTypeResponseCancel         ClientEventType = "response.cancel"
)

type Event interface {
	EventType() EventType
	IsServerEvent() bool
	IsClientEvent() bool
	MarshalYAML() ([]byte, error)
	MarshalJSON() ([]byte, error)
}

type EventParam interface {
	New(map[string]any) error
	Json() map[string]any
}

type ServerEvent struct {
	EventId string
	Type    ServerEventType
	Param   EventParam
}

var _ Event = (*ServerEvent)(nil)

func (e *ServerEvent) EventType() EventType {
	return EventType(e.Type)
}

func (e *ServerEvent) IsServerEvent() bool {
	return true
}

func (e *ServerEvent) IsClientEvent() bool {
	return false
}

// IsError reports whether this event kind denotes a failure.
func (e *ServerEvent) IsError() bool {
	return e.Type == ServerEventTypeError || strings.HasSuffix(string(e.Type), ".error")
}

func (e *ServerEvent) MarshalJSON() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("Type is empty")
	}
	if e.Param == nil {
		return nil, errors.New("Param is nil")
	}
	resp := map[string]any{}
	for k, v := range e.Param.Json() {
		resp[k] = v
	}
	if e.EventId != "" {
		resp["event_id"] = e.EventId
	}
	resp["type"] = e.Type
	return sonic.Marshal(resp)
}

func (e *ServerEvent) MarshalYAML() ([]byte, error) {
	jsonBytes, err := e.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := sonic.Unmarshal(jsonBytes, &raw); err != nil {
		return nil, err
	}
	return yaml.MarshalWithOptions(raw, yaml.UseJSONMarshaler())
}

func (e *ServerEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["event_id"].(string); ok {
		e.EventId = v
		delete(raw, "event_id")
	}
	if v, ok := raw["type"].(string); ok {
		e.Type = ServerEventType(v)
		delete(raw, "type")
	} else {
		return errors.New("missing type")
	}
	switch e.Type {
	case ServerEventTypeError:
		e.Param = new(ServerEventParamError)
	case ServerEventTypeSessionCreated:
		e.Param = new(ServerEventParamSessionCreated)
	case ServerEventTypeSessionUpdated:
		e.Param = new(ServerEventParamSessionUpdated)
	case ServerEventTypeConversationItemInputAudioTranscriptionDelta:
		e.Param = new(ServerEventParamInputAudioTranscriptionDelta)
	case ServerEventTypeConversationItemInputAudioTranscriptionCompleted:
		e.Param = new(ServerEventParamInputAudioTranscriptionCompleted)
	case ServerEventTypeConversationItemInputAudioTranscriptionFailed:
		e.Param = new(ServerEventParamInputAudioTranscriptionFailed)
	case ServerEventTypeResponseCreated:
		e.Param = new(ServerEventParamResponseCreated)
	case ServerEventTypeResponseDone:
		e.Param = new(ServerEventParamResponseDone)
	case ServerEventTypeResponseOutputTextDelta:
		e.Param = new(ServerEventParamOutputTextDelta)
	case ServerEventTypeResponseOutputTextDone:
		e.Param = new(ServerEventParamOutputTextDone)
	case ServerEventTypeResponseOutputAudioTranscriptDelta:
		e.Param = new(ServerEventParamOutputAudioTranscriptDelta)
	case ServerEventTypeResponseOutputAudioTranscriptDone:
		e.Param = new(ServerEventParamOutputAudioTranscriptDone)
	case ServerEventTypeResponseOutputAudioDelta:
		e.Param = new(ServerEventParamOutputAudioDelta)
	case ServerEventTypeResponseOutputAudioDone:
		e.Param = new(ServerEventParamOutputAudioDone)
	case ServerEventTypeResponseFunctionCallArgumentsDelta:
		e.Param = new(ServerEventParamFunctionCallArgumentsDelta)
	case ServerEventTypeResponseFunctionCallArgumentsDone:
		e.Param = new(ServerEventParamFunctionCallArgumentsDone)
	default:
		// The stream carries many kinds this system never acts on; keep
		// them parseable instead of failing the receive loop.
		e.Param = new(ServerEventParamRaw)
	}
	return e.Param.New(raw)
}

type ClientEvent struct {
	EventId string
	Type    ClientEventType
	Param   EventParam
}

var _ Event = (*ClientEvent)(nil)

func (e *ClientEvent) EventType() EventType {
	return EventType(e.Type)
}

func (e *ClientEvent) IsServerEvent() bool {
	return false
}

func (e *ClientEvent) IsClientEvent() bool {
	return true
}

func (e *ClientEvent) MarshalJSON() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("Type is empty")
	}
	if e.Param == nil {
		return nil, errors.New("Param is nil")
	}
	resp := map[string]any{}
	for k, v := range e.Param.Json() {
		resp[k] = v
	}
	if e.EventId != "" {
		resp["event_id"] = e.EventId
	}
	resp["type"] = e.Type
	return sonic.Marshal(resp)
}

func (e *ClientEvent) MarshalYAML() ([]byte, error) {
	jsonBytes, err := e.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := sonic.Unmarshal(jsonBytes, &raw); err != nil {
		return nil, err
	}
	return yaml.MarshalWithOptions(raw, yaml.UseJSONMarshaler())
}

// --- Server event params ---

// ServerEventParamRaw keeps the fields of an unhandled event kind.
type ServerEventParamRaw struct {
	Fields map[string]any
}

func (p *ServerEventParamRaw) New(m map[string]any) error {
	p.Fields = m
	return nil
}

func (p *ServerEventParamRaw) Json() map[string]any {
	return p.Fields
}

// error
type ServerEventParamError struct {
	ErrType string
	Code    string
	Message string
	Param   any
}

func (p *ServerEventParamError) New(m map[string]any) error {
	// Official nested shape first, flattened keys as fallback.
	src := m
	if errObj, ok := m["error"].(map[string]any); ok {
		src = errObj
	}
	if v, ok := src["type"].(string); ok {
		p.ErrType = v
	}
	if v, ok := src["code"].(string); ok {
		p.Code = v
	}
	if v, ok := src["message"].(string); ok {
		p.Message = v
	} else {
		return errors.New("missing error.message")
	}
	p.Param = src["param"]
	return nil
}

func (p *ServerEventParamError) Json() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":    p.ErrType,
			"code":    p.Code,
			"message": p.Message,
			"param":   p.Param,
		},
	}
}

func (p *ServerEventParamError) Error() string {
	if p.Code != "" {
		return fmt.Sprintf("%s (%s)", p.Message, p.Code)
	}
	return p.Message
}

// session.created
type ServerEventParamSessionCreated struct {
	Session map[string]any
}

func (p *ServerEventParamSessionCreated) New(m map[string]any) error {
	if session, ok := m["session"].(map[string]any); ok {
		p.Session = session
		return nil
	}
	return errors.New("missing session")
}

func (p *ServerEventParamSessionCreated) Json() map[string]any {
	return map[string]any{"session": p.Session}
}

// session.updated
type ServerEventParamSessionUpdated struct {
	Session map[string]any
}

func (p *ServerEventParamSessionUpdated) New(m map[string]any) error {
	if session, ok := m["session"].(map[string]any); ok {
		p.Session = session
		return nil
	}
	return errors.New("missing session")
}

func (p *ServerEventParamSessionUpdated) Json() map[string]any {
	return map[string]any{"session": p.Session}
}

// conversation.item.input_audio_transcription.delta
type ServerEventParamInputAudioTranscriptionDelta struct {
	ItemId string
	Delta  string
}

func (p *ServerEventParamInputAudioTranscriptionDelta) New(m map[string]any) error {
	p.ItemId, _ = m["item_id"].(string)
	p.Delta, _ = m["delta"].(string)
	return nil
}

func (p *ServerEventParamInputAudioTranscriptionDelta) Json() map[string]any {
	return map[string]any{"item_id": p.ItemId, "delta": p.Delta}
}

// conversation.item.input_audio_transcription.completed
type ServerEventParamInputAudioTranscriptionCompleted struct {
	ItemId     string
	Transcript string
}

func (p *ServerEventParamInputAudioTranscriptionCompleted) New(m map[string]any) error {
	p.ItemId, _ = m["item_id"].(string)
	p.Transcript, _ = m["transcript"].(string)
	return nil
}

func (p *ServerEventParamInputAudioTranscriptionCompleted) Json() map[string]any {
	return map[string]any{"item_id": p.ItemId, "transcript": p.Transcript}
}

// conversation.item.input_audio_transcription.failed
type ServerEventParamInputAudioTranscriptionFailed struct {
	ItemId string
	Error  map[string]any
}

func (p *ServerEventParamInputAudioTranscriptionFailed) New(m map[string]any) error {
	p.ItemId, _ = m["item_id"].(string)
	p.Error, _ = m["error"].(map[string]any)
	return nil
}

func (p *ServerEventParamInputAudioTranscriptionFailed) Json() map[string]any {
	return map[string]any{"item_id": p.ItemId, "error": p.Error}
}

// response.created
type ServerEventParamResponseCreated struct {
	Response map[string]any
}

func (p *ServerEventParamResponseCreated) New(m map[string]any) error {
	p.Response, _ = m["response"].(map[string]any)
	return nil
}

func (p *ServerEventParamResponseCreated) Json() map[string]any {
	return map[string]any{"response": p.Response}
}

// response.done
type ServerEventParamResponseDone struct {
	Response map[string]any
}

func (p *ServerEventParamResponseDone) New(m map[string]any) error {
	p.Response, _ = m["response"].(map[string]any)
	return nil
}

func (p *ServerEventParamResponseDone) Json() map[string]any {
	return map[string]any{"response": p.Response}
}

// response.output_text.delta
type ServerEventParamOutputTextDelta struct {
	ResponseId string
	ItemId     string
	Delta      string
}

func (p *ServerEventParamOutputTextDelta) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.Delta, _ = m["delta"].(string)
	return nil
}

func (p *ServerEventParamOutputTextDelta) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId, "delta": p.Delta}
}

// response.output_text.done
type ServerEventParamOutputTextDone struct {
	ResponseId string
	ItemId     string
	Text       string
}

func (p *ServerEventParamOutputTextDone) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.Text, _ = m["text"].(string)
	return nil
}

func (p *ServerEventParamOutputTextDone) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId, "text": p.Text}
}

// response.output_audio_transcript.delta
type ServerEventParamOutputAudioTranscriptDelta struct {
	ResponseId string
	ItemId     string
	Delta      string
}

func (p *ServerEventParamOutputAudioTranscriptDelta) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.Delta, _ = m["delta"].(string)
	return nil
}

func (p *ServerEventParamOutputAudioTranscriptDelta) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId, "delta": p.Delta}
}

// response.output_audio_transcript.done
type ServerEventParamOutputAudioTranscriptDone struct {
	ResponseId string
	ItemId     string
	Transcript string
}

func (p *ServerEventParamOutputAudioTranscriptDone) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.Transcript, _ = m["transcript"].(string)
	return nil
}

func (p *ServerEventParamOutputAudioTranscriptDone) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId, "transcript": p.Transcript}
}

// response.output_audio.delta
type ServerEventParamOutputAudioDelta struct {
	ResponseId string
	ItemId     string
	Delta      string // base64-encoded pcm16
}

func (p *ServerEventParamOutputAudioDelta) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	if v, ok := m["delta"].(string); ok {
		p.Delta = v
		return nil
	}
	return errors.New("missing delta")
}

func (p *ServerEventParamOutputAudioDelta) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId, "delta": p.Delta}
}

// response.output_audio.done
type ServerEventParamOutputAudioDone struct {
	ResponseId string
	ItemId     string
}

func (p *ServerEventParamOutputAudioDone) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	return nil
}

func (p *ServerEventParamOutputAudioDone) Json() map[string]any {
	return map[string]any{"response_id": p.ResponseId, "item_id": p.ItemId}
}

// response.function_call_arguments.delta
type ServerEventParamFunctionCallArgumentsDelta struct {
	ResponseId string
	ItemId     string
	CallId     string
	Delta      string
}

func (p *ServerEventParamFunctionCallArgumentsDelta) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	if v, ok := m["call_id"].(string); ok {
		p.CallId = v
	} else {
		return errors.New("missing call_id")
	}
	p.Delta, _ = m["delta"].(string)
	return nil
}

func (p *ServerEventParamFunctionCallArgumentsDelta) Json() map[string]any {
	return map[string]any{
		"response_id": p.ResponseId,
		"item_id":     p.ItemId,
		"call_id":     p.CallId,
		"delta":       p.Delta,
	}
}

// response.function_call_arguments.done
type ServerEventParamFunctionCallArgumentsDone struct {
	ResponseId string
	ItemId     string
	CallId     string
	Name       string
	Arguments  string
}

func (p *ServerEventParamFunctionCallArgumentsDone) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	if v, ok := m["call_id"].(string); ok {
		p.CallId = v
	} else {
		return errors.New("missing call_id")
	}
	p.Name, _ = m["name"].(string)
	p.Arguments, _ = m["arguments"].(string)
	return nil
}

func (p *ServerEventParamFunctionCallArgumentsDone) Json() map[string]any {
	return map[string]any{
		"response_id": p.ResponseId,
		"item_id":     p.ItemId,
		"call_id":     p.CallId,
		"name":        p.Name,
		"arguments":   p.Arguments,
	}
}

// --- Client event params ---

type ClientEventParamSessionUpdate struct {
	Session map[string]any
}

func (p *ClientEventParamSessionUpdate) New(m map[string]any) error {
	if session, ok := m["session"].(map[string]any); ok {
		p.Session = session
		return nil
	}
	return errors.New("missing session")
}

func (p *ClientEventParamSessionUpdate) Json() map[string]any {
	return map[string]any{"session": p.Session}
}

type ClientEventParamInputAudioBufferAppend struct {
	Audio string // base64-encoded pcm16
}

func (p *ClientEventParamInputAudioBufferAppend) New(m map[string]any) error {
	if v, ok := m["audio"].(string); ok {
		p.Audio = v
		return nil
	}
	return errors.New("missing audio")
}

func (p *ClientEventParamInputAudioBufferAppend) Json() map[string]any {
	return map[string]any{"audio": p.Audio}
}

type ClientEventParamConversationItemCreate struct {
	Item map[string]any
}

func (p *ClientEventParamConversationItemCreate) New(m map[string]any) error {
	if item, ok := m["item"].(map[string]any); ok {
		p.Item = item
		return nil
	}
	return errors.New("missing item")
}

func (p *ClientEventParamConversationItemCreate) Json() map[string]any {
	return map[string]any{"item": p.Item}
}

type ClientEventParamResponseCreate struct {
	Response map[string]any
}

func (p *ClientEventParamResponseCreate) New(m map[string]any) error {
	p.Response, _ = m["response"].(map[string]any)
	return nil
}

func (p *ClientEventParamResponseCreate) Json() map[string]any {
	if p.Response == nil {
		return map[string]any{}
	}
	return map[string]any{"response": p.Response}
}

type ClientEventParamResponseCancel struct {
	ResponseId string
}

func (p *ClientEventParamResponseCancel) New(m map[string]any) error {
	p.ResponseId, _ = m["response_id"].(string)
	return nil
}

func (p *ClientEventParamResponseCancel) Json() map[string]any {
	if p.ResponseId == "" {
		return map[string]any{}
	}
	return map[string]any{"response_id": p.ResponseId}
}

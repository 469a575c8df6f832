// Package tools implements the function-calling subsystem for the realtime
// flow: a Tool interface, a Registry that turns registered tools into
// session configuration and executes streamed calls, and the two demo
// tools (weather lookup, mock database search).
package tools

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/bt-bridge/agent-chat/shared"
)

// Tool is one callable the model may invoke. Implementations must be safe
// for concurrent use and must respect ctx cancellation on slow paths.
type Tool interface {
	// Name is the function name advertised to the model (snake_case).
	Name() string

	// Description tells the model when to use this tool.
	Description() string

	// Parameters returns the JSON schema of the argument object.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("%w: %s", shared.ErrToolAlreadyRegistered, t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Definitions returns the tool declarations for the session configuration,
// in registration order.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, map[string]any{
			"type":        "function",
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		})
	}
	return defs
}

// Execute runs the named tool against a raw JSON argument string and
// returns the result as a JSON payload. Failures of any kind, including an
// unknown function name, come back as an {"error": ...} payload rather
// than an error: the payload is fed to the model so it can react.
func (r *Registry) Execute(ctx context.Context, name, arguments string) string {
	result, err := r.call(ctx, name, arguments)
	if err != nil {
		return errorPayload(err)
	}
	out, err := sonic.MarshalString(result)
	if err != nil {
		return errorPayload(fmt.Errorf("marshaling result: %w", err))
	}
	return out
}

func (r *Registry) call(ctx context.Context, name, arguments string) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownFunction, name)
	}
	args := map[string]any{}
	if arguments != "" {
		if err := sonic.UnmarshalString(arguments, &args); err != nil {
			return nil, fmt.Errorf("unmarshaling arguments: %w", err)
		}
	}
	return t.Call(ctx, args)
}

func errorPayload(err error) string {
	out, merr := sonic.MarshalString(map[string]any{"error": err.Error()})
	if merr != nil {
		return `{"error":"tool execution failed"}`
	}
	return out
}

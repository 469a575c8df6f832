package realtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// followUpInstructions steer the response generated after a tool result is
// fed back into the conversation.
const followUpInstructions = "Use the function call result to answer the user's question clearly and concisely."

// executeToolCall runs one completed tool call as a detached task: render
// the step, execute, feed the result back as a function_call_output item,
// then request a follow-up response unless one is already in flight. The
// availability check and the flag set are not atomic; at worst the server
// rejects a duplicate response.create, which is harmless.
func (d *Dispatcher) executeToolCall(callID, name, arguments string) {
	defer d.toolWG.Done()

	d.logger.Info(
		"executing tool call",
		zap.String("call_id", callID),
		zap.String("name", name),
	)

	step, err := d.sink.NewStep(name)
	if err != nil {
		d.logger.Error("opening tool step", err)
		step = nil
	}
	if step != nil {
		if err := step.SetInput(formatToolInput(arguments)); err != nil {
			d.logger.Error("rendering tool input", err)
		}
	}

	output := d.registry.Execute(d.ctx, name, arguments)

	if step != nil {
		if errMsg, failed := toolErrorMessage(output); failed {
			step.MarkError()
			if err := step.SetOutput(errMsg); err != nil {
				d.logger.Error("rendering tool error", err)
			}
		} else if err := step.SetOutput(output); err != nil {
			d.logger.Error("rendering tool output", err)
		}
		if err := step.Finalize(); err != nil {
			d.logger.Error("finalizing tool step", err)
		}
	}

	if err := d.transport.CreateConversationItem(map[string]any{
		"type":    "function_call_output",
		"call_id": callID,
		"output":  output,
	}); err != nil {
		d.logger.Error("feeding tool result", err, zap.String("call_id", callID))
		return
	}

	if !d.state.Generating() {
		d.state.SetGenerating(true)
		if err := d.transport.CreateResponse(map[string]any{
			"instructions": followUpInstructions,
		}); err != nil {
			d.state.SetGenerating(false)
			d.logger.Error("requesting follow-up response", err)
		}
	}
}

// formatToolInput renders the raw argument string as one "key: value" line
// per argument, keys sorted. Unparseable arguments are shown verbatim.
func formatToolInput(arguments string) string {
	args := map[string]any{}
	if arguments == "" {
		return ""
	}
	if err := sonic.UnmarshalString(arguments, &args); err != nil {
		return arguments
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, args[k]))
	}
	return strings.Join(lines, "\n")
}

// toolErrorMessage reports whether the payload is an error payload and, if
// so, extracts the message.
func toolErrorMessage(payload string) (string, bool) {
	var wrapper struct {
		Error *string `json:"error"`
	}
	if err := sonic.UnmarshalString(payload, &wrapper); err != nil {
		return "", false
	}
	if wrapper.Error == nil {
		return "", false
	}
	return *wrapper.Error, true
}

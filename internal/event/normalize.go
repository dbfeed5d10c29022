// internal/event/normalize.go
package event

import (
	"encoding/json"
	"strings"
	"time"
)

// envelope is the outer shape shared by every session log record.
type envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// functionCall is the payload of a response_item tool-invocation record.
type functionCall struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
}

// Normalize parses one raw session log line into a canonical Event.
// Two physical record shapes are recognized:
//
//   - event_msg: the payload's "type" becomes the raw event type.
//   - response_item function_call: accepted only when the JSON-encoded
//     arguments request escalated permissions; the raw type is then a
//     fixed approval-request name chosen by the invoked tool.
//
// Anything else (blank lines, malformed JSON, unknown envelopes,
// non-escalated tool calls) is discarded and reported as ok=false.
func Normalize(line string) (*Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil, false
	}

	switch env.Type {
	case "event_msg":
		return normalizeEventMsg(env)
	case "response_item":
		return normalizeResponseItem(env)
	default:
		return nil, false
	}
}

func normalizeEventMsg(env envelope) (*Event, bool) {
	var payload map[string]any
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, false
	}

	rawType, ok := payload["type"].(string)
	if !ok || rawType == "" {
		return nil, false
	}

	return &Event{
		RawType:   rawType,
		Payload:   payload,
		Timestamp: parseTimestamp(env.Timestamp),
	}, true
}

func normalizeResponseItem(env envelope) (*Event, bool) {
	var fc functionCall
	if err := json.Unmarshal(env.Payload, &fc); err != nil {
		return nil, false
	}
	if fc.Type != "function_call" || fc.Name == "" {
		return nil, false
	}

	// The arguments field is itself JSON. Only tool calls that ask for
	// escalated permissions become events; everything else is routine
	// tool traffic.
	var args map[string]any
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return nil, false
	}
	escalated, _ := args["with_escalated_permissions"].(bool)
	if !escalated {
		return nil, false
	}

	rawType := RawExecApproval
	if fc.Name == "apply_patch" {
		rawType = RawPatchApproval
	}

	payload := map[string]any{
		"type":    rawType,
		"tool":    fc.Name,
		"call_id": fc.CallID,
	}
	if cmd := argumentsCommand(args); cmd != "" {
		payload["command"] = cmd
	}
	if j, _ := args["justification"].(string); j != "" {
		payload["justification"] = j
	}

	return &Event{
		RawType:   rawType,
		Payload:   payload,
		Timestamp: parseTimestamp(env.Timestamp),
	}, true
}

// argumentsCommand extracts the command being approved. The shell tool
// sends an argv array; other tools may send a plain string.
func argumentsCommand(args map[string]any) string {
	switch v := args["command"].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// parseTimestamp converts a textual record timestamp to a time value.
// Returns nil rather than a zero time when absent or unparseable, so
// downstream replay filtering can tell "no timestamp" from "epoch".
func parseTimestamp(ts string) *time.Time {
	if ts == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, ts); err == nil {
			return &t
		}
	}
	return nil
}

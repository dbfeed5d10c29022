// internal/event/event.go
package event

import "time"

// Raw event types emitted by the session log, plus the two synthetic
// approval-request types produced from function_call records.
const (
	RawTaskStarted  = "task_started"
	RawTaskComplete = "task_complete"
	RawAgentMessage = "agent_message"

	RawExecApproval  = "exec_approval_request"
	RawPatchApproval = "apply_patch_approval_request"
)

// Event is the canonical form every session log record is normalized into.
// It is immutable after construction and consumed synchronously by the
// dispatcher; nothing persists it.
type Event struct {
	RawType   string
	Payload   map[string]any
	Timestamp *time.Time // nil when the record carried no parseable timestamp
}

// TimestampSec returns the event's epoch seconds and whether one is present.
func (e *Event) TimestampSec() (int64, bool) {
	if e.Timestamp == nil {
		return 0, false
	}
	return e.Timestamp.Unix(), true
}

// payloadString fetches a string field from the payload, empty if absent
// or not a string.
func (e *Event) payloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// CallID returns the tool call identifier, if the event carries one.
func (e *Event) CallID() string {
	return e.payloadString("call_id")
}

// Reason returns the free-text justification attached to an approval
// request, if any.
func (e *Event) Reason() string {
	return e.payloadString("justification")
}

// Command returns the tool or command identifier, if any.
func (e *Event) Command() string {
	return e.payloadString("command")
}

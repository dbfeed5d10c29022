// internal/event/names.go
package event

import "strings"

// canonicalNames maps a raw event type to the additional canonical names
// it satisfies. Rule authors subscribe at different granularities: a
// task_complete record should fire both a rule bound to "TaskComplete"
// and a generic "Stop" rule, without the author knowing the raw name.
var canonicalNames = map[string][]string{
	RawTaskStarted:   {"TaskStart"},
	RawTaskComplete:  {"TaskComplete", "Stop"},
	RawAgentMessage:  {"Notification"},
	RawExecApproval:  {"PreToolUse"},
	RawPatchApproval: {"PreToolUse"},
}

// ExpandNames returns every canonical name a raw event type satisfies.
// The raw type itself is always included as a fallback match target, so
// rules may also bind directly to raw names.
func ExpandNames(rawType string) []string {
	names := []string{rawType}
	return append(names, canonicalNames[rawType]...)
}

// MatcherText synthesizes the text a rule's matcher regex is applied to:
// the raw type plus, when present, the command being approved, the
// justification, and the tool call id.
func MatcherText(e *Event) string {
	parts := []string{e.RawType}
	if cmd := e.Command(); cmd != "" {
		parts = append(parts, cmd)
	}
	if reason := e.Reason(); reason != "" {
		parts = append(parts, reason)
	}
	if id := e.CallID(); id != "" {
		parts = append(parts, id)
	}
	return strings.Join(parts, " ")
}

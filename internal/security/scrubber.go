// internal/security/scrubber.go
package security

import "regexp"

var (
	// Bearer and basic auth headers echoed by curl-style hooks.
	bearerPattern = regexp.MustCompile(`(?i)(bearer|basic)\s+\S{16,}`)
	// KEY=value style assignments for common secret names.
	assignPattern = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(?:TOKEN|SECRET|PASSWORD|API_KEY|APIKEY))=\S+`)
	// Long hex strings, likely keys or signatures.
	hexKeyPattern = regexp.MustCompile(`\b[0-9a-fA-F]{40,}\b`)
)

// ScrubOutput redacts credential-shaped substrings from captured hook
// command output. Hook commands routinely shell out to notifiers and
// deploy tooling, so their combined output can echo tokens; scrubbing
// happens once, before the output reaches the trace log or the
// dispatch history.
func ScrubOutput(output string) string {
	result := bearerPattern.ReplaceAllString(output, "$1 [REDACTED]")
	result = assignPattern.ReplaceAllString(result, "$1=[REDACTED]")
	result = hexKeyPattern.ReplaceAllString(result, "[REDACTED]")
	return result
}

// internal/security/sanitizer.go
package security

import "strings"

// MaxEnvValueLen bounds the size of any single exported hook variable.
const MaxEnvValueLen = 4096

// SanitizeEnvValue cleans a value sourced from a session log before it
// is exported into a hook command's environment. Session logs are
// written by the agent runtime and carry model-generated text, so the
// values cannot be trusted to be printable or bounded.
//   - control characters other than tab are stripped (including
//     newlines, which would corrupt line-oriented consumers)
//   - the result is truncated to MaxEnvValueLen bytes
func SanitizeEnvValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' {
			continue
		}
		if r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	result := b.String()
	if len(result) > MaxEnvValueLen {
		result = result[:MaxEnvValueLen]
	}
	return result
}

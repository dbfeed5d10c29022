// internal/manifest/manifest.go
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultTimeoutSec is applied to hook commands that do not declare a
// positive timeout of their own.
const DefaultTimeoutSec = 10

// HookCommand is one shell command attached to a rule. Declared in the
// manifest and never mutated at runtime.
type HookCommand struct {
	Command    string  `json:"command"`
	TimeoutSec float64 `json:"timeout,omitempty"`
}

// EventRule binds a canonical event name, an optional matcher regex,
// and an ordered list of commands to run when the rule fires.
type EventRule struct {
	EventName string        `json:"event"`
	Matcher   string        `json:"matcher,omitempty"`
	Commands  []HookCommand `json:"hooks"`
}

// HookSource groups the rules contributed by one origin: a plugin or a
// top-level (non-plugin) declaration.
type HookSource struct {
	ID         string      `json:"id"`
	SourceType string      `json:"sourceType"` // "home" or "project"
	Name       string      `json:"name"`
	RootPath   string      `json:"rootPath"`
	Rules      []EventRule `json:"rules"`
}

// Manifest is the declarative rule set the bridge consumes. It is read
// once per run; changes on disk require a restart.
type Manifest struct {
	Version     int          `json:"version"`
	ProjectRoot string       `json:"projectRoot"`
	Plugins     []HookSource `json:"plugins"`
	TopHooks    []HookSource `json:"topHooks"`
}

// Sources returns all hook sources in dispatch order: plugin sources
// first, then top-level sources. Both sets always run; the ordering
// only fixes iteration and logging priority.
func (m *Manifest) Sources() []HookSource {
	out := make([]HookSource, 0, len(m.Plugins)+len(m.TopHooks))
	out = append(out, m.Plugins...)
	return append(out, m.TopHooks...)
}

// RuleCount returns the total number of rules across all sources.
func (m *Manifest) RuleCount() int {
	n := 0
	for _, src := range m.Sources() {
		n += len(src.Rules)
	}
	return n
}

// Load reads the manifest JSON at path. A missing or malformed manifest
// is treated as an empty rule set, not an error: the bridge runs with
// nothing to dispatch rather than refusing to start.
func Load(path string) *Manifest {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Manifest{}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return &Manifest{}
	}
	return &m
}

// Validate reports structural problems worth surfacing to an operator:
// rules without commands, commands without text. It never fails the
// load; callers log the warnings and continue.
func (m *Manifest) Validate() []string {
	var warnings []string
	for _, src := range m.Sources() {
		for i, rule := range src.Rules {
			if rule.EventName == "" {
				warnings = append(warnings, fmt.Sprintf("source %q rule %d has no event name", src.Name, i))
			}
			if len(rule.Commands) == 0 {
				warnings = append(warnings, fmt.Sprintf("source %q rule %q has no commands", src.Name, rule.EventName))
			}
			for j, cmd := range rule.Commands {
				if cmd.Command == "" {
					warnings = append(warnings, fmt.Sprintf("source %q rule %q command %d is empty", src.Name, rule.EventName, j))
				}
			}
		}
	}
	return warnings
}

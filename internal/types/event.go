package types

import (
	"fmt"
	"time"
)

// ComponentClass identifies the category of monitored subject an event
// belongs to. The set is closed; unknown strings parse to ClassSystem.
type ComponentClass int

const (
	// ClassEditor covers editor main processes (code, code-server).
	ClassEditor ComponentClass = iota
	// ClassExtensionHost covers editor extension host processes.
	ClassExtensionHost
	// ClassAIModelLocal covers locally running model servers (ollama, llama).
	ClassAIModelLocal
	// ClassAIModelRemote covers remote AI assistant agents (copilot agents).
	ClassAIModelRemote
	// ClassTerminal covers interactive shells and terminal emulators.
	ClassTerminal
	// ClassFilesystem covers file operation measurements.
	ClassFilesystem
	// ClassNetwork covers network request measurements.
	ClassNetwork
	// ClassSystem is the catch-all for everything else.
	ClassSystem
)

// String returns the stable wire name of the class.
func (c ComponentClass) String() string {
	switch c {
	case ClassEditor:
		return "editor"
	case ClassExtensionHost:
		return "extension-host"
	case ClassAIModelLocal:
		return "ai-model-local"
	case ClassAIModelRemote:
		return "ai-model-remote"
	case ClassTerminal:
		return "terminal"
	case ClassFilesystem:
		return "filesystem"
	case ClassNetwork:
		return "network"
	case ClassSystem:
		return "system"
	default:
		return "system"
	}
}

// ParseComponentClass parses a wire name into a ComponentClass.
func ParseComponentClass(s string) (ComponentClass, error) {
	switch s {
	case "editor":
		return ClassEditor, nil
	case "extension-host":
		return ClassExtensionHost, nil
	case "ai-model-local":
		return ClassAIModelLocal, nil
	case "ai-model-remote":
		return ClassAIModelRemote, nil
	case "terminal":
		return ClassTerminal, nil
	case "filesystem":
		return ClassFilesystem, nil
	case "network":
		return ClassNetwork, nil
	case "system":
		return ClassSystem, nil
	default:
		return ClassSystem, fmt.Errorf("unknown component class %q", s)
	}
}

// AllComponentClasses returns every class in declaration order.
func AllComponentClasses() []ComponentClass {
	return []ComponentClass{
		ClassEditor,
		ClassExtensionHost,
		ClassAIModelLocal,
		ClassAIModelRemote,
		ClassTerminal,
		ClassFilesystem,
		ClassNetwork,
		ClassSystem,
	}
}

// MarshalText implements encoding.TextMarshaler so the class serializes
// as its wire name in JSON and YAML.
func (c ComponentClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ComponentClass) UnmarshalText(b []byte) error {
	parsed, err := ParseComponentClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SourceKind tags the provenance of an event.
type SourceKind int

const (
	// SourceProcessScan marks events produced by a process-table sampler.
	SourceProcessScan SourceKind = iota
	// SourceCommandExecution marks measured command executions.
	SourceCommandExecution
	// SourceFileOp marks measured file operations.
	SourceFileOp
	// SourceNetworkRequest marks measured network requests.
	SourceNetworkRequest
	// SourceSyntheticTest marks events injected by the self-test path.
	SourceSyntheticTest
	// SourceUserInteraction marks events attributed to user interactions.
	SourceUserInteraction
)

// String returns the stable wire name of the source kind.
func (s SourceKind) String() string {
	switch s {
	case SourceProcessScan:
		return "process-scan"
	case SourceCommandExecution:
		return "command-execution"
	case SourceFileOp:
		return "file-op"
	case SourceNetworkRequest:
		return "network-request"
	case SourceSyntheticTest:
		return "synthetic-test"
	case SourceUserInteraction:
		return "user-interaction"
	default:
		return "process-scan"
	}
}

// ParseSourceKind parses a wire name into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "process-scan":
		return SourceProcessScan, nil
	case "command-execution":
		return SourceCommandExecution, nil
	case "file-op":
		return SourceFileOp, nil
	case "network-request":
		return SourceNetworkRequest, nil
	case "synthetic-test":
		return SourceSyntheticTest, nil
	case "user-interaction":
		return SourceUserInteraction, nil
	default:
		return SourceProcessScan, fmt.Errorf("unknown source kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SourceKind) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SourceKind) UnmarshalText(b []byte) error {
	parsed, err := ParseSourceKind(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// LatencyEvent is one observed occurrence. Events are immutable once
// constructed; ID is nil until the persistence sink assigns it on durable
// write and is never reassigned afterwards.
type LatencyEvent struct {
	ID          *int64         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Class       ComponentClass `json:"component_class"`
	Source      SourceKind     `json:"source_kind"`
	Duration    time.Duration  `json:"-"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// DurationMicros mirrors Duration for JSON output; the wire unit is
	// microseconds.
	DurationMicros int64 `json:"duration_microseconds"`
}

// NewEvent constructs an unpersisted event stamped with the given capture
// time.
func NewEvent(ts time.Time, class ComponentClass, source SourceKind, d time.Duration, desc string) LatencyEvent {
	if d < 0 {
		d = 0
	}
	return LatencyEvent{
		Timestamp:      ts,
		Class:          class,
		Source:         source,
		Duration:       d,
		Description:    desc,
		DurationMicros: d.Microseconds(),
	}
}

// WithMetadata returns a copy of the event carrying the given metadata.
func (e LatencyEvent) WithMetadata(md map[string]any) LatencyEvent {
	e.Metadata = md
	return e
}

// Persisted reports whether the event has been durably stored.
func (e *LatencyEvent) Persisted() bool {
	return e.ID != nil
}

package contracts

import "context"

// Capability declares an agent's ability to handle a specific intent
// reference, together with the ordered fallback chain for that capability.
type Capability struct {
	Intent         IntentReference `json:"intent"`
	InputSchema    map[string]any  `json:"inputSchema,omitempty"`
	OutputSchema   map[string]any  `json:"outputSchema,omitempty"`
	FallbackAgents []string        `json:"fallbackAgents,omitempty"`
}

// AgentDefinition registers an agent's identity and declared capabilities.
type AgentDefinition struct {
	Name         string       `json:"name"`
	NodeID       string       `json:"nodeId,omitempty"`
	NodePriority int          `json:"nodePriority"`
	Capabilities []Capability `json:"capabilities"`
}

// HasCapability reports whether the agent declares the given intent.
func (a AgentDefinition) HasCapability(intent IntentReference) (Capability, bool) {
	for _, c := range a.Capabilities {
		if c.Intent.Equal(intent) {
			return c, true
		}
	}
	return Capability{}, false
}

// Status is the terminal outcome of an agent invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorInfo describes a structured agent or router failure.
type ErrorInfo struct {
	Code      string         `json:"code"`
	Subtype   string         `json:"subtype,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// AgentResponse is the normalized result of routing an intent to an agent.
type AgentResponse struct {
	Status   Status         `json:"status"`
	Payload  map[string]any `json:"payload,omitempty"`
	Error    *ErrorInfo     `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InvocationSpan is a lightweight per-attempt observability record of one
// agent invocation inside a routed intent. A routed intent produces exactly
// one logical trace span; the individual attempts a strategy makes within
// it — one per fallback candidate, one per broadcast/parallel launch — are
// recorded here rather than as separate top-level spans.
type InvocationSpan struct {
	Agent      string `json:"agent"`
	Intent     string `json:"intent"`
	StartedAt  string `json:"startedAt"`
	DurationMs int64  `json:"durationMs"`
	Status     Status `json:"status"`
}

// Agent is the invocation boundary: a named handler for one IntentEnvelope.
// Implementations must never panic; unexpected errors are normalized by the
// router's invocation wrapper into INTERNAL_AGENT_ERROR.
type Agent interface {
	Definition() AgentDefinition
	Invoke(ctx context.Context, env IntentEnvelope) (AgentResponse, error)
}

// Package contracts holds the core data model shared by the router, WAL,
// contract engine, and recorder: intents, envelopes, agents, responses,
// contracts, and execution records.
package contracts

// IntentReference identifies a unit of work by name and version.
// Equality is exact on both fields.
type IntentReference struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Equal reports whether two intent references name the same intent.
func (r IntentReference) Equal(other IntentReference) bool {
	return r.Name == other.Name && r.Version == other.Version
}

func (r IntentReference) String() string {
	return r.Name + "@" + r.Version
}

// RoutingStrategy selects how the router dispatches candidate agents.
type RoutingStrategy string

const (
	StrategyDirect    RoutingStrategy = "DIRECT"
	StrategyFallback  RoutingStrategy = "FALLBACK"
	StrategyBroadcast RoutingStrategy = "BROADCAST"
	StrategyParallel  RoutingStrategy = "PARALLEL"
)

// RoutingOptions carries the caller's strategy choice and optional direct target.
type RoutingOptions struct {
	Strategy     RoutingStrategy `json:"strategy"`
	TargetAgent  string          `json:"targetAgent,omitempty"`
}

// RoutingMetadata is append-only bookkeeping the router attaches to an envelope.
type RoutingMetadata struct {
	DecisionPath []string `json:"decisionPath"`
}

// AppendDecision records that agentName was attempted, preserving order.
func (m *RoutingMetadata) AppendDecision(agentName string) {
	m.DecisionPath = append(m.DecisionPath, agentName)
}

// EnvelopeMetadata carries trace/request identifiers and timestamps.
// Fields may be augmented in-flight by the router.
type EnvelopeMetadata struct {
	TraceID   string `json:"traceId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

// IntentEnvelope is the routable container wrapping an intent with context,
// routing options, and metadata.
type IntentEnvelope struct {
	Version         string           `json:"version"`
	Intent          IntentReference  `json:"intent"`
	Payload         map[string]any   `json:"payload"`
	Context         map[string]any   `json:"context,omitempty"`
	Metadata        EnvelopeMetadata `json:"metadata"`
	Routing         RoutingOptions   `json:"routing"`
	RoutingMetadata RoutingMetadata  `json:"routingMetadata"`
	IdempotencyKey  string           `json:"idempotencyKey,omitempty"`
	Contract        *ExecutionContract `json:"contract,omitempty"`
	SideEffect      SideEffectClass    `json:"sideEffect,omitempty"`
}

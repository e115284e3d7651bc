package contracts

// RecordedEvent is a recorder-level summary of one WAL entry relevant to an
// execution's history, flattened out of the hash-chained log for retrieval.
type RecordedEvent struct {
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Agent     string         `json:"agent,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ExecutionRecord is the immutable, finalized result of routing one intent
// envelope to completion (success, failure, or abort). Once Finalized is
// true, no field may change; RecordHash covers every other field.
type ExecutionRecord struct {
	ExecutionID  string          `json:"executionId"`
	EnvelopeHash string          `json:"envelopeHash"`
	Intent       IntentReference `json:"intent"`
	State        ExecutionState  `json:"state"`
	StartedAt    string          `json:"startedAt"`
	FinishedAt   string          `json:"finishedAt,omitempty"`
	Events       []RecordedEvent `json:"events"`
	Response     *AgentResponse  `json:"response,omitempty"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
	RecordHash   string          `json:"recordHash,omitempty"`
	Finalized    bool            `json:"finalized"`
	Replayable   bool            `json:"replayable"`
}

// hashable returns the subset of the record that participates in RecordHash
// computation — everything except RecordHash itself.
func (r ExecutionRecord) hashable() map[string]any {
	return map[string]any{
		"executionId":  r.ExecutionID,
		"envelopeHash": r.EnvelopeHash,
		"intent":       r.Intent,
		"state":        r.State,
		"startedAt":    r.StartedAt,
		"finishedAt":   r.FinishedAt,
		"events":       r.Events,
		"response":     r.Response,
		"fingerprint":  r.Fingerprint,
		"finalized":    r.Finalized,
		"replayable":   r.Replayable,
	}
}

// Hashable exposes the canonicalizable view of the record used by both the
// recorder (to compute RecordHash) and the retrieval engine (to verify it).
func (r ExecutionRecord) Hashable() map[string]any {
	return r.hashable()
}

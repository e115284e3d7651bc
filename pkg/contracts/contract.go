package contracts

import "fmt"

// SideEffectClass classifies the reversibility of a step's effect on the
// world outside the runtime. Recovery and contract validation both key off
// this classification.
type SideEffectClass string

const (
	SideEffectReadOnly    SideEffectClass = "READ_ONLY"
	SideEffectReversible  SideEffectClass = "REVERSIBLE"
	SideEffectIrreversible SideEffectClass = "IRREVERSIBLE"
)

// ExecutionContract declares the enforcement rules for one routed intent.
// Contracts are validated before routing begins and enforced while an agent
// runs.
type ExecutionContract struct {
	ExactlyOnce        bool  `json:"exactlyOnce"`
	NoRetry            bool  `json:"noRetry"`
	MaxRetries         int   `json:"maxRetries"`
	IdempotentRequired bool  `json:"idempotentRequired"`
	TimeoutMs          int64 `json:"timeoutMs"`
	MaxCostUnits       int64 `json:"maxCostUnits"`
}

// Validate checks the contract's internal invariants against the declared
// side-effect class. It does not inspect runtime state.
func (c ExecutionContract) Validate(sideEffect SideEffectClass) error {
	if c.NoRetry && c.MaxRetries > 0 {
		return fmt.Errorf("contract: noRetry and maxRetries>0 are mutually exclusive")
	}
	if c.MaxRetries > 0 && sideEffect == SideEffectIrreversible {
		return fmt.Errorf("contract: maxRetries>0 is not permitted for an IRREVERSIBLE step")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("contract: maxRetries must be >= 0")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("contract: timeoutMs must be > 0")
	}
	if c.MaxCostUnits <= 0 {
		return fmt.Errorf("contract: maxCostUnits must be > 0")
	}
	return nil
}

// AllowsRetry reports whether the contract permits a further attempt given
// attemptsSoFar already made.
func (c ExecutionContract) AllowsRetry(attemptsSoFar int) bool {
	if c.NoRetry {
		return false
	}
	return attemptsSoFar <= c.MaxRetries
}

// DefaultContract is applied when an envelope declares no explicit
// contract: generous timeout and budget, no retry/exactly-once guarantees.
func DefaultContract() ExecutionContract {
	return ExecutionContract{
		TimeoutMs:    30_000,
		MaxCostUnits: 1_000_000,
	}
}

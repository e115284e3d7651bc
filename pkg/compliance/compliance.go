// Package compliance resolves the active Mode into the concrete runtime
// settings tied to it: whether determinism is required
// (and therefore whether PARALLEL routing is permitted), whether WAL
// entries must be signed, and the PII redaction policy (see
// RedactionPolicy). Resolution happens once at startup and fails closed: a
// REGULATED mode missing a signer is a startup error, never a silent
// downgrade.
package compliance

import (
	"fmt"

	"github.com/Balchandar/intentusnet/pkg/crypto"
)

// Mode names a compliance posture. Modes are ordered by strictness but the
// type carries no numeric ordering; Resolve treats each as a distinct case.
type Mode string

const (
	ModeDevelopment Mode = "DEVELOPMENT"
	ModeStandard    Mode = "STANDARD"
	ModeRegulated   Mode = "REGULATED"
)

// RedactionPolicy names the envelope/payload fields a REGULATED profile
// marks as PII. Only REGULATED mode populates a non-empty policy. Resolve
// validates and records it; no package in this module reads it to scrub a
// payload, a log line or a finalized record.
type RedactionPolicy struct {
	Enabled bool
	// Fields lists dotted payload keys (e.g. "payload.ssn").
	Fields []string
}

// Config is the resolved, ready-to-wire output of Resolve.
type Config struct {
	Mode               Mode
	RequireDeterminism bool
	AllowParallel      bool
	RequireWALSigning  bool
	Redaction          RedactionPolicy
}

// Options carries the operator-supplied material Resolve needs for modes
// that require it. Signer is required for REGULATED; it is ignored (but
// harmless if present) for DEVELOPMENT and STANDARD.
type Options struct {
	Signer          crypto.Signer
	RedactionFields []string
}

// Resolve computes the Config for mode, failing closed if a required
// dependency is missing. An unrecognized mode is itself a startup error:
// there is no silent fallback to DEVELOPMENT.
func Resolve(mode Mode, opts Options) (*Config, error) {
	switch mode {
	case ModeDevelopment:
		return &Config{
			Mode:               ModeDevelopment,
			RequireDeterminism: false,
			AllowParallel:      true,
			RequireWALSigning:  false,
		}, nil

	case ModeStandard:
		return &Config{
			Mode:               ModeStandard,
			RequireDeterminism: true,
			AllowParallel:      false,
			RequireWALSigning:  false,
		}, nil

	case ModeRegulated:
		if opts.Signer == nil {
			return nil, fmt.Errorf("compliance: REGULATED mode requires a configured WAL signer, none provided")
		}
		if len(opts.RedactionFields) == 0 {
			return nil, fmt.Errorf("compliance: REGULATED mode requires a non-empty PII redaction field list")
		}
		return &Config{
			Mode:               ModeRegulated,
			RequireDeterminism: true,
			AllowParallel:      false,
			RequireWALSigning:  true,
			Redaction: RedactionPolicy{
				Enabled: true,
				Fields:  opts.RedactionFields,
			},
		}, nil

	default:
		return nil, fmt.Errorf("compliance: unrecognized mode %q", mode)
	}
}

// ParseMode validates a string against the known Mode values, as read from
// configuration or an environment variable.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevelopment, ModeStandard, ModeRegulated:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("compliance: unrecognized mode %q (want DEVELOPMENT, STANDARD, or REGULATED)", s)
	}
}

// NewKeyRegistryWithSigner returns a KeyRegistry holding signer's public
// key (an empty registry when signer is nil), for callers wiring a
// REGULATED-mode signer's public key into a verifier.
func NewKeyRegistryWithSigner(signer crypto.Signer) *crypto.KeyRegistry {
	reg := crypto.NewKeyRegistry()
	if signer != nil {
		reg.RegisterSigner(signer)
	}
	return reg
}

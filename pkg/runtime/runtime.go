// Package runtime wires the registry, contract engine, router, recorder,
// retrieval engine, idempotency index, and execution locks into a single
// handle constructed once at startup and passed by reference; there is no
// process-wide mutable singleton. It is the one place that owns the on-disk
// layout and the compliance-derived enforcement posture; cmd/intentusnet
// never touches pkg/recorder or pkg/idempotency directly, and uses pkg/wal
// only in `wal verify`, to verify a WAL file.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/compliance"
	"github.com/Balchandar/intentusnet/pkg/config"
	"github.com/Balchandar/intentusnet/pkg/contractengine"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/crypto"
	"github.com/Balchandar/intentusnet/pkg/fingerprint"
	"github.com/Balchandar/intentusnet/pkg/idempotency"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/recorder"
	"github.com/Balchandar/intentusnet/pkg/recovery"
	"github.com/Balchandar/intentusnet/pkg/registry"
	"github.com/Balchandar/intentusnet/pkg/retrieval"
	"github.com/Balchandar/intentusnet/pkg/router"
	"github.com/Balchandar/intentusnet/pkg/wal"
	"github.com/Balchandar/intentusnet/pkg/xlock"
)

// Options carries the dependencies Runtime needs beyond env-derived config:
// the agent registry a caller has already populated, an optional cost
// estimator, and (for REGULATED mode) a signer/verifier pair. Signer and
// Verifier may both be nil outside REGULATED mode.
type Options struct {
	Registry        *registry.AgentRegistry
	CostEstimator   contractengine.CostEstimator
	Signer          crypto.Signer
	Verifier        wal.Verifier
	RedactionFields []string
	LockTTL         time.Duration
}

// Runtime is the constructed handle every CLI command operates through.
type Runtime struct {
	cfg        *config.Config
	layout     config.Layout
	compliance *compliance.Config
	registry   *registry.AgentRegistry
	engine     *contractengine.Engine
	estimator  contractengine.CostEstimator
	router     *router.Router
	recorder   *recorder.Recorder
	retrieval  *retrieval.Engine
	idx        *idempotency.Index
	signer     crypto.Signer
	verifier   wal.Verifier
	lockTTL    time.Duration
	clock      func() time.Time
}

// New constructs a Runtime from cfg and opts, resolving the compliance mode
// and failing closed exactly as compliance.Resolve dictates (a REGULATED
// process refuses to start rather than silently degrade).
func New(cfg *config.Config, opts Options) (*Runtime, error) {
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}

	complianceCfg, err := compliance.Resolve(cfg.ComplianceMode, compliance.Options{
		Signer:          opts.Signer,
		RedactionFields: opts.RedactionFields,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve compliance mode: %w", err)
	}

	layout := cfg.Layout()

	estimator := opts.CostEstimator
	if estimator == nil {
		estimator = contractengine.ZeroCostEstimator
	}
	engine := contractengine.New(estimator)

	r := router.New(opts.Registry, engine, layout.WALDir, opts.Signer, complianceCfg.RequireWALSigning, complianceCfg.RequireDeterminism)

	idx, err := idempotency.Open(layout.IdempotencyIndexPath())
	if err != nil {
		return nil, fmt.Errorf("runtime: open idempotency index: %w", err)
	}

	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = xlock.DefaultTTL
	}

	return &Runtime{
		cfg:        cfg,
		layout:     layout,
		compliance: complianceCfg,
		registry:   opts.Registry,
		engine:     engine,
		estimator:  estimator,
		router:     r,
		recorder:   recorder.New(layout.RecordsDir),
		retrieval:  retrieval.New(layout.WALDir, layout.RecordsDir, opts.Verifier),
		idx:        idx,
		signer:     opts.Signer,
		verifier:   opts.Verifier,
		lockTTL:    ttl,
		clock:      time.Now,
	}, nil
}

// Registry exposes the agent registry so an embedding process can register
// agents before the first Submit.
func (rt *Runtime) Registry() *registry.AgentRegistry { return rt.registry }

// Compliance exposes the resolved compliance posture, e.g. for `wal verify`
// to learn whether WAL signing is required.
func (rt *Runtime) Compliance() *compliance.Config { return rt.compliance }

// Layout exposes the resolved on-disk directory layout.
func (rt *Runtime) Layout() config.Layout { return rt.layout }

// Submit admits env for execution: on an idempotency-key hit it returns the
// original execution's record without routing again; otherwise it
// generates a fresh executionId, acquires the per-execution lock, routes
// the envelope, finalizes the ExecutionRecord, and records the
// idempotency key (if any) before releasing the lock.
func (rt *Runtime) Submit(ctx context.Context, env contracts.IntentEnvelope) (*contracts.ExecutionRecord, error) {
	var dedupKey string
	if env.IdempotencyKey != "" {
		key, err := idempotency.DeriveKey(env)
		if err != nil {
			return nil, fmt.Errorf("runtime: derive idempotency key: %w", err)
		}
		dedupKey = key
		if existingID, found := rt.idx.Lookup(key); found {
			return rt.retrieval.Get(existingID)
		}
	}

	executionID := uuid.New().String()

	// Captured before Route mutates env.RoutingMetadata.DecisionPath, so it
	// matches the envelopeHash the router itself records in the
	// execution.started entry.
	envelopeHash, err := canonicalize.CanonicalHash(env)
	if err != nil {
		return nil, fmt.Errorf("runtime: hash envelope: %w", err)
	}

	lock, err := xlock.Acquire(rt.layout.LocksDir, executionID, rt.lockTTL)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	resp, err := rt.router.Route(ctx, &env, executionID)
	if err != nil {
		return nil, err
	}

	entries, err := wal.ReadAll(rt.walPath(executionID))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "runtime: read wal for fingerprint", err)
	}
	fpInput := fingerprint.FromWALEntries(env.Intent.String(), entries)
	fpHash, err := fingerprint.Compute(fpInput)
	if err != nil {
		return nil, fmt.Errorf("runtime: compute fingerprint: %w", err)
	}

	record, err := rt.recorder.Finalize(rt.layout.WALDir, executionID, env.Intent, envelopeHash, resp, fpHash)
	if err != nil {
		return nil, err
	}

	if dedupKey != "" {
		if err := rt.idx.Record(dedupKey, executionID); err != nil {
			return nil, err
		}
	}

	return record, nil
}

func (rt *Runtime) walPath(executionID string) string {
	return rt.layout.WALDir + "/" + executionID + ".wal"
}

// Retrieve returns the finalized record for executionID without invoking
// any agent.
func (rt *Runtime) Retrieve(executionID string) (*contracts.ExecutionRecord, error) {
	return rt.retrieval.Get(executionID)
}

// RecoveryScan enumerates incomplete executions and their RESUME/BLOCK
// classification.
func (rt *Runtime) RecoveryScan() ([]recovery.Finding, error) {
	return recovery.Scan(rt.layout.WALDir)
}

// RecoveryResume applies hook to a previously-scanned RESUME finding.
func (rt *Runtime) RecoveryResume(finding recovery.Finding, hook recovery.CompensationHook) error {
	return recovery.Resume(finding, hook)
}

// EstimatedCost is the pre-execution budget check result for `estimate`.
type EstimatedCost struct {
	AgentName     string `json:"agentName"`
	EstimatedCost int64  `json:"estimatedCost"`
	MaxCostUnits  int64  `json:"maxCostUnits"`
	WithinBudget  bool   `json:"withinBudget"`
}

// Estimate runs the same pre-execution cost check Submit performs — against
// the candidate the router would pick, for the contract env declares (or
// the default) — without writing any WAL entry or invoking an agent.
func (rt *Runtime) Estimate(env contracts.IntentEnvelope) (EstimatedCost, error) {
	candidates := rt.registry.FindAgentsForIntent(env.Intent)
	if len(candidates) == 0 {
		return EstimatedCost{}, ierrors.New(ierrors.CodeCapabilityNotFound, "runtime: no agent registered for intent "+env.Intent.String())
	}
	candidates = router.SortCandidates(candidates)

	agentName := candidates[0].Definition().Name
	if env.Routing.TargetAgent != "" {
		agentName = env.Routing.TargetAgent
	}

	contract := env.Contract
	if contract == nil {
		d := contracts.DefaultContract()
		contract = &d
	}

	if err := contractengine.ValidateContract(*contract, env.SideEffect); err != nil {
		return EstimatedCost{}, ierrors.Wrap(ierrors.CodeContractViolation, "runtime: contract validation failed", err)
	}

	budgetErr := rt.engine.CheckBudget(env, agentName, *contract)
	estimated, estErr := rt.estimator.Estimate(env, agentName)
	if estErr != nil {
		return EstimatedCost{}, ierrors.Wrap(ierrors.CodeBudgetExceeded, "runtime: cost estimation failed", estErr)
	}

	return EstimatedCost{
		AgentName:     agentName,
		EstimatedCost: estimated,
		MaxCostUnits:  contract.MaxCostUnits,
		WithinBudget:  budgetErr == nil,
	}, nil
}

// Close releases resources the Runtime holds open (currently none beyond
// file handles the WAL writer already closes per-call); present for
// symmetry with New and future pooled resources.
func (rt *Runtime) Close() error {
	return nil
}

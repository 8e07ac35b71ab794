package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/invariant"
	"github.com/lensguard/gatekeeper/pkg/livedata"
	"github.com/lensguard/gatekeeper/pkg/metrics"
	"github.com/lensguard/gatekeeper/pkg/moderoute"
	"github.com/lensguard/gatekeeper/pkg/saferender"
	"github.com/lensguard/gatekeeper/pkg/shield"
	"github.com/lensguard/gatekeeper/pkg/slack"
)

// MaxRegenerations bounds the personality-validation regeneration loop
// (spec §4.1: "the loop is capped at MAX_REGENERATIONS = 2 additional
// attempts").
const MaxRegenerations = 2

// Generator produces a raw completion for a prompt, honoring the
// response constraints computed by the live-data stage. Implementations
// live outside this package (e.g. an LLM provider client) to keep the
// gate executor independent of any particular model backend.
type Generator interface {
	Generate(ctx context.Context, prompt string, constraints evidence.Constraints) (Generation, error)
}

// Validator is the personality-validation stage: it may rewrite text
// and reports whether the result is acceptable as-is.
type Validator interface {
	Validate(ctx context.Context, text string) (rewritten string, verified bool, ok bool, err error)
}

// CapabilityPicker chooses which provider/model to generate with for a
// given stance.
type CapabilityPicker interface {
	Pick(stance Stance) (provider string, model string)
}

// ResultKind discriminates the PipelineResult variants from spec §4.1.
type ResultKind string

const (
	KindSuccess  ResultKind = "success"
	KindStopped  ResultKind = "stopped"
	KindAwaitAck ResultKind = "await_ack"
	KindDegraded ResultKind = "degraded"
	KindError    ResultKind = "error"
	KindRedirect ResultKind = "redirect"
)

// Outcome is the tagged union of possible pipeline outcomes (the
// PipelineResult from spec §4.1) returned by Execute.
type Outcome struct {
	Kind ResultKind

	Text                string
	Stance              Stance
	Spark               *Spark
	Metadata            map[string]any
	DegradationReason   string
	ErrorMessage        string
	AckToken            string
	AckMessage          string
	RedirectTarget      string
	RedirectMode        moderoute.Mode
	RedirectPlanID      string
	RedirectTopic       string
}

// Request is the input to Execute: a raw message plus caller-supplied
// context the gates need (ack validity, learning-session flags, etc).
type Request struct {
	UserID                 string
	Message                string
	AckTokenValid          bool
	AckToken               string
	HasActivePracticeDrill bool
	HasActiveExploreSession bool
	LiveDataEntity         string
}

// Executor drives the fixed gate order from spec §4.1.
type Executor struct {
	shield       *shield.Engine
	liveData     *livedata.Orchestrator
	generator    Generator
	validator    Validator
	capability   CapabilityPicker
	audit        *audit.Logger
	notifier     *slack.Notifier
}

// New constructs an Executor. validator and capability may be nil to
// use the package defaults (a no-op validator that always accepts, and
// a picker that always selects the "default" provider/model).
func New(shieldEngine *shield.Engine, orchestrator *livedata.Orchestrator, generator Generator, validator Validator, capability CapabilityPicker, logger *audit.Logger) *Executor {
	if validator == nil {
		validator = passthroughValidator{}
	}
	if capability == nil {
		capability = defaultCapabilityPicker{}
	}
	return &Executor{shield: shieldEngine, liveData: orchestrator, generator: generator, validator: validator, capability: capability, audit: logger}
}

// WithNotifier attaches a Slack notifier for crisis and critical
// invariant events. Safe to call with nil (e.g. when Slack isn't
// configured) — every notifier call site is itself nil-safe.
func (e *Executor) WithNotifier(n *slack.Notifier) *Executor {
	e.notifier = n
	return e
}

// Execute runs req through the canonical stage order: intent → shield →
// lens → stance → capability → (generation ↔ personality-validate up to
// MaxRegenerations times) → spark → invariant → safety-rendering.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	start := time.Now()
	outcome := e.execute(ctx, req)
	metrics.RequestsTotal.WithLabelValues(string(outcome.Kind)).Inc()
	metrics.RequestDurationSeconds.WithLabelValues(string(outcome.Kind)).Observe(time.Since(start).Seconds())
	return outcome
}

func (e *Executor) execute(ctx context.Context, req Request) Outcome {
	state := NewState(req.Message)
	state.Flags.AckTokenValid = req.AckTokenValid

	// 1. intent
	intentStart := time.Now()
	intent := ClassifyIntent(state.NormalizedInput, true, false)
	state.IntentSummary = &intent
	state.Stance = intent.Stance
	state.SetGateResult("intent", GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(intentStart)})

	// 2. shield
	shieldStart := time.Now()
	shieldOutcome, err := e.shield.Evaluate(ctx, req.UserID, state.NormalizedInput, intent.SafetySignal, req.AckTokenValid)
	if err != nil {
		return e.hardFail(state, "shield", err)
	}
	state.ShieldResult = &shieldOutcome
	switch shieldOutcome.Action {
	case shield.ActionCrisis:
		state.SetGateResult("shield", GateResult{Status: StatusBlocked, Action: ActionStop, ExecutionTimeMs: sinceMs(shieldStart)})
		return e.renderCrisisStop(ctx, req.UserID, shieldOutcome.SessionID)
	case shield.ActionWarn:
		if !req.AckTokenValid {
			state.SetGateResult("shield", GateResult{Status: StatusWarning, Action: ActionAwaitAck, ExecutionTimeMs: sinceMs(shieldStart)})
			token, tokErr := e.shield.IssueAckToken(ctx, req.UserID, state.NormalizedInput)
			if tokErr != nil {
				return e.hardFail(state, "shield.ack_issue", tokErr)
			}
			return Outcome{Kind: KindAwaitAck, Text: shieldOutcome.WarningMessage, AckToken: token, AckMessage: shieldOutcome.WarningMessage, Stance: StanceShield}
		}
	}
	state.SetGateResult("shield", GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(shieldStart)})

	// 3. lens (live-data orchestration)
	lensStart := time.Now()
	lensResult := e.liveData.Orchestrate(ctx, state.NormalizedInput, livedata.Options{Entity: req.LiveDataEntity})
	state.LensResult = &lensResult
	state.DomainImmediate = lensResult.ResponseConstraints.Level == evidence.ConstraintQuoteEvidenceOnly || lensResult.ResponseConstraints.Level == evidence.ConstraintForbidNumeric
	if lensResult.Mode == livedata.ModeBlocked {
		state.LiveFetchFailed = true
		state.SetGateResult("lens", GateResult{Status: StatusBlocked, Action: ActionStop, ExecutionTimeMs: sinceMs(lensStart), FailureReason: lensResult.RefusalMessage})
		return Outcome{Kind: KindStopped, Text: lensResult.RefusalMessage, Stance: state.Stance}
	}
	state.LiveFetchFailed = lensResult.FreshnessWarning != ""
	state.SetGateResult("lens", GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(lensStart)})

	// 4. stance (mode detector / redirect routing)
	stanceStart := time.Now()
	decision := moderoute.Decide(state.NormalizedInput, moderoute.SessionFlags{
		HasActivePracticeDrill: req.HasActivePracticeDrill,
		HasActiveExploreSession: req.HasActiveExploreSession,
	})
	state.ModeDecision = &decision
	state.SetGateResult("stance", GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(stanceStart)})
	if decision.Redirect {
		return Outcome{Kind: KindRedirect, RedirectTarget: "learning", RedirectMode: decision.Mode, RedirectTopic: decision.Topic, Stance: state.Stance}
	}

	// 5. capability pick
	provider, model := e.capability.Pick(state.Stance)
	state.CapabilityProvider = provider
	state.CapabilityModel = model

	// 6. generation <-> personality validation, capped regeneration loop
	prompt := buildPrompt(state)
	var validated string
	var verified bool
	for attempt := 0; attempt <= MaxRegenerations; attempt++ {
		genStart := time.Now()
		gen, genErr := e.generator.Generate(ctx, prompt, lensResult.ResponseConstraints)
		if genErr != nil {
			return e.hardFail(state, "generation", genErr)
		}
		gen.Model = model
		state.Generation = &gen
		state.SetGateResult(fmt.Sprintf("generation_%d", attempt), GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(genStart)})

		valStart := time.Now()
		rewritten, isVerified, acceptable, valErr := e.validator.Validate(ctx, gen.Text)
		if valErr != nil {
			return e.hardFail(state, "personality_validate", valErr)
		}
		validated = rewritten
		verified = isVerified
		if acceptable {
			state.SetGateResult(fmt.Sprintf("personality_validate_%d", attempt), GateResult{Status: StatusPass, Action: ActionContinue, ExecutionTimeMs: sinceMs(valStart)})
			break
		}
		state.Flags.RegenerationCount = attempt + 1
		state.SetGateResult(fmt.Sprintf("personality_validate_%d", attempt), GateResult{Status: StatusSoftFail, Action: ActionRegenerate, ExecutionTimeMs: sinceMs(valStart)})
	}

	degraded := state.Flags.RegenerationCount > MaxRegenerations
	state.ValidatedOutput = &ValidatedOutput{Text: validated, Verified: verified}
	state.Verified = verified
	if state.DomainImmediate && state.LiveFetchFailed {
		state.Confidence = "low"
		state.Verified = false
	}

	// 7. spark (only meaningful in sword stance)
	if state.Stance == StanceSword {
		state.Spark = &Spark{Action: "follow_through", FrictionLevel: FrictionMedium}
	}

	// 8. invariant checker
	finalText := state.ValidatedOutput.Text
	if state.ShieldResult != nil && state.ShieldResult.Action == shield.ActionCrisis {
		finalText = saferender.Prepend(finalText)
	}
	report := invariant.Check(state, finalText)
	if report.Critical() {
		e.recordInvariantViolation(ctx, req.UserID, report)
		return Outcome{Kind: KindStopped, Text: "I'm not able to complete that response safely.", Stance: state.Stance}
	}

	kind := KindSuccess
	reason := ""
	if report.Degraded || degraded {
		kind = KindDegraded
		reason = "response required regeneration or verification could not be confirmed"
	}

	return Outcome{
		Kind:              kind,
		Text:              finalText,
		Stance:            state.Stance,
		Spark:             state.Spark,
		DegradationReason: reason,
		Metadata: map[string]any{
			"provider": provider,
			"model":    model,
		},
	}
}

func (e *Executor) renderCrisisStop(ctx context.Context, userID, sessionID string) Outcome {
	text := saferender.Prepend("I'm really glad you reached out. You're not alone, and support is available right now.")
	if e.audit != nil {
		_ = e.audit.Record(ctx, audit.Event{
			Category: audit.CategorySafetyViolation,
			UserID:   userID,
			Message:  "crisis stop rendered",
			Metadata: map[string]any{"crisis_block_hash": saferender.BlockHash()},
		})
	}
	e.notifier.NotifyCrisisOpened(ctx, userID, sessionID)
	return Outcome{Kind: KindStopped, Text: text, Stance: StanceShield}
}

func (e *Executor) hardFail(state *State, gate string, err error) Outcome {
	state.SetGateResult(gate, GateResult{Status: StatusHardFail, Action: ActionStop, FailureReason: err.Error()})
	slog.Error("pipeline gate hard-failed", "gate", gate, "error", err)
	return Outcome{Kind: KindError, ErrorMessage: err.Error(), Stance: state.Stance}
}

func (e *Executor) recordInvariantViolation(ctx context.Context, userID string, report invariant.Report) {
	if e.audit == nil {
		return
	}
	for _, v := range report.Violations {
		metrics.GateViolationsTotal.WithLabelValues(v.Name, string(v.Severity)).Inc()
		if v.Severity != invariant.SeverityCritical {
			continue
		}
		_ = e.audit.Record(ctx, audit.Event{
			Category: audit.CategoryInvariantViolation,
			UserID:   userID,
			Message:  v.Name + ": " + v.Detail,
		})
		e.notifier.NotifyInvariantViolation(ctx, userID, v.Name, v.Detail)
	}
}

func buildPrompt(state *State) string {
	prompt := state.NormalizedInput
	if pack := state.EvidencePack(); pack != nil {
		for _, addition := range pack.SystemPromptAdditions {
			prompt = addition + "\n" + prompt
		}
		if pack.FormattedContext != "" {
			prompt = prompt + "\n\nEvidence:\n" + pack.FormattedContext
		}
	}
	return prompt
}

func sinceMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

type passthroughValidator struct{}

func (passthroughValidator) Validate(_ context.Context, text string) (string, bool, bool, error) {
	return text, true, true, nil
}

type defaultCapabilityPicker struct{}

func (defaultCapabilityPicker) Pick(_ Stance) (string, string) {
	return "default", "default"
}

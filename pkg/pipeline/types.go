// Package pipeline implements the gate executor (C13): it drives the
// fixed-order stage sequence, accumulates PipelineState, and enforces
// the short-circuit and regeneration rules from spec §4.1.
package pipeline

import (
	"time"

	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/livedata"
	"github.com/lensguard/gatekeeper/pkg/moderoute"
	"github.com/lensguard/gatekeeper/pkg/shield"
)

// PrimaryRoute is the top-level intent route.
type PrimaryRoute string

const (
	RouteSay  PrimaryRoute = "SAY"
	RouteMake PrimaryRoute = "MAKE"
	RouteFix  PrimaryRoute = "FIX"
	RouteDo   PrimaryRoute = "DO"
)

// Stance is the response posture the pipeline adopts.
type Stance string

const (
	StanceLens    Stance = "lens"
	StanceSword   Stance = "sword"
	StanceShield  Stance = "shield"
	StanceControl Stance = "control"
)

// Urgency is the classified urgency of a request.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IntentSummary is the intent gate's immutable snapshot output.
type IntentSummary struct {
	PrimaryRoute   PrimaryRoute
	Stance         Stance
	SafetySignal   shield.SafetySignal
	Urgency        Urgency
	LiveData       bool
	ExternalTool   bool
	LearningIntent bool
}

// GateStatus is the pass/fail classification of one gate's execution.
type GateStatus string

const (
	StatusPass     GateStatus = "pass"
	StatusSoftFail GateStatus = "soft_fail"
	StatusHardFail GateStatus = "hard_fail"
	StatusBlocked  GateStatus = "blocked"
	StatusWarning  GateStatus = "warning"
)

// GateAction is what the executor should do after a gate runs.
type GateAction string

const (
	ActionContinue   GateAction = "continue"
	ActionHalt       GateAction = "halt"
	ActionAwaitAck   GateAction = "await_ack"
	ActionRegenerate GateAction = "regenerate"
	ActionStop       GateAction = "stop"
)

// GateResult is one entry in PipelineState.gateResults.
type GateResult struct {
	Status          GateStatus
	Output          any
	Action          GateAction
	ExecutionTimeMs int64
	FailureReason   string
}

// Generation is the raw model output before personality validation.
type Generation struct {
	Text       string
	TokensUsed int
	Model      string
}

// ValidatedOutput is the (possibly rewritten) text after personality
// validation.
type ValidatedOutput struct {
	Text     string
	Verified bool
}

// FrictionLevel is how much deliberate friction a spark action carries.
type FrictionLevel string

const (
	FrictionLow    FrictionLevel = "low"
	FrictionMedium FrictionLevel = "medium"
	FrictionHigh   FrictionLevel = "high"
)

// Spark is the optional "sword" stance call-to-action payload.
type Spark struct {
	Action         string
	Duration       time.Duration
	FrictionLevel  FrictionLevel
	Prerequisites  []string
}

// ActionSource is where a requested action originated. Only these
// sources are trusted; anything else is a critical invariant violation
// (spec §4.1 invariant 6).
type ActionSource string

const (
	ActionSourceUIButton      ActionSource = "ui_button"
	ActionSourceCommandParser ActionSource = "command_parser"
	ActionSourceAPIField      ActionSource = "api_field"
)

// RequestedAction is an action the response asks the caller to take.
type RequestedAction struct {
	Name   string
	Source ActionSource
}

// Flags tracks small pieces of mutable pipeline bookkeeping.
type Flags struct {
	RegenerationCount int
	AckTokenValid     bool
}

// Timestamps records when each stage of the pipeline ran.
type Timestamps struct {
	StartedAt  time.Time
	FinishedAt time.Time
}

// State is the PipelineState accumulator threaded through every gate.
// Each gate exclusively owns its own output slot; once any gate returns
// halt or stop, no later gate runs.
type State struct {
	UserMessage     string
	NormalizedInput string

	IntentSummary *IntentSummary
	ShieldResult  *shield.Outcome
	LensResult    *livedata.Result
	ModeDecision  *moderoute.Decision

	Stance Stance

	CapabilityProvider string
	CapabilityModel    string

	Generation      *Generation
	ValidatedOutput *ValidatedOutput

	Spark *Spark

	GateResults map[string]GateResult

	RequestedActions []RequestedAction

	HighConfidenceClaim bool
	Verified            bool
	Confidence          string // "low" | "medium" | "high"

	DomainImmediate bool
	LiveFetchFailed bool

	Flags      Flags
	Timestamps Timestamps
}

// NewState constructs an empty State for one request.
func NewState(userMessage string) *State {
	return &State{
		UserMessage:     userMessage,
		NormalizedInput: normalize(userMessage),
		GateResults:     map[string]GateResult{},
		Timestamps:      Timestamps{StartedAt: time.Now()},
	}
}

func normalize(s string) string {
	// Trim-only normalization, matching the data model's description of
	// normalizedInput as simply the trimmed message.
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// EvidencePack returns the evidence pack attached to the current lens
// result, if any.
func (s *State) EvidencePack() *evidence.Pack {
	if s.LensResult == nil {
		return nil
	}
	return s.LensResult.Evidence
}

// SetGateResult records a gate's outcome under gateID, exclusively
// owning that slot per the data model's ownership rule.
func (s *State) SetGateResult(gateID string, result GateResult) {
	s.GateResults[gateID] = result
}

// Halted reports whether a prior gate already returned halt or stop,
// per the invariant that no later gate may run after either.
func (s *State) Halted() bool {
	for _, r := range s.GateResults {
		if r.Action == ActionHalt || r.Action == ActionStop {
			return true
		}
	}
	return false
}

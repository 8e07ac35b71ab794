// Package shield implements the safety-signal gate (C10): per-user
// crisis/warn state tracking, acknowledgment tokens, and the
// warn/halt/redirect decision that the gate executor short-circuits on.
package shield

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/metrics"
)

// SafetySignal is the input severity reported by upstream classification.
type SafetySignal string

const (
	SignalNone   SafetySignal = "none"
	SignalLow    SafetySignal = "low"
	SignalMedium SafetySignal = "medium"
	SignalHigh   SafetySignal = "high"
)

// State is a user's position in the shield state machine.
type State string

const (
	StateClear  State = "clear"
	StateWarned State = "warned"
	StateCrisis State = "crisis"
)

// Route is where the gate executor sends control after shield runs.
type Route string

const (
	RouteShield Route = "shield"
	RouteSkip   Route = "skip"
)

// Action is the shield gate's decision.
type Action string

const (
	ActionSkip   Action = "skip"
	ActionWarn   Action = "warn"
	ActionCrisis Action = "crisis"
)

// Outcome is the ShieldResult from the data model (spec §3).
type Outcome struct {
	Route          Route
	Action         Action
	SessionID      string
	ActivationID   string
	WarningMessage string
	CrisisBlocked  bool
}

// userState is the persisted per-user record.
type userState struct {
	State        State  `json:"state"`
	SessionID    string `json:"sessionId,omitempty"`
	ActivationID string `json:"activationId,omitempty"`
	OpenedAtUnix int64  `json:"openedAtUnix,omitempty"`
}

const (
	keyPrefixState = "shield:state:"
	keyPrefixAck   = "shield:ack:"
)

// DefaultAckTokenTTL is how long an issued acknowledgment token remains
// redeemable (spec Open Question decision, SPEC_FULL.md).
const DefaultAckTokenTTL = 10 * time.Minute

// Engine drives the shield state machine described in spec §4.3.
type Engine struct {
	store  kvstore.Store
	audit  *audit.Logger
	ackTTL time.Duration
	now    func() time.Time
}

// New constructs an Engine. audit may be nil to disable event recording
// (tests only — production always wires an audit logger).
func New(store kvstore.Store, logger *audit.Logger) *Engine {
	return &Engine{store: store, audit: logger, ackTTL: DefaultAckTokenTTL, now: time.Now}
}

// WithAckTokenTTL overrides the acknowledgment token lifetime.
func (e *Engine) WithAckTokenTTL(d time.Duration) *Engine {
	e.ackTTL = d
	return e
}

func (e *Engine) loadState(ctx context.Context, userID string) (userState, error) {
	raw, found, err := e.store.Get(ctx, keyPrefixState+userID)
	if err != nil {
		return userState{}, err
	}
	if !found {
		return userState{State: StateClear}, nil
	}
	var st userState
	if err := json.Unmarshal(raw, &st); err != nil {
		return userState{}, fmt.Errorf("decoding shield state for user %s: %w", userID, err)
	}
	return st, nil
}

func (e *Engine) saveState(ctx context.Context, userID string, st userState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding shield state for user %s: %w", userID, err)
	}
	// Shield state outlives any single rate-limit window; it is cleared
	// only by explicit transition, so it is persisted with no TTL.
	return e.store.Set(ctx, keyPrefixState+userID, raw, 0)
}

// Evaluate runs the shield gate for one message, per spec §4.3's state
// machine. ackTokenValid must come from an explicit out-of-band
// acknowledgment — never inferred from message content.
func (e *Engine) Evaluate(ctx context.Context, userID, message string, signal SafetySignal, ackTokenValid bool) (outcome Outcome, err error) {
	defer func() {
		if err == nil {
			metrics.ShieldActivationsTotal.WithLabelValues(string(outcome.Action)).Inc()
		}
	}()

	st, err := e.loadState(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}

	// An active crisis session blocks every subsequent message for that
	// user regardless of signal — checked before any other evaluation
	// (spec §4.3 invariant).
	if st.State == StateCrisis {
		return Outcome{Route: RouteShield, Action: ActionCrisis, SessionID: st.SessionID, ActivationID: st.ActivationID, CrisisBlocked: true}, nil
	}

	if st.State == StateWarned {
		if !ackTokenValid {
			return Outcome{Route: RouteShield, Action: ActionWarn, ActivationID: st.ActivationID, WarningMessage: warningMessage()}, nil
		}
		st.State = StateClear
		st.ActivationID = ""
		if err := e.saveState(ctx, userID, st); err != nil {
			return Outcome{}, err
		}
		// Falls through to evaluate this message fresh from clear.
	}

	switch signal {
	case SignalNone, SignalLow:
		return Outcome{Route: RouteSkip, Action: ActionSkip}, nil

	case SignalMedium:
		activationID := uuid.NewString()
		st.State = StateWarned
		st.ActivationID = activationID
		if err := e.saveState(ctx, userID, st); err != nil {
			return Outcome{}, err
		}
		e.recordAudit(ctx, userID, audit.CategoryShieldWarn, "shield issued a warn activation")
		return Outcome{Route: RouteShield, Action: ActionWarn, ActivationID: activationID, WarningMessage: warningMessage()}, nil

	case SignalHigh:
		sessionID := uuid.NewString()
		activationID := uuid.NewString()
		st.State = StateCrisis
		st.SessionID = sessionID
		st.ActivationID = activationID
		st.OpenedAtUnix = e.now().Unix()
		if err := e.saveState(ctx, userID, st); err != nil {
			return Outcome{}, err
		}
		e.recordAudit(ctx, userID, audit.CategorySafetyViolation, "crisis session opened")
		return Outcome{Route: RouteShield, Action: ActionCrisis, SessionID: sessionID, ActivationID: activationID, CrisisBlocked: false}, nil

	default:
		return Outcome{Route: RouteSkip, Action: ActionSkip}, nil
	}
}

// ResolveCrisis closes an open crisis session via the out-of-band
// resolution channel, returning the user to clear.
func (e *Engine) ResolveCrisis(ctx context.Context, userID string) error {
	st, err := e.loadState(ctx, userID)
	if err != nil {
		return err
	}
	if st.State != StateCrisis {
		return nil
	}
	e.recordAudit(ctx, userID, audit.CategoryCrisisResolved, "crisis session resolved out-of-band")
	return e.saveState(ctx, userID, userState{State: StateClear})
}

// IssueAckToken mints a one-time token bound to (userID, message),
// redeemable through the out-of-band acknowledgment endpoint.
func (e *Engine) IssueAckToken(ctx context.Context, userID, message string) (string, error) {
	token := uuid.NewString()
	key := keyPrefixAck + token
	value := []byte(requestHash(userID, message))
	if err := e.store.Set(ctx, key, value, e.ackTTL); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemAckToken consumes a token exactly once; it succeeds only if the
// token exists, hasn't expired, and matches (userID, message).
func (e *Engine) RedeemAckToken(ctx context.Context, token, userID, message string) (bool, error) {
	key := keyPrefixAck + token
	expected := requestHash(userID, message)
	return e.store.DeleteIfMatch(ctx, key, []byte(expected))
}

func requestHash(userID, message string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + message))
	return hex.EncodeToString(sum[:])
}

func warningMessage() string {
	return "I want to pause here. What you're describing sounds serious, and I'd rather make sure you get real support than guess. If you're open to it, please reach out to someone you trust or a crisis line — I'll stay with this conversation once you've acknowledged."
}

func (e *Engine) recordAudit(ctx context.Context, userID string, category audit.Category, message string) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, audit.Event{Category: category, UserID: userID, Message: message}); err != nil {
		slog.Warn("shield: failed to record audit event", "error", err, "user_id", userID)
	}
}

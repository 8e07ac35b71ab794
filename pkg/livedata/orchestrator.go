// Package livedata implements the live-data orchestrator (C9): it
// drives the classifier, risk assessor, and provider registry, then
// assembles an evidence pack and the response constraints the
// generator must honor.
package livedata

import (
	"context"
	"fmt"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/riskassess"
)

// Mode is the outcome mode of an orchestration run.
type Mode string

const (
	ModePassthrough Mode = "passthrough"
	ModeLiveFetch   Mode = "live_fetch"
	ModeDegraded    Mode = "degraded"
	ModeBlocked     Mode = "blocked"
)

// UserOption is a choice offered to the caller when orchestration can't
// proceed normally.
type UserOption string

const (
	OptionRetry  UserOption = "retry"
	OptionCancel UserOption = "cancel"
)

// Result is the LensGateResult from the data model (spec §3).
type Result struct {
	Mode                Mode
	Evidence            *evidence.Pack
	ResponseConstraints evidence.Constraints
	FreshnessWarning    string
	ForceHigh           bool
	FetchResults        map[classify.Category]dataprovider.Result
	RefusalMessage      string
	UserOptions         []UserOption
}

// Orchestrator drives C6 → C7 → C8 → C14.
type Orchestrator struct {
	classifier *classify.Classifier
	registry   *dataprovider.Registry
}

// New constructs an Orchestrator.
func New(classifier *classify.Classifier, registry *dataprovider.Registry) *Orchestrator {
	return &Orchestrator{classifier: classifier, registry: registry}
}

// Options configures one Orchestrate call.
type Options struct {
	// Entity is the primary entity to resolve against live-data
	// providers (e.g. a ticker symbol or city name). If empty, the
	// classifier's extracted entities are used.
	Entity string
}

// Orchestrate runs the C6→C7→C8→C14 pipeline for message, per spec §4.2.
func (o *Orchestrator) Orchestrate(ctx context.Context, message string, opts Options) Result {
	cls := o.classifier.Classify(message)

	if cls.TruthMode == classify.TruthModeLocal && !cls.HasLiveCategories() {
		return Result{Mode: ModePassthrough, ForceHigh: false}
	}

	assessment := riskassess.Assess(cls)
	if !assessment.ForceHigh {
		// Defensive: the invariant guarantees this can't happen for a
		// live/mixed truth mode, but orchestration never trusts a
		// broken invariant silently.
		return Result{Mode: ModeBlocked, RefusalMessage: "risk assessment invariant violated", UserOptions: []UserOption{OptionRetry, OptionCancel}}
	}

	entity := opts.Entity
	if entity == "" && len(cls.Entities) > 0 {
		entity = cls.Entities[0]
	}

	fetchResults := o.registry.FetchAll(ctx, cls.LiveCategories, entity)

	// Time is special: any failure is an unconditional block, per spec
	// §4.2 step 4 — there is no safe degraded answer to "what time is it".
	if timeResult, wantedTime := fetchResults[classify.CategoryTime]; wantedTime && !timeResult.OK {
		return Result{
			Mode:           ModeBlocked,
			ForceHigh:      true,
			FetchResults:   fetchResults,
			RefusalMessage: fmt.Sprintf("could not determine the current time: %s", timeResult.ErrMessage),
		}
	}

	okCount, total := 0, len(fetchResults)
	for _, res := range fetchResults {
		if res.OK {
			okCount++
		}
	}

	constraints := evidence.Constraints{Level: evidence.ConstraintPermissive}
	mode := ModeLiveFetch
	var refusal string
	var options []UserOption

	switch {
	case total == 0:
		mode = ModePassthrough
	case okCount == total:
		constraints.Level = evidence.ConstraintQuoteEvidenceOnly
	case okCount == 0:
		switch cls.FallbackMode {
		case classify.FallbackRefuse:
			mode = ModeBlocked
			refusal = "live data is currently unavailable for this request"
			options = []UserOption{OptionRetry, OptionCancel}
		case classify.FallbackProceedDegraded:
			mode = ModeDegraded
			constraints.Level = evidence.ConstraintForbidNumeric
		case classify.FallbackQualitativeOnly:
			mode = ModeDegraded
			constraints.Level = evidence.ConstraintQualitativeOnly
		}
	default:
		// Partial success: most restrictive constraint wins.
		mode = ModeDegraded
		constraints.Level = evidence.ConstraintForbidNumeric
	}

	if mode == ModeBlocked {
		return Result{
			Mode:           mode,
			ForceHigh:      true,
			FetchResults:   fetchResults,
			RefusalMessage: refusal,
			UserOptions:    options,
		}
	}

	pack := evidence.Build(fetchResults, constraints)

	var freshnessWarning string
	if !pack.IsComplete {
		freshnessWarning = "some live data could not be confirmed; treat unconfirmed figures with caution"
	}

	return Result{
		Mode:                mode,
		Evidence:            &pack,
		ResponseConstraints: constraints,
		FreshnessWarning:    freshnessWarning,
		ForceHigh:           true,
		FetchResults:        fetchResults,
	}
}
